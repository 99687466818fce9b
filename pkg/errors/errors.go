// Copyright 2026 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEndpoint   = errors.New("missing endpoint url")
	ErrSessionClosed     = errors.New("media session closed before negotiation completed")
	ErrSessionDisposed   = errors.New("session disconnected")
	ErrAlreadyNegotiated = errors.New("session already negotiated")
	ErrQueueClosed       = errors.New("queue closed")
	ErrNoLocalTracks     = errors.New("no local tracks to publish")
	ErrUnsupportedTrack  = errors.New("unsupported track kind")
	ErrNotKeyframeSource = errors.New("track does not support keyframe requests")
)

func New(err string) error {
	return errors.New(err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func ErrCouldNotParseConfig(err error) error {
	return fmt.Errorf("could not parse config: %v", err)
}

func ErrInvalidConfig(field string, value any) error {
	return fmt.Errorf("invalid config value for %s: %v", field, value)
}

func ErrUnsupportedMimeType(mimeType string) error {
	return fmt.Errorf("unsupported mime type %s", mimeType)
}

func ErrUnsupportedFile(path string) error {
	return fmt.Errorf("unsupported media file %s, expected .ivf, .ogg, .opus or .h264", path)
}

// TransportError is a network level failure while talking to the signaling endpoint.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func NewTransportError(method, url string, err error) *TransportError {
	return &TransportError{Method: method, URL: url, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is an unexpected status with the diagnostic body supplied by the server.
type ProtocolError struct {
	Status int
	Body   string
}

func NewProtocolError(status int, body string) *ProtocolError {
	return &ProtocolError{Status: status, Body: body}
}

func (e *ProtocolError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// ConfigurationError means the endpoint does not speak the protocol the session was configured for.
type ConfigurationError struct {
	Endpoint string
	Protocol string
}

func NewConfigurationError(endpoint, protocol string) *ConfigurationError {
	return &ConfigurationError{Endpoint: endpoint, Protocol: protocol}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("endpoint %s does not accept %s offers, update the url passed to the client", e.Endpoint, e.Protocol)
}

// TeardownError is a failed resource release. It is logged and never surfaced to callers.
type TeardownError struct {
	Location string
	Status   int
	Err      error
}

func NewTeardownError(location string, status int, err error) *TeardownError {
	return &TeardownError{Location: location, Status: status, Err: err}
}

func (e *TeardownError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("releasing %s failed: %v", e.Location, e.Err)
	}
	return fmt.Sprintf("releasing %s failed with status %d", e.Location, e.Status)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}

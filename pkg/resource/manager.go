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

package resource

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/signaling"
)

// Manager owns the resource location returned by a successful negotiation and
// releases it at most once.
type Manager struct {
	logger    logger.Logger
	transport signaling.Transport
	endpoint  string

	lock       sync.Mutex
	negotiated bool
	location   string
	releasing  bool
}

func NewManager(transport signaling.Transport, endpoint string, l logger.Logger) *Manager {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Manager{
		logger:    l,
		transport: transport,
		endpoint:  endpoint,
	}
}

// Set records the location of a negotiated session. An empty location leaves the
// resource absent, a relative one is resolved against the endpoint.
func (m *Manager) Set(location string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.negotiated {
		return errors.ErrAlreadyNegotiated
	}
	m.negotiated = true

	if location == "" {
		m.logger.Infow("server did not return a resource location, teardown will be skipped")
		return nil
	}

	resolved, err := ResolveLocation(m.endpoint, location)
	if err != nil {
		m.logger.Warnw("could not resolve resource location", err, "location", location)
		resolved = location
	}
	m.location = resolved

	return nil
}

func (m *Manager) Location() (string, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.location, m.location != ""
}

// Release issues a single DELETE for the resource. Release is best effort: the
// returned TeardownError is informational only. Without a location, or once the
// location was released, it does nothing.
func (m *Manager) Release(ctx context.Context) error {
	m.lock.Lock()
	location := m.location
	if location == "" || m.releasing {
		m.lock.Unlock()
		return nil
	}
	m.releasing = true
	m.lock.Unlock()

	defer func() {
		m.lock.Lock()
		m.location = ""
		m.releasing = false
		m.lock.Unlock()
	}()

	m.logger.Debugw("releasing resource", "location", location)

	status, err := m.transport.Delete(ctx, location)
	switch {
	case err != nil:
		err = errors.NewTeardownError(location, status, err)
	case status >= http.StatusBadRequest:
		err = errors.NewTeardownError(location, status, nil)
	default:
		m.logger.Infow("resource released", "location", location, "status", status)
		return nil
	}

	m.logger.Warnw("resource release failed, server will expire it", err)
	return err
}

func ResolveLocation(endpoint, location string) (string, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	base, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(ref).String(), nil
}

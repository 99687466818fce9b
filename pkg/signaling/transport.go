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

package signaling

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/livekit/whxp/pkg/errors"
)

const (
	ContentTypeSDP = "application/sdp"

	requestTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
)

// OfferResponse is the raw outcome of an offer POST. Interpreting the status is left to the caller.
type OfferResponse struct {
	StatusCode int
	Location   string
	Body       string
}

type Transport interface {
	PostOffer(ctx context.Context, endpoint, token, offer string) (*OfferResponse, error)
	Delete(ctx context.Context, location string) (int, error)
}

type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	return &HTTPTransport{
		client: client,
	}
}

func (t *HTTPTransport) PostOffer(ctx context.Context, endpoint, token, offer string) (*OfferResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offer))
	if err != nil {
		return nil, errors.NewTransportError(http.MethodPost, endpoint, err)
	}
	req.Header.Set("Content-Type", ContentTypeSDP)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(http.MethodPost, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.NewTransportError(http.MethodPost, endpoint, err)
	}

	return &OfferResponse{
		StatusCode: resp.StatusCode,
		Location:   resp.Header.Get("Location"),
		Body:       string(body),
	}, nil
}

// Delete releases a resource. The response body is drained and ignored.
func (t *HTTPTransport) Delete(ctx context.Context, location string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, location, nil)
	if err != nil {
		return 0, errors.NewTransportError(http.MethodDelete, location, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, errors.NewTransportError(http.MethodDelete, location, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	return resp.StatusCode, nil
}

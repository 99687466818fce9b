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
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/whxp/pkg/errors"
)

func TestPostOffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, ContentTypeSDP, r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "offer", string(body))

		w.Header().Set("Location", "/resource/42")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("answer"))
	}))
	defer srv.Close()

	resp, err := NewHTTPTransport(nil).PostOffer(context.Background(), srv.URL, "token", "offer")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "/resource/42", resp.Location)
	require.Equal(t, "answer", resp.Body)
}

func TestPostOfferErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stream key invalid", http.StatusUnauthorized)
	}))
	defer srv.Close()

	resp, err := NewHTTPTransport(nil).PostOffer(context.Background(), srv.URL, "token", "offer")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "stream key invalid\n", resp.Body)
	require.Empty(t, resp.Location)
}

func TestPostOfferTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPTransport(nil).PostOffer(context.Background(), url, "token", "offer")
	require.Error(t, err)

	var transportErr *errors.TransportError
	require.True(t, errors.As(err, &transportErr))
	require.Equal(t, http.MethodPost, transportErr.Method)
}

func TestDelete(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	status, err := NewHTTPTransport(nil).Delete(context.Background(), srv.URL+"/resource/42")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "/resource/42", deleted)
}

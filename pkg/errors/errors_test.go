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
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransportErrorUnwraps(t *testing.T) {
	err := error(NewTransportError(http.MethodPost, "http://server/whip", context.DeadlineExceeded))
	require.True(t, Is(err, context.DeadlineExceeded))
	require.Equal(t, "POST http://server/whip failed: context deadline exceeded", err.Error())

	var te *TransportError
	require.True(t, As(err, &te))
	require.Equal(t, "http://server/whip", te.URL)
}

func TestProtocolErrorMessage(t *testing.T) {
	require.Equal(t, "unexpected status 500", NewProtocolError(http.StatusInternalServerError, "").Error())
	require.Equal(t, "unexpected status 400: bad sdp", NewProtocolError(http.StatusBadRequest, "bad sdp").Error())
}

func TestTeardownError(t *testing.T) {
	err := NewTeardownError("http://server/r/1", http.StatusNotFound, nil)
	require.Equal(t, "releasing http://server/r/1 failed with status 404", err.Error())
	require.Nil(t, err.Unwrap())

	err = NewTeardownError("http://server/r/1", 0, ErrQueueClosed)
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("http://server/whep", "WHIP")
	require.Contains(t, err.Error(), "does not accept WHIP offers")
}

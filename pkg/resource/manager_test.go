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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/testutils"
)

func TestReleaseOnce(t *testing.T) {
	transport := &testutils.FakeTransport{}
	m := NewManager(transport, "http://server:8080/whip/live", nil)

	require.NoError(t, m.Set("/resource/42"))
	location, ok := m.Location()
	require.True(t, ok)
	require.Equal(t, "http://server:8080/resource/42", location)

	require.NoError(t, m.Release(context.Background()))
	require.NoError(t, m.Release(context.Background()))
	require.Equal(t, []string{"http://server:8080/resource/42"}, transport.Deletes())

	_, ok = m.Location()
	require.False(t, ok)
}

func TestReleaseWithoutLocation(t *testing.T) {
	transport := &testutils.FakeTransport{}
	m := NewManager(transport, "http://server/whip", nil)

	require.NoError(t, m.Release(context.Background()))

	require.NoError(t, m.Set(""))
	_, ok := m.Location()
	require.False(t, ok)
	require.NoError(t, m.Release(context.Background()))
	require.Empty(t, transport.Deletes())
}

func TestSetAtMostOnce(t *testing.T) {
	m := NewManager(&testutils.FakeTransport{}, "http://server/whip", nil)

	require.NoError(t, m.Set("https://server/a"))
	require.ErrorIs(t, m.Set("https://server/b"), errors.ErrAlreadyNegotiated)

	location, _ := m.Location()
	require.Equal(t, "https://server/a", location)
}

func TestReleaseFailureIsReported(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		transport := &testutils.FakeTransport{DeleteErr: errors.New("connection reset")}
		m := NewManager(transport, "http://server/whip", nil)
		require.NoError(t, m.Set("/r"))

		err := m.Release(context.Background())
		var teardownErr *errors.TeardownError
		require.True(t, errors.As(err, &teardownErr))
		require.Equal(t, "http://server/r", teardownErr.Location)

		// the location is gone even though the server may still hold it
		_, ok := m.Location()
		require.False(t, ok)
		require.NoError(t, m.Release(context.Background()))
		require.Len(t, transport.Deletes(), 1)
	})

	t.Run("status", func(t *testing.T) {
		transport := &testutils.FakeTransport{DeleteStatus: http.StatusNotFound}
		m := NewManager(transport, "http://server/whip", nil)
		require.NoError(t, m.Set("/r"))

		err := m.Release(context.Background())
		var teardownErr *errors.TeardownError
		require.True(t, errors.As(err, &teardownErr))
		require.Equal(t, http.StatusNotFound, teardownErr.Status)
	})
}

func TestResolveLocation(t *testing.T) {
	for _, c := range []struct {
		endpoint, location, expected string
	}{
		{"http://h/whip/live", "/whip/live/abc", "http://h/whip/live/abc"},
		{"http://h/whip/live", "abc", "http://h/whip/abc"},
		{"http://h/whip/live/", "abc", "http://h/whip/live/abc"},
		{"http://h/whip", "https://other/res", "https://other/res"},
	} {
		got, err := ResolveLocation(c.endpoint, c.location)
		require.NoError(t, err)
		require.Equal(t, c.expected, got)
	}
}

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

package negotiation

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/testutils"
	"github.com/livekit/whxp/pkg/types"
)

const answer = "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\nm=video 9 UDP/TLS/RTP/SAVPF 96\r\nc=IN IP4 0.0.0.0\r\na=mid:0\r\na=recvonly\r\n"

func newEngine(transport *testutils.FakeTransport, clk *testutils.RecordingClock, policy MethodNotAllowedPolicy, attempts *[]Attempt) *Engine {
	return NewEngine(transport, Options{
		MethodNotAllowed: policy,
		Protocol:         "WHIP",
		Clock:            clk,
		OnAttempt: func(a Attempt) {
			if attempts != nil {
				*attempts = append(*attempts, a)
			}
		},
	})
}

func TestNegotiateFirstAttempt(t *testing.T) {
	ms := testutils.NewFakeMediaSession(nil)
	transport := &testutils.FakeTransport{Responses: []testutils.Response{testutils.Created("/resource/42", answer)}}
	clk := testutils.NewRecordingClock()

	location, err := newEngine(transport, clk, "", nil).Negotiate(context.Background(), ms, "http://server/whip", "token")
	require.NoError(t, err)
	require.Equal(t, "/resource/42", location)
	require.Equal(t, answer, ms.RemoteDescription())
	require.Empty(t, clk.Waits())

	posts := transport.Posts()
	require.Len(t, posts, 1)
	require.Equal(t, "http://server/whip", posts[0].Endpoint)
	require.Equal(t, "token", posts[0].Token)
	require.Equal(t, ms.Offer, posts[0].Offer)
}

func TestNegotiateRetriesUntilCreated(t *testing.T) {
	ms := testutils.NewFakeMediaSession(nil)
	transport := &testutils.FakeTransport{Responses: []testutils.Response{
		testutils.Status(http.StatusInternalServerError, "busy"),
		testutils.Status(http.StatusInternalServerError, "busy"),
		testutils.Status(http.StatusInternalServerError, "busy"),
		testutils.Created("https://server/resource/7", answer),
	}}
	clk := testutils.NewRecordingClock()
	var attempts []Attempt

	location, err := newEngine(transport, clk, "", &attempts).Negotiate(context.Background(), ms, "http://server/whip", "token")
	require.NoError(t, err)
	require.Equal(t, "https://server/resource/7", location)
	require.Len(t, transport.Posts(), 4)
	require.Equal(t, []time.Duration{DefaultBackoff, DefaultBackoff, DefaultBackoff}, clk.Waits())

	require.Len(t, attempts, 4)
	for _, a := range attempts[:3] {
		require.Equal(t, OutcomeRetryable, a.Outcome)
		require.Equal(t, http.StatusInternalServerError, a.Status)

		var protocolErr *errors.ProtocolError
		require.True(t, errors.As(a.Err, &protocolErr))
		require.Equal(t, "busy", protocolErr.Body)
	}
	require.Equal(t, OutcomeAccepted, attempts[3].Outcome)
	require.Equal(t, 4, attempts[3].Number)
}

func TestNegotiateLocationIsVerbatim(t *testing.T) {
	for _, location := range []string{"", "/relative/1", "resource", "https://other.host/x?y=1"} {
		ms := testutils.NewFakeMediaSession(nil)
		transport := &testutils.FakeTransport{Responses: []testutils.Response{
			testutils.Status(http.StatusBadRequest, ""),
			testutils.Created(location, answer),
		}}

		got, err := newEngine(transport, testutils.NewRecordingClock(), "", nil).Negotiate(context.Background(), ms, "http://server/whip", "")
		require.NoError(t, err)
		require.Equal(t, location, got)
	}
}

func TestNegotiateStopsWhenClosed(t *testing.T) {
	ms := testutils.NewFakeMediaSession(nil)
	transport := &testutils.FakeTransport{Responses: []testutils.Response{testutils.Status(http.StatusServiceUnavailable, "")}}
	transport.OnPost = func(n int) {
		if n == 2 {
			ms.SetState(types.ConnectionStateClosed)
		}
	}

	location, err := newEngine(transport, testutils.NewRecordingClock(), "", nil).Negotiate(context.Background(), ms, "http://server/whip", "")
	require.ErrorIs(t, err, errors.ErrSessionClosed)
	require.Empty(t, location)
	require.Len(t, transport.Posts(), 2)
	require.Empty(t, ms.RemoteDescription())
}

func TestNegotiateClosedBeforeStart(t *testing.T) {
	ms := testutils.NewFakeMediaSession(nil)
	ms.SetState(types.ConnectionStateClosed)
	transport := &testutils.FakeTransport{}

	_, err := newEngine(transport, testutils.NewRecordingClock(), "", nil).Negotiate(context.Background(), ms, "http://server/whip", "")
	require.ErrorIs(t, err, errors.ErrSessionClosed)
	require.Empty(t, transport.Posts())
}

func TestNegotiateMethodNotAllowed(t *testing.T) {
	t.Run("retry", func(t *testing.T) {
		ms := testutils.NewFakeMediaSession(nil)
		transport := &testutils.FakeTransport{Responses: []testutils.Response{
			testutils.Status(http.StatusMethodNotAllowed, ""),
			testutils.Created("/r", answer),
		}}
		var attempts []Attempt

		location, err := newEngine(transport, testutils.NewRecordingClock(), MethodNotAllowedRetry, &attempts).Negotiate(context.Background(), ms, "http://server/whip", "")
		require.NoError(t, err)
		require.Equal(t, "/r", location)

		var confErr *errors.ConfigurationError
		require.True(t, errors.As(attempts[0].Err, &confErr))
		require.Equal(t, "WHIP", confErr.Protocol)
		require.Equal(t, OutcomeRetryable, attempts[0].Outcome)
	})

	t.Run("fail", func(t *testing.T) {
		ms := testutils.NewFakeMediaSession(nil)
		transport := &testutils.FakeTransport{Responses: []testutils.Response{
			testutils.Status(http.StatusMethodNotAllowed, ""),
			testutils.Created("/r", answer),
		}}
		clk := testutils.NewRecordingClock()

		_, err := newEngine(transport, clk, MethodNotAllowedFail, nil).Negotiate(context.Background(), ms, "http://server/whip", "")
		var confErr *errors.ConfigurationError
		require.True(t, errors.As(err, &confErr))
		require.Len(t, transport.Posts(), 1)
		require.Empty(t, clk.Waits())
	})
}

func TestNegotiateTransportErrorIsRetried(t *testing.T) {
	ms := testutils.NewFakeMediaSession(nil)
	transport := &testutils.FakeTransport{Responses: []testutils.Response{
		{Err: errors.NewTransportError(http.MethodPost, "http://server/whip", errors.New("connection refused"))},
		testutils.Created("/r", answer),
	}}
	clk := testutils.NewRecordingClock()

	location, err := newEngine(transport, clk, "", nil).Negotiate(context.Background(), ms, "http://server/whip", "")
	require.NoError(t, err)
	require.Equal(t, "/r", location)
	require.Len(t, clk.Waits(), 1)
}

func TestNegotiateRemoteDescriptionFailure(t *testing.T) {
	ms := testutils.NewFakeMediaSession(nil)
	ms.RemoteErr = errors.New("bad answer")
	transport := &testutils.FakeTransport{Responses: []testutils.Response{testutils.Created("/r", "garbage")}}

	location, err := newEngine(transport, testutils.NewRecordingClock(), "", nil).Negotiate(context.Background(), ms, "http://server/whip", "")
	require.EqualError(t, err, "bad answer")
	require.Equal(t, "/r", location)
	require.Len(t, transport.Posts(), 1)
}

func TestNegotiatePostsGatheredDescription(t *testing.T) {
	ms := testutils.NewFakeMediaSession(nil)
	ms.GatheredOffer = ms.Offer + "a=candidate:1 1 udp 1 127.0.0.1 5000 typ host\r\n"
	transport := &testutils.FakeTransport{Responses: []testutils.Response{testutils.Created("/r", answer)}}

	_, err := newEngine(transport, testutils.NewRecordingClock(), "", nil).Negotiate(context.Background(), ms, "http://server/whip", "")
	require.NoError(t, err)
	require.Equal(t, ms.GatheredOffer, transport.Posts()[0].Offer)
}

func TestNegotiateContextCancelled(t *testing.T) {
	ms := testutils.NewFakeMediaSession(nil)
	transport := &testutils.FakeTransport{Responses: []testutils.Response{testutils.Status(http.StatusServiceUnavailable, "")}}

	ctx, cancel := context.WithCancel(context.Background())
	transport.OnPost = func(n int) {
		cancel()
	}

	// a real clock keeps the backoff pending so that cancellation wins
	e := NewEngine(transport, Options{Backoff: time.Hour})
	_, err := e.Negotiate(ctx, ms, "http://server/whip", "")
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, transport.Posts(), 1)
}

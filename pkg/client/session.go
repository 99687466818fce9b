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
package client

import (
	"context"
	"time"

	"github.com/frostbyte73/core"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/dispatch"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/negotiation"
	"github.com/livekit/whxp/pkg/resource"
	"github.com/livekit/whxp/pkg/signaling"
	"github.com/livekit/whxp/pkg/stats"
	"github.com/livekit/whxp/pkg/types"
	"github.com/livekit/whxp/pkg/utils"
)

const (
	eventQueueSize = 64
	releaseTimeout = 10 * time.Second
)

type eventKind int

const (
	eventNegotiationNeeded eventKind = iota
	eventTrack
	eventConnectionState
	eventNegotiated
	eventDisconnect
)

type event struct {
	kind eventKind

	track  types.Track
	sender types.Sender
	state  types.ConnectionState

	location string
	err      error

	ctx  context.Context
	done chan struct{}
}

// session is the state shared by Publisher and Subscriber. All transitions run on a
// single event loop goroutine. Negotiation runs on its own goroutine and reports back
// through the loop.
type session struct {
	params Params
	role   types.Role
	logger logger.Logger

	ms          types.MediaSession
	engine      *negotiation.Engine
	resource    *resource.Manager
	dispatcher  *dispatch.Dispatcher
	localTracks []types.LocalTrack

	events *utils.BlockingQueue[*event]
	ctx    context.Context
	cancel context.CancelFunc

	// callbacks run on their own goroutine, in order, so they may call Disconnect
	notifications *utils.BlockingQueue[func()]

	state     atomic.Int32
	connState atomic.Int32
	lastErr   atomic.Error

	// owned by the event loop
	negotiating bool
	poller      *stats.Poller

	done core.Fuse
}

func newSession(ctx context.Context, role types.Role, p Params, ms types.MediaSession) (*session, error) {
	if p.Endpoint == "" {
		return nil, errors.ErrMissingEndpoint
	}
	if p.Transport == nil {
		p.Transport = signaling.NewHTTPTransport(nil)
	}
	if p.Logger == nil {
		p.Logger = logger.GetLogger()
	}

	l := p.Logger.WithValues("protocol", role.Protocol(), "endpoint", p.Endpoint)
	s := &session{
		params: p,
		role:   role,
		logger: l,
		ms:     ms,
		engine: negotiation.NewEngine(p.Transport, negotiation.Options{
			Backoff:          p.Backoff,
			MethodNotAllowed: p.MethodNotAllowed,
			Protocol:         role.Protocol(),
			Clock:            p.Clock,
			Logger:           l,
			OnAttempt: func(a negotiation.Attempt) {
				p.Metrics.ObserveAttempt(role.Protocol(), a.Outcome.String())
			},
		}),
		resource: resource.NewManager(p.Transport, p.Endpoint, l),
		dispatcher: dispatch.NewDispatcher(dispatch.Params{
			Role:              role,
			Profile:           p.Profile,
			RenderSink:        p.RenderSink,
			LevelSink:         p.LevelSink,
			VisualizerOptions: p.VisualizerOptions,
			Logger:            l,
		}),
		events:        utils.NewBlockingQueue[*event](eventQueueSize),
		notifications: utils.NewBlockingQueue[func()](eventQueueSize),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.connState.Store(int32(ms.ConnectionState()))
	p.Metrics.SetSessionState(role.Protocol(), types.SessionStateIdle)

	ms.OnNegotiationNeeded(func() {
		s.post(&event{kind: eventNegotiationNeeded})
	})
	ms.OnConnectionStateChange(func(state types.ConnectionState) {
		s.post(&event{kind: eventConnectionState, state: state})
	})

	return s, nil
}

func (s *session) start() {
	go s.notify()
	go s.run()
}

// notify runs user callbacks until the nil sentinel pushed by the exiting loop.
func (s *session) notify() {
	for {
		f, err := s.notifications.PopFront()
		if err != nil || f == nil {
			return
		}
		f()
	}
}

// Must be called from the event loop
func (s *session) queueNotification(f func()) {
	if err := s.notifications.PushBack(f); err != nil {
		s.logger.Debugw("dropping notification", "error", err)
	}
}

func (s *session) post(ev *event) {
	if err := s.events.PushBack(ev); err != nil {
		s.logger.Debugw("session closed, dropping event", "event", ev.kind)
	}
}

func (s *session) run() {
	defer func() {
		s.queueNotification(nil)
		s.done.Break()
	}()

	for {
		ev, err := s.events.PopFront()
		if err != nil {
			return
		}

		switch ev.kind {
		case eventNegotiationNeeded:
			s.handleNegotiationNeeded()
		case eventTrack:
			if s.State() == types.SessionStateDisconnected {
				s.logger.Debugw("session disconnected, ignoring track", "trackID", ev.track.ID())
				continue
			}
			s.dispatcher.Dispatch(ev.track, ev.sender)
		case eventConnectionState:
			s.handleConnectionState(ev.state)
		case eventNegotiated:
			s.handleNegotiated(ev.location, ev.err)
		case eventDisconnect:
			s.teardown(ev.ctx)
			close(ev.done)
		}

		if s.State() == types.SessionStateDisconnected && !s.negotiating {
			s.events.Close()
			return
		}
	}
}

func (s *session) handleNegotiationNeeded() {
	if state := s.State(); state != types.SessionStateIdle {
		s.logger.Debugw("ignoring negotiation request", "state", state)
		return
	}

	s.setState(types.SessionStateNegotiating)
	s.negotiating = true

	go func() {
		location, err := s.engine.Negotiate(s.ctx, s.ms, s.params.Endpoint, s.params.Token)
		s.post(&event{kind: eventNegotiated, location: location, err: err})
	}()
}

func (s *session) handleNegotiated(location string, err error) {
	s.negotiating = false
	if err != nil {
		s.lastErr.Store(err)
	}

	if s.State() == types.SessionStateDisconnected {
		if err == nil || location != "" {
			s.logger.Infow("negotiation completed after disconnect, releasing resource", "location", location)
			s.releaseNow(location)
		}
		return
	}

	if err != nil {
		if errors.Is(err, errors.ErrSessionClosed) {
			s.logger.Infow("media session closed before negotiation completed")
		} else {
			s.logger.Errorw("negotiation failed", err)
		}
		if location != "" {
			s.releaseNow(location)
		}
		return
	}

	if err = s.resource.Set(location); err != nil {
		s.logger.Warnw("could not record resource location", err)
	}
	s.setState(types.SessionStateActive)
	s.startStats()
}

// releaseNow deletes a resource that will never be owned by an active session.
func (s *session) releaseNow(location string) {
	if err := s.resource.Set(location); err != nil {
		s.logger.Warnw("could not record resource location", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	_ = s.resource.Release(ctx)
}

func (s *session) handleConnectionState(state types.ConnectionState) {
	s.connState.Store(int32(state))
	s.logger.Infow("connection state changed", "state", state)

	switch state {
	case types.ConnectionStateFailed:
		s.logger.Warnw("media connection failed", nil, "sessionState", s.State())
	case types.ConnectionStateClosed:
		if s.State() != types.SessionStateDisconnected {
			s.logger.Infow("media session closed without disconnect")
		}
	}

	if f := s.params.OnConnectionStateChange; f != nil {
		s.queueNotification(func() { f(state) })
	}
}

func (s *session) startStats() {
	if s.params.StatsInterval <= 0 {
		return
	}
	src, ok := s.ms.(stats.Source)
	if !ok {
		return
	}

	s.poller = stats.NewPoller(stats.PollerParams{
		Source:   src,
		Interval: s.params.StatsInterval,
		Clock:    s.params.Clock,
		Logger:   s.logger,
		Metrics:  s.params.Metrics,
		OnReport: s.params.OnStats,

		OnTransport: s.params.OnTransportStats,
	})
	s.poller.Start()
}

// teardown stops local handlers, releases the resource, closes the media session
// and finally stops local capture, in that order.
func (s *session) teardown(ctx context.Context) {
	if s.State() == types.SessionStateDisconnected {
		s.logger.Debugw("already disconnected")
		return
	}
	s.logger.Infow("disconnecting", "state", s.State())

	s.dispatcher.Close()
	if s.poller != nil {
		s.poller.Stop()
	}

	_ = s.resource.Release(ctx)

	if err := s.ms.Close(); err != nil {
		s.logger.Warnw("could not close media session", err)
	}
	s.connState.Store(int32(s.ms.ConnectionState()))
	for _, t := range s.localTracks {
		t.Stop()
	}

	s.cancel()
	s.setState(types.SessionStateDisconnected)
}

func (s *session) setState(state types.SessionState) {
	prev := types.SessionState(s.state.Swap(int32(state)))
	if prev == state {
		return
	}

	s.logger.Debugw("session state changed", "from", prev, "to", state)
	s.params.Metrics.SetSessionState(s.role.Protocol(), state)
	if f := s.params.OnStateChange; f != nil {
		s.queueNotification(func() { f(state) })
	}
}

func (s *session) State() types.SessionState {
	return types.SessionState(s.state.Load())
}

func (s *session) ConnectionState() types.ConnectionState {
	return types.ConnectionState(s.connState.Load())
}

// Location returns the resolved resource location while the session holds one.
func (s *session) Location() (string, bool) {
	return s.resource.Location()
}

// Err returns the error that ended the last negotiation, if any.
func (s *session) Err() error {
	return s.lastErr.Load()
}

// Done is closed once the session has been torn down and no negotiation is in flight.
func (s *session) Done() <-chan struct{} {
	return s.done.Watch()
}

// Disconnect tears the session down. Release failures are logged and never returned,
// the server expires abandoned resources on its own. Calling it again is a no-op.
func (s *session) Disconnect(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.events.PushBack(&event{kind: eventDisconnect, ctx: ctx, done: done}); err != nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-s.done.Watch():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

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

// Package testutils holds in-memory collaborators for exercising sessions without a network.
package testutils

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/livekit/whxp/pkg/media"
	"github.com/livekit/whxp/pkg/signaling"
	"github.com/livekit/whxp/pkg/types"
)

// CallLog records the order of side effects across fakes.
type CallLog struct {
	lock    sync.Mutex
	entries []string
}

func (l *CallLog) Add(format string, args ...any) {
	if l == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()

	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *CallLog) Entries() []string {
	l.lock.Lock()
	defer l.lock.Unlock()

	return append([]string(nil), l.entries...)
}

// Response is a scripted reply of FakeTransport.
type Response struct {
	Status   int
	Location string
	Body     string
	Err      error
}

func Created(location, answer string) Response {
	return Response{Status: http.StatusCreated, Location: location, Body: answer}
}

func Status(status int, body string) Response {
	return Response{Status: status, Body: body}
}

type Post struct {
	Endpoint string
	Token    string
	Offer    string
}

// FakeTransport replays scripted responses, repeating the last one once exhausted.
type FakeTransport struct {
	Log       *CallLog
	Responses []Response
	DeleteErr error
	// DeleteStatus defaults to 200.
	DeleteStatus int
	// OnPost runs after the n-th POST (1-based) was recorded.
	OnPost func(n int)
	// OnDelete runs before a DELETE is answered.
	OnDelete func(location string)

	lock    sync.Mutex
	posts   []Post
	deletes []string
}

func (f *FakeTransport) PostOffer(_ context.Context, endpoint, token, offer string) (*signaling.OfferResponse, error) {
	f.lock.Lock()
	f.posts = append(f.posts, Post{Endpoint: endpoint, Token: token, Offer: offer})
	n := len(f.posts)
	var r Response
	switch {
	case len(f.Responses) == 0:
		r = Status(http.StatusServiceUnavailable, "")
	case n <= len(f.Responses):
		r = f.Responses[n-1]
	default:
		r = f.Responses[len(f.Responses)-1]
	}
	onPost := f.OnPost
	f.lock.Unlock()

	f.Log.Add("post %s", endpoint)
	if onPost != nil {
		onPost(n)
	}

	if r.Err != nil {
		return nil, r.Err
	}
	return &signaling.OfferResponse{StatusCode: r.Status, Location: r.Location, Body: r.Body}, nil
}

func (f *FakeTransport) Delete(_ context.Context, location string) (int, error) {
	f.lock.Lock()
	f.deletes = append(f.deletes, location)
	onDelete := f.OnDelete
	f.lock.Unlock()

	f.Log.Add("delete %s", location)
	if onDelete != nil {
		onDelete(location)
	}

	if f.DeleteErr != nil {
		return 0, f.DeleteErr
	}
	if f.DeleteStatus != 0 {
		return f.DeleteStatus, nil
	}
	return http.StatusOK, nil
}

func (f *FakeTransport) Posts() []Post {
	f.lock.Lock()
	defer f.lock.Unlock()

	return append([]Post(nil), f.posts...)
}

func (f *FakeTransport) Deletes() []string {
	f.lock.Lock()
	defer f.lock.Unlock()

	return append([]string(nil), f.deletes...)
}

// RecordingClock is a mock clock whose After fires immediately and records the requested delay.
type RecordingClock struct {
	*clock.Mock

	lock  sync.Mutex
	waits []time.Duration
}

func NewRecordingClock() *RecordingClock {
	return &RecordingClock{Mock: clock.NewMock()}
}

func (c *RecordingClock) After(d time.Duration) <-chan time.Time {
	c.lock.Lock()
	c.waits = append(c.waits, d)
	c.lock.Unlock()

	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *RecordingClock) Waits() []time.Duration {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]time.Duration(nil), c.waits...)
}

// FakeTrack is a local or remote track. It implements LocalTrack, AudioLevelTap and KeyframeRequester.
type FakeTrack struct {
	Log       *CallLog
	TrackID   string
	Stream    string
	TrackKind types.StreamKind

	lock        sync.Mutex
	constraints []types.Constraints
	stopped     int
	keyframes   int
	listeners   map[int]func(types.AudioLevel)
	next        int
}

func NewFakeTrack(log *CallLog, id string, kind types.StreamKind) *FakeTrack {
	return &FakeTrack{
		Log:       log,
		TrackID:   id,
		Stream:    "stream",
		TrackKind: kind,
		listeners: make(map[int]func(types.AudioLevel)),
	}
}

func (t *FakeTrack) ID() string             { return t.TrackID }
func (t *FakeTrack) StreamID() string       { return t.Stream }
func (t *FakeTrack) Kind() types.StreamKind { return t.TrackKind }

func (t *FakeTrack) ApplyConstraints(c types.Constraints) error {
	t.lock.Lock()
	t.constraints = append(t.constraints, c)
	t.lock.Unlock()

	t.Log.Add("constraints %s", t.TrackID)
	return nil
}

func (t *FakeTrack) Constraints() []types.Constraints {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]types.Constraints(nil), t.constraints...)
}

func (t *FakeTrack) Stop() {
	t.lock.Lock()
	t.stopped++
	t.lock.Unlock()

	t.Log.Add("stop track %s", t.TrackID)
}

func (t *FakeTrack) Stopped() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.stopped
}

func (t *FakeTrack) RequestKeyframe() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.keyframes++
	return nil
}

func (t *FakeTrack) Keyframes() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.keyframes
}

func (t *FakeTrack) OnAudioLevel(f func(types.AudioLevel)) func() {
	t.lock.Lock()
	defer t.lock.Unlock()

	id := t.next
	t.next++
	t.listeners[id] = f

	return func() {
		t.lock.Lock()
		defer t.lock.Unlock()
		delete(t.listeners, id)
	}
}

func (t *FakeTrack) LevelListeners() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.listeners)
}

type FakeSender struct {
	track types.LocalTrack

	lock    sync.Mutex
	bitrate uint64
}

func (s *FakeSender) Track() types.LocalTrack {
	return s.track
}

func (s *FakeSender) MaxBitrate() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.bitrate
}

// BitrateSender is a FakeSender with a bitrate parameter API.
type BitrateSender struct {
	*FakeSender
}

func (s BitrateSender) SetMaxBitrate(bps uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.bitrate = bps
	return nil
}

type FakeTransceiver struct {
	kind      types.StreamKind
	direction types.Direction
	sender    types.Sender
	Raw       *FakeSender
}

func (t *FakeTransceiver) Kind() types.StreamKind     { return t.kind }
func (t *FakeTransceiver) Direction() types.Direction { return t.direction }
func (t *FakeTransceiver) Sender() types.Sender       { return t.sender }

// FakeMediaSession is a scripted MediaSession. Callbacks fire synchronously on the calling goroutine.
type FakeMediaSession struct {
	Log           *CallLog
	Offer         string
	RemoteErr     error
	NoBitrateAPI  bool
	GatheredOffer string

	lock         sync.Mutex
	state        types.ConnectionState
	local        string
	remote       string
	transceivers []*FakeTransceiver
	closed       int
	onTrack      func(types.Track)
	onNegotiate  func()
	onState      func(types.ConnectionState)
}

func NewFakeMediaSession(log *CallLog) *FakeMediaSession {
	return &FakeMediaSession{
		Log:   log,
		Offer: "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n",
	}
}

func (m *FakeMediaSession) CreateOffer() (string, error) {
	return m.Offer, nil
}

func (m *FakeMediaSession) SetLocalDescription(sdp string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.local = sdp
	return nil
}

func (m *FakeMediaSession) LocalDescription() string {
	return m.GatheredOffer
}

func (m *FakeMediaSession) SetRemoteDescription(sdp string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.RemoteErr != nil {
		return m.RemoteErr
	}
	m.remote = sdp
	return nil
}

func (m *FakeMediaSession) RemoteDescription() string {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.remote
}

func (m *FakeMediaSession) AddTransceiverFromKind(kind types.StreamKind, dir types.Direction) (types.Transceiver, error) {
	return m.addTransceiver(kind, nil, dir), nil
}

func (m *FakeMediaSession) AddTransceiverFromTrack(track types.LocalTrack, dir types.Direction) (types.Transceiver, error) {
	return m.addTransceiver(track.Kind(), track, dir), nil
}

func (m *FakeMediaSession) addTransceiver(kind types.StreamKind, track types.LocalTrack, dir types.Direction) *FakeTransceiver {
	m.lock.Lock()
	defer m.lock.Unlock()

	raw := &FakeSender{track: track}
	var sender types.Sender = BitrateSender{FakeSender: raw}
	if m.NoBitrateAPI {
		sender = raw
	}
	tr := &FakeTransceiver{kind: kind, direction: dir, sender: sender, Raw: raw}
	m.transceivers = append(m.transceivers, tr)

	m.Log.Add("transceiver %s %s", kind, dir)
	return tr
}

func (m *FakeMediaSession) Transceivers() []*FakeTransceiver {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]*FakeTransceiver(nil), m.transceivers...)
}

func (m *FakeMediaSession) ConnectionState() types.ConnectionState {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.state
}

func (m *FakeMediaSession) OnTrack(f func(types.Track)) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.onTrack = f
}

func (m *FakeMediaSession) OnNegotiationNeeded(f func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.onNegotiate = f
}

func (m *FakeMediaSession) OnConnectionStateChange(f func(types.ConnectionState)) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.onState = f
}

func (m *FakeMediaSession) Close() error {
	m.lock.Lock()
	m.closed++
	m.lock.Unlock()

	m.Log.Add("close session")
	m.SetState(types.ConnectionStateClosed)
	return nil
}

func (m *FakeMediaSession) Closed() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.closed
}

func (m *FakeMediaSession) SetState(state types.ConnectionState) {
	m.lock.Lock()
	if m.state == state {
		m.lock.Unlock()
		return
	}
	m.state = state
	f := m.onState
	m.lock.Unlock()

	if f != nil {
		f(state)
	}
}

func (m *FakeMediaSession) FireNegotiationNeeded() {
	m.lock.Lock()
	f := m.onNegotiate
	m.lock.Unlock()

	if f != nil {
		f()
	}
}

func (m *FakeMediaSession) EmitTrack(t types.Track) {
	m.lock.Lock()
	f := m.onTrack
	m.lock.Unlock()

	if f != nil {
		f(t)
	}
}

type StreamRecord struct {
	StreamID string
	TrackIDs []string
}

// FakeRenderSink records every stream it is given. A cleared sink records an empty StreamRecord.
type FakeRenderSink struct {
	Log *CallLog

	lock    sync.Mutex
	records []StreamRecord
	current *media.Stream
}

func (s *FakeRenderSink) SetStream(stream *media.Stream) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.current = stream
	if stream == nil {
		s.records = append(s.records, StreamRecord{})
		s.Log.Add("clear sink")
		return
	}

	r := StreamRecord{StreamID: stream.ID()}
	for _, t := range stream.Tracks() {
		r.TrackIDs = append(r.TrackIDs, t.ID())
	}
	s.records = append(s.records, r)
	s.Log.Add("set sink %s", stream.ID())
}

func (s *FakeRenderSink) Current() *media.Stream {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.current
}

func (s *FakeRenderSink) Records() []StreamRecord {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]StreamRecord(nil), s.records...)
}

type FakeLevelSink struct {
	lock  sync.Mutex
	draws int
}

func (s *FakeLevelSink) DrawLevels(_ []float64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.draws++
}

func (s *FakeLevelSink) Draws() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.draws
}

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

package dispatch

import (
	"sync"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/media"
	"github.com/livekit/whxp/pkg/params"
	"github.com/livekit/whxp/pkg/types"
)

// Binding ties a negotiated track to its local handler.
type Binding struct {
	Track     types.Track
	Kind      types.StreamKind
	Direction types.Direction

	// Stream is the stream given to the render sink, nil for publish side audio.
	Stream     *media.Stream
	Visualizer *media.Visualizer
}

type Params struct {
	Role              types.Role
	Profile           params.EncodingProfile
	RenderSink        media.RenderSink
	LevelSink         media.LevelSink
	VisualizerOptions []media.VisualizerOption
	Logger            logger.Logger
}

// Dispatcher routes tracks to local handling by kind. A track is bound at most once.
type Dispatcher struct {
	params Params
	logger logger.Logger

	lock       sync.Mutex
	bindings   map[string]*Binding
	composite  *media.Stream
	visualizer *media.Visualizer
	closed     bool
}

func NewDispatcher(p Params) *Dispatcher {
	l := p.Logger
	if l == nil {
		l = logger.GetLogger()
	}

	return &Dispatcher{
		params:    p,
		logger:    l,
		bindings:  make(map[string]*Binding),
		composite: media.NewStream(),
	}
}

func (d *Dispatcher) direction() types.Direction {
	if d.params.Role == types.RolePublish {
		return types.DirectionSendOnly
	}
	return types.DirectionRecvOnly
}

// Dispatch binds a track. The sender is the transceiver sender on the publish side and nil
// on the subscribe side. It returns false if the track was not bound by this call.
func (d *Dispatcher) Dispatch(track types.Track, sender types.Sender) (*Binding, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.closed {
		d.logger.Debugw("dispatcher closed, dropping track", "trackID", track.ID())
		return nil, false
	}
	if _, ok := d.bindings[track.ID()]; ok {
		d.logger.Debugw("track already bound", "trackID", track.ID(), "kind", track.Kind())
		return nil, false
	}

	b := &Binding{
		Track:     track,
		Kind:      track.Kind(),
		Direction: d.direction(),
	}

	switch track.Kind() {
	case types.Audio:
		d.bindAudio(b)
	case types.Video:
		d.bindVideo(b, sender)
	default:
		d.logger.Infow("got unknown track, ignoring", "trackID", track.ID(), "kind", track.Kind())
		return nil, false
	}

	d.bindings[track.ID()] = b
	d.logger.Infow("track bound", "trackID", track.ID(), "kind", b.Kind, "direction", b.Direction)

	return b, true
}

// Must be called locked
func (d *Dispatcher) bindAudio(b *Binding) {
	if d.params.Role == types.RoleSubscribe {
		d.composite.AddTrack(b.Track)
		b.Stream = d.composite
		d.setSinkStream(d.composite)
	}

	if d.params.LevelSink == nil {
		return
	}
	if d.visualizer == nil {
		d.visualizer = media.NewVisualizer(media.NewStream(), d.params.LevelSink, d.params.VisualizerOptions...)
	}
	d.visualizer.Attach(b.Track)
	d.visualizer.Start()
	b.Visualizer = d.visualizer
}

// Must be called locked
func (d *Dispatcher) bindVideo(b *Binding, sender types.Sender) {
	if d.params.Role == types.RoleSubscribe {
		d.composite.AddTrack(b.Track)
		b.Stream = d.composite
		d.setSinkStream(d.composite)
		return
	}

	b.Stream = media.NewStream(b.Track)
	d.applyProfile(b.Track, sender)
	d.setSinkStream(b.Stream)
}

// Must be called locked
func (d *Dispatcher) applyProfile(track types.Track, sender types.Sender) {
	profile := d.params.Profile

	if lt, ok := track.(types.LocalTrack); ok {
		if err := lt.ApplyConstraints(profile.Constraints()); err != nil {
			d.logger.Warnw("could not apply constraints", err, "trackID", track.ID(),
				"width", profile.Width, "height", profile.Height, "frameRate", profile.FrameRate)
		}
	}

	if sender == nil {
		return
	}
	bs, ok := sender.(types.BitrateSetter)
	if !ok {
		d.logger.Debugw("sender does not support bitrate parameters", "trackID", track.ID())
		return
	}
	if err := bs.SetMaxBitrate(profile.MaxBitrate()); err != nil {
		d.logger.Warnw("could not set max bitrate", err, "trackID", track.ID(), "bitrate", profile.MaxBitrate())
	}
}

// Must be called locked
func (d *Dispatcher) setSinkStream(s *media.Stream) {
	if d.params.RenderSink != nil {
		d.params.RenderSink.SetStream(s)
	}
}

func (d *Dispatcher) Binding(trackID string) (*Binding, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	b, ok := d.bindings[trackID]
	return b, ok
}

func (d *Dispatcher) Bindings() []*Binding {
	d.lock.Lock()
	defer d.lock.Unlock()

	out := make([]*Binding, 0, len(d.bindings))
	for _, b := range d.bindings {
		out = append(out, b)
	}
	return out
}

// Composite is the stream tracks accumulate on for the subscribe role.
func (d *Dispatcher) Composite() *media.Stream {
	return d.composite
}

// Close stops the visualizer and clears the render sink. Later dispatches are dropped.
func (d *Dispatcher) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.closed {
		return
	}
	d.closed = true

	if d.visualizer != nil {
		d.visualizer.Stop()
		d.visualizer = nil
	}
	d.setSinkStream(nil)
	d.bindings = make(map[string]*Binding)
}

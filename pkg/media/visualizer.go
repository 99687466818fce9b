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

package media

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/types"
)

const (
	DefaultVisualizerBars     = 64
	DefaultVisualizerInterval = time.Second / 30

	silentLevel = 127
)

type VisualizerOption func(v *Visualizer)

func WithClock(c clock.Clock) VisualizerOption {
	return func(v *Visualizer) {
		v.clock = c
	}
}

func WithBars(n int) VisualizerOption {
	return func(v *Visualizer) {
		if n > 0 {
			v.bars = n
		}
	}
}

func WithInterval(d time.Duration) VisualizerOption {
	return func(v *Visualizer) {
		if d > 0 {
			v.interval = d
		}
	}
}

// Visualizer samples the audio level of the tracks of a stream and draws a rolling
// bar history to a LevelSink once per interval.
type Visualizer struct {
	logger   logger.Logger
	stream   *Stream
	sink     LevelSink
	clock    clock.Clock
	bars     int
	interval time.Duration

	lock     sync.Mutex
	current  float64
	history  []float64
	cancels  map[string]func()
	running  bool
	stopChan chan struct{}
	loopDone chan struct{}
}

func NewVisualizer(stream *Stream, sink LevelSink, opts ...VisualizerOption) *Visualizer {
	v := &Visualizer{
		logger:   logger.GetLogger().WithValues("streamID", stream.ID()),
		stream:   stream,
		sink:     sink,
		clock:    clock.New(),
		bars:     DefaultVisualizerBars,
		interval: DefaultVisualizerInterval,
		cancels:  make(map[string]func()),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.history = make([]float64, v.bars)

	return v
}

func (v *Visualizer) Stream() *Stream {
	return v.stream
}

// Start attaches every audio track of the stream and starts the sampling loop.
// Calling Start on a running visualizer is a no-op.
func (v *Visualizer) Start() {
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.running {
		return
	}
	v.running = true
	v.stopChan = make(chan struct{})
	v.loopDone = make(chan struct{})

	for _, t := range v.stream.AudioTracks() {
		v.attachLocked(t)
	}

	// created before the loop starts so that no tick is lost to scheduling
	ticker := v.clock.Ticker(v.interval)
	go v.sampleLoop(ticker, v.stopChan, v.loopDone)
}

// Attach adds an audio track to the stream and samples it if the visualizer is running.
func (v *Visualizer) Attach(t types.Track) {
	if t.Kind() != types.Audio {
		return
	}
	v.stream.AddTrack(t)

	v.lock.Lock()
	defer v.lock.Unlock()

	if v.running {
		v.attachLocked(t)
	}
}

func (v *Visualizer) attachLocked(t types.Track) {
	if _, ok := v.cancels[t.ID()]; ok {
		return
	}

	tap, ok := t.(types.AudioLevelTap)
	if !ok {
		v.logger.Debugw("track does not expose audio levels, drawing silence", "trackID", t.ID())
		v.cancels[t.ID()] = func() {}
		return
	}

	v.cancels[t.ID()] = tap.OnAudioLevel(v.onLevel)
}

func (v *Visualizer) onLevel(level types.AudioLevel) {
	value := NormalizeLevel(level.Level)

	v.lock.Lock()
	if value > v.current {
		v.current = value
	}
	v.lock.Unlock()
}

// Stop detaches all tracks and ends the sampling loop. It returns once the loop has exited.
func (v *Visualizer) Stop() {
	v.lock.Lock()
	if !v.running {
		v.lock.Unlock()
		return
	}
	v.running = false

	for id, cancel := range v.cancels {
		cancel()
		delete(v.cancels, id)
	}
	close(v.stopChan)
	done := v.loopDone
	v.lock.Unlock()

	<-done
}

func (v *Visualizer) Running() bool {
	v.lock.Lock()
	defer v.lock.Unlock()

	return v.running
}

// Levels returns a copy of the bar history, oldest first.
func (v *Visualizer) Levels() []float64 {
	v.lock.Lock()
	defer v.lock.Unlock()

	return append([]float64(nil), v.history...)
}

func (v *Visualizer) sampleLoop(ticker *clock.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			v.sink.DrawLevels(v.sample())
		}
	}
}

func (v *Visualizer) sample() []float64 {
	v.lock.Lock()
	defer v.lock.Unlock()

	copy(v.history, v.history[1:])
	v.history[len(v.history)-1] = v.current
	v.current = 0

	return append([]float64(nil), v.history...)
}

// NormalizeLevel maps an RFC 6464 level (0 loudest, 127 silent) to [0, 1].
func NormalizeLevel(level uint8) float64 {
	if level > silentLevel {
		level = silentLevel
	}

	return 1 - float64(level)/silentLevel
}

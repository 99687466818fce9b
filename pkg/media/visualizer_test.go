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
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/livekit/whxp/pkg/types"
)

type testTrack struct {
	id   string
	kind types.StreamKind

	lock      sync.Mutex
	listeners map[int]func(types.AudioLevel)
	next      int
}

func newTestTrack(id string, kind types.StreamKind) *testTrack {
	return &testTrack{id: id, kind: kind, listeners: make(map[int]func(types.AudioLevel))}
}

func (t *testTrack) ID() string             { return t.id }
func (t *testTrack) StreamID() string       { return "stream" }
func (t *testTrack) Kind() types.StreamKind { return t.kind }

func (t *testTrack) OnAudioLevel(f func(types.AudioLevel)) func() {
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

func (t *testTrack) emit(level uint8) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, f := range t.listeners {
		f(types.AudioLevel{Level: level, Voice: true})
	}
}

func (t *testTrack) listenerCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.listeners)
}

type testLevelSink struct {
	lock  sync.Mutex
	draws [][]float64
}

func (s *testLevelSink) DrawLevels(levels []float64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.draws = append(s.draws, levels)
}

func (s *testLevelSink) last() []float64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.draws) == 0 {
		return nil
	}
	return s.draws[len(s.draws)-1]
}

func TestStream(t *testing.T) {
	audio := newTestTrack("a", types.Audio)
	video := newTestTrack("v", types.Video)

	s := NewStream(audio)
	require.NotEmpty(t, s.ID())
	require.True(t, s.AddTrack(video))
	require.False(t, s.AddTrack(video))
	require.False(t, s.AddTrack(newTestTrack("a", types.Audio)))

	require.Len(t, s.Tracks(), 2)
	require.Equal(t, []types.Track{audio}, s.AudioTracks())
	require.Equal(t, []types.Track{video}, s.VideoTracks())

	s.RemoveTrack("a")
	require.Empty(t, s.AudioTracks())
	require.Len(t, s.Tracks(), 1)
}

func TestVisualizer(t *testing.T) {
	mock := clock.NewMock()
	sink := &testLevelSink{}
	audio := newTestTrack("a", types.Audio)

	v := NewVisualizer(NewStream(audio), sink, WithClock(mock), WithBars(4), WithInterval(10*time.Millisecond))
	v.Start()
	v.Start()
	require.True(t, v.Running())
	require.Equal(t, 1, audio.listenerCount())

	audio.emit(0)
	audio.emit(100)
	mock.Add(10 * time.Millisecond)

	require.Eventually(t, func() bool {
		l := sink.last()
		return len(l) == 4 && l[3] == 1
	}, time.Second, time.Millisecond)

	v.Stop()
	require.False(t, v.Running())
	require.Equal(t, 0, audio.listenerCount())
	require.Equal(t, []float64{0, 0, 0, 1}, v.Levels())

	// stopping twice is harmless
	v.Stop()
}

func TestVisualizerAttach(t *testing.T) {
	mock := clock.NewMock()
	v := NewVisualizer(NewStream(), &testLevelSink{}, WithClock(mock))

	audio := newTestTrack("a", types.Audio)
	v.Attach(audio)
	v.Attach(newTestTrack("v", types.Video))
	require.Equal(t, 0, audio.listenerCount())
	require.Len(t, v.Stream().Tracks(), 1)

	v.Start()
	require.Equal(t, 1, audio.listenerCount())

	late := newTestTrack("b", types.Audio)
	v.Attach(late)
	require.Equal(t, 1, late.listenerCount())

	v.Stop()
	require.Equal(t, 0, late.listenerCount())
}

func TestNormalizeLevel(t *testing.T) {
	require.Equal(t, float64(1), NormalizeLevel(0))
	require.Equal(t, float64(0), NormalizeLevel(127))
	require.Equal(t, float64(0), NormalizeLevel(200))
}

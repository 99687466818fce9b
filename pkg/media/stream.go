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

	"github.com/google/uuid"

	"github.com/livekit/whxp/pkg/types"
)

// RenderSink receives the stream a session renders. A nil stream clears the sink.
type RenderSink interface {
	SetStream(s *Stream)
}

// LevelSink draws audio level bars, values are normalized to [0, 1].
type LevelSink interface {
	DrawLevels(levels []float64)
}

// Stream is a composite set of tracks rendered together. Tracks are unique by ID.
type Stream struct {
	id string

	lock   sync.RWMutex
	tracks []types.Track
}

func NewStream(tracks ...types.Track) *Stream {
	s := &Stream{
		id: uuid.NewString(),
	}
	for _, t := range tracks {
		s.AddTrack(t)
	}

	return s
}

func (s *Stream) ID() string {
	return s.id
}

// AddTrack returns false if a track with the same ID is already part of the stream.
func (s *Stream) AddTrack(t types.Track) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, existing := range s.tracks {
		if existing.ID() == t.ID() {
			return false
		}
	}
	s.tracks = append(s.tracks, t)

	return true
}

func (s *Stream) RemoveTrack(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i, t := range s.tracks {
		if t.ID() == id {
			s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
			return
		}
	}
}

func (s *Stream) Tracks() []types.Track {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]types.Track(nil), s.tracks...)
}

func (s *Stream) AudioTracks() []types.Track {
	return s.tracksOfKind(types.Audio)
}

func (s *Stream) VideoTracks() []types.Track {
	return s.tracksOfKind(types.Video)
}

func (s *Stream) tracksOfKind(kind types.StreamKind) []types.Track {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var out []types.Track
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}

	return out
}

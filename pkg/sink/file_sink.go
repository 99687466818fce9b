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
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"github.com/livekit/media-sdk/jitter"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/media"
	"github.com/livekit/whxp/pkg/types"
)

// CodecTrack is a received track that knows its negotiated codec.
type CodecTrack interface {
	types.Track
	types.PacketTap
	Codec() webrtc.RTPCodecParameters
}

type rtpWriter interface {
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}

type recording struct {
	lock    sync.Mutex
	writer  rtpWriter
	cancel  func()
	path    string
	closed  bool
	samples int
}

// writeSample writes the ordered packets of one sample.
func (r *recording) writeSample(sample []jitter.ExtPacket) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return nil
	}
	for _, pkt := range sample {
		if err := r.writer.WriteRTP(pkt.Packet); err != nil {
			return err
		}
	}
	r.samples++
	return nil
}

func (r *recording) sampleCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.samples
}

func (r *recording) close() error {
	r.cancel()

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.writer.Close()
}

// FileSink records every track of the rendered stream into its own file under dir.
// Clearing the stream finalizes the files.
type FileSink struct {
	logger logger.Logger
	dir    string

	lock       sync.Mutex
	recordings map[string]*recording
}

func NewFileSink(dir string, l logger.Logger) (*FileSink, error) {
	if l == nil {
		l = logger.GetLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &FileSink{
		logger:     l,
		dir:        dir,
		recordings: make(map[string]*recording),
	}, nil
}

func (s *FileSink) SetStream(stream *media.Stream) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if stream == nil {
		s.closeAll()
		return
	}

	for _, t := range stream.Tracks() {
		if _, ok := s.recordings[t.ID()]; ok {
			continue
		}

		ct, ok := t.(CodecTrack)
		if !ok {
			s.logger.Debugw("track cannot be recorded", "trackID", t.ID(), "kind", t.Kind())
			continue
		}

		r, err := s.record(ct)
		if err != nil {
			s.logger.Warnw("could not record track", err, "trackID", t.ID())
			continue
		}
		s.recordings[t.ID()] = r
		s.logger.Infow("recording track", "trackID", t.ID(), "path", r.path)
	}
}

func (s *FileSink) record(t CodecTrack) (*recording, error) {
	mimeType := t.Codec().MimeType
	path := filepath.Join(s.dir, fmt.Sprintf("%s%s", sanitize(t.ID()), extension(mimeType)))

	var w rtpWriter
	var err error
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeOpus):
		w, err = oggwriter.New(path, 48000, 2)
	case strings.EqualFold(mimeType, webrtc.MimeTypeH264):
		w, err = h264writer.New(path)
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP8),
		strings.EqualFold(mimeType, webrtc.MimeTypeVP9),
		strings.EqualFold(mimeType, webrtc.MimeTypeAV1):
		w, err = ivfwriter.New(path, ivfwriter.WithCodec(mimeType))
	default:
		return nil, errors.ErrUnsupportedMimeType(mimeType)
	}
	if err != nil {
		return nil, err
	}

	r := &recording{writer: w, path: path}
	l := s.logger.WithValues("trackID", t.ID())
	jb, err := createJitterBuffer(t, l, func(sample []jitter.ExtPacket) {
		if err := r.writeSample(sample); err != nil {
			l.Debugw("could not write sample", "error", err)
		}
	})
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	r.cancel = t.OnPacket(jb.Push)

	return r, nil
}

// Must be called locked
func (s *FileSink) closeAll() {
	for id, r := range s.recordings {
		if err := r.close(); err != nil {
			s.logger.Warnw("could not finalize recording", err, "path", r.path)
		}
		delete(s.recordings, id)
	}
}

func (s *FileSink) Paths() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	paths := make([]string, 0, len(s.recordings))
	for _, r := range s.recordings {
		paths = append(paths, r.path)
	}
	return paths
}

func extension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case strings.ToLower(webrtc.MimeTypeOpus):
		return ".ogg"
	case strings.ToLower(webrtc.MimeTypeH264):
		return ".h264"
	default:
		return ".ivf"
	}
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

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
package capture

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/frostbyte73/core"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/types"
)

type sampleWriter interface {
	WriteSample(s media.Sample) error
}

type Option func(*FileTrack)

func WithClock(c clock.Clock) Option {
	return func(t *FileTrack) {
		t.clock = c
	}
}

// WithLoop restarts the file once it ends.
func WithLoop() Option {
	return func(t *FileTrack) {
		t.loop = true
	}
}

func WithStreamID(id string) Option {
	return func(t *FileTrack) {
		t.streamID = id
	}
}

// FileTrack publishes a media file as a local track, paced by the sample durations.
type FileTrack struct {
	logger   logger.Logger
	path     string
	kind     types.StreamKind
	mimeType string
	streamID string
	clock    clock.Clock
	loop     bool

	track  *webrtc.TrackLocalStaticSample
	writer sampleWriter

	lock          sync.Mutex
	frameDuration time.Duration
	width         uint16
	height        uint16
	started       bool

	stop core.Fuse
	done core.Fuse
}

func NewFileTrack(path string, l logger.Logger, opts ...Option) (*FileTrack, error) {
	if l == nil {
		l = logger.GetLogger()
	}

	t := &FileTrack{
		path:          path,
		streamID:      uuid.NewString(),
		clock:         clock.New(),
		frameDuration: defaultFrameDuration,
	}
	for _, opt := range opts {
		opt(t)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ivf":
		r, mimeType, err := newIVFSampleReader(f)
		if err != nil {
			return nil, err
		}
		t.kind = types.Video
		t.mimeType = mimeType
		t.width, t.height = r.width, r.height
	case ".ogg", ".opus":
		if _, err = newOggSampleReader(f); err != nil {
			return nil, err
		}
		t.kind = types.Audio
		t.mimeType = webrtc.MimeTypeOpus
	case ".h264", ".264":
		t.kind = types.Video
		t.mimeType = webrtc.MimeTypeH264
	default:
		return nil, errors.ErrUnsupportedFile(path)
	}

	t.track, err = webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: t.mimeType}, string(t.kind), t.streamID)
	if err != nil {
		return nil, err
	}
	t.writer = t.track
	t.logger = l.WithValues("trackID", t.track.ID(), "file", filepath.Base(path), "mimeType", t.mimeType)

	return t, nil
}

func (t *FileTrack) ID() string {
	return t.track.ID()
}

func (t *FileTrack) StreamID() string {
	return t.streamID
}

func (t *FileTrack) Kind() types.StreamKind {
	return t.kind
}

func (t *FileTrack) MimeType() string {
	return t.mimeType
}

func (t *FileTrack) TrackLocal() webrtc.TrackLocal {
	return t.track
}

// ApplyConstraints paces H264 files at the requested frame rate. Files are never
// rescaled, so a resolution mismatch is only logged.
func (t *FileTrack) ApplyConstraints(c types.Constraints) error {
	if t.kind != types.Video {
		return nil
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if c.FrameRate > 0 && t.mimeType == webrtc.MimeTypeH264 {
		t.frameDuration = time.Duration(float64(time.Second) / c.FrameRate)
	}
	if t.width != 0 && (uint32(t.width) != c.Width || uint32(t.height) != c.Height) {
		t.logger.Infow("file resolution differs from encoding profile, sending as is",
			"fileWidth", t.width,
			"fileHeight", t.height,
			"width", c.Width,
			"height", c.Height,
		)
	}

	return nil
}

func (t *FileTrack) getFrameDuration() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.frameDuration
}

// Start begins writing samples. It is a no-op once started or stopped.
func (t *FileTrack) Start() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.started || t.stop.IsBroken() {
		return
	}
	t.started = true

	go func() {
		defer t.done.Break()
		for {
			err := t.writeFile()
			switch {
			case err == io.EOF && t.loop:
				t.logger.Debugw("end of file, restarting")
			case err == io.EOF:
				t.logger.Infow("end of file")
				return
			case err != nil:
				if !t.stop.IsBroken() {
					t.logger.Warnw("failed to write file samples", err)
				}
				return
			}
		}
	}()
}

func (t *FileTrack) writeFile() error {
	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := t.newReader(f)
	if err != nil {
		return err
	}

	for {
		sample, err := r.NextSample()
		if err != nil {
			return err
		}

		if err = t.writer.WriteSample(*sample); err != nil {
			return err
		}

		if sample.Duration == 0 {
			continue
		}
		select {
		case <-t.clock.After(sample.Duration):
		case <-t.stop.Watch():
			return errors.ErrSessionDisposed
		}
	}
}

func (t *FileTrack) newReader(f io.Reader) (sampleReader, error) {
	switch t.mimeType {
	case webrtc.MimeTypeOpus:
		return newOggSampleReader(f)
	case webrtc.MimeTypeH264:
		return newH264SampleReader(f, t.getFrameDuration)
	default:
		r, _, err := newIVFSampleReader(f)
		return r, err
	}
}

// Stop ends capture and waits for the writer to exit.
func (t *FileTrack) Stop() {
	t.lock.Lock()
	started := t.started
	t.stop.Break()
	t.lock.Unlock()

	if started {
		<-t.done.Watch()
	}
	t.logger.Debugw("capture stopped")
}

func (t *FileTrack) Done() <-chan struct{} {
	return t.done.Watch()
}

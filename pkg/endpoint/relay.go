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
package endpoint

import (
	"io"
	"path/filepath"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/media"
	"github.com/livekit/whxp/pkg/rtc"
	"github.com/livekit/whxp/pkg/sink"
	"github.com/livekit/whxp/pkg/types"
)

type forwardedTrack struct {
	kind   types.StreamKind
	remote *rtc.RemoteTrack
	local  *webrtc.TrackLocalStaticRTP
	cancel func()
}

// relayStream forwards the tracks of one WHIP publisher to every WHEP subscriber of
// the same stream key, and optionally records them.
type relayStream struct {
	key       string
	publisher string
	logger    logger.Logger

	lock      sync.Mutex
	tracks    []*forwardedTrack
	recording *media.Stream
	recorder  *sink.FileSink
	closed    bool
}

func newRelayStream(key, publisher, recordDir string, l logger.Logger) *relayStream {
	st := &relayStream{
		key:       key,
		publisher: publisher,
		logger:    l.WithValues("streamKey", key),
	}

	if recordDir != "" {
		recorder, err := sink.NewFileSink(filepath.Join(recordDir, key), st.logger)
		if err != nil {
			st.logger.Warnw("could not create recorder", err)
		} else {
			st.recorder = recorder
			st.recording = media.NewStream()
		}
	}

	return st
}

func (st *relayStream) addTrack(rt *rtc.RemoteTrack) error {
	local, err := webrtc.NewTrackLocalStaticRTP(rt.Codec().RTPCodecCapability, rt.ID(), st.key)
	if err != nil {
		return err
	}

	st.lock.Lock()
	defer st.lock.Unlock()

	if st.closed {
		return errors.ErrSessionDisposed
	}

	ft := &forwardedTrack{
		kind:   rt.Kind(),
		remote: rt,
		local:  local,
	}
	ft.cancel = rt.OnPacket(func(pkt *rtp.Packet) {
		if err := local.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			st.logger.Debugw("could not forward packet", "trackID", rt.ID(), "error", err)
		}
	})
	st.tracks = append(st.tracks, ft)

	if st.recorder != nil {
		st.recording.AddTrack(rt)
		st.recorder.SetStream(st.recording)
	}

	st.logger.Infow("relaying track", "trackID", rt.ID(), "kind", ft.kind, "codec", rt.Codec().MimeType)
	return nil
}

func (st *relayStream) localTracks() []*forwardedTrack {
	st.lock.Lock()
	defer st.lock.Unlock()

	return append([]*forwardedTrack(nil), st.tracks...)
}

// requestKeyframe forwards a subscriber PLI to the publisher.
func (st *relayStream) requestKeyframe(kind types.StreamKind) {
	for _, ft := range st.localTracks() {
		if ft.kind != kind || ft.remote == nil {
			continue
		}
		if err := ft.remote.RequestKeyframe(); err != nil {
			st.logger.Debugw("could not request keyframe", "trackID", ft.remote.ID(), "error", err)
		}
	}
}

func (st *relayStream) close() {
	st.lock.Lock()
	defer st.lock.Unlock()

	if st.closed {
		return
	}
	st.closed = true

	for _, ft := range st.tracks {
		if ft.cancel != nil {
			ft.cancel()
		}
		if ft.remote != nil {
			ft.remote.Close()
		}
	}
	if st.recorder != nil {
		st.recorder.SetStream(nil)
	}
}

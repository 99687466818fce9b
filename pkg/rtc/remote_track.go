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
package rtc

import (
	"io"
	"net"
	"time"

	"github.com/frostbyte73/core"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/types"
	"github.com/livekit/whxp/pkg/utils"
)

const readTimeout = 500 * time.Millisecond

// RemoteTrack is a track received from the server. Packets and RFC 6464 audio levels
// are fanned out to listeners from a single read loop.
type RemoteTrack struct {
	logger    logger.Logger
	track     *webrtc.TrackRemote
	receiver  *webrtc.RTPReceiver
	writeRTCP func([]rtcp.Packet) error

	audioLevelID uint8

	packets listeners[*rtp.Packet]
	levels  listeners[types.AudioLevel]

	bytesReceived   atomic.Uint64
	packetsReceived atomic.Uint64

	fuse core.Fuse
}

// NewRemoteTrack wraps a pion track and starts reading from it.
func NewRemoteTrack(l logger.Logger, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver, writeRTCP func([]rtcp.Packet) error) *RemoteTrack {
	t := &RemoteTrack{
		logger:    l.WithValues("trackID", track.ID(), "kind", track.Kind().String()),
		track:     track,
		receiver:  receiver,
		writeRTCP: writeRTCP,
	}

	for _, ext := range receiver.GetParameters().HeaderExtensions {
		if ext.URI == sdp.AudioLevelURI {
			t.audioLevelID = uint8(ext.ID)
		}
	}

	t.start()
	return t
}

func (t *RemoteTrack) ID() string {
	return t.track.ID()
}

func (t *RemoteTrack) StreamID() string {
	return t.track.StreamID()
}

func (t *RemoteTrack) Kind() types.StreamKind {
	return streamKindFromCodecType(t.track.Kind())
}

func (t *RemoteTrack) Codec() webrtc.RTPCodecParameters {
	return t.track.Codec()
}

func (t *RemoteTrack) OnPacket(f func(*rtp.Packet)) func() {
	return t.packets.add(f)
}

func (t *RemoteTrack) OnAudioLevel(f func(types.AudioLevel)) func() {
	return t.levels.add(f)
}

func (t *RemoteTrack) RequestKeyframe() error {
	if t.Kind() != types.Video {
		return nil
	}

	ssrc := uint32(t.track.SSRC())
	t.logger.Debugw("sending PLI request", "ssrc", ssrc)
	return t.writeRTCP(utils.NewPLI(ssrc))
}

func (t *RemoteTrack) BytesReceived() uint64 {
	return t.bytesReceived.Load()
}

func (t *RemoteTrack) Close() {
	t.fuse.Break()
}

func (t *RemoteTrack) start() {
	go func() {
		t.logger.Infow("starting rtp receiver", "codec", t.track.Codec().MimeType)
		for {
			select {
			case <-t.fuse.Watch():
				t.logger.Debugw("stopping rtp receiver")
				return
			default:
			}

			err := t.readPacket()
			switch err {
			case nil:
			case io.EOF:
				t.logger.Debugw("track ended")
				return
			default:
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				t.logger.Warnw("error reading rtp packets", err)
				return
			}
		}
	}()
}

func (t *RemoteTrack) readPacket() error {
	_ = t.track.SetReadDeadline(time.Now().Add(readTimeout))
	pkt, _, err := t.track.ReadRTP()
	if err != nil {
		return err
	}

	t.packetsReceived.Inc()
	t.bytesReceived.Add(uint64(pkt.MarshalSize()))

	if t.audioLevelID != 0 && !t.levels.empty() {
		if ext := pkt.GetExtension(t.audioLevelID); ext != nil {
			var level rtp.AudioLevelExtension
			if err = level.Unmarshal(ext); err == nil {
				t.levels.emit(types.AudioLevel{Level: level.Level, Voice: level.Voice})
			}
		}
	}
	t.packets.emit(pkt)

	return nil
}

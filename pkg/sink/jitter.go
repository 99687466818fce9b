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
	"strings"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"

	"github.com/livekit/media-sdk/jitter"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/types"
)

const (
	maxVideoLatency = 600 * time.Millisecond
	maxAudioLatency = time.Second
)

func createDepacketizer(mimeType string) (rtp.Depacketizer, error) {
	switch strings.ToLower(mimeType) {
	case strings.ToLower(webrtc.MimeTypeVP8):
		return &codecs.VP8Packet{}, nil
	case strings.ToLower(webrtc.MimeTypeVP9):
		return &codecs.VP9Packet{}, nil
	case strings.ToLower(webrtc.MimeTypeAV1):
		return &codecs.AV1Packet{}, nil
	case strings.ToLower(webrtc.MimeTypeH264):
		return &codecs.H264Packet{}, nil
	case strings.ToLower(webrtc.MimeTypeOpus):
		return &codecs.OpusPacket{}, nil
	default:
		return nil, errors.ErrUnsupportedMimeType(mimeType)
	}
}

// createJitterBuffer reorders packets of t into complete samples. Video tracks able to
// produce a keyframe are asked for one whenever the buffer drops packets.
func createJitterBuffer(t CodecTrack, l logger.Logger, onSample func(sample []jitter.ExtPacket)) (*jitter.Buffer, error) {
	depacketizer, err := createDepacketizer(t.Codec().MimeType)
	if err != nil {
		return nil, err
	}

	maxLatency := maxAudioLatency
	options := []jitter.Option{jitter.WithLogger(l)}
	if t.Kind() == types.Video {
		maxLatency = maxVideoLatency
		if kr, ok := t.(types.KeyframeRequester); ok {
			options = append(options, jitter.WithPacketLossHandler(func() {
				if err := kr.RequestKeyframe(); err != nil {
					l.Debugw("could not request keyframe", "trackID", t.ID(), "error", err)
				}
			}))
		}
	}

	return jitter.NewBuffer(depacketizer, maxLatency, onSample, options...), nil
}

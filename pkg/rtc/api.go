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
	"github.com/pion/interceptor"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/logger/pionlogger"
	"github.com/livekit/whxp/pkg/config"
	"github.com/livekit/whxp/pkg/types"
)

// NewAPI builds a pion API with the codecs and header extensions both roles negotiate.
func NewAPI(conf *config.Config, l logger.Logger) (*webrtc.API, error) {
	webrtcSettings := &webrtc.SettingEngine{
		LoggerFactory: pionlogger.NewLoggerFactory(l),
	}

	var icePortStart, icePortEnd uint16

	if len(conf.ICEPortRange) == 2 {
		icePortStart = conf.ICEPortRange[0]
		icePortEnd = conf.ICEPortRange[1]
	}
	if icePortStart != 0 || icePortEnd != 0 {
		if err := webrtcSettings.SetEphemeralUDPPortRange(icePortStart, icePortEnd); err != nil {
			return nil, err
		}
	}
	webrtcSettings.SetIncludeLoopbackCandidate(conf.EnableLoopbackCandidate)

	m, err := newMediaEngine()
	if err != nil {
		return nil, err
	}

	// Each API gets its own registry, interceptors keep per connection state.
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, err
	}

	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(*webrtcSettings), webrtc.WithInterceptorRegistry(i)), nil
}

func NewConfiguration(conf *config.Config) webrtc.Configuration {
	c := webrtc.Configuration{
		SDPSemantics:  webrtc.SDPSemanticsUnifiedPlan,
		BundlePolicy:  webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy: webrtc.RTCPMuxPolicyRequire,
	}
	for _, s := range conf.ICEServers {
		c.ICEServers = append(c.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	return c
}

func newMediaEngine() (*webrtc.MediaEngine, error) {
	m := &webrtc.MediaEngine{}

	for _, codec := range []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2, SDPFmtpLine: "minptime=10;useinbandfec=1"},
			PayloadType:        111,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMA, ClockRate: 8000},
			PayloadType:        8,
		},
	} {
		if err := m.RegisterCodec(codec, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, err
		}
	}

	videoRTCPFeedback := []webrtc.RTCPFeedback{{Type: "goog-remb"}, {Type: "ccm", Parameter: "fir"}, {Type: "nack"}, {Type: "nack", Parameter: "pli"}}

	for _, codec := range []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000, SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f", RTCPFeedback: videoRTCPFeedback},
			PayloadType:        102,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000, RTCPFeedback: videoRTCPFeedback},
			PayloadType:        96,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9, ClockRate: 90000, SDPFmtpLine: "profile-id=0", RTCPFeedback: videoRTCPFeedback},
			PayloadType:        98,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeAV1, ClockRate: 90000, RTCPFeedback: videoRTCPFeedback},
			PayloadType:        45,
		},
	} {
		if err := m.RegisterCodec(codec, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, err
		}
	}

	// RFC 6464 levels drive the audio visualizer without decoding
	if err := m.RegisterHeaderExtension(webrtc.RTPHeaderExtensionCapability{URI: sdp.AudioLevelURI}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}
	for _, typ := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if err := m.RegisterHeaderExtension(webrtc.RTPHeaderExtensionCapability{URI: sdp.SDESMidURI}, typ); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func codecType(kind types.StreamKind) webrtc.RTPCodecType {
	switch kind {
	case types.Audio:
		return webrtc.RTPCodecTypeAudio
	case types.Video:
		return webrtc.RTPCodecTypeVideo
	default:
		return webrtc.RTPCodecType(0)
	}
}

func streamKindFromCodecType(typ webrtc.RTPCodecType) types.StreamKind {
	switch typ {
	case webrtc.RTPCodecTypeAudio:
		return types.Audio
	case webrtc.RTPCodecTypeVideo:
		return types.Video
	default:
		return types.Unknown
	}
}

func transceiverDirection(dir types.Direction) webrtc.RTPTransceiverDirection {
	if dir == types.DirectionSendOnly {
		return webrtc.RTPTransceiverDirectionSendonly
	}
	return webrtc.RTPTransceiverDirectionRecvonly
}

func connectionState(state webrtc.PeerConnectionState) types.ConnectionState {
	switch state {
	case webrtc.PeerConnectionStateConnecting:
		return types.ConnectionStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return types.ConnectionStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return types.ConnectionStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return types.ConnectionStateFailed
	case webrtc.PeerConnectionStateClosed:
		return types.ConnectionStateClosed
	default:
		return types.ConnectionStateNew
	}
}

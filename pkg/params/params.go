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

package params

import (
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/types"
)

type VideoCodec string

const (
	CodecH264 VideoCodec = "h264"
	CodecVP8  VideoCodec = "vp8"
	CodecVP9  VideoCodec = "vp9"
	CodecAV1  VideoCodec = "av1"
)

func (c VideoCodec) MimeType() (string, error) {
	switch VideoCodec(strings.ToLower(string(c))) {
	case CodecH264:
		return webrtc.MimeTypeH264, nil
	case CodecVP8:
		return webrtc.MimeTypeVP8, nil
	case CodecVP9:
		return webrtc.MimeTypeVP9, nil
	case CodecAV1:
		return webrtc.MimeTypeAV1, nil
	default:
		return "", errors.ErrUnsupportedMimeType(string(c))
	}
}

// EncodingProfile is the publish side video configuration. It is applied once to the
// outgoing video track when the track is dispatched.
type EncodingProfile struct {
	Width       uint32     `yaml:"width"`
	Height      uint32     `yaml:"height"`
	FrameRate   float64    `yaml:"frame_rate"`
	BitrateKbps uint32     `yaml:"bitrate_kbps"`
	Codec       VideoCodec `yaml:"codec"`
	Preset      string     `yaml:"preset,omitempty"`
}

func DefaultEncodingProfile() EncodingProfile {
	return EncodingProfile{
		Width:       defaultWidth,
		Height:      defaultHeight,
		FrameRate:   defaultFrameRate,
		BitrateKbps: defaultBitrateKbps,
		Codec:       CodecH264,
	}
}

// GetEncodingProfile resolves the preset, if any, and fills every unset field.
func GetEncodingProfile(p EncodingProfile) (EncodingProfile, error) {
	if p.Preset != "" {
		preset, err := getProfileForPreset(p.Preset)
		if err != nil {
			return EncodingProfile{}, err
		}
		return preset, nil
	}

	return populateEncodingProfileDefaults(p)
}

func populateEncodingProfileDefaults(p EncodingProfile) (EncodingProfile, error) {
	if p.Codec == "" {
		p.Codec = CodecH264
	}
	if _, err := p.Codec.MimeType(); err != nil {
		return EncodingProfile{}, err
	}

	if p.FrameRate <= 0 {
		p.FrameRate = defaultFrameRate
	}

	if p.Width == 0 && p.Height == 0 {
		p.Width = defaultWidth
		p.Height = defaultHeight
	} else if p.Width == 0 || p.Height == 0 {
		return EncodingProfile{}, errors.ErrInvalidConfig("encoding dimensions", [2]uint32{p.Width, p.Height})
	}

	if p.BitrateKbps == 0 {
		p.BitrateKbps = getBitrateForParams(defaultBitrateKbps, defaultWidth, defaultHeight, defaultFrameRate,
			p.Width, p.Height, p.FrameRate)
	}

	return p, nil
}

func (p EncodingProfile) Constraints() types.Constraints {
	return types.Constraints{
		Width:     p.Width,
		Height:    p.Height,
		FrameRate: p.FrameRate,
	}
}

// MaxBitrate is the outgoing sender cap in bits per second.
func (p EncodingProfile) MaxBitrate() uint64 {
	return uint64(p.BitrateKbps) * 1000
}

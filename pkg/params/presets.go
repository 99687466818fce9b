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
	"math"

	"github.com/livekit/whxp/pkg/errors"
)

const (
	defaultWidth       = 1280
	defaultHeight      = 720
	defaultFrameRate   = 30
	defaultBitrateKbps = 2500
)

func getProfileForPreset(preset string) (EncodingProfile, error) {
	switch preset {
	case "h264_540p_25fps":
		return EncodingProfile{Width: 960, Height: 540, FrameRate: 25, BitrateKbps: 1_300, Codec: CodecH264, Preset: preset}, nil
	case "h264_720p_30fps":
		return EncodingProfile{Width: 1280, Height: 720, FrameRate: 30, BitrateKbps: 2_500, Codec: CodecH264, Preset: preset}, nil
	case "h264_1080p_30fps":
		return EncodingProfile{Width: 1920, Height: 1080, FrameRate: 30, BitrateKbps: 4_500, Codec: CodecH264, Preset: preset}, nil
	case "vp8_720p_30fps":
		return EncodingProfile{Width: 1280, Height: 720, FrameRate: 30, BitrateKbps: 2_000, Codec: CodecVP8, Preset: preset}, nil
	case "vp8_360p_30fps":
		return EncodingProfile{Width: 640, Height: 360, FrameRate: 30, BitrateKbps: 800, Codec: CodecVP8, Preset: preset}, nil
	default:
		return EncodingProfile{}, errors.ErrInvalidConfig("encoding preset", preset)
	}
}

func getBitrateForParams(refBitrate, refWidth, refHeight uint32, refFramerate float64, targetWidth, targetHeight uint32, targetFramerate float64) uint32 {
	// bitrate = ref_bitrate * (target framerate / ref framerate) ^ 0.75 * (target pixel area / ref pixel area) ^ 0.75

	ratio := math.Pow(targetFramerate/refFramerate, 0.75)
	ratio = ratio * math.Pow(float64(targetWidth)*float64(targetHeight)/(float64(refWidth)*float64(refHeight)), 0.75)

	return uint32(float64(refBitrate) * ratio)
}

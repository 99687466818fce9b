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
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/livekit/whxp/pkg/types"
)

func TestGetEncodingProfileDefaults(t *testing.T) {
	out, err := GetEncodingProfile(EncodingProfile{})
	require.NoError(t, err)
	require.Equal(t, DefaultEncodingProfile(), out)
	require.Equal(t, EncodingProfile{Width: 1280, Height: 720, FrameRate: 30, BitrateKbps: 2500, Codec: CodecH264}, out)

	out, err = GetEncodingProfile(EncodingProfile{Width: 640, Height: 360})
	require.NoError(t, err)
	require.Equal(t, uint32(883), out.BitrateKbps)
	require.Equal(t, float64(30), out.FrameRate)
	require.Equal(t, CodecH264, out.Codec)

	out, err = GetEncodingProfile(EncodingProfile{Width: 640, Height: 360, BitrateKbps: 1000, Codec: CodecVP8, FrameRate: 15})
	require.NoError(t, err)
	require.Equal(t, EncodingProfile{Width: 640, Height: 360, FrameRate: 15, BitrateKbps: 1000, Codec: CodecVP8}, out)
}

func TestGetEncodingProfileInvalid(t *testing.T) {
	_, err := GetEncodingProfile(EncodingProfile{Width: 640})
	require.Error(t, err)

	_, err = GetEncodingProfile(EncodingProfile{Codec: "mpeg2"})
	require.Error(t, err)

	_, err = GetEncodingProfile(EncodingProfile{Preset: "nope"})
	require.Error(t, err)
}

func TestGetEncodingProfilePreset(t *testing.T) {
	out, err := GetEncodingProfile(EncodingProfile{Preset: "h264_1080p_30fps", Width: 10})
	require.NoError(t, err)
	require.Equal(t, uint32(1920), out.Width)
	require.Equal(t, uint32(1080), out.Height)
	require.Equal(t, uint32(4500), out.BitrateKbps)
}

func TestEncodingProfileDerived(t *testing.T) {
	p := DefaultEncodingProfile()
	require.Equal(t, uint64(2_500_000), p.MaxBitrate())
	require.Equal(t, types.Constraints{Width: 1280, Height: 720, FrameRate: 30}, p.Constraints())

	mime, err := p.Codec.MimeType()
	require.NoError(t, err)
	require.Equal(t, webrtc.MimeTypeH264, mime)

	mime, err = VideoCodec("VP8").MimeType()
	require.NoError(t, err)
	require.Equal(t, webrtc.MimeTypeVP8, mime)
}

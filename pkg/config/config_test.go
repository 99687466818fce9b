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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/whxp/pkg/negotiation"
	"github.com/livekit/whxp/pkg/params"
	"github.com/livekit/whxp/pkg/types"
)

func TestNewConfigDefaults(t *testing.T) {
	conf, err := NewConfig("endpoint: http://localhost:8080/whip\n")
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8080/whip", conf.Endpoint)
	require.Equal(t, types.RolePublish, conf.Role)
	require.Equal(t, 5*time.Second, conf.Backoff)
	require.Equal(t, time.Second, conf.StatsInterval)
	require.Equal(t, negotiation.MethodNotAllowedRetry, conf.MethodNotAllowed)
	require.Equal(t, params.DefaultEncodingProfile(), conf.Encoding)
	require.Equal(t, "info", conf.Logging.Level)
}

func TestNewConfigOverrides(t *testing.T) {
	body := `
endpoint: https://example.com/whep
token: secret
role: subscribe
backoff: 2s
method_not_allowed: fail
ice_port_range: [20000, 20100]
ice_servers:
  - urls: ["stun:stun.l.google.com:19302"]
encoding:
  width: 640
  height: 360
  frame_rate: 15
  bitrate_kbps: 600
  codec: vp8
log_level: debug
`
	conf, err := NewConfig(body)
	require.NoError(t, err)

	require.Equal(t, "secret", conf.Token)
	require.Equal(t, types.RoleSubscribe, conf.Role)
	require.Equal(t, 2*time.Second, conf.Backoff)
	require.Equal(t, negotiation.MethodNotAllowedFail, conf.MethodNotAllowed)
	require.Equal(t, []uint16{20000, 20100}, conf.ICEPortRange)
	require.Len(t, conf.ICEServers, 1)
	require.Equal(t, params.EncodingProfile{Width: 640, Height: 360, FrameRate: 15, BitrateKbps: 600, Codec: params.CodecVP8}, conf.Encoding)
	require.Equal(t, "debug", conf.Logging.Level)
}

func TestNewConfigInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"role":      "role: relay\n",
		"policy":    "method_not_allowed: ignore\n",
		"portRange": "ice_port_range: [1]\n",
		"encoding":  "encoding:\n  codec: mpeg2\n",
		"yaml":      "endpoint: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewConfig(body)
			require.Error(t, err)
		})
	}
}

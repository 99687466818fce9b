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
package client

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/config"
	"github.com/livekit/whxp/pkg/media"
	"github.com/livekit/whxp/pkg/negotiation"
	"github.com/livekit/whxp/pkg/params"
	"github.com/livekit/whxp/pkg/signaling"
	"github.com/livekit/whxp/pkg/stats"
	"github.com/livekit/whxp/pkg/types"
)

type Params struct {
	Endpoint string
	Token    string

	Profile          params.EncodingProfile
	Backoff          time.Duration
	MethodNotAllowed negotiation.MethodNotAllowedPolicy

	// Transport defaults to an HTTP transport.
	Transport signaling.Transport
	Clock     clock.Clock
	Logger    logger.Logger

	Metrics *stats.Metrics
	// StatsInterval enables the stats poller once the session is active, if the
	// media session is a stats.Source.
	StatsInterval time.Duration
	OnStats       func([]*stats.StreamReport)

	// Candidate pair and transport samples, when the media session reports them.
	OnTransportStats func([]stats.TransportSample)

	RenderSink        media.RenderSink
	LevelSink         media.LevelSink
	VisualizerOptions []media.VisualizerOption

	// Called in order from a goroutine of the session, never from the event loop, so
	// they may call Disconnect. A slow callback delays the callbacks after it.
	OnStateChange           func(types.SessionState)
	OnConnectionStateChange func(types.ConnectionState)
}

func NewParams(conf *config.Config) Params {
	return Params{
		Endpoint:         conf.Endpoint,
		Token:            conf.Token,
		Profile:          conf.Encoding,
		Backoff:          conf.Backoff,
		MethodNotAllowed: conf.MethodNotAllowed,
		StatsInterval:    conf.StatsInterval,
	}
}

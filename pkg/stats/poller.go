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
package stats

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/frostbyte73/core"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/types"
)

const DefaultInterval = time.Second

// StreamSample is a cumulative snapshot of one RTP stream of a MediaSession.
type StreamSample struct {
	ID                 string
	Kind               types.StreamKind
	Direction          types.Direction
	Bytes              uint64
	Packets            uint64
	PacketsLost        int64
	InterarrivalJitter time.Duration
}

// Source is implemented by media sessions able to report RTP statistics.
type Source interface {
	StreamStats() []StreamSample
}

type StreamReport struct {
	StreamSample
	TrackStats
}

type PollerParams struct {
	Source   Source
	Interval time.Duration
	Clock    clock.Clock
	Logger   logger.Logger
	Metrics  *Metrics
	OnReport func([]*StreamReport)
	// Called with candidate pair and transport samples when Source is also a TransportSource.
	OnTransport func([]TransportSample)
}

type Poller struct {
	params PollerParams

	lock      sync.Mutex
	gatherers map[string]*StreamStatGatherer
	started   bool

	stop core.Fuse
	done core.Fuse
}

func NewPoller(params PollerParams) *Poller {
	if params.Interval <= 0 {
		params.Interval = DefaultInterval
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}

	return &Poller{
		params:    params,
		gatherers: make(map[string]*StreamStatGatherer),
	}
}

func (p *Poller) Start() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.started || p.stop.IsBroken() {
		return
	}
	p.started = true

	ticker := p.params.Clock.Ticker(p.params.Interval)
	go func() {
		defer p.done.Break()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.Poll()
			case <-p.stop.Watch():
				return
			}
		}
	}()
}

// Stop waits for a running poll loop to exit. Safe to call more than once.
func (p *Poller) Stop() {
	p.lock.Lock()
	started := p.started
	p.stop.Break()
	p.lock.Unlock()

	if started {
		<-p.done.Watch()
	}
}

func (p *Poller) Poll() []*StreamReport {
	samples := p.params.Source.StreamStats()
	now := p.params.Clock.Now()

	p.lock.Lock()
	reports := make([]*StreamReport, 0, len(samples))
	seen := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		seen[s.ID] = struct{}{}

		g, ok := p.gatherers[s.ID]
		if !ok {
			g = NewStreamStatGatherer(s.ID)
			p.gatherers[s.ID] = g
		}
		g.Observe(now, s.Bytes, s.InterarrivalJitter)

		reports = append(reports, &StreamReport{
			StreamSample: s,
			TrackStats:   *g.UpdateStats(now, s.Bytes),
		})
	}
	var vanished []string
	for id := range p.gatherers {
		if _, ok := seen[id]; !ok {
			delete(p.gatherers, id)
			vanished = append(vanished, id)
		}
	}
	p.lock.Unlock()

	for _, id := range vanished {
		p.params.Metrics.RemoveStream(id)
	}

	for _, r := range reports {
		values := []interface{}{
			"kind", r.Kind,
			"direction", r.Direction,
			"bytes", r.Bytes,
			"packets", r.Packets,
			"packetsLost", r.PacketsLost,
			"currentBitrate", r.CurrentBitrate,
			"averageBitrate", r.AverageBitrate,
		}
		if r.Jitter != nil {
			values = append(values, "jitterP50", r.Jitter.P50, "jitterP99", r.Jitter.P99)
		}
		p.params.Logger.Debugw("stream stats", values...)
	}

	p.params.Metrics.ObserveStreams(reports)
	if p.params.OnReport != nil {
		p.params.OnReport(reports)
	}

	if ts, ok := p.params.Source.(TransportSource); ok {
		p.pollTransports(ts)
	}

	return reports
}

func (p *Poller) pollTransports(ts TransportSource) {
	samples := ts.TransportStats()
	for _, s := range samples {
		switch s.Type {
		case TransportTypeCandidatePair:
			p.params.Logger.Debugw("candidate pair stats",
				"id", s.ID,
				"state", s.State,
				"nominated", s.Nominated,
				"bytesSent", s.BytesSent,
				"bytesReceived", s.BytesReceived,
				"rtt", s.RoundTripTime,
				"availableOutgoingBitrate", s.AvailableOutgoingBitrate,
			)
		default:
			p.params.Logger.Debugw("transport stats",
				"id", s.ID,
				"state", s.State,
				"bytesSent", s.BytesSent,
				"bytesReceived", s.BytesReceived,
				"selectedCandidatePair", s.SelectedCandidatePairID,
			)
		}
	}

	p.params.Metrics.ObserveTransports(samples)
	if p.params.OnTransport != nil {
		p.params.OnTransport(samples)
	}
}

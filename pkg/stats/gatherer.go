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
	"math"
	"sync"
	"time"

	morestats "github.com/aclements/go-moremath/stats"
)

type JitterStats struct {
	P50 float64
	P90 float64
	P99 float64
}

type TrackStats struct {
	AverageBitrate uint64
	CurrentBitrate uint64
	Jitter         *JitterStats
}

// StreamStatGatherer turns cumulative byte counters and jitter samples of one
// stream into bitrates and jitter quantiles. Jitter is kept in milliseconds.
type StreamStatGatherer struct {
	lock sync.Mutex

	id string

	startBytes uint64
	startTime  time.Time

	lastBytes     uint64
	lastQueryTime time.Time

	jitter morestats.Sample
}

func NewStreamStatGatherer(id string) *StreamStatGatherer {
	return &StreamStatGatherer{
		id: id,
	}
}

// Observe records a cumulative byte count and the current interarrival jitter.
func (g *StreamStatGatherer) Observe(now time.Time, totalBytes uint64, jitter time.Duration) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.startTime.IsZero() {
		g.startTime = now
		g.lastQueryTime = now
		g.startBytes = totalBytes
		g.lastBytes = totalBytes
	}

	if jitter > 0 {
		g.jitter.Xs = append(g.jitter.Xs, math.Abs(float64(jitter)/float64(time.Millisecond)))
	}
}

func (g *StreamStatGatherer) UpdateStats(now time.Time, totalBytes uint64) *TrackStats {
	g.lock.Lock()
	defer g.lock.Unlock()

	stats := &TrackStats{}
	if g.startTime.IsZero() {
		return stats
	}

	if elapsed := now.Sub(g.startTime); elapsed > 0 && totalBytes >= g.startBytes {
		stats.AverageBitrate = uint64(float64(totalBytes-g.startBytes) * 8 * float64(time.Second) / float64(elapsed))
	}
	if elapsed := now.Sub(g.lastQueryTime); elapsed > 0 && totalBytes >= g.lastBytes {
		stats.CurrentBitrate = uint64(float64(totalBytes-g.lastBytes) * 8 * float64(time.Second) / float64(elapsed))
	}

	g.lastQueryTime = now
	g.lastBytes = totalBytes

	if len(g.jitter.Xs) > 0 {
		jitter := g.jitter.Sort() // To make quantile computation faster
		stats.Jitter = &JitterStats{
			P50: jitter.Quantile(0.5),
			P90: jitter.Quantile(0.9),
			P99: jitter.Quantile(0.99),
		}
	}

	g.jitter.Xs = nil
	g.jitter.Sorted = false

	return stats
}

func (g *StreamStatGatherer) ID() string {
	return g.id
}

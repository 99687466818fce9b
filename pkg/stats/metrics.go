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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/livekit/whxp/pkg/types"
)

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	negotiationAttempts *prometheus.CounterVec
	sessionState        *prometheus.GaugeVec
	streamBytes         *prometheus.GaugeVec
	streamBitrate       *prometheus.GaugeVec
	streamJitter        *prometheus.GaugeVec
	transportBytes      *prometheus.GaugeVec
	transportRTT        *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		negotiationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whxp",
			Subsystem: "negotiation",
			Name:      "attempts_total",
		}, []string{"protocol", "outcome"}),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "whxp",
			Subsystem: "session",
			Name:      "state",
		}, []string{"protocol", "state"}),
		streamBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "whxp",
			Subsystem: "stream",
			Name:      "bytes",
		}, []string{"stream", "direction", "kind"}),
		streamBitrate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "whxp",
			Subsystem: "stream",
			Name:      "bitrate_bps",
		}, []string{"stream", "direction", "kind"}),
		streamJitter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "whxp",
			Subsystem: "stream",
			Name:      "jitter_ms",
		}, []string{"stream", "kind", "quantile"}),
		transportBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "whxp",
			Subsystem: "transport",
			Name:      "bytes",
		}, []string{"transport", "type", "direction"}),
		transportRTT: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "whxp",
			Subsystem: "transport",
			Name:      "round_trip_seconds",
		}, []string{"transport"}),
	}

	for _, c := range []prometheus.Collector{
		m.negotiationAttempts, m.sessionState, m.streamBytes, m.streamBitrate, m.streamJitter,
		m.transportBytes, m.transportRTT,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) ObserveAttempt(protocol, outcome string) {
	if m == nil {
		return
	}
	m.negotiationAttempts.WithLabelValues(protocol, outcome).Inc()
}

// SetSessionState keeps exactly one state label at 1 for the protocol.
func (m *Metrics) SetSessionState(protocol string, state types.SessionState) {
	if m == nil {
		return
	}
	for _, s := range []types.SessionState{
		types.SessionStateIdle, types.SessionStateNegotiating, types.SessionStateActive, types.SessionStateDisconnected,
	} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.sessionState.WithLabelValues(protocol, s.String()).Set(v)
	}
}

func (m *Metrics) ObserveStreams(reports []*StreamReport) {
	if m == nil {
		return
	}
	for _, r := range reports {
		dir, kind := string(r.Direction), string(r.Kind)
		m.streamBytes.WithLabelValues(r.ID, dir, kind).Set(float64(r.Bytes))
		m.streamBitrate.WithLabelValues(r.ID, dir, kind).Set(float64(r.CurrentBitrate))
		if r.Jitter != nil {
			m.streamJitter.WithLabelValues(r.ID, kind, "p50").Set(r.Jitter.P50)
			m.streamJitter.WithLabelValues(r.ID, kind, "p90").Set(r.Jitter.P90)
			m.streamJitter.WithLabelValues(r.ID, kind, "p99").Set(r.Jitter.P99)
		}
	}
}

// RemoveStream drops every series of a stream that is no longer reported.
func (m *Metrics) RemoveStream(id string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"stream": id}
	m.streamBytes.DeletePartialMatch(labels)
	m.streamBitrate.DeletePartialMatch(labels)
	m.streamJitter.DeletePartialMatch(labels)
}

func (m *Metrics) ObserveTransports(samples []TransportSample) {
	if m == nil {
		return
	}
	for _, s := range samples {
		m.transportBytes.WithLabelValues(s.ID, s.Type, "sent").Set(float64(s.BytesSent))
		m.transportBytes.WithLabelValues(s.ID, s.Type, "received").Set(float64(s.BytesReceived))
		if s.Type == TransportTypeCandidatePair {
			m.transportRTT.WithLabelValues(s.ID).Set(s.RoundTripTime.Seconds())
		}
	}
}

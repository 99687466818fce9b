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

import "time"

const (
	TransportTypeCandidatePair = "candidate-pair"
	TransportTypeTransport     = "transport"
)

// TransportSample is a cumulative snapshot of an ICE candidate pair or of the
// DTLS transport carrying the session.
type TransportSample struct {
	ID        string
	Type      string
	State     string
	Nominated bool

	BytesSent     uint64
	BytesReceived uint64

	// candidate pairs only
	RoundTripTime            time.Duration
	AvailableOutgoingBitrate float64

	// transports only
	SelectedCandidatePairID string
}

// TransportSource is implemented by media sessions able to report ICE and DTLS statistics.
type TransportSource interface {
	TransportStats() []TransportSample
}

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

package types

import (
	"github.com/pion/rtp"
)

type Track interface {
	ID() string
	StreamID() string
	Kind() StreamKind
}

// Constraints are the spatial and temporal limits applied to a capture track.
type Constraints struct {
	Width     uint32
	Height    uint32
	FrameRate float64
}

// LocalTrack is a capture track owned by the caller of a publish session.
type LocalTrack interface {
	Track

	ApplyConstraints(c Constraints) error
	Stop()
}

// PacketTap is implemented by tracks whose RTP packets can be observed.
// The returned function removes the handler.
type PacketTap interface {
	OnPacket(f func(pkt *rtp.Packet)) func()
}

// AudioLevel is an RFC 6464 level: 0 is the loudest, 127 is silence.
type AudioLevel struct {
	Level uint8
	Voice bool
}

type AudioLevelTap interface {
	OnAudioLevel(f func(level AudioLevel)) func()
}

type KeyframeRequester interface {
	RequestKeyframe() error
}

type Sender interface {
	// Track returns nil when no track is attached to the sender.
	Track() LocalTrack
}

// BitrateSetter is implemented by senders that can cap their outgoing bitrate.
type BitrateSetter interface {
	SetMaxBitrate(bps uint64) error
}

type Transceiver interface {
	Kind() StreamKind
	Direction() Direction
	Sender() Sender
}

// MediaSession is the peer connection capability a WHIP/WHEP session negotiates over.
// Callbacks may be invoked from any goroutine.
type MediaSession interface {
	CreateOffer() (string, error)
	SetLocalDescription(sdp string) error
	SetRemoteDescription(sdp string) error

	AddTransceiverFromKind(kind StreamKind, dir Direction) (Transceiver, error)
	AddTransceiverFromTrack(track LocalTrack, dir Direction) (Transceiver, error)

	ConnectionState() ConnectionState

	OnTrack(f func(track Track))
	OnNegotiationNeeded(f func())
	OnConnectionStateChange(f func(state ConnectionState))

	Close() error
}

// LocalDescriber is implemented by media sessions that complete candidate gathering
// when the local description is committed. The returned SDP replaces the raw offer.
type LocalDescriber interface {
	LocalDescription() string
}

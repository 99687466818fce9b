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

type StreamKind string

const (
	Audio   StreamKind = "audio"
	Video   StreamKind = "video"
	Unknown StreamKind = "unknown"
)

// Role selects the direction of a session: publish is WHIP, subscribe is WHEP.
type Role string

const (
	RolePublish   Role = "publish"
	RoleSubscribe Role = "subscribe"
)

func (r Role) Protocol() string {
	switch r {
	case RolePublish:
		return "WHIP"
	case RoleSubscribe:
		return "WHEP"
	default:
		return "unknown"
	}
}

type Direction string

const (
	DirectionSendOnly Direction = "sendonly"
	DirectionRecvOnly Direction = "recvonly"
)

// ConnectionState mirrors the peer connection state of a MediaSession.
type ConnectionState int

const (
	ConnectionStateNew ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateConnected
	ConnectionStateDisconnected
	ConnectionStateFailed
	ConnectionStateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateNew:
		return "new"
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateDisconnected:
		return "disconnected"
	case ConnectionStateFailed:
		return "failed"
	case ConnectionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionState is the facade state machine: Idle -> Negotiating -> Active -> Disconnected.
type SessionState int32

const (
	SessionStateIdle SessionState = iota
	SessionStateNegotiating
	SessionStateActive
	SessionStateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case SessionStateIdle:
		return "idle"
	case SessionStateNegotiating:
		return "negotiating"
	case SessionStateActive:
		return "active"
	case SessionStateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

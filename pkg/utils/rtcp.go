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
package utils

import "github.com/pion/rtcp"

// IsKeyframeRequest reports whether pkt asks the media sender for a new keyframe.
func IsKeyframeRequest(pkt rtcp.Packet) bool {
	switch pkt.(type) {
	case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
		return true
	default:
		return false
	}
}

func HasKeyframeRequest(pkts []rtcp.Packet) bool {
	for _, pkt := range pkts {
		if IsKeyframeRequest(pkt) {
			return true
		}
	}
	return false
}

// NewPLI builds a picture loss indication for the stream with the given SSRC.
func NewPLI(ssrc uint32) []rtcp.Packet {
	return []rtcp.Packet{
		&rtcp.PictureLossIndication{SenderSSRC: ssrc, MediaSSRC: ssrc},
	}
}

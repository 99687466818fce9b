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
	"context"

	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/types"
)

// Publisher sends local tracks to a WHIP endpoint.
type Publisher struct {
	*session
}

// NewPublisher adds every local track as a sendonly transceiver and binds it with the
// encoding profile. Negotiation starts when the media session asks for it. The
// publisher owns the tracks and stops them on Disconnect.
func NewPublisher(ctx context.Context, p Params, ms types.MediaSession, tracks []types.LocalTrack) (*Publisher, error) {
	if len(tracks) == 0 {
		return nil, errors.ErrNoLocalTracks
	}

	s, err := newSession(ctx, types.RolePublish, p, ms)
	if err != nil {
		return nil, err
	}
	s.localTracks = tracks

	ms.OnTrack(func(track types.Track) {
		s.logger.Debugw("ignoring remote track on publisher", "trackID", track.ID(), "kind", track.Kind())
	})

	for _, track := range tracks {
		tr, err := ms.AddTransceiverFromTrack(track, types.DirectionSendOnly)
		if err != nil {
			s.events.Close()
			s.cancel()
			return nil, err
		}

		// the loop is not running yet
		s.dispatcher.Dispatch(track, tr.Sender())
	}

	s.start()
	return &Publisher{session: s}, nil
}

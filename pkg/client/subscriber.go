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

	"go.uber.org/multierr"

	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/types"
)

// Subscriber plays back the tracks of a WHEP endpoint.
type Subscriber struct {
	*session
}

func NewSubscriber(ctx context.Context, p Params, ms types.MediaSession) (*Subscriber, error) {
	s, err := newSession(ctx, types.RoleSubscribe, p, ms)
	if err != nil {
		return nil, err
	}

	ms.OnTrack(func(track types.Track) {
		s.post(&event{kind: eventTrack, track: track})
	})

	// the offer needs one receive slot per kind before negotiation starts
	for _, kind := range []types.StreamKind{types.Video, types.Audio} {
		if _, err = ms.AddTransceiverFromKind(kind, types.DirectionRecvOnly); err != nil {
			s.events.Close()
			s.cancel()
			return nil, err
		}
	}

	s.start()
	return &Subscriber{session: s}, nil
}

// RequestKeyframe asks the sender of every received video track for a new keyframe.
func (s *Subscriber) RequestKeyframe() error {
	var err error
	requested := false
	for _, b := range s.dispatcher.Bindings() {
		if b.Kind != types.Video {
			continue
		}
		kr, ok := b.Track.(types.KeyframeRequester)
		if !ok {
			continue
		}
		requested = true
		err = multierr.Append(err, kr.RequestKeyframe())
	}

	if !requested {
		return errors.ErrNotKeyframeSource
	}
	return err
}

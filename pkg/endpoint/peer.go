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
package endpoint

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/psrpc"
	"github.com/livekit/whxp/pkg/rtc"
	"github.com/livekit/whxp/pkg/types"
	"github.com/livekit/whxp/pkg/utils"
)

type resource struct {
	id        string
	app       string
	streamKey string
	pc        *webrtc.PeerConnection
	closeOnce sync.Once
}

func (r *resource) close() {
	r.closeOnce.Do(func() {
		_ = r.pc.Close()
	})
}

func (s *Server) newPeerConnection() (*webrtc.PeerConnection, error) {
	api, err := rtc.NewAPI(s.conf, s.logger)
	if err != nil {
		return nil, err
	}

	conf := rtc.NewConfiguration(s.conf)
	conf.BundlePolicy = webrtc.BundlePolicyBalanced
	return api.NewPeerConnection(conf)
}

// ingest answers a WHIP offer and relays its tracks under streamKey.
func (s *Server) ingest(ctx context.Context, streamKey, sdpOffer string) (string, string, error) {
	offer := &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdpOffer}
	expectedTrackCount, err := getExpectedTrackCount(offer)
	if err != nil || expectedTrackCount == 0 {
		return "", "", psrpc.NewErrorf(psrpc.InvalidArgument, "offer has no media")
	}

	s.lock.Lock()
	_, exists := s.streams[streamKey]
	s.lock.Unlock()
	if exists {
		return "", "", psrpc.NewErrorf(psrpc.AlreadyExists, "stream %s already has a publisher", streamKey)
	}

	pc, err := s.newPeerConnection()
	if err != nil {
		return "", "", err
	}

	id := uuid.NewString()
	l := s.logger.WithValues("resourceID", id, "streamKey", streamKey)
	st := newRelayStream(streamKey, id, s.conf.RecordDir, l)
	res := &resource{id: id, app: "whip", streamKey: streamKey, pc: pc}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		rt := rtc.NewRemoteTrack(l, track, receiver, pc.WriteRTCP)
		if err := st.addTrack(rt); err != nil {
			l.Warnw("failed relaying track", err, "trackID", track.ID())
			rt.Close()
		}
	})
	s.watchConnection(res, l)

	l.Debugw("ingesting", "expectedTrackCount", expectedTrackCount)
	answer, err := getSDPAnswer(ctx, pc, offer)
	if err != nil {
		st.close()
		_ = pc.Close()
		return "", "", err
	}

	s.lock.Lock()
	if _, exists = s.streams[streamKey]; exists {
		s.lock.Unlock()
		st.close()
		_ = pc.Close()
		return "", "", psrpc.NewErrorf(psrpc.AlreadyExists, "stream %s already has a publisher", streamKey)
	}
	s.streams[streamKey] = st
	s.resources[id] = res
	s.lock.Unlock()

	return id, answer, nil
}

// egress answers a WHEP offer with the tracks currently relayed under streamKey.
func (s *Server) egress(ctx context.Context, streamKey, sdpOffer string) (string, string, error) {
	s.lock.Lock()
	st := s.streams[streamKey]
	s.lock.Unlock()

	var tracks []*forwardedTrack
	if st != nil {
		tracks = st.localTracks()
	}
	if len(tracks) == 0 {
		return "", "", psrpc.NewErrorf(psrpc.NotFound, "stream %s is not live", streamKey)
	}

	pc, err := s.newPeerConnection()
	if err != nil {
		return "", "", err
	}

	id := uuid.NewString()
	l := s.logger.WithValues("resourceID", id, "streamKey", streamKey)
	res := &resource{id: id, app: "whep", streamKey: streamKey, pc: pc}

	for _, ft := range tracks {
		sender, err := pc.AddTrack(ft.local)
		if err != nil {
			_ = pc.Close()
			return "", "", err
		}
		go readSenderRTCP(sender, st, ft.kind)
	}
	s.watchConnection(res, l)

	answer, err := getSDPAnswer(ctx, pc, &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdpOffer})
	if err != nil {
		_ = pc.Close()
		return "", "", err
	}

	s.lock.Lock()
	s.resources[id] = res
	s.lock.Unlock()

	return id, answer, nil
}

func (s *Server) watchConnection(res *resource, l logger.Logger) {
	res.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		l.Infow("peer connection state changed", "state", state.String())

		// TODO support ICE Restart
		if state == webrtc.PeerConnectionStateFailed {
			s.closeResource(res.id)
		}
	})
}

func (s *Server) closeResource(id string) bool {
	s.lock.Lock()
	res, ok := s.resources[id]
	if !ok {
		s.lock.Unlock()
		return false
	}
	delete(s.resources, id)

	var st *relayStream
	if res.app == "whip" {
		if st = s.streams[res.streamKey]; st != nil && st.publisher == id {
			delete(s.streams, res.streamKey)
		} else {
			st = nil
		}
	}
	s.lock.Unlock()

	if st != nil {
		st.close()
	}
	res.close()

	s.logger.Infow("resource closed", "resourceID", id, "app", res.app, "streamKey", res.streamKey)
	return true
}

func readSenderRTCP(sender *webrtc.RTPSender, st *relayStream, kind types.StreamKind) {
	for {
		pkts, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		if utils.HasKeyframeRequest(pkts) {
			st.requestKeyframe(kind)
		}
	}
}

func getSDPAnswer(ctx context.Context, pc *webrtc.PeerConnection, offer *webrtc.SessionDescription) (string, error) {
	if err := pc.SetRemoteDescription(*offer); err != nil {
		return "", psrpc.NewErrorf(psrpc.InvalidArgument, "invalid offer: %v", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}

	// Create channel that is blocked until ICE Gathering is complete
	gatherComplete := webrtc.GatheringCompletePromise(pc)

	if err = pc.SetLocalDescription(answer); err != nil {
		return "", err
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return "", psrpc.NewErrorf(psrpc.DeadlineExceeded, "timed out while waiting for ICE candidate gathering")
	}

	return pc.LocalDescription().SDP, nil
}

func getExpectedTrackCount(offer *webrtc.SessionDescription) (int, error) {
	parsed, err := offer.Unmarshal()
	if err != nil {
		return 0, err
	}

	return len(parsed.MediaDescriptions), nil
}

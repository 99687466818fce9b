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
package rtc

import (
	"sort"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/config"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/stats"
	"github.com/livekit/whxp/pkg/types"
	"github.com/livekit/whxp/pkg/utils"
)

const defaultGatherTimeout = 5 * time.Second

// TrackLocalProvider is implemented by local tracks backed by a pion track.
type TrackLocalProvider interface {
	TrackLocal() webrtc.TrackLocal
}

// PeerSession is a MediaSession backed by a pion PeerConnection.
type PeerSession struct {
	logger        logger.Logger
	pc            *webrtc.PeerConnection
	gatherTimeout time.Duration

	lock                sync.Mutex
	remoteTracks        []*RemoteTrack
	onTrack             func(types.Track)
	onNegotiationNeeded func()
	onStateChange       func(types.ConnectionState)
}

func NewPeerSession(conf *config.Config, l logger.Logger) (*PeerSession, error) {
	if l == nil {
		l = logger.GetLogger()
	}

	api, err := NewAPI(conf, l)
	if err != nil {
		return nil, err
	}

	pc, err := api.NewPeerConnection(NewConfiguration(conf))
	if err != nil {
		return nil, err
	}

	p := &PeerSession{
		logger:        l,
		pc:            pc,
		gatherTimeout: defaultGatherTimeout,
	}

	pc.OnTrack(p.addTrack)
	pc.OnNegotiationNeeded(func() {
		p.lock.Lock()
		f := p.onNegotiationNeeded
		p.lock.Unlock()

		if f != nil {
			f()
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Infow("peer connection state changed", "state", state.String())

		p.lock.Lock()
		f := p.onStateChange
		p.lock.Unlock()

		if f != nil {
			f(connectionState(state))
		}
	})

	return p, nil
}

func (p *PeerSession) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	return offer.SDP, nil
}

// SetLocalDescription applies the offer and waits for ICE gathering, so the description
// returned by LocalDescription carries every candidate.
func (p *PeerSession) SetLocalDescription(offer string) error {
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)

	if err := p.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}); err != nil {
		return err
	}

	select {
	case <-gatherComplete:
	case <-time.After(p.gatherTimeout):
		p.logger.Warnw("ice gathering timed out, offering partial candidates", nil)
	}

	return nil
}

func (p *PeerSession) LocalDescription() string {
	if d := p.pc.LocalDescription(); d != nil {
		return d.SDP
	}
	return ""
}

func (p *PeerSession) SetRemoteDescription(answer string) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer})
}

func (p *PeerSession) AddTransceiverFromKind(kind types.StreamKind, dir types.Direction) (types.Transceiver, error) {
	typ := codecType(kind)
	if typ == webrtc.RTPCodecType(0) {
		return nil, errors.ErrUnsupportedTrack
	}

	if _, err := p.pc.AddTransceiverFromKind(typ, webrtc.RTPTransceiverInit{
		Direction: transceiverDirection(dir),
	}); err != nil {
		return nil, err
	}

	return &transceiver{kind: kind, direction: dir}, nil
}

func (p *PeerSession) AddTransceiverFromTrack(track types.LocalTrack, dir types.Direction) (types.Transceiver, error) {
	provider, ok := track.(TrackLocalProvider)
	if !ok {
		return nil, errors.ErrUnsupportedTrack
	}

	tr, err := p.pc.AddTransceiverFromTrack(provider.TrackLocal(), webrtc.RTPTransceiverInit{
		Direction: transceiverDirection(dir),
	})
	if err != nil {
		return nil, err
	}

	go p.readSenderRTCP(tr.Sender(), track)

	return &transceiver{
		kind:      track.Kind(),
		direction: dir,
		sender:    &sender{track: track},
	}, nil
}

// readSenderRTCP drains RTCP so interceptors keep running, and forwards keyframe
// requests to tracks able to produce one.
func (p *PeerSession) readSenderRTCP(s *webrtc.RTPSender, track types.LocalTrack) {
	for {
		pkts, _, err := s.ReadRTCP()
		if err != nil {
			return
		}

		if !utils.HasKeyframeRequest(pkts) {
			continue
		}
		p.logger.Debugw("keyframe requested by server", "trackID", track.ID())
		if kr, ok := track.(types.KeyframeRequester); ok {
			if err = kr.RequestKeyframe(); err != nil {
				p.logger.Debugw("could not produce keyframe", "trackID", track.ID(), "error", err)
			}
		}
	}
}

func (p *PeerSession) addTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	kind := streamKindFromCodecType(track.Kind())
	p.logger.Infow("track has started", "type", track.PayloadType(), "codec", track.Codec().MimeType, "kind", kind)

	rt := NewRemoteTrack(p.logger, track, receiver, p.pc.WriteRTCP)

	p.lock.Lock()
	p.remoteTracks = append(p.remoteTracks, rt)
	f := p.onTrack
	p.lock.Unlock()

	if f != nil {
		f(rt)
	}
}

func (p *PeerSession) RemoteTracks() []*RemoteTrack {
	p.lock.Lock()
	defer p.lock.Unlock()

	return append([]*RemoteTrack(nil), p.remoteTracks...)
}

func (p *PeerSession) ConnectionState() types.ConnectionState {
	return connectionState(p.pc.ConnectionState())
}

func (p *PeerSession) OnTrack(f func(types.Track)) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.onTrack = f
}

func (p *PeerSession) OnNegotiationNeeded(f func()) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.onNegotiationNeeded = f
}

func (p *PeerSession) OnConnectionStateChange(f func(types.ConnectionState)) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.onStateChange = f
}

func (p *PeerSession) Close() error {
	for _, rt := range p.RemoteTracks() {
		rt.Close()
	}
	return p.pc.Close()
}

// StreamStats reports RTP counters of every stream, ordered by stats id.
func (p *PeerSession) StreamStats() []stats.StreamSample {
	var samples []stats.StreamSample
	for _, s := range p.pc.GetStats() {
		switch st := s.(type) {
		case webrtc.InboundRTPStreamStats:
			samples = append(samples, inboundSample(&st))
		case *webrtc.InboundRTPStreamStats:
			samples = append(samples, inboundSample(st))
		case webrtc.OutboundRTPStreamStats:
			samples = append(samples, outboundSample(&st))
		case *webrtc.OutboundRTPStreamStats:
			samples = append(samples, outboundSample(st))
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].ID < samples[j].ID
	})
	return samples
}

// TransportStats reports ICE candidate pairs and DTLS transports, ordered by stats id.
func (p *PeerSession) TransportStats() []stats.TransportSample {
	var samples []stats.TransportSample
	for _, s := range p.pc.GetStats() {
		switch st := s.(type) {
		case webrtc.ICECandidatePairStats:
			samples = append(samples, candidatePairSample(&st))
		case *webrtc.ICECandidatePairStats:
			samples = append(samples, candidatePairSample(st))
		case webrtc.TransportStats:
			samples = append(samples, transportSample(&st))
		case *webrtc.TransportStats:
			samples = append(samples, transportSample(st))
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].ID < samples[j].ID
	})
	return samples
}

func candidatePairSample(st *webrtc.ICECandidatePairStats) stats.TransportSample {
	return stats.TransportSample{
		ID:                       st.ID,
		Type:                     stats.TransportTypeCandidatePair,
		State:                    string(st.State),
		Nominated:                st.Nominated,
		BytesSent:                st.BytesSent,
		BytesReceived:            st.BytesReceived,
		RoundTripTime:            time.Duration(st.CurrentRoundTripTime * float64(time.Second)),
		AvailableOutgoingBitrate: st.AvailableOutgoingBitrate,
	}
}

func transportSample(st *webrtc.TransportStats) stats.TransportSample {
	return stats.TransportSample{
		ID:                      st.ID,
		Type:                    stats.TransportTypeTransport,
		State:                   st.DTLSState.String(),
		BytesSent:               st.BytesSent,
		BytesReceived:           st.BytesReceived,
		SelectedCandidatePairID: st.SelectedCandidatePairID,
	}
}

func inboundSample(st *webrtc.InboundRTPStreamStats) stats.StreamSample {
	return stats.StreamSample{
		ID:                 st.ID,
		Kind:               types.StreamKind(st.Kind),
		Direction:          types.DirectionRecvOnly,
		Bytes:              st.BytesReceived,
		Packets:            uint64(st.PacketsReceived),
		PacketsLost:        int64(st.PacketsLost),
		InterarrivalJitter: time.Duration(st.Jitter * float64(time.Second)),
	}
}

func outboundSample(st *webrtc.OutboundRTPStreamStats) stats.StreamSample {
	return stats.StreamSample{
		ID:        st.ID,
		Kind:      types.StreamKind(st.Kind),
		Direction: types.DirectionSendOnly,
		Bytes:     st.BytesSent,
		Packets:   uint64(st.PacketsSent),
	}
}

type transceiver struct {
	kind      types.StreamKind
	direction types.Direction
	sender    types.Sender
}

func (t *transceiver) Kind() types.StreamKind     { return t.kind }
func (t *transceiver) Direction() types.Direction { return t.direction }

// Sender is nil for receive only transceivers.
func (t *transceiver) Sender() types.Sender { return t.sender }

type sender struct {
	track types.LocalTrack
}

func (s *sender) Track() types.LocalTrack {
	return s.track
}

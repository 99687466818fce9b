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
package sink

import (
	"bytes"
	"encoding/binary"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/livekit/whxp/pkg/media"
	"github.com/livekit/whxp/pkg/types"
)

type tapTrack struct {
	id       string
	kind     types.StreamKind
	mimeType string

	lock      sync.Mutex
	listeners map[int]func(*rtp.Packet)
	next      int
}

func newTapTrack(id string, kind types.StreamKind, mimeType string) *tapTrack {
	return &tapTrack{id: id, kind: kind, mimeType: mimeType, listeners: make(map[int]func(*rtp.Packet))}
}

func (t *tapTrack) ID() string             { return t.id }
func (t *tapTrack) StreamID() string       { return "remote" }
func (t *tapTrack) Kind() types.StreamKind { return t.kind }

func (t *tapTrack) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: t.mimeType, ClockRate: 48000}}
}

func (t *tapTrack) OnPacket(f func(*rtp.Packet)) func() {
	t.lock.Lock()
	defer t.lock.Unlock()

	id := t.next
	t.next++
	t.listeners[id] = f
	return func() {
		t.lock.Lock()
		defer t.lock.Unlock()
		delete(t.listeners, id)
	}
}

func (t *tapTrack) emit(pkt *rtp.Packet) {
	t.lock.Lock()
	fns := make([]func(*rtp.Packet), 0, len(t.listeners))
	for _, f := range t.listeners {
		fns = append(fns, f)
	}
	t.lock.Unlock()

	for _, f := range fns {
		f(pkt)
	}
}

func (t *tapTrack) listenerCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.listeners)
}

type plainTrack struct{}

func (plainTrack) ID() string             { return "plain" }
func (plainTrack) StreamID() string       { return "local" }
func (plainTrack) Kind() types.StreamKind { return types.Video }

func TestFileSinkRecordsTracks(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir, nil)
	require.NoError(t, err)

	audio := newTapTrack("audio/1", types.Audio, webrtc.MimeTypeOpus)
	video := newTapTrack("video-1", types.Video, webrtc.MimeTypeVP8)
	pcma := newTapTrack("pcma", types.Audio, webrtc.MimeTypePCMA)

	stream := media.NewStream()
	stream.AddTrack(audio)
	stream.AddTrack(plainTrack{})
	stream.AddTrack(pcma)
	s.SetStream(stream)
	require.Len(t, s.Paths(), 1)

	// tracks added later are picked up when the stream is set again
	stream.AddTrack(video)
	s.SetStream(stream)
	require.Len(t, s.Paths(), 2)
	require.Equal(t, 1, audio.listenerCount())

	audio.emit(&rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: 1, Timestamp: 960, SSRC: 1},
		Payload: []byte{0xf8, 0xff, 0xfe},
	})

	s.SetStream(nil)
	require.Empty(t, s.Paths())
	require.Equal(t, 0, audio.listenerCount())
	require.Equal(t, 0, video.listenerCount())

	ogg, err := os.ReadFile(dir + "/audio_1.ogg")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(ogg, []byte("OggS")))

	_, err = os.Stat(dir + "/video-1.ivf")
	require.NoError(t, err)
}

func vp8Packet(seq uint16, ts uint32, head, marker bool, data ...byte) *rtp.Packet {
	descriptor := byte(0x00)
	if head {
		descriptor = 0x10
	}
	return &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 96, SequenceNumber: seq, Timestamp: ts, SSRC: 2, Marker: marker},
		Payload: append([]byte{descriptor}, data...),
	}
}

func TestFileSinkReordersPackets(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir, nil)
	require.NoError(t, err)

	video := newTapTrack("cam", types.Video, webrtc.MimeTypeVP8)
	stream := media.NewStream()
	stream.AddTrack(video)
	s.SetStream(stream)

	s.lock.Lock()
	r := s.recordings["cam"]
	s.lock.Unlock()
	require.NotNil(t, r)

	// keyframe, then a two packet frame arriving tail first, then a single packet frame
	video.emit(vp8Packet(10, 0, true, true, 0x00, 0x01, 0x02))
	video.emit(vp8Packet(12, 3000, false, true, 0xcc, 0xdd))
	video.emit(vp8Packet(11, 3000, true, false, 0x01, 0xaa, 0xbb))
	video.emit(vp8Packet(13, 6000, true, true, 0x01, 0xee, 0xff))

	require.Eventually(t, func() bool {
		return r.sampleCount() == 3
	}, 2*time.Second, 10*time.Millisecond)

	s.SetStream(nil)

	ivf, err := os.ReadFile(dir + "/cam.ivf")
	require.NoError(t, err)
	require.Equal(t, "DKIF", string(ivf[:4]))
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(ivf[24:28]))
}

func TestCreateDepacketizer(t *testing.T) {
	for _, mimeType := range []string{webrtc.MimeTypeVP8, webrtc.MimeTypeVP9, webrtc.MimeTypeAV1, webrtc.MimeTypeH264, webrtc.MimeTypeOpus} {
		d, err := createDepacketizer(mimeType)
		require.NoError(t, err, mimeType)
		require.NotNil(t, d)
	}

	_, err := createDepacketizer(webrtc.MimeTypePCMA)
	require.Error(t, err)
}

func TestLevelBar(t *testing.T) {
	var buf bytes.Buffer
	b := NewLevelBar(&buf, "mic")
	b.width = 10

	b.DrawLevels(nil)
	require.Empty(t, buf.String())

	b.DrawLevels([]float64{1, 0.5})
	require.Equal(t, "\rmic [#####     ]", buf.String())

	buf.Reset()
	b.DrawLevels([]float64{2})
	require.Equal(t, "\rmic [##########]", buf.String())
}

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
package capture

import (
	"io"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/h264reader"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"

	"github.com/livekit/whxp/pkg/errors"
)

const (
	opusClockRate        = 48000
	defaultFrameDuration = time.Second / 30
)

type sampleReader interface {
	// NextSample returns io.EOF at the end of the file.
	NextSample() (*media.Sample, error)
}

type ivfSampleReader struct {
	reader        *ivfreader.IVFReader
	timebase      float64
	lastTimestamp uint64
	width         uint16
	height        uint16
}

func newIVFSampleReader(r io.Reader) (*ivfSampleReader, string, error) {
	reader, header, err := ivfreader.NewWith(r)
	if err != nil {
		return nil, "", err
	}

	var mimeType string
	switch header.FourCC {
	case "VP80":
		mimeType = webrtc.MimeTypeVP8
	case "VP90":
		mimeType = webrtc.MimeTypeVP9
	case "AV01":
		mimeType = webrtc.MimeTypeAV1
	default:
		return nil, "", errors.ErrUnsupportedMimeType(header.FourCC)
	}

	timebase := 1.0 / 30
	if header.TimebaseDenominator != 0 {
		timebase = float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator)
	}

	return &ivfSampleReader{
		reader:   reader,
		timebase: timebase,
		width:    header.Width,
		height:   header.Height,
	}, mimeType, nil
}

func (r *ivfSampleReader) NextSample() (*media.Sample, error) {
	frame, header, err := r.reader.ParseNextFrame()
	if err != nil {
		return nil, err
	}

	duration := time.Duration(r.timebase * float64(time.Second))
	if header.Timestamp > r.lastTimestamp {
		delta := header.Timestamp - r.lastTimestamp
		duration = time.Duration(r.timebase * float64(delta) * float64(time.Second))
	}
	r.lastTimestamp = header.Timestamp

	return &media.Sample{Data: frame, Duration: duration}, nil
}

type oggSampleReader struct {
	reader      *oggreader.OggReader
	lastGranule uint64
}

func newOggSampleReader(r io.Reader) (*oggSampleReader, error) {
	reader, _, err := oggreader.NewWith(r)
	if err != nil {
		return nil, err
	}
	return &oggSampleReader{reader: reader}, nil
}

func (r *oggSampleReader) NextSample() (*media.Sample, error) {
	for {
		page, header, err := r.reader.ParseNextPage()
		if err != nil {
			return nil, err
		}

		// opus header pages carry no granule
		if header.GranulePosition == 0 {
			continue
		}

		samples := header.GranulePosition - r.lastGranule
		r.lastGranule = header.GranulePosition

		return &media.Sample{
			Data:     page,
			Duration: time.Duration(float64(samples) / opusClockRate * float64(time.Second)),
		}, nil
	}
}

type h264SampleReader struct {
	reader        *h264reader.H264Reader
	frameDuration func() time.Duration
}

func newH264SampleReader(r io.Reader, frameDuration func() time.Duration) (*h264SampleReader, error) {
	reader, err := h264reader.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &h264SampleReader{reader: reader, frameDuration: frameDuration}, nil
}

func (r *h264SampleReader) NextSample() (*media.Sample, error) {
	nal, err := r.reader.NextNAL()
	if err != nil {
		return nil, err
	}

	sample := &media.Sample{
		Data: nal.Data,
	}

	switch nal.UnitType {
	case h264reader.NalUnitTypeCodedSliceDataPartitionA,
		h264reader.NalUnitTypeCodedSliceDataPartitionB,
		h264reader.NalUnitTypeCodedSliceDataPartitionC,
		h264reader.NalUnitTypeCodedSliceIdr,
		h264reader.NalUnitTypeCodedSliceNonIdr:
		sample.Duration = r.frameDuration()
	}

	return sample, nil
}

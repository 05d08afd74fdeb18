/*
Copyright © 2026 Anton Brekhov <anton@abrekhov.ru>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/ivfreader"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
)

// OpusFrameDuration is the duration of one generated silence frame.
const OpusFrameDuration = 20 * time.Millisecond

// opusSilence is a single Opus frame that decodes to 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

type silence struct{}

func (silence) Next() (media.Sample, error) {
	data := make([]byte, len(opusSilence))
	copy(data, opusSilence)
	return media.Sample{Data: data, Duration: OpusFrameDuration}, nil
}

func (silence) Close() error { return nil }

// ivfSource loops over the frames of an IVF file.
type ivfSource struct {
	file     *os.File
	reader   *ivfreader.IVFReader
	interval time.Duration
}

func openIVF(path string, frameRate int) (*ivfSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open video file: %w", err)
	}
	reader, header, err := ivfreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read ivf header %s: %w", path, err)
	}
	interval := time.Second / 30
	switch {
	case frameRate > 0:
		interval = time.Second / time.Duration(frameRate)
	case header.TimebaseDenominator > 0 && header.TimebaseNumerator > 0:
		interval = time.Duration(float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
	}
	return &ivfSource{file: f, reader: reader, interval: interval}, nil
}

func (s *ivfSource) Next() (media.Sample, error) {
	frame, _, err := s.reader.ParseNextFrame()
	if errors.Is(err, io.EOF) {
		if err := s.rewind(); err != nil {
			return media.Sample{}, err
		}
		frame, _, err = s.reader.ParseNextFrame()
	}
	if err != nil {
		return media.Sample{}, fmt.Errorf("read ivf frame: %w", err)
	}
	return media.Sample{Data: frame, Duration: s.interval}, nil
}

func (s *ivfSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind video file: %w", err)
	}
	reader, _, err := ivfreader.NewWith(s.file)
	if err != nil {
		return fmt.Errorf("reread ivf header: %w", err)
	}
	s.reader = reader
	return nil
}

func (s *ivfSource) Close() error {
	return s.file.Close()
}

// oggSource loops over the pages of an Ogg/Opus file.
type oggSource struct {
	file        *os.File
	reader      *oggreader.OggReader
	lastGranule uint64
}

func openOgg(path string) (*oggSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	reader, _, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read ogg header %s: %w", path, err)
	}
	return &oggSource{file: f, reader: reader}, nil
}

func (s *oggSource) Next() (media.Sample, error) {
	page, header, err := s.reader.ParseNextPage()
	if errors.Is(err, io.EOF) {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return media.Sample{}, fmt.Errorf("rewind audio file: %w", err)
		}
		if s.reader, _, err = oggreader.NewWith(s.file); err != nil {
			return media.Sample{}, fmt.Errorf("reread ogg header: %w", err)
		}
		s.lastGranule = 0
		page, header, err = s.reader.ParseNextPage()
	}
	if err != nil {
		return media.Sample{}, fmt.Errorf("read ogg page: %w", err)
	}
	samples := header.GranulePosition - s.lastGranule
	s.lastGranule = header.GranulePosition
	duration := time.Duration(float64(samples) / 48000 * float64(time.Second))
	if duration <= 0 {
		duration = OpusFrameDuration
	}
	return media.Sample{Data: page, Duration: duration}, nil
}

func (s *oggSource) Close() error {
	return s.file.Close()
}

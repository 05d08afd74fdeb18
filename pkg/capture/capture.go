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

// Package capture feeds local media tracks from files or generated silence.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abrekhov/rtcbridge/pkg/convert"
	"github.com/pion/webrtc/v3/pkg/media"
	log "github.com/sirupsen/logrus"
)

// ErrNoDevice is returned when no configured device satisfies the constraints.
var ErrNoDevice = errors.New("no suitable video device")

// Device is a configured video source.
type Device struct {
	ID     string `mapstructure:"id"`
	Label  string `mapstructure:"label"`
	Facing string `mapstructure:"facing"`
	File   string `mapstructure:"file"` // IVF (VP8); empty means the track stays silent
}

// DefaultDevices is used when no devices are configured.
func DefaultDevices() []Device {
	return []Device{{ID: "default", Label: "Default", Facing: convert.FacingUser}}
}

// SampleWriter accepts media samples. Local tracks implement it.
type SampleWriter interface {
	WriteSample(media.Sample) error
}

// Capturer runs at most one capture session at a time.
type Capturer struct {
	devices   []Device
	audioFile string

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Capturer. An empty device list means DefaultDevices.
func New(devices []Device, audioFile string) *Capturer {
	if len(devices) == 0 {
		devices = DefaultDevices()
	}
	return &Capturer{devices: devices, audioFile: audioFile}
}

// Devices returns the configured devices.
func (c *Capturer) Devices() []Device {
	out := make([]Device, len(c.devices))
	copy(out, c.devices)
	return out
}

// Select picks a device by source id, falling back to facing mode.
func (c *Capturer) Select(v *convert.VideoConstraints) (Device, error) {
	if v == nil {
		return c.devices[0], nil
	}
	if v.SourceID != "" {
		for _, d := range c.devices {
			if d.ID == v.SourceID {
				return d, nil
			}
		}
	}
	facing := v.FacingMode
	if facing == "" {
		facing = convert.FacingUser
	}
	for _, d := range c.devices {
		if d.Facing == facing {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: facing %s", ErrNoDevice, facing)
}

// Session describes what Start should feed.
type Session struct {
	Device    Device
	FrameRate int
	Video     SampleWriter // nil disables video
	Audio     SampleWriter // nil disables audio
}

// Start stops any running session and starts s.
func (c *Capturer) Start(s Session) error {
	c.Stop()

	var video, audio source
	var err error
	if s.Video != nil && s.Device.File != "" {
		if video, err = openIVF(s.Device.File, s.FrameRate); err != nil {
			return err
		}
	}
	if s.Audio != nil {
		if c.audioFile != "" {
			if audio, err = openOgg(c.audioFile); err != nil {
				if video != nil {
					video.Close()
				}
				return err
			}
		} else {
			audio = silence{}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"device": s.Device.ID,
		"video":  video != nil,
		"audio":  audio != nil,
	}).Infoln("Capture started")

	if video != nil {
		c.wg.Add(1)
		go c.pump(ctx, video, s.Video)
	}
	if audio != nil {
		c.wg.Add(1)
		go c.pump(ctx, audio, s.Audio)
	}
	return nil
}

// Running reports whether a session is active.
func (c *Capturer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Stop ends the running session and waits for its goroutines.
func (c *Capturer) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
	log.Infoln("Capture stopped")
}

// source yields samples. Next returns the sample and how long to wait
// before asking for the next one.
type source interface {
	Next() (media.Sample, error)
	Close() error
}

func (c *Capturer) pump(ctx context.Context, src source, w SampleWriter) {
	defer c.wg.Done()
	defer src.Close()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		sample, err := src.Next()
		if err != nil {
			log.Errorf("Capture source failed: %v", err)
			return
		}
		if err := w.WriteSample(sample); err != nil {
			log.Debugf("Dropping sample: %v", err)
		}
		timer.Reset(sample.Duration)
	}
}

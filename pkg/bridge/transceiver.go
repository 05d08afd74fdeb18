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

package bridge

import (
	"github.com/abrekhov/rtcbridge/pkg/convert"
	log "github.com/sirupsen/logrus"
)

func (m *Module) transceiver(tag string) (*Transceiver, error) {
	if t, ok := m.transceivers.ByTag(tag); ok {
		return t, nil
	}
	return nil, notFound("transceiver", tag)
}

// TransceiverDirection returns the requested direction.
func (m *Module) TransceiverDirection(tag string) (string, error) {
	t, err := m.transceiver(tag)
	if err != nil {
		return "", err
	}
	return t.Direction(), nil
}

// TransceiverCurrentDirection returns the negotiated direction, or nil
// before negotiation.
func (m *Module) TransceiverCurrentDirection(tag string) (interface{}, error) {
	t, err := m.transceiver(tag)
	if err != nil {
		return nil, err
	}
	if cur := t.CurrentDirection(); cur != "" {
		return cur, nil
	}
	return nil, nil
}

// TransceiverSetDirection changes the requested direction. Leaving a
// sending direction suspends the sender; entering one resumes it.
func (m *Module) TransceiverSetDirection(tag, value string) error {
	t, err := m.transceiver(tag)
	if err != nil {
		return err
	}
	d, err := convert.TransceiverDirection(value)
	if err != nil {
		return typeError(err)
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return invalidState("transceiver %q is stopped", tag)
	}
	t.mu.Unlock()

	sender := t.currentSender()
	if convert.Sends(d) && sender == nil {
		return invalidState("transceiver %q has no sender", tag)
	}
	if sender != nil {
		if err := sender.setDirectionOff(!convert.Sends(d)); err != nil {
			return engineError(CodeSetDirectionFailed, err)
		}
	}

	t.mu.Lock()
	t.direction = d
	t.mu.Unlock()
	log.WithFields(log.Fields{
		"valueTag":  tag,
		"direction": value,
	}).Debugln("Transceiver direction set")
	return nil
}

// TransceiverStop stops the transceiver permanently.
func (m *Module) TransceiverStop(tag string) error {
	t, err := m.transceiver(tag)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	if err := t.t.Stop(); err != nil {
		return engineError(CodeTransceiverStop, err)
	}
	t.stopped = true
	return nil
}

// encodingOwner finds the sender or receiver tagged ownerTag.
func (m *Module) encodingOwner(ownerTag string) (*encodingOverlay, []convert.Encoding, *Sender, error) {
	if s, ok := m.senders.ByTag(ownerTag); ok {
		return s.overlay, s.engineEncodings(), s, nil
	}
	if r, ok := m.receivers.ByTag(ownerTag); ok {
		return r.overlay, r.engineEncodings(), nil, nil
	}
	return nil, nil, nil, notFound("rtp parameters owner", ownerTag)
}

func (m *Module) updateEncoding(ownerTag string, ssrc *uint32, fn func(*encodingState)) error {
	overlay, engine, sender, err := m.encodingOwner(ownerTag)
	if err != nil {
		return err
	}
	if !overlay.update(engine, ssrc, fn) {
		log.WithField("owner", ownerTag).Debugln("No matching encoding, ignoring")
		return nil
	}
	if sender != nil {
		if err := sender.applySending(); err != nil {
			return engineError(CodePeerConnection, err)
		}
	}
	return nil
}

// RTPEncodingParametersSetActive toggles an encoding. A sender with no
// active encoding stops sending media.
func (m *Module) RTPEncodingParametersSetActive(ownerTag string, ssrc *uint32, active bool) error {
	return m.updateEncoding(ownerTag, ssrc, func(st *encodingState) { st.active = active })
}

// RTPEncodingParametersSetMaxBitrate records the maximum bitrate. nil clears it.
func (m *Module) RTPEncodingParametersSetMaxBitrate(ownerTag string, ssrc *uint32, bps *int) error {
	return m.updateEncoding(ownerTag, ssrc, func(st *encodingState) { st.maxBitrate = bps })
}

// RTPEncodingParametersSetMinBitrate records the minimum bitrate. nil clears it.
func (m *Module) RTPEncodingParametersSetMinBitrate(ownerTag string, ssrc *uint32, bps *int) error {
	return m.updateEncoding(ownerTag, ssrc, func(st *encodingState) { st.minBitrate = bps })
}

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
	"github.com/abrekhov/rtcbridge/pkg/datachannel"
	"github.com/abrekhov/rtcbridge/pkg/metrics"
	"github.com/abrekhov/rtcbridge/pkg/valuetag"
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

// PeerConnectionCreateDataChannel opens a data channel and returns it.
func (m *Module) PeerConnectionCreateDataChannel(tag, label string, init interface{}) (map[string]interface{}, error) {
	p, err := m.peerConnection(tag)
	if err != nil {
		return nil, err
	}
	dcInit, err := convert.DataChannelInit(init)
	if err != nil {
		return nil, typeError(err)
	}
	dc, err := p.pc.CreateDataChannel(label, dcInit)
	if err != nil {
		return nil, engineError(CodeCreateDataChannel, err)
	}
	d := m.registerDataChannel(p, dc)
	if d == nil {
		return nil, invalidState("peer connection %q is closing", tag)
	}
	return d.JSON(), nil
}

// registerDataChannel returns nil when p is being released.
func (m *Module) registerDataChannel(p *PeerConnection, dc *webrtc.DataChannel) *DataChannel {
	d := &DataChannel{
		id:    valuetag.NewTag(),
		dc:    dc,
		owner: p,
		meter: datachannel.NewMeter(),
	}
	m.opMu.Lock()
	if p.closing.Load() {
		m.opMu.Unlock()
		return nil
	}
	register(m, m.dataChannels, d.id, valuetag.NewTag(), d, dc)
	m.opMu.Unlock()
	datachannel.Observe(dc, &channelEvents{m: m, d: d}, d.meter)
	return d
}

func (m *Module) dataChannel(tag string) (*DataChannel, error) {
	if d, ok := m.dataChannels.ByTag(tag); ok {
		return d, nil
	}
	return nil, notFound("data channel", tag)
}

// DataChannelSend sends a text or binary buffer.
func (m *Module) DataChannelSend(tag string, buffer interface{}) error {
	d, err := m.dataChannel(tag)
	if err != nil {
		return err
	}
	b, err := convert.DataBuffer(buffer)
	if err != nil {
		return typeError(err)
	}
	if b.Binary {
		err = d.dc.Send(b.Data)
	} else {
		err = d.dc.SendText(string(b.Data))
	}
	if err != nil {
		return engineError(CodeDataChannelSend, err)
	}
	d.meter.AddSent(len(b.Data))
	m.metrics.Observe(metrics.DataChannelMessageSize, "out", float64(len(b.Data)))
	return nil
}

// DataChannelClose closes an open data channel. Channels in any other
// state, and unknown tags, are left alone.
func (m *Module) DataChannelClose(tag string) error {
	d, ok := m.dataChannels.ByTag(tag)
	if !ok {
		return nil
	}
	if d.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return nil
	}
	if err := d.dc.Close(); err != nil {
		return engineError(CodePeerConnection, err)
	}
	return nil
}

// releaseDataChannel drops d off the engine goroutine that reported it closed.
func (m *Module) releaseDataChannel(d *DataChannel) {
	if !d.releasing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		m.opMu.Lock()
		defer m.opMu.Unlock()
		unregister(m, m.dataChannels, d, d.dc)
	}()
}

// channelEvents turns data channel callbacks into bridge events.
type channelEvents struct {
	m *Module
	d *DataChannel
}

func (h *channelEvents) OnStateChange(state webrtc.DataChannelState) {
	tag := h.d.ValueTag()
	if tag == "" {
		return
	}
	h.m.emit(EventDataChannelState, tag, map[string]interface{}{
		"readyState": convert.DataChannelStateString(state),
	})
	if state == webrtc.DataChannelStateClosed {
		h.m.releaseDataChannel(h.d)
	}
}

func (h *channelEvents) OnMessage(msg webrtc.DataChannelMessage) {
	h.m.metrics.Observe(metrics.DataChannelMessageSize, "in", float64(len(msg.Data)))
	tag := h.d.ValueTag()
	if tag == "" {
		log.WithField("label", h.d.dc.Label()).Debugln("Message on released data channel dropped")
		return
	}
	h.m.emit(EventDataChannelMessage, tag, datachannel.MessagePayload(msg))
}

func (h *channelEvents) OnBufferedAmountLow(amount uint64) {
	tag := h.d.ValueTag()
	if tag == "" {
		return
	}
	h.m.emit(EventDataChannelBuffered, tag, map[string]interface{}{
		"bufferedAmount": amount,
	})
}

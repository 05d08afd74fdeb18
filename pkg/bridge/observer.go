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
	"github.com/abrekhov/rtcbridge/pkg/metrics"
	"github.com/abrekhov/rtcbridge/pkg/valuetag"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

// observe forwards engine callbacks of p as bridge events.
func (m *Module) observe(p *PeerConnection) {
	pc := p.pc

	pc.OnSignalingStateChange(func(s webrtc.SignalingState) {
		m.emit(EventSignalingStateChanged, p.ValueTag(), map[string]interface{}{
			"signalingState": convert.SignalingStateString(s),
		})
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.emit(EventConnectionStateChanged, p.ValueTag(), map[string]interface{}{
			"connectionState": convert.PeerConnectionStateString(s),
		})
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		tag := p.ValueTag()
		m.emit(EventICEConnectionChanged, tag, map[string]interface{}{
			"iceConnectionState": convert.ICEConnectionStateString(s),
		})
		switch s {
		case webrtc.ICEConnectionStateFailed,
			webrtc.ICEConnectionStateDisconnected,
			webrtc.ICEConnectionStateClosed:
			log.WithFields(log.Fields{
				"valueTag": tag,
				"state":    s.String(),
			}).Infoln("ICE connection ended, closing peer connection")
			m.closeAndFinish(p)
		}
	})

	pc.OnICEGatheringStateChange(func(s webrtc.ICEGathererState) {
		m.emit(EventICEGatheringChanged, p.ValueTag(), map[string]interface{}{
			"iceGatheringState": convert.ICEGatheringStateString(s),
		})
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		var candidate map[string]interface{}
		if c != nil {
			init := c.ToJSON()
			candidate = convert.ICECandidateJSON(&init)
		}
		m.emit(EventGotICECandidate, p.ValueTag(), map[string]interface{}{
			"candidate": candidate,
		})
	})

	pc.OnNegotiationNeeded(func() {
		m.emit(EventShouldNegotiate, p.ValueTag(), nil)
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, rr *webrtc.RTPReceiver) {
		m.onTrack(p, remote, rr)
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		d := m.registerDataChannel(p, dc)
		if d == nil {
			return
		}
		m.emit(EventAddedDataChannel, p.ValueTag(), map[string]interface{}{
			"dataChannel": d.JSON(),
		})
	})
}

// onTrack registers a remote track with its stream and receiver and
// announces the transceiver and the receiver.
func (m *Module) onTrack(p *PeerConnection, remote *webrtc.TrackRemote, rr *webrtc.RTPReceiver) {
	if p.closing.Load() {
		return
	}
	m.opMu.Lock()
	if p.closing.Load() {
		m.opMu.Unlock()
		return
	}
	m.syncTransceivers(p)

	track := newRemoteTrack(remote, p)
	register(m, m.tracks, track.id, valuetag.NewTag(), track, remote)

	streamID := remote.StreamID()
	stream := m.remoteStream(p, streamID)
	stream.addTrack(track)

	r := m.registerReceiver(rr, p)
	r.mu.Lock()
	r.track = track
	r.streamIDs = []string{streamID}
	r.mu.Unlock()

	var transceiver *Transceiver
	for _, t := range m.transceivers.All() {
		if t.owner == p && t.receiver == r {
			transceiver = t
			break
		}
	}
	m.opMu.Unlock()

	log.WithFields(log.Fields{
		"valueTag": p.ValueTag(),
		"track":    remote.ID(),
		"kind":     remote.Kind().String(),
		"stream":   streamID,
	}).Infoln("Remote track started")

	if transceiver != nil {
		m.emit(EventStartTransceiver, p.ValueTag(), map[string]interface{}{
			"transceiver": transceiver.JSON(),
		})
	}
	m.emit(EventAddedReceiver, p.ValueTag(), map[string]interface{}{
		"receiver": r.JSON(),
	})

	go m.readRemote(remote)
}

// remoteStream returns the stream registered for streamID, creating it.
// Callers hold opMu.
func (m *Module) remoteStream(p *PeerConnection, streamID string) *Stream {
	if tag, ok := m.values.TagForString(streamID); ok {
		if s, ok := m.streams.ByTag(tag); ok {
			return s
		}
	}
	s := &Stream{id: streamID, owner: p}
	tag := valuetag.NewTag()
	register(m, m.streams, streamID, tag, s, nil)
	m.values.SetTagForString(tag, streamID)
	return s
}

// readRemote consumes RTP from a remote track until it ends, recording
// packet sizes and logging sequence gaps.
func (m *Module) readRemote(remote *webrtc.TrackRemote) {
	kind := remote.Kind().String()
	buf := make([]byte, 1500)
	var (
		pkt     rtp.Packet
		lastSeq uint16
		started bool
	)
	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			log.WithField("track", remote.ID()).Debugf("Remote track ended: %v", err)
			return
		}
		m.metrics.Observe(metrics.RTPPacketSize, kind, float64(n))
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if started && pkt.SequenceNumber != lastSeq+1 {
			log.WithFields(log.Fields{
				"track":    remote.ID(),
				"expected": lastSeq + 1,
				"got":      pkt.SequenceNumber,
			}).Debugln("RTP sequence gap")
		}
		lastSeq = pkt.SequenceNumber
		started = true
	}
}

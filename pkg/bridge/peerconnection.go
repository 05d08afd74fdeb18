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
	"errors"

	"github.com/abrekhov/rtcbridge/pkg/convert"
	"github.com/abrekhov/rtcbridge/pkg/valuetag"
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

// PeerConnectionInit creates a peer connection under the tag chosen by the client.
func (m *Module) PeerConnectionInit(tag string, configuration, constraints interface{}) error {
	if tag == "" {
		return typeError(errors.New("valueTag is empty"))
	}
	if m.peerConnections.ContainsTag(tag) {
		return invalidState("peer connection %q already exists", tag)
	}
	cfg, err := convert.Configuration(configuration)
	if err != nil {
		return typeError(err)
	}
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = m.opts.ICEServers
	}
	c, err := convert.MediaConstraints(constraints)
	if err != nil {
		return typeError(err)
	}

	pc, err := m.api.NewPeerConnection(*cfg)
	if err != nil {
		return engineError(CodePeerConnection, err)
	}
	p := &PeerConnection{pc: pc, constraints: c}
	m.opMu.Lock()
	if m.peerConnections.ContainsTag(tag) {
		m.opMu.Unlock()
		if err := pc.Close(); err != nil {
			log.WithField("valueTag", tag).Warnf("Closing duplicate peer connection: %v", err)
		}
		return invalidState("peer connection %q already exists", tag)
	}
	register(m, m.peerConnections, tag, tag, p, pc)
	m.opMu.Unlock()
	m.observe(p)

	log.WithFields(log.Fields{
		"valueTag":   tag,
		"iceServers": len(cfg.ICEServers),
	}).Infoln("Peer connection created")
	return nil
}

// PeerConnectionSetConfiguration replaces the configuration.
func (m *Module) PeerConnectionSetConfiguration(tag string, configuration interface{}) error {
	p, err := m.peerConnection(tag)
	if err != nil {
		return err
	}
	cfg, err := convert.Configuration(configuration)
	if err != nil {
		return typeError(err)
	}
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = m.opts.ICEServers
	}
	if err := p.pc.SetConfiguration(*cfg); err != nil {
		return engineError(CodeSetConfiguration, err)
	}
	return nil
}

// PeerConnectionAddTrack sends a local track and returns the sender.
func (m *Module) PeerConnectionAddTrack(tag, trackTag string, streamIDs []string) (map[string]interface{}, error) {
	p, err := m.peerConnection(tag)
	if err != nil {
		return nil, err
	}
	track, ok := m.tracks.ByTag(trackTag)
	if !ok {
		return nil, notFound("track", trackTag)
	}
	streamID := ""
	if len(streamIDs) > 0 {
		streamID = streamIDs[0]
	}
	out, err := track.output(streamID)
	if err != nil {
		return nil, err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	rtpSender, err := p.pc.AddTrack(out)
	if err != nil {
		return nil, engineError(CodePeerConnection, err)
	}
	if len(streamIDs) == 0 {
		streamIDs = []string{out.StreamID()}
	}
	s := m.registerSender(rtpSender, p, track, streamIDs, nil)
	m.syncTransceivers(p)
	return s.JSON(), nil
}

func (m *Module) registerSender(rtpSender *webrtc.RTPSender, p *PeerConnection, track *Track, streamIDs []string, inits []convert.EncodingInit) *Sender {
	if tag, ok := m.values.TagForObject(rtpSender); ok {
		if s, ok := m.senders.ByTag(tag); ok {
			return s
		}
	}
	s := newSender(rtpSender, p, track, streamIDs, inits)
	register(m, m.senders, s.id, valuetag.NewTag(), s, rtpSender)
	go drainRTCP(rtpSender)
	return s
}

// drainRTCP reads incoming RTCP so interceptors such as NACK keep working.
func drainRTCP(s *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := s.Read(buf); err != nil {
			return
		}
	}
}

// PeerConnectionRemoveTrack stops sending through the tagged sender.
func (m *Module) PeerConnectionRemoveTrack(tag, senderTag string) error {
	p, err := m.peerConnection(tag)
	if err != nil {
		return err
	}
	s, ok := m.senders.ByTag(senderTag)
	if !ok || s.owner != p {
		return notFound("sender", senderTag)
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if err := p.pc.RemoveTrack(s.sender); err != nil {
		return engineError(CodeRemoveTrack, err)
	}
	unregister(m, m.senders, s, s.sender)
	for _, t := range m.transceivers.All() {
		t.mu.Lock()
		if t.sender == s {
			t.sender = nil
		}
		t.mu.Unlock()
	}
	return nil
}

// PeerConnectionAddTransceiver adds a transceiver for a local track, or
// for a media kind when trackTag is empty and init carries "kind".
func (m *Module) PeerConnectionAddTransceiver(tag, trackTag, kind string, init interface{}) (map[string]interface{}, error) {
	p, err := m.peerConnection(tag)
	if err != nil {
		return nil, err
	}
	ti, err := convert.TransceiverInitFrom(init)
	if err != nil {
		return nil, typeError(err)
	}

	var track *Track
	if trackTag != "" {
		var ok bool
		if track, ok = m.tracks.ByTag(trackTag); !ok {
			return nil, notFound("track", trackTag)
		}
		kind = track.kind.String()
	}
	codecType := webrtc.NewRTPCodecType(kind)
	if codecType == 0 {
		return nil, typeError(errors.New("transceiver requires a track or a media kind"))
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	var rtpTransceiver *webrtc.RTPTransceiver
	if track != nil {
		streamID := ""
		if len(ti.StreamIDs) > 0 {
			streamID = ti.StreamIDs[0]
		}
		out, err := track.output(streamID)
		if err != nil {
			return nil, err
		}
		// The engine only builds track transceivers that send. Other
		// directions are applied afterwards by suspending the sender.
		engineInit := ti.RTPTransceiverInit()
		if !convert.Sends(ti.Direction) {
			engineInit.Direction = webrtc.RTPTransceiverDirectionSendrecv
		}
		rtpTransceiver, err = p.pc.AddTransceiverFromTrack(out, engineInit)
		if err != nil {
			return nil, engineError(CodeAddTransceiver, err)
		}
		if len(ti.StreamIDs) == 0 {
			ti.StreamIDs = []string{out.StreamID()}
		}
	} else {
		rtpTransceiver, err = p.pc.AddTransceiverFromKind(codecType, ti.RTPTransceiverInit())
		if err != nil {
			return nil, engineError(CodeAddTransceiver, err)
		}
	}

	t := m.registerTransceiver(p, rtpTransceiver, track, ti.StreamIDs, ti.SendEncodings)
	t.mu.Lock()
	t.direction = ti.Direction
	t.mu.Unlock()
	if s := t.currentSender(); s != nil && !convert.Sends(ti.Direction) {
		if err := s.setDirectionOff(true); err != nil {
			return nil, engineError(CodeAddTransceiver, err)
		}
	}
	return t.JSON(), nil
}

// registerTransceiver tags an engine transceiver and its sender and receiver.
// Already registered transceivers are returned as is. Callers hold opMu.
func (m *Module) registerTransceiver(p *PeerConnection, rt *webrtc.RTPTransceiver, track *Track, streamIDs []string, inits []convert.EncodingInit) *Transceiver {
	if tag, ok := m.values.TagForObject(rt); ok {
		if t, ok := m.transceivers.ByTag(tag); ok {
			return t
		}
	}
	t := &Transceiver{
		id:        valuetag.NewTag(),
		t:         rt,
		owner:     p,
		direction: rt.Direction(),
	}
	if rs := rt.Sender(); rs != nil {
		t.sender = m.registerSender(rs, p, track, streamIDs, inits)
	}
	if rr := rt.Receiver(); rr != nil {
		t.receiver = m.registerReceiver(rr, p)
	}
	register(m, m.transceivers, t.id, valuetag.NewTag(), t, rt)
	return t
}

func (m *Module) registerReceiver(rr *webrtc.RTPReceiver, p *PeerConnection) *Receiver {
	if tag, ok := m.values.TagForObject(rr); ok {
		if r, ok := m.receivers.ByTag(tag); ok {
			return r
		}
	}
	r := newReceiver(rr, p)
	register(m, m.receivers, r.id, valuetag.NewTag(), r, rr)
	return r
}

// syncTransceivers registers engine transceivers the bridge has not seen,
// such as those created by a remote offer. Callers hold opMu.
func (m *Module) syncTransceivers(p *PeerConnection) []*Transceiver {
	var added []*Transceiver
	for _, rt := range p.pc.GetTransceivers() {
		if _, ok := m.values.TagForObject(rt); ok {
			continue
		}
		var track *Track
		if rs := rt.Sender(); rs != nil {
			if tag, ok := m.values.TagForObject(rs); ok {
				if s, ok := m.senders.ByTag(tag); ok {
					track = s.track
				}
			}
		}
		added = append(added, m.registerTransceiver(p, rt, track, nil, nil))
	}
	return added
}

func offerOptions(c *convert.Constraints) *webrtc.OfferOptions {
	return &webrtc.OfferOptions{
		ICERestart: c.Bool("IceRestart") || c.Bool("iceRestart"),
		OfferAnswerOptions: webrtc.OfferAnswerOptions{
			VoiceActivityDetection: c.Bool("VoiceActivityDetection"),
		},
	}
}

// ensureReceiving adds recvonly transceivers requested by the legacy
// OfferToReceiveAudio and OfferToReceiveVideo constraints.
func (m *Module) ensureReceiving(p *PeerConnection, c *convert.Constraints) error {
	wants := map[webrtc.RTPCodecType]bool{
		webrtc.RTPCodecTypeAudio: c.Bool("OfferToReceiveAudio"),
		webrtc.RTPCodecTypeVideo: c.Bool("OfferToReceiveVideo"),
	}
	for _, rt := range p.pc.GetTransceivers() {
		d := rt.Direction()
		if d == webrtc.RTPTransceiverDirectionSendrecv || d == webrtc.RTPTransceiverDirectionRecvonly {
			wants[rt.Kind()] = false
		}
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if !wants[kind] {
			continue
		}
		if _, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
			return engineError(CodeCreateOffer, err)
		}
	}
	m.syncTransceivers(p)
	return nil
}

// PeerConnectionCreateOffer creates an offer.
func (m *Module) PeerConnectionCreateOffer(tag string, constraints interface{}) (map[string]interface{}, error) {
	p, err := m.peerConnection(tag)
	if err != nil {
		return nil, err
	}
	c, err := convert.MediaConstraints(constraints)
	if err != nil {
		return nil, typeError(err)
	}
	m.opMu.Lock()
	err = m.ensureReceiving(p, c)
	m.opMu.Unlock()
	if err != nil {
		return nil, err
	}
	offer, err := p.pc.CreateOffer(offerOptions(c))
	if err != nil {
		return nil, engineError(CodeCreateOffer, err)
	}
	return convert.SessionDescriptionJSON(&offer), nil
}

// PeerConnectionCreateAnswer creates an answer to the remote offer.
func (m *Module) PeerConnectionCreateAnswer(tag string, constraints interface{}) (map[string]interface{}, error) {
	p, err := m.peerConnection(tag)
	if err != nil {
		return nil, err
	}
	c, err := convert.MediaConstraints(constraints)
	if err != nil {
		return nil, typeError(err)
	}
	answer, err := p.pc.CreateAnswer(&webrtc.AnswerOptions{
		OfferAnswerOptions: webrtc.OfferAnswerOptions{
			VoiceActivityDetection: c.Bool("VoiceActivityDetection"),
		},
	})
	if err != nil {
		return nil, engineError(CodeCreateAnswer, err)
	}
	return convert.SessionDescriptionJSON(&answer), nil
}

// PeerConnectionSetLocalDescription applies a local description.
func (m *Module) PeerConnectionSetLocalDescription(tag string, sdp interface{}) error {
	p, err := m.peerConnection(tag)
	if err != nil {
		return err
	}
	desc, err := convert.SessionDescription(sdp)
	if err != nil {
		return typeError(err)
	}
	if err := p.pc.SetLocalDescription(*desc); err != nil {
		return engineError(CodeSetLocal, err)
	}
	m.opMu.Lock()
	m.syncTransceivers(p)
	m.opMu.Unlock()
	return nil
}

// PeerConnectionSetRemoteDescription applies a remote description and
// registers the transceivers it created.
func (m *Module) PeerConnectionSetRemoteDescription(tag string, sdp interface{}) error {
	p, err := m.peerConnection(tag)
	if err != nil {
		return err
	}
	desc, err := convert.SessionDescription(sdp)
	if err != nil {
		return typeError(err)
	}
	if err := p.pc.SetRemoteDescription(*desc); err != nil {
		return engineError(CodeSetRemote, err)
	}
	m.opMu.Lock()
	added := m.syncTransceivers(p)
	m.opMu.Unlock()
	log.WithFields(log.Fields{
		"valueTag":     tag,
		"type":         desc.Type.String(),
		"transceivers": len(added),
	}).Debugln("Remote description set")
	return nil
}

// PeerConnectionAddICECandidate adds a remote candidate.
func (m *Module) PeerConnectionAddICECandidate(tag string, candidate interface{}) error {
	p, err := m.peerConnection(tag)
	if err != nil {
		return err
	}
	c, err := convert.ICECandidate(candidate)
	if err != nil {
		return typeError(err)
	}
	if err := p.pc.AddICECandidate(*c); err != nil {
		return engineError(CodeAddICECandidate, err)
	}
	return nil
}

// PeerConnectionClose closes and releases the peer connection. Closing an
// unknown or already closed peer connection is a no-op.
func (m *Module) PeerConnectionClose(tag string) {
	p, ok := m.peerConnections.ByTag(tag)
	if !ok {
		return
	}
	m.releasePeerConnection(p)
}

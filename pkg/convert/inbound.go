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

package convert

import (
	"encoding/base64"
	"fmt"

	"github.com/pion/webrtc/v3"
)

type iceCandidatePayload struct {
	Candidate        *string `json:"candidate"`
	SDP              *string `json:"sdp"`
	SDPMid           *string `json:"sdpMid"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex"`
	UsernameFragment *string `json:"usernameFragment"`
}

// ICECandidate converts {candidate|sdp, sdpMid, sdpMLineIndex}.
func ICECandidate(v interface{}) (*webrtc.ICECandidateInit, error) {
	m, err := object("ice candidate", v)
	if err != nil {
		return nil, err
	}
	var p iceCandidatePayload
	if err := decode("ice candidate", m, &p); err != nil {
		return nil, err
	}
	line := p.Candidate
	if line == nil {
		line = p.SDP
	}
	if line == nil {
		return nil, malformed("ice candidate", "candidate is missing")
	}
	return &webrtc.ICECandidateInit{
		Candidate:        *line,
		SDPMid:           p.SDPMid,
		SDPMLineIndex:    p.SDPMLineIndex,
		UsernameFragment: p.UsernameFragment,
	}, nil
}

type sessionDescriptionPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// SDPType parses offer, pranswer, answer or rollback.
func SDPType(s string) (webrtc.SDPType, bool) {
	switch s {
	case "offer":
		return webrtc.SDPTypeOffer, true
	case "pranswer":
		return webrtc.SDPTypePranswer, true
	case "answer":
		return webrtc.SDPTypeAnswer, true
	case "rollback":
		return webrtc.SDPTypeRollback, true
	}
	return webrtc.SDPType(0), false
}

// SessionDescription converts {type, sdp}. Only rollback may omit sdp.
func SessionDescription(v interface{}) (*webrtc.SessionDescription, error) {
	m, err := object("session description", v)
	if err != nil {
		return nil, err
	}
	var p sessionDescriptionPayload
	if err := decode("session description", m, &p); err != nil {
		return nil, err
	}
	typ, ok := SDPType(p.Type)
	if !ok {
		return nil, malformed("session description", fmt.Sprintf("unknown type %q", p.Type))
	}
	if p.SDP == "" && typ != webrtc.SDPTypeRollback {
		return nil, malformed("session description", "sdp is missing")
	}
	return &webrtc.SessionDescription{Type: typ, SDP: p.SDP}, nil
}

type iceServerPayload struct {
	URLs       interface{} `json:"urls"`
	Username   string      `json:"username"`
	Credential string      `json:"credential"`
}

// ICEServer converts {urls, username?, credential?}. urls may be a string or a list.
func ICEServer(v interface{}) (*webrtc.ICEServer, error) {
	m, err := object("ice server", v)
	if err != nil {
		return nil, err
	}
	var p iceServerPayload
	if err := decode("ice server", m, &p); err != nil {
		return nil, err
	}
	urls, err := stringList("ice server urls", p.URLs)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, malformed("ice server", "urls is empty")
	}
	server := &webrtc.ICEServer{URLs: urls, Username: p.Username}
	if p.Credential != "" {
		server.Credential = p.Credential
		server.CredentialType = webrtc.ICECredentialTypePassword
	}
	return server, nil
}

type configurationPayload struct {
	ICEServers           []interface{} `json:"iceServers"`
	ICETransportPolicy   string        `json:"iceTransportPolicy"`
	SDPSemantics         string        `json:"sdpSemantics"`
	ICECandidatePoolSize uint8         `json:"iceCandidatePoolSize"`
}

// Configuration converts an RTCConfiguration. Bundle and RTCP mux policies
// are fixed to max-bundle and require.
func Configuration(v interface{}) (*webrtc.Configuration, error) {
	cfg := &webrtc.Configuration{
		BundlePolicy:  webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy: webrtc.RTCPMuxPolicyRequire,
	}
	if v == nil {
		return cfg, nil
	}
	m, err := object("configuration", v)
	if err != nil {
		return nil, err
	}
	var p configurationPayload
	if err := decode("configuration", m, &p); err != nil {
		return nil, err
	}
	for _, raw := range p.ICEServers {
		server, err := ICEServer(raw)
		if err != nil {
			return nil, err
		}
		cfg.ICEServers = append(cfg.ICEServers, *server)
	}

	switch p.ICETransportPolicy {
	case "", "all", "nohost":
		cfg.ICETransportPolicy = webrtc.ICETransportPolicyAll
	case "relay", "none":
		cfg.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	default:
		return nil, malformed("configuration", fmt.Sprintf("unknown iceTransportPolicy %q", p.ICETransportPolicy))
	}

	switch p.SDPSemantics {
	case "", "default", "unified", "unified-plan":
		cfg.SDPSemantics = webrtc.SDPSemanticsUnifiedPlan
	case "planb", "plan-b":
		cfg.SDPSemantics = webrtc.SDPSemanticsPlanB
	case "unified-plan-with-fallback":
		cfg.SDPSemantics = webrtc.SDPSemanticsUnifiedPlanWithFallback
	default:
		return nil, malformed("configuration", fmt.Sprintf("unknown sdpSemantics %q", p.SDPSemantics))
	}
	cfg.ICECandidatePoolSize = p.ICECandidatePoolSize
	return cfg, nil
}

type dataChannelInitPayload struct {
	ID                *uint16 `json:"id"`
	Ordered           *bool   `json:"ordered"`
	MaxPacketLifeTime *uint16 `json:"maxPacketLifeTime"`
	MaxRetransmits    *uint16 `json:"maxRetransmits"`
	Protocol          *string `json:"protocol"`
	Negotiated        bool    `json:"negotiated"`
}

// DataChannelInit converts an RTCDataChannelInit. A negotiated channel must carry an id.
func DataChannelInit(v interface{}) (*webrtc.DataChannelInit, error) {
	if v == nil {
		return &webrtc.DataChannelInit{}, nil
	}
	m, err := object("data channel init", v)
	if err != nil {
		return nil, err
	}
	var p dataChannelInitPayload
	if err := decode("data channel init", m, &p); err != nil {
		return nil, err
	}
	if p.MaxPacketLifeTime != nil && p.MaxRetransmits != nil {
		return nil, malformed("data channel init", "maxPacketLifeTime and maxRetransmits are exclusive")
	}
	init := &webrtc.DataChannelInit{
		Ordered:           p.Ordered,
		MaxPacketLifeTime: p.MaxPacketLifeTime,
		MaxRetransmits:    p.MaxRetransmits,
		Protocol:          p.Protocol,
	}
	if p.Negotiated {
		if p.ID == nil {
			return nil, malformed("data channel init", "negotiated channel requires id")
		}
		negotiated, id := true, *p.ID
		init.Negotiated = &negotiated
		init.ID = &id
	}
	return init, nil
}

// Buffer is a data channel payload.
type Buffer struct {
	Data   []byte
	Binary bool
}

type bufferPayload struct {
	Data   *string `json:"data"`
	Binary *bool   `json:"binary"`
}

// DataBuffer converts {data, binary}. Binary data is base64 encoded.
func DataBuffer(v interface{}) (*Buffer, error) {
	m, err := object("data buffer", v)
	if err != nil {
		return nil, err
	}
	var p bufferPayload
	if err := decode("data buffer", m, &p); err != nil {
		return nil, err
	}
	if p.Data == nil || p.Binary == nil {
		return nil, malformed("data buffer", "data and binary are required")
	}
	if !*p.Binary {
		return &Buffer{Data: []byte(*p.Data)}, nil
	}
	data, err := base64.StdEncoding.DecodeString(*p.Data)
	if err != nil {
		return nil, malformed("data buffer", err.Error())
	}
	return &Buffer{Data: data, Binary: true}, nil
}

func stringList(what string, v interface{}) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []string:
		return t, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, malformed(what, fmt.Sprintf("expected string, got %T", e))
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, malformed(what, fmt.Sprintf("expected string list, got %T", v))
}

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
	"strings"

	"github.com/pion/webrtc/v3"
)

// PeerConnectionStateString maps the aggregate connection state.
func PeerConnectionStateString(s webrtc.PeerConnectionState) string {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return "new"
	case webrtc.PeerConnectionStateConnecting:
		return "connecting"
	case webrtc.PeerConnectionStateConnected:
		return "connected"
	case webrtc.PeerConnectionStateDisconnected:
		return "disconnected"
	case webrtc.PeerConnectionStateFailed:
		return "failed"
	case webrtc.PeerConnectionStateClosed:
		return "closed"
	}
	return "unknown"
}

// ICEConnectionStateString maps the ICE connection state.
func ICEConnectionStateString(s webrtc.ICEConnectionState) string {
	switch s {
	case webrtc.ICEConnectionStateNew:
		return "new"
	case webrtc.ICEConnectionStateChecking:
		return "checking"
	case webrtc.ICEConnectionStateConnected:
		return "connected"
	case webrtc.ICEConnectionStateCompleted:
		return "completed"
	case webrtc.ICEConnectionStateDisconnected:
		return "disconnected"
	case webrtc.ICEConnectionStateFailed:
		return "failed"
	case webrtc.ICEConnectionStateClosed:
		return "closed"
	}
	return "unknown"
}

// ICEGatheringStateString maps the gatherer state. A closed gatherer has
// nothing more to gather and reports complete.
func ICEGatheringStateString(s webrtc.ICEGathererState) string {
	switch s {
	case webrtc.ICEGathererStateNew:
		return "new"
	case webrtc.ICEGathererStateGathering:
		return "gathering"
	case webrtc.ICEGathererStateComplete, webrtc.ICEGathererStateClosed:
		return "complete"
	}
	return "unknown"
}

// SignalingStateString maps the signaling state.
func SignalingStateString(s webrtc.SignalingState) string {
	switch s {
	case webrtc.SignalingStateStable:
		return "stable"
	case webrtc.SignalingStateHaveLocalOffer:
		return "have-local-offer"
	case webrtc.SignalingStateHaveRemoteOffer:
		return "have-remote-offer"
	case webrtc.SignalingStateHaveLocalPranswer:
		return "have-local-pranswer"
	case webrtc.SignalingStateHaveRemotePranswer:
		return "have-remote-pranswer"
	case webrtc.SignalingStateClosed:
		return "closed"
	}
	return "unknown"
}

// DataChannelStateString maps the data channel ready state.
func DataChannelStateString(s webrtc.DataChannelState) string {
	switch s {
	case webrtc.DataChannelStateConnecting:
		return "connecting"
	case webrtc.DataChannelStateOpen:
		return "open"
	case webrtc.DataChannelStateClosing:
		return "closing"
	case webrtc.DataChannelStateClosed:
		return "closed"
	}
	return "unknown"
}

// TrackStateString maps a track ready state.
func TrackStateString(ended bool) string {
	if ended {
		return "ended"
	}
	return "live"
}

// ICECandidateJSON projects a candidate. A nil candidate is null.
func ICECandidateJSON(c *webrtc.ICECandidateInit) map[string]interface{} {
	if c == nil {
		return nil
	}
	out := map[string]interface{}{
		"candidate":     c.Candidate,
		"sdpMid":        nil,
		"sdpMLineIndex": nil,
	}
	if c.SDPMid != nil {
		out["sdpMid"] = *c.SDPMid
	}
	if c.SDPMLineIndex != nil {
		out["sdpMLineIndex"] = int(*c.SDPMLineIndex)
	}
	return out
}

// SessionDescriptionJSON projects {type, sdp}.
func SessionDescriptionJSON(sd *webrtc.SessionDescription) map[string]interface{} {
	if sd == nil {
		return nil
	}
	return map[string]interface{}{
		"type": sd.Type.String(),
		"sdp":  sd.SDP,
	}
}

// DataBufferJSON projects a data channel message. Binary data is base64 encoded.
func DataBufferJSON(data []byte, binary bool) map[string]interface{} {
	if binary {
		return map[string]interface{}{
			"data":   base64.StdEncoding.EncodeToString(data),
			"binary": true,
		}
	}
	return map[string]interface{}{
		"data":   string(data),
		"binary": false,
	}
}

// Encoding is the bridge-visible state of one RTP encoding.
type Encoding struct {
	RID                   string
	SSRC                  uint32
	Active                bool
	MaxBitrate            *int
	MinBitrate            *int
	ScaleResolutionDownBy *float64
}

// JSON projects the encoding.
func (e Encoding) JSON() map[string]interface{} {
	out := map[string]interface{}{
		"active": e.Active,
	}
	if e.RID != "" {
		out["rid"] = e.RID
	}
	if e.SSRC != 0 {
		out["ssrc"] = e.SSRC
	}
	if e.MaxBitrate != nil {
		out["maxBitrate"] = *e.MaxBitrate
	}
	if e.MinBitrate != nil {
		out["minBitrate"] = *e.MinBitrate
	}
	if e.ScaleResolutionDownBy != nil {
		out["scaleResolutionDownBy"] = *e.ScaleResolutionDownBy
	}
	return out
}

// RTPParametersJSON projects sender or receiver parameters.
func RTPParametersJSON(transactionID, cname string, p webrtc.RTPParameters, encodings []Encoding) map[string]interface{} {
	extensions := make([]interface{}, 0, len(p.HeaderExtensions))
	for _, ext := range p.HeaderExtensions {
		extensions = append(extensions, map[string]interface{}{
			"uri":       ext.URI,
			"id":        ext.ID,
			"encrypted": false,
		})
	}
	codecs := make([]interface{}, 0, len(p.Codecs))
	for _, c := range p.Codecs {
		codec := map[string]interface{}{
			"payloadType": int(c.PayloadType),
			"mimeType":    c.MimeType,
			"clockRate":   int(c.ClockRate),
			"parameters":  FmtpParameters(c.SDPFmtpLine),
		}
		if c.Channels > 0 {
			codec["channels"] = int(c.Channels)
		}
		codecs = append(codecs, codec)
	}
	encs := make([]interface{}, 0, len(encodings))
	for _, e := range encodings {
		encs = append(encs, e.JSON())
	}
	return map[string]interface{}{
		"transactionId": transactionID,
		"rtcp": map[string]interface{}{
			"cname":       cname,
			"reducedSize": false,
		},
		"headerExtensions": extensions,
		"encodings":        encs,
		"codecs":           codecs,
	}
}

// FmtpParameters splits an fmtp line such as "minptime=10;useinbandfec=1".
func FmtpParameters(line string) map[string]interface{} {
	out := make(map[string]interface{})
	for _, part := range strings.Split(line, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, found := strings.Cut(part, "=")
		if !found {
			out[k] = ""
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

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
	"fmt"

	"github.com/pion/webrtc/v3"
)

// TransceiverDirection parses sendrecv, sendonly, recvonly or inactive.
func TransceiverDirection(s string) (webrtc.RTPTransceiverDirection, error) {
	switch s {
	case "sendrecv":
		return webrtc.RTPTransceiverDirectionSendrecv, nil
	case "sendonly":
		return webrtc.RTPTransceiverDirectionSendonly, nil
	case "recvonly":
		return webrtc.RTPTransceiverDirectionRecvonly, nil
	case "inactive":
		return webrtc.RTPTransceiverDirectionInactive, nil
	}
	return webrtc.RTPTransceiverDirection(0), malformed("transceiver direction", fmt.Sprintf("unknown direction %q", s))
}

// DirectionString is the inverse of TransceiverDirection.
func DirectionString(d webrtc.RTPTransceiverDirection) string {
	switch d {
	case webrtc.RTPTransceiverDirectionSendrecv:
		return "sendrecv"
	case webrtc.RTPTransceiverDirectionSendonly:
		return "sendonly"
	case webrtc.RTPTransceiverDirectionRecvonly:
		return "recvonly"
	case webrtc.RTPTransceiverDirectionInactive:
		return "inactive"
	}
	return "unknown"
}

// Sends reports whether d includes sending.
func Sends(d webrtc.RTPTransceiverDirection) bool {
	return d == webrtc.RTPTransceiverDirectionSendrecv || d == webrtc.RTPTransceiverDirectionSendonly
}

// EncodingInit is one requested send encoding.
type EncodingInit struct {
	RID                   string   `json:"rid"`
	Active                *bool    `json:"active"`
	ScaleResolutionDownBy *float64 `json:"scaleResolutionDownBy"`
	MaxBitrate            *int     `json:"maxBitrate"`
}

// TransceiverInit is an RTCRtpTransceiverInit.
type TransceiverInit struct {
	Direction     webrtc.RTPTransceiverDirection
	StreamIDs     []string
	SendEncodings []EncodingInit
}

// RTPTransceiverInit returns the engine form of the init.
func (t *TransceiverInit) RTPTransceiverInit() webrtc.RTPTransceiverInit {
	return webrtc.RTPTransceiverInit{Direction: t.Direction}
}

type transceiverInitPayload struct {
	Direction     string        `json:"direction"`
	StreamIDs     interface{}   `json:"streamIds"`
	SendEncodings []interface{} `json:"sendEncodings"`
}

// TransceiverInitFrom converts {direction, streamIds, sendEncodings}.
// Direction defaults to sendrecv.
func TransceiverInitFrom(v interface{}) (*TransceiverInit, error) {
	init := &TransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv}
	if v == nil {
		return init, nil
	}
	m, err := object("transceiver init", v)
	if err != nil {
		return nil, err
	}
	var p transceiverInitPayload
	if err := decode("transceiver init", m, &p); err != nil {
		return nil, err
	}
	if p.Direction != "" {
		if init.Direction, err = TransceiverDirection(p.Direction); err != nil {
			return nil, err
		}
	}
	if init.StreamIDs, err = stringList("transceiver init streamIds", p.StreamIDs); err != nil {
		return nil, err
	}
	for _, raw := range p.SendEncodings {
		em, err := object("send encoding", raw)
		if err != nil {
			return nil, err
		}
		var e EncodingInit
		if err := decode("send encoding", em, &e); err != nil {
			return nil, err
		}
		init.SendEncodings = append(init.SendEncodings, e)
	}
	return init, nil
}

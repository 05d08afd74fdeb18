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
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// payload decodes JSON the way the bridge server does.
func payload(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestICECandidate(t *testing.T) {
	t.Run("candidate with mid and index", func(t *testing.T) {
		c, err := ICECandidate(payload(t, `{"candidate":"candidate:1 1 udp 1 127.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}`))
		require.NoError(t, err)
		assert.Equal(t, "candidate:1 1 udp 1 127.0.0.1 5000 typ host", c.Candidate)
		require.NotNil(t, c.SDPMid)
		assert.Equal(t, "0", *c.SDPMid)
		require.NotNil(t, c.SDPMLineIndex)
		assert.Equal(t, uint16(0), *c.SDPMLineIndex)
	})

	t.Run("sdp key is accepted", func(t *testing.T) {
		c, err := ICECandidate(payload(t, `{"sdp":"candidate:2","sdpMid":"audio"}`))
		require.NoError(t, err)
		assert.Equal(t, "candidate:2", c.Candidate)
		assert.Nil(t, c.SDPMLineIndex)
	})

	t.Run("round trip", func(t *testing.T) {
		in := payload(t, `{"candidate":"candidate:3","sdpMid":"1","sdpMLineIndex":1}`)
		c, err := ICECandidate(in)
		require.NoError(t, err)
		out, err := json.Marshal(ICECandidateJSON(c))
		require.NoError(t, err)
		assert.JSONEq(t, `{"candidate":"candidate:3","sdpMid":"1","sdpMLineIndex":1}`, string(out))
	})

	malformedInputs := map[string]interface{}{
		"null":              nil,
		"string":            "candidate:1",
		"missing candidate": payload(t, `{"sdpMid":"0"}`),
		"wrong type":        payload(t, `{"candidate":42}`),
		"negative index":    payload(t, `{"candidate":"c","sdpMLineIndex":-1}`),
	}
	for name, in := range malformedInputs {
		t.Run("malformed "+name, func(t *testing.T) {
			c, err := ICECandidate(in)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, c)
		})
	}
}

func TestSessionDescription(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    webrtc.SDPType
		wantErr bool
	}{
		{"offer", `{"type":"offer","sdp":"v=0"}`, webrtc.SDPTypeOffer, false},
		{"answer", `{"type":"answer","sdp":"v=0"}`, webrtc.SDPTypeAnswer, false},
		{"pranswer", `{"type":"pranswer","sdp":"v=0"}`, webrtc.SDPTypePranswer, false},
		{"rollback without sdp", `{"type":"rollback"}`, webrtc.SDPTypeRollback, false},
		{"unknown type", `{"type":"bogus","sdp":"v=0"}`, 0, true},
		{"missing sdp", `{"type":"offer"}`, 0, true},
		{"not an object", `[1,2]`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sd, err := SessionDescription(payload(t, tt.in))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				assert.Nil(t, sd)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sd.Type)
			assert.Equal(t, tt.want.String(), SessionDescriptionJSON(sd)["type"])
		})
	}
}

func TestConfiguration(t *testing.T) {
	t.Run("null gives defaults", func(t *testing.T) {
		cfg, err := Configuration(nil)
		require.NoError(t, err)
		assert.Equal(t, webrtc.BundlePolicyMaxBundle, cfg.BundlePolicy)
		assert.Equal(t, webrtc.RTCPMuxPolicyRequire, cfg.RTCPMuxPolicy)
		assert.Empty(t, cfg.ICEServers)
	})

	t.Run("servers and policies", func(t *testing.T) {
		cfg, err := Configuration(payload(t, `{
			"iceServers":[
				{"urls":["stun:stun.l.google.com:19302"]},
				{"urls":"turn:turn.example.org","username":"u","credential":"p"}
			],
			"iceTransportPolicy":"relay",
			"sdpSemantics":"unified"
		}`))
		require.NoError(t, err)
		require.Len(t, cfg.ICEServers, 2)
		assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)
		assert.Equal(t, []string{"turn:turn.example.org"}, cfg.ICEServers[1].URLs)
		assert.Equal(t, "u", cfg.ICEServers[1].Username)
		assert.Equal(t, "p", cfg.ICEServers[1].Credential)
		assert.Equal(t, webrtc.ICETransportPolicyRelay, cfg.ICETransportPolicy)
		assert.Equal(t, webrtc.SDPSemanticsUnifiedPlan, cfg.SDPSemantics)
	})

	t.Run("plan b", func(t *testing.T) {
		cfg, err := Configuration(payload(t, `{"sdpSemantics":"planb"}`))
		require.NoError(t, err)
		assert.Equal(t, webrtc.SDPSemanticsPlanB, cfg.SDPSemantics)
	})

	for name, in := range map[string]string{
		"empty urls":     `{"iceServers":[{"urls":[]}]}`,
		"numeric urls":   `{"iceServers":[{"urls":[1]}]}`,
		"unknown policy": `{"iceTransportPolicy":"sometimes"}`,
		"bad semantics":  `{"sdpSemantics":"plan-c"}`,
	} {
		t.Run("malformed "+name, func(t *testing.T) {
			cfg, err := Configuration(payload(t, in))
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, cfg)
		})
	}
}

func TestMediaConstraints(t *testing.T) {
	t.Run("mandatory and optional", func(t *testing.T) {
		c, err := MediaConstraints(payload(t, `{
			"mandatory":{"OfferToReceiveAudio":true,"maxWidth":640,"extra":null},
			"optional":[{"DtlsSrtpKeyAgreement":"true"},{"nested":{"a":1}}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, []KeyValue{
			{"OfferToReceiveAudio", "true"},
			{"extra", "null"},
			{"maxWidth", "640"},
		}, c.Mandatory)
		assert.Equal(t, []KeyValue{
			{"DtlsSrtpKeyAgreement", "true"},
			{"nested", `{"a":1}`},
		}, c.Optional)
		assert.True(t, c.Bool("OfferToReceiveAudio"))
		assert.False(t, c.Bool("OfferToReceiveVideo"))
	})

	t.Run("misspelt mandatory", func(t *testing.T) {
		c, err := MediaConstraints(payload(t, `{"mandotory":{"IceRestart":"true"}}`))
		require.NoError(t, err)
		assert.True(t, c.Bool("IceRestart"))
	})

	t.Run("null is empty", func(t *testing.T) {
		c, err := MediaConstraints(nil)
		require.NoError(t, err)
		assert.Empty(t, c.Mandatory)
		assert.Empty(t, c.Optional)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := MediaConstraints(payload(t, `{"mandatory":[1]}`))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestMediaStreamConstraints(t *testing.T) {
	t.Run("booleans", func(t *testing.T) {
		sc, err := MediaStreamConstraints(payload(t, `{"video":true,"audio":false}`))
		require.NoError(t, err)
		require.NotNil(t, sc.Video)
		assert.Equal(t, DefaultVideoConstraints(), *sc.Video)
		assert.Nil(t, sc.Audio)
	})

	t.Run("video object", func(t *testing.T) {
		sc, err := MediaStreamConstraints(payload(t, `{"video":{"facingMode":"environment","width":640,"height":480,"frameRate":15},"audio":{}}`))
		require.NoError(t, err)
		require.NotNil(t, sc.Video)
		assert.Equal(t, FacingEnvironment, sc.Video.FacingMode)
		assert.Equal(t, 640, sc.Video.Width)
		assert.Equal(t, 480, sc.Video.Height)
		assert.Equal(t, 15, sc.Video.FrameRate)
		assert.InDelta(t, 640.0/480.0, sc.Video.AspectRatio, 1e-9)
		assert.NotNil(t, sc.Audio)
	})

	t.Run("explicit aspect ratio wins", func(t *testing.T) {
		sc, err := MediaStreamConstraints(payload(t, `{"video":{"width":640,"height":480,"aspectRatio":1.5}}`))
		require.NoError(t, err)
		assert.InDelta(t, 1.5, sc.Video.AspectRatio, 1e-9)
	})

	for name, in := range map[string]string{
		"facing":     `{"video":{"facingMode":"sideways"}}`,
		"video type": `{"video":"yes"}`,
		"audio type": `{"audio":1}`,
		"negative":   `{"video":{"width":-1}}`,
	} {
		t.Run("malformed "+name, func(t *testing.T) {
			sc, err := MediaStreamConstraints(payload(t, in))
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, sc)
		})
	}
}

func TestDataChannelInit(t *testing.T) {
	t.Run("reliability options", func(t *testing.T) {
		init, err := DataChannelInit(payload(t, `{"ordered":false,"maxRetransmits":3,"protocol":"chat"}`))
		require.NoError(t, err)
		require.NotNil(t, init.Ordered)
		assert.False(t, *init.Ordered)
		require.NotNil(t, init.MaxRetransmits)
		assert.Equal(t, uint16(3), *init.MaxRetransmits)
		assert.Nil(t, init.MaxPacketLifeTime)
		assert.Equal(t, "chat", *init.Protocol)
		assert.Nil(t, init.Negotiated)
	})

	t.Run("negotiated with id", func(t *testing.T) {
		init, err := DataChannelInit(payload(t, `{"negotiated":true,"id":7}`))
		require.NoError(t, err)
		require.NotNil(t, init.Negotiated)
		assert.True(t, *init.Negotiated)
		require.NotNil(t, init.ID)
		assert.Equal(t, uint16(7), *init.ID)
	})

	t.Run("negotiated without id", func(t *testing.T) {
		_, err := DataChannelInit(payload(t, `{"negotiated":true}`))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("exclusive reliability", func(t *testing.T) {
		_, err := DataChannelInit(payload(t, `{"maxRetransmits":1,"maxPacketLifeTime":100}`))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestIntegerRanges(t *testing.T) {
	candidate := `"candidate":"candidate:1 1 udp 1 127.0.0.1 5000 typ host"`
	tests := []struct {
		name    string
		convert func(interface{}) error
		input   string
	}{
		{"sdpMLineIndex overflow", iceCandidate, `{` + candidate + `,"sdpMLineIndex":65537}`},
		{"sdpMLineIndex negative", iceCandidate, `{` + candidate + `,"sdpMLineIndex":-1}`},
		{"id overflow", dataChannelInit, `{"negotiated":true,"id":65536}`},
		{"id fraction", dataChannelInit, `{"negotiated":true,"id":1.5}`},
		{"maxRetransmits fraction", dataChannelInit, `{"maxRetransmits":1.9}`},
		{"maxPacketLifeTime overflow", dataChannelInit, `{"maxPacketLifeTime":70000}`},
		{"iceCandidatePoolSize overflow", configuration, `{"iceCandidatePoolSize":300}`},
		{"maxBitrate fraction", transceiverInit, `{"sendEncodings":[{"rid":"a","maxBitrate":0.5}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.convert(payload(t, tt.input)), ErrMalformed)
		})
	}

	t.Run("bounds are accepted", func(t *testing.T) {
		init, err := DataChannelInit(payload(t, `{"negotiated":true,"id":65535,"maxPacketLifeTime":0}`))
		require.NoError(t, err)
		assert.Equal(t, uint16(65535), *init.ID)
		cfg, err := Configuration(payload(t, `{"iceCandidatePoolSize":255}`))
		require.NoError(t, err)
		assert.Equal(t, uint8(255), cfg.ICECandidatePoolSize)
	})
}

func iceCandidate(v interface{}) error {
	_, err := ICECandidate(v)
	return err
}

func dataChannelInit(v interface{}) error {
	_, err := DataChannelInit(v)
	return err
}

func configuration(v interface{}) error {
	_, err := Configuration(v)
	return err
}

func transceiverInit(v interface{}) error {
	_, err := TransceiverInitFrom(v)
	return err
}

func TestDataBuffer(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		b, err := DataBuffer(payload(t, `{"data":"hello","binary":false}`))
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), b.Data)
		assert.False(t, b.Binary)
		assert.Equal(t, map[string]interface{}{"data": "hello", "binary": false}, DataBufferJSON(b.Data, b.Binary))
	})

	t.Run("binary", func(t *testing.T) {
		b, err := DataBuffer(payload(t, `{"data":"AAEC","binary":true}`))
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 1, 2}, b.Data)
		assert.Equal(t, "AAEC", DataBufferJSON(b.Data, true)["data"])
	})

	for name, in := range map[string]string{
		"missing binary": `{"data":"x"}`,
		"missing data":   `{"binary":true}`,
		"bad base64":     `{"data":"***","binary":true}`,
	} {
		t.Run("malformed "+name, func(t *testing.T) {
			b, err := DataBuffer(payload(t, in))
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, b)
		})
	}
}

func TestTransceiverInit(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		init, err := TransceiverInitFrom(nil)
		require.NoError(t, err)
		assert.Equal(t, webrtc.RTPTransceiverDirectionSendrecv, init.Direction)
	})

	t.Run("full", func(t *testing.T) {
		init, err := TransceiverInitFrom(payload(t, `{
			"direction":"sendonly",
			"streamIds":["s1","s2"],
			"sendEncodings":[{"rid":"h","active":true,"maxBitrate":900000},{"rid":"l","scaleResolutionDownBy":2}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, webrtc.RTPTransceiverDirectionSendonly, init.Direction)
		assert.Equal(t, []string{"s1", "s2"}, init.StreamIDs)
		require.Len(t, init.SendEncodings, 2)
		assert.Equal(t, "h", init.SendEncodings[0].RID)
		assert.Equal(t, 900000, *init.SendEncodings[0].MaxBitrate)
		assert.InDelta(t, 2.0, *init.SendEncodings[1].ScaleResolutionDownBy, 1e-9)
		assert.Equal(t, webrtc.RTPTransceiverDirectionSendonly, init.RTPTransceiverInit().Direction)
	})

	t.Run("bad direction", func(t *testing.T) {
		_, err := TransceiverInitFrom(payload(t, `{"direction":"sideways"}`))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestDirections(t *testing.T) {
	for _, s := range []string{"sendrecv", "sendonly", "recvonly", "inactive"} {
		t.Run(s, func(t *testing.T) {
			d, err := TransceiverDirection(s)
			require.NoError(t, err)
			assert.Equal(t, s, DirectionString(d))
		})
	}
	assert.True(t, Sends(webrtc.RTPTransceiverDirectionSendonly))
	assert.False(t, Sends(webrtc.RTPTransceiverDirectionRecvonly))
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "connected", PeerConnectionStateString(webrtc.PeerConnectionStateConnected))
	assert.Equal(t, "checking", ICEConnectionStateString(webrtc.ICEConnectionStateChecking))
	assert.Equal(t, "complete", ICEGatheringStateString(webrtc.ICEGathererStateClosed))
	assert.Equal(t, "have-local-offer", SignalingStateString(webrtc.SignalingStateHaveLocalOffer))
	assert.Equal(t, "open", DataChannelStateString(webrtc.DataChannelStateOpen))
	assert.Equal(t, "ended", TrackStateString(true))
	assert.Equal(t, "live", TrackStateString(false))
}

func TestRTPParametersJSON(t *testing.T) {
	params := webrtc.RTPParameters{
		HeaderExtensions: []webrtc.RTPHeaderExtensionParameter{{URI: "urn:ietf:params:rtp-hdrext:sdes:mid", ID: 1}},
		Codecs: []webrtc.RTPCodecParameters{{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: 111,
		}},
	}
	max := 500000
	out := RTPParametersJSON("tx", "cname", params, []Encoding{{SSRC: 1234, Active: true, MaxBitrate: &max}})

	assert.Equal(t, "tx", out["transactionId"])
	assert.Equal(t, map[string]interface{}{"cname": "cname", "reducedSize": false}, out["rtcp"])

	codecs := out["codecs"].([]interface{})
	require.Len(t, codecs, 1)
	codec := codecs[0].(map[string]interface{})
	assert.Equal(t, 111, codec["payloadType"])
	assert.Equal(t, 2, codec["channels"])
	assert.Equal(t, map[string]interface{}{"minptime": "10", "useinbandfec": "1"}, codec["parameters"])

	encs := out["encodings"].([]interface{})
	require.Len(t, encs, 1)
	assert.Equal(t, map[string]interface{}{"active": true, "ssrc": uint32(1234), "maxBitrate": 500000}, encs[0])

	exts := out["headerExtensions"].([]interface{})
	require.Len(t, exts, 1)
	assert.Equal(t, 1, exts[0].(map[string]interface{})["id"])
}

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
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/abrekhov/rtcbridge/pkg/convert"
	"github.com/abrekhov/rtcbridge/pkg/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

type handler func(m *Module, a args) (interface{}, error)

var methods = map[string]handler{
	"finishLoading": func(m *Module, _ args) (interface{}, error) {
		m.FinishLoading()
		return nil, nil
	},
	"enableMetrics": func(m *Module, _ args) (interface{}, error) {
		m.metrics.Enable()
		return nil, nil
	},
	"getAndResetMetrics": func(m *Module, _ args) (interface{}, error) {
		samples, err := m.metrics.GetAndReset()
		if err != nil {
			return nil, &Error{Code: CodeMetrics, Message: "collect metrics", Err: err}
		}
		return samples, nil
	},
	"getAudioPort": func(m *Module, _ args) (interface{}, error) {
		return m.AudioPort(), nil
	},
	"setAudioPort": func(m *Module, a args) (interface{}, error) {
		m.SetAudioPort(a.optString("port"))
		return nil, nil
	},
	"getUserMedia": func(m *Module, a args) (interface{}, error) {
		return m.GetUserMedia(a["constraints"])
	},
	"stopUserMedia": func(m *Module, _ args) (interface{}, error) {
		m.StopUserMedia()
		return nil, nil
	},
	"trackSetEnabled": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		enabled, err := a.boolean("enabled")
		if err != nil {
			return nil, err
		}
		return nil, m.TrackSetEnabled(tag, enabled)
	},
	"trackSetAspectRatio": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		ratio, err := a.number("aspectRatio")
		if err != nil {
			return nil, err
		}
		return nil, m.TrackSetAspectRatio(tag, ratio)
	},
	"peerConnectionInit": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return nil, m.PeerConnectionInit(tag, a["configuration"], a["constraints"])
	},
	"peerConnectionSetConfiguration": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return nil, m.PeerConnectionSetConfiguration(tag, a["configuration"])
	},
	"peerConnectionAddTrack": func(m *Module, a args) (interface{}, error) {
		tag, trackTag, err := a.twoStrings("valueTag", "trackValueTag")
		if err != nil {
			return nil, err
		}
		streamIDs, err := a.strList("streamIds")
		if err != nil {
			return nil, err
		}
		return m.PeerConnectionAddTrack(tag, trackTag, streamIDs)
	},
	"peerConnectionRemoveTrack": func(m *Module, a args) (interface{}, error) {
		tag, senderTag, err := a.twoStrings("valueTag", "senderValueTag")
		if err != nil {
			return nil, err
		}
		return nil, m.PeerConnectionRemoveTrack(tag, senderTag)
	},
	"peerConnectionAddTransceiver": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		init := a["init"]
		kind := ""
		if im, ok := init.(map[string]interface{}); ok {
			kind = cast.ToString(im["kind"])
		}
		return m.PeerConnectionAddTransceiver(tag, a.optString("trackValueTag"), kind, init)
	},
	"peerConnectionCreateOffer": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return m.PeerConnectionCreateOffer(tag, a["constraints"])
	},
	"peerConnectionCreateAnswer": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return m.PeerConnectionCreateAnswer(tag, a["constraints"])
	},
	"peerConnectionSetLocalDescription": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return nil, m.PeerConnectionSetLocalDescription(tag, a["sdp"])
	},
	"peerConnectionSetRemoteDescription": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return nil, m.PeerConnectionSetRemoteDescription(tag, a["sdp"])
	},
	"peerConnectionAddICECandidate": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return nil, m.PeerConnectionAddICECandidate(tag, a["candidate"])
	},
	"peerConnectionCreateDataChannel": func(m *Module, a args) (interface{}, error) {
		tag, label, err := a.twoStrings("valueTag", "label")
		if err != nil {
			return nil, err
		}
		return m.PeerConnectionCreateDataChannel(tag, label, a["init"])
	},
	"peerConnectionClose": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		m.PeerConnectionClose(tag)
		return nil, nil
	},
	"transceiverDirection": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return m.TransceiverDirection(tag)
	},
	"transceiverCurrentDirection": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return m.TransceiverCurrentDirection(tag)
	},
	"transceiverSetDirection": func(m *Module, a args) (interface{}, error) {
		tag, value, err := a.twoStrings("valueTag", "value")
		if err != nil {
			return nil, err
		}
		return nil, m.TransceiverSetDirection(tag, value)
	},
	"transceiverStop": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return nil, m.TransceiverStop(tag)
	},
	"rtpEncodingParametersSetActive": func(m *Module, a args) (interface{}, error) {
		owner, ssrc, err := a.encodingTarget()
		if err != nil {
			return nil, err
		}
		active, err := a.boolean("value")
		if err != nil {
			return nil, err
		}
		return nil, m.RTPEncodingParametersSetActive(owner, ssrc, active)
	},
	"rtpEncodingParametersSetMaxBitrate": func(m *Module, a args) (interface{}, error) {
		owner, ssrc, err := a.encodingTarget()
		if err != nil {
			return nil, err
		}
		bps, err := a.optInt("value")
		if err != nil {
			return nil, err
		}
		return nil, m.RTPEncodingParametersSetMaxBitrate(owner, ssrc, bps)
	},
	"rtpEncodingParametersSetMinBitrate": func(m *Module, a args) (interface{}, error) {
		owner, ssrc, err := a.encodingTarget()
		if err != nil {
			return nil, err
		}
		bps, err := a.optInt("value")
		if err != nil {
			return nil, err
		}
		return nil, m.RTPEncodingParametersSetMinBitrate(owner, ssrc, bps)
	},
	"dataChannelSend": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return nil, m.DataChannelSend(tag, a["buffer"])
	},
	"dataChannelClose": func(m *Module, a args) (interface{}, error) {
		tag, err := a.str("valueTag")
		if err != nil {
			return nil, err
		}
		return nil, m.DataChannelClose(tag)
	},
}

// Methods lists every bridge method name in order.
func Methods() []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs a bridge method with decoded JSON params.
func (m *Module) Call(ctx context.Context, method string, params map[string]interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, ok := methods[method]
	if !ok {
		return nil, &Error{Code: CodeUnknownMethod, Message: fmt.Sprintf("unknown method %q", method)}
	}
	start := time.Now()
	result, err := h(m, args(params))
	elapsed := time.Since(start)
	m.metrics.Observe(metrics.CallDuration, method, float64(elapsed.Microseconds())/1000)

	entry := log.WithFields(log.Fields{
		"method":  method,
		"elapsed": elapsed.String(),
	})
	if err != nil {
		entry.WithField("code", ErrorCode(err)).Warnf("Bridge call failed: %v", err)
		return nil, err
	}
	entry.Debugln("Bridge call")
	return result, nil
}

// args are the decoded params of one call.
type args map[string]interface{}

func (a args) str(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", typeError(fmt.Errorf("%s: %w", key, convert.ErrMalformed))
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(fmt.Errorf("%s: expected string, got %T: %w", key, v, convert.ErrMalformed))
	}
	return s, nil
}

func (a args) twoStrings(k1, k2 string) (string, string, error) {
	s1, err := a.str(k1)
	if err != nil {
		return "", "", err
	}
	s2, err := a.str(k2)
	if err != nil {
		return "", "", err
	}
	return s1, s2, nil
}

func (a args) optString(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a args) boolean(key string) (bool, error) {
	b, ok := a[key].(bool)
	if !ok {
		return false, typeError(fmt.Errorf("%s: expected boolean: %w", key, convert.ErrMalformed))
	}
	return b, nil
}

func (a args) number(key string) (float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, typeError(fmt.Errorf("%s: %w", key, convert.ErrMalformed))
	}
	if _, isString := v.(string); isString {
		return 0, typeError(fmt.Errorf("%s: expected number: %w", key, convert.ErrMalformed))
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, typeError(fmt.Errorf("%s: %v: %w", key, err, convert.ErrMalformed))
	}
	return f, nil
}

func (a args) optInt(key string) (*int, error) {
	if v, ok := a[key]; !ok || v == nil {
		return nil, nil
	}
	f, err := a.number(key)
	if err != nil {
		return nil, err
	}
	if f < 0 || f > math.MaxInt32 || f != math.Trunc(f) {
		return nil, typeError(fmt.Errorf("%s: expected non-negative integer: %w", key, convert.ErrMalformed))
	}
	n := int(f)
	return &n, nil
}

func (a args) strList(key string) ([]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, typeError(fmt.Errorf("%s: expected list: %w", key, convert.ErrMalformed))
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, typeError(fmt.Errorf("%s: expected strings: %w", key, convert.ErrMalformed))
		}
		out = append(out, s)
	}
	return out, nil
}

// encodingTarget reads ownerValueTag and the optional ssrc.
func (a args) encodingTarget() (string, *uint32, error) {
	owner, err := a.str("ownerValueTag")
	if err != nil {
		return "", nil, err
	}
	if v, ok := a["ssrc"]; !ok || v == nil {
		return owner, nil, nil
	}
	f, err := a.number("ssrc")
	if err != nil {
		return "", nil, err
	}
	if f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return "", nil, typeError(fmt.Errorf("ssrc out of range: %w", convert.ErrMalformed))
	}
	ssrc := uint32(f)
	return owner, &ssrc, nil
}

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

	"github.com/abrekhov/rtcbridge/pkg/capture"
	"github.com/abrekhov/rtcbridge/pkg/convert"
	"github.com/abrekhov/rtcbridge/pkg/valuetag"
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

// GetUserMedia creates a local stream with one video and one audio track
// and starts feeding them. A track not requested by the constraints stays
// in the stream disabled.
func (m *Module) GetUserMedia(constraints interface{}) (map[string]interface{}, error) {
	sc, err := convert.MediaStreamConstraints(constraints)
	if err != nil {
		return nil, typeError(err)
	}
	device, err := m.capturer.Select(sc.Video)
	if err != nil {
		if errors.Is(err, capture.ErrNoDevice) {
			return nil, &Error{Code: CodeNotFound, Message: "no video device satisfies the constraints", Err: err}
		}
		return nil, engineError(CodeGetUserMedia, err)
	}

	stream := &Stream{id: valuetag.NewTag()}
	video := newLocalTrack(webrtc.RTPCodecTypeVideo, stream.id, webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8})
	audio := newLocalTrack(webrtc.RTPCodecTypeAudio, stream.id, webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus})

	session := capture.Session{Device: device}
	if sc.Video != nil {
		video.setAspectRatio(sc.Video.AspectRatio)
		session.FrameRate = sc.Video.FrameRate
		session.Video = video
	} else {
		video.SetEnabled(false)
	}
	if sc.Audio != nil {
		session.Audio = audio
	} else {
		audio.SetEnabled(false)
	}
	if err := m.capturer.Start(session); err != nil {
		return nil, engineError(CodeGetUserMedia, err)
	}

	stream.addTrack(video)
	stream.addTrack(audio)
	streamTag := valuetag.NewTag()
	register(m, m.streams, stream.id, streamTag, stream, nil)
	m.values.SetTagForString(streamTag, stream.id)
	register(m, m.tracks, video.id, valuetag.NewTag(), video, nil)
	register(m, m.tracks, audio.id, valuetag.NewTag(), audio, nil)

	log.WithFields(log.Fields{
		"stream": stream.id,
		"device": device.ID,
		"video":  sc.Video != nil,
		"audio":  sc.Audio != nil,
	}).Infoln("User media opened")

	return map[string]interface{}{
		"streamId":       stream.id,
		"streamValueTag": streamTag,
		"tracks":         []interface{}{video.JSON(), audio.JSON()},
	}, nil
}

// StopUserMedia stops every running capture. Tracks stay registered.
func (m *Module) StopUserMedia() {
	m.capturer.Stop()
}

// TrackSetEnabled toggles a track.
func (m *Module) TrackSetEnabled(tag string, enabled bool) error {
	t, ok := m.tracks.ByTag(tag)
	if !ok {
		return notFound("track", tag)
	}
	t.SetEnabled(enabled)
	return nil
}

// TrackSetAspectRatio sets the aspect ratio of a video track. Audio tracks ignore it.
func (m *Module) TrackSetAspectRatio(tag string, ratio float64) error {
	t, ok := m.tracks.ByTag(tag)
	if !ok {
		return notFound("track", tag)
	}
	if t.kind != webrtc.RTPCodecTypeVideo {
		return nil
	}
	t.setAspectRatio(ratio)
	return nil
}

// AudioPort returns the audio output port. Native audio routing is not
// available, so it is always "none".
func (m *Module) AudioPort() string {
	return "none"
}

// SetAudioPort accepts and ignores a port change.
func (m *Module) SetAudioPort(port string) {
	log.WithField("port", port).Debugln("Audio routing is not available, ignoring port change")
}

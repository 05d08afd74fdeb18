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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abrekhov/rtcbridge/pkg/convert"
	"github.com/abrekhov/rtcbridge/pkg/datachannel"
	"github.com/abrekhov/rtcbridge/pkg/valuetag"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// PeerConnection is an exported engine peer connection.
type PeerConnection struct {
	valuetag.Tagged
	pc          *webrtc.PeerConnection
	constraints *convert.Constraints
	closing     atomic.Bool
}

// Engine returns the underlying peer connection.
func (p *PeerConnection) Engine() *webrtc.PeerConnection {
	return p.pc
}

// Stream is a local or remote media stream.
type Stream struct {
	valuetag.Tagged
	id    string
	owner *PeerConnection // nil for local streams

	mu     sync.Mutex
	tracks []*Track
}

func (s *Stream) addTrack(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tracks {
		if existing == t {
			return
		}
	}
	s.tracks = append(s.tracks, t)
}

// JSON projects {id, valueTag, tracks}.
func (s *Stream) JSON() map[string]interface{} {
	s.mu.Lock()
	tracks := make([]interface{}, 0, len(s.tracks))
	for _, t := range s.tracks {
		tracks = append(tracks, t.JSON())
	}
	s.mu.Unlock()
	return map[string]interface{}{
		"id":       s.id,
		"valueTag": s.ValueTag(),
		"tracks":   tracks,
	}
}

// Track is a local track fed by capture or a remote track received from a peer.
type Track struct {
	valuetag.Tagged
	id       string
	kind     webrtc.RTPCodecType
	streamID string
	codec    webrtc.RTPCodecCapability
	remote   *webrtc.TrackRemote
	owner    *PeerConnection // nil for local tracks

	mu          sync.Mutex
	enabled     bool
	ended       bool
	aspectRatio float64
	outputs     map[string]*webrtc.TrackLocalStaticSample
}

func newLocalTrack(kind webrtc.RTPCodecType, streamID string, codec webrtc.RTPCodecCapability) *Track {
	return &Track{
		id:       valuetag.NewTag(),
		kind:     kind,
		streamID: streamID,
		codec:    codec,
		enabled:  true,
		outputs:  make(map[string]*webrtc.TrackLocalStaticSample),
	}
}

func newRemoteTrack(remote *webrtc.TrackRemote, owner *PeerConnection) *Track {
	return &Track{
		id:       remote.ID(),
		kind:     remote.Kind(),
		streamID: remote.StreamID(),
		remote:   remote,
		owner:    owner,
		enabled:  true,
	}
}

// ID returns the engine track id.
func (t *Track) ID() string { return t.id }

// Local reports whether the track is fed by this process.
func (t *Track) Local() bool { return t.remote == nil }

// Enabled reports whether samples are forwarded.
func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetEnabled toggles sample forwarding.
func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *Track) setAspectRatio(r float64) {
	t.mu.Lock()
	t.aspectRatio = r
	t.mu.Unlock()
}

func (t *Track) end() {
	t.mu.Lock()
	t.ended = true
	t.mu.Unlock()
}

// output returns the engine track bound to streamID, creating it on first use.
func (t *Track) output(streamID string) (*webrtc.TrackLocalStaticSample, error) {
	if !t.Local() {
		return nil, invalidState("remote track %s cannot be sent", t.id)
	}
	if streamID == "" {
		streamID = t.streamID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if out, ok := t.outputs[streamID]; ok {
		return out, nil
	}
	out, err := webrtc.NewTrackLocalStaticSample(t.codec, t.id, streamID)
	if err != nil {
		return nil, fmt.Errorf("create local track: %w", err)
	}
	t.outputs[streamID] = out
	return out, nil
}

// WriteSample forwards s to every bound engine track while the track is
// enabled and live.
func (t *Track) WriteSample(s media.Sample) error {
	t.mu.Lock()
	if !t.enabled || t.ended {
		t.mu.Unlock()
		return nil
	}
	outputs := make([]*webrtc.TrackLocalStaticSample, 0, len(t.outputs))
	for _, out := range t.outputs {
		outputs = append(outputs, out)
	}
	t.mu.Unlock()

	for _, out := range outputs {
		if err := out.WriteSample(s); err != nil {
			return fmt.Errorf("write sample to %s: %w", out.StreamID(), err)
		}
	}
	return nil
}

// JSON projects {id, valueTag, kind, enabled, readyState, aspectRatio?}.
func (t *Track) JSON() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := map[string]interface{}{
		"id":         t.id,
		"valueTag":   t.ValueTag(),
		"kind":       t.kind.String(),
		"enabled":    t.enabled,
		"readyState": convert.TrackStateString(t.ended),
	}
	if t.kind == webrtc.RTPCodecTypeVideo && t.aspectRatio > 0 {
		out["aspectRatio"] = t.aspectRatio
	}
	return out
}

// encodingState is the bridge side of an RTP encoding that the engine does
// not model.
type encodingState struct {
	active     bool
	maxBitrate *int
	minBitrate *int
	scale      *float64
}

type encodingOverlay struct {
	mu     sync.Mutex
	bySSRC map[uint32]*encodingState
	byRID  map[string]convert.EncodingInit
}

func newEncodingOverlay(inits []convert.EncodingInit) *encodingOverlay {
	o := &encodingOverlay{
		bySSRC: make(map[uint32]*encodingState),
		byRID:  make(map[string]convert.EncodingInit),
	}
	for _, e := range inits {
		o.byRID[e.RID] = e
	}
	return o
}

// merge combines engine encodings with the bridge state.
func (o *encodingOverlay) merge(engine []convert.Encoding) []convert.Encoding {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]convert.Encoding, 0, len(engine))
	for _, e := range engine {
		st := o.stateLocked(e.SSRC, e.RID)
		e.Active = st.active
		e.MaxBitrate = st.maxBitrate
		e.MinBitrate = st.minBitrate
		e.ScaleResolutionDownBy = st.scale
		out = append(out, e)
	}
	return out
}

func (o *encodingOverlay) stateLocked(ssrc uint32, rid string) *encodingState {
	if st, ok := o.bySSRC[ssrc]; ok {
		return st
	}
	st := &encodingState{active: true}
	if init, ok := o.byRID[rid]; ok {
		if init.Active != nil {
			st.active = *init.Active
		}
		st.maxBitrate = init.MaxBitrate
		st.scale = init.ScaleResolutionDownBy
	}
	o.bySSRC[ssrc] = st
	return st
}

// update applies fn to the encoding with ssrc, or the first encoding when
// ssrc is nil. It reports whether an encoding matched.
func (o *encodingOverlay) update(engine []convert.Encoding, ssrc *uint32, fn func(*encodingState)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range engine {
		if ssrc == nil || e.SSRC == *ssrc {
			fn(o.stateLocked(e.SSRC, e.RID))
			return true
		}
	}
	return false
}

func (o *encodingOverlay) anyActive(engine []convert.Encoding) bool {
	if len(engine) == 0 {
		return true
	}
	for _, e := range o.merge(engine) {
		if e.Active {
			return true
		}
	}
	return false
}

// Sender is an exported RTP sender.
type Sender struct {
	valuetag.Tagged
	id      string
	sender  *webrtc.RTPSender
	owner   *PeerConnection
	overlay *encodingOverlay

	mu           sync.Mutex
	streamIDs    []string
	track        *Track
	suspended    webrtc.TrackLocal
	directionOff bool
}

func newSender(s *webrtc.RTPSender, owner *PeerConnection, track *Track, streamIDs []string, inits []convert.EncodingInit) *Sender {
	return &Sender{
		id:        valuetag.NewTag(),
		sender:    s,
		owner:     owner,
		overlay:   newEncodingOverlay(inits),
		streamIDs: append([]string(nil), streamIDs...),
		track:     track,
	}
}

func (s *Sender) engineEncodings() []convert.Encoding {
	params := s.sender.GetParameters()
	out := make([]convert.Encoding, 0, len(params.Encodings))
	for _, e := range params.Encodings {
		out = append(out, convert.Encoding{RID: e.RID, SSRC: uint32(e.SSRC)})
	}
	return out
}

// applySending suspends or resumes the engine track so that media flows
// only when the direction allows sending and some encoding is active.
func (s *Sender) applySending() error {
	shouldSend := s.overlay.anyActive(s.engineEncodings())

	s.mu.Lock()
	defer s.mu.Unlock()
	shouldSend = shouldSend && !s.directionOff
	switch {
	case !shouldSend && s.suspended == nil:
		current := s.sender.Track()
		if current == nil {
			return nil
		}
		if err := s.sender.ReplaceTrack(nil); err != nil {
			return fmt.Errorf("suspend sender: %w", err)
		}
		s.suspended = current
	case shouldSend && s.suspended != nil:
		if err := s.sender.ReplaceTrack(s.suspended); err != nil {
			return fmt.Errorf("resume sender: %w", err)
		}
		s.suspended = nil
	}
	return nil
}

func (s *Sender) setDirectionOff(off bool) error {
	s.mu.Lock()
	s.directionOff = off
	s.mu.Unlock()
	return s.applySending()
}

// JSON projects {id, valueTag, streamIds, parameters, track}.
func (s *Sender) JSON() map[string]interface{} {
	params := s.sender.GetParameters()
	encodings := s.overlay.merge(s.engineEncodings())

	s.mu.Lock()
	streamIDs := append([]string(nil), s.streamIDs...)
	track := s.track
	s.mu.Unlock()

	out := map[string]interface{}{
		"id":         s.id,
		"valueTag":   s.ValueTag(),
		"streamIds":  streamIDs,
		"parameters": convert.RTPParametersJSON(s.id, s.owner.ValueTag(), params.RTPParameters, encodings),
		"track":      nil,
	}
	if track != nil {
		out["track"] = track.JSON()
	}
	return out
}

// Receiver is an exported RTP receiver.
type Receiver struct {
	valuetag.Tagged
	id       string
	receiver *webrtc.RTPReceiver
	owner    *PeerConnection
	overlay  *encodingOverlay

	mu        sync.Mutex
	streamIDs []string
	track     *Track
}

func newReceiver(r *webrtc.RTPReceiver, owner *PeerConnection) *Receiver {
	return &Receiver{
		id:       valuetag.NewTag(),
		receiver: r,
		owner:    owner,
		overlay:  newEncodingOverlay(nil),
	}
}

func (r *Receiver) engineEncodings() []convert.Encoding {
	var out []convert.Encoding
	for _, t := range r.receiver.Tracks() {
		if t.SSRC() == 0 && t.RID() == "" {
			continue
		}
		out = append(out, convert.Encoding{RID: t.RID(), SSRC: uint32(t.SSRC())})
	}
	return out
}

// JSON projects {id, valueTag, streamIds, parameters, track}.
func (r *Receiver) JSON() map[string]interface{} {
	params := r.receiver.GetParameters()
	encodings := r.overlay.merge(r.engineEncodings())

	r.mu.Lock()
	streamIDs := append([]string(nil), r.streamIDs...)
	track := r.track
	r.mu.Unlock()

	out := map[string]interface{}{
		"id":         r.id,
		"valueTag":   r.ValueTag(),
		"streamIds":  streamIDs,
		"parameters": convert.RTPParametersJSON(r.id, r.owner.ValueTag(), params, encodings),
		"track":      nil,
	}
	if track != nil {
		out["track"] = track.JSON()
	}
	return out
}

// Transceiver is an exported RTP transceiver. The requested direction is
// kept here because the engine negotiates it only through its own API.
type Transceiver struct {
	valuetag.Tagged
	id       string
	t        *webrtc.RTPTransceiver
	owner    *PeerConnection
	sender   *Sender
	receiver *Receiver

	mu        sync.Mutex
	direction webrtc.RTPTransceiverDirection
	stopped   bool
}

// Direction returns the requested direction.
func (t *Transceiver) Direction() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return "stopped"
	}
	return convert.DirectionString(t.direction)
}

// CurrentDirection returns the negotiated direction, or "" when the
// transceiver has not been negotiated yet.
func (t *Transceiver) CurrentDirection() string {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return "stopped"
	}
	if t.t.Mid() == "" || t.owner.pc.CurrentRemoteDescription() == nil {
		return ""
	}
	return convert.DirectionString(t.t.Direction())
}

// currentSender is nil once the track has been removed from the transceiver.
func (t *Transceiver) currentSender() *Sender {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sender
}

// JSON projects {mid, valueTag, direction, currentDirection, stopped, sender, receiver}.
func (t *Transceiver) JSON() map[string]interface{} {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()

	out := map[string]interface{}{
		"mid":              nil,
		"valueTag":         t.ValueTag(),
		"direction":        t.Direction(),
		"currentDirection": nil,
		"stopped":          stopped,
		"sender":           nil,
		"receiver":         nil,
	}
	if mid := t.t.Mid(); mid != "" {
		out["mid"] = mid
	}
	if cur := t.CurrentDirection(); cur != "" {
		out["currentDirection"] = cur
	}
	if s := t.currentSender(); s != nil {
		out["sender"] = s.JSON()
	}
	if t.receiver != nil {
		out["receiver"] = t.receiver.JSON()
	}
	return out
}

// DataChannel is an exported data channel.
type DataChannel struct {
	valuetag.Tagged
	id        string
	dc        *webrtc.DataChannel
	owner     *PeerConnection
	meter     *datachannel.Meter
	releasing atomic.Bool
}

// JSON projects {id, valueTag, label, ordered, maxPacketLifeTime,
// maxRetransmits, protocol, negotiated, readyState, bufferedAmount} plus
// traffic counters.
func (d *DataChannel) JSON() map[string]interface{} {
	out := datachannel.Info(d.dc)
	out["valueTag"] = d.ValueTag()
	for k, v := range d.meter.Snapshot(time.Now()).JSON() {
		out[k] = v
	}
	return out
}

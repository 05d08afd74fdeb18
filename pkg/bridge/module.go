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

// Package bridge exposes peer connections, media and data channels to a
// scripting client. Every exported object is addressed by a value tag.
package bridge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/abrekhov/rtcbridge/pkg/capture"
	"github.com/abrekhov/rtcbridge/pkg/metrics"
	"github.com/abrekhov/rtcbridge/pkg/valuetag"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

// Options configure a Module.
type Options struct {
	// ICEServers are used when a configuration carries none.
	ICEServers []webrtc.ICEServer
	// LoopbackCandidates gathers 127.0.0.1 candidates, for local testing.
	LoopbackCandidates bool
	// NetworkTypes restricts candidate gathering. Empty means all.
	NetworkTypes []webrtc.NetworkType
	Devices      []capture.Device
	AudioFile    string
	Metrics      *metrics.Collector
	Logger       *log.Logger
}

// Module is the bridge facade.
type Module struct {
	api      *webrtc.API
	opts     Options
	capturer *capture.Capturer
	metrics  *metrics.Collector

	values          *valuetag.Manager
	peerConnections *valuetag.Table[*PeerConnection]
	streams         *valuetag.Table[*Stream]
	tracks          *valuetag.Table[*Track]
	senders         *valuetag.Table[*Sender]
	receivers       *valuetag.Table[*Receiver]
	transceivers    *valuetag.Table[*Transceiver]
	dataChannels    *valuetag.Table[*DataChannel]

	subsMu  sync.RWMutex
	subs    map[int]func(Event)
	nextSub int

	// serializes structural changes to a peer connection's objects
	opMu sync.Mutex
}

// New builds the engine API and an empty Module.
func New(opts Options) (*Module, error) {
	api, err := newAPI(opts)
	if err != nil {
		return nil, err
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.New()
	}
	return &Module{
		api:             api,
		opts:            opts,
		capturer:        capture.New(opts.Devices, opts.AudioFile),
		metrics:         collector,
		values:          valuetag.NewManager(),
		peerConnections: valuetag.NewTable[*PeerConnection](),
		streams:         valuetag.NewTable[*Stream](),
		tracks:          valuetag.NewTable[*Track](),
		senders:         valuetag.NewTable[*Sender](),
		receivers:       valuetag.NewTable[*Receiver](),
		transceivers:    valuetag.NewTable[*Transceiver](),
		dataChannels:    valuetag.NewTable[*DataChannel](),
		subs:            make(map[int]func(Event)),
	}, nil
}

func newAPI(opts Options) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	s := webrtc.SettingEngine{}
	s.LoggerFactory = &LoggerFactory{Logger: opts.Logger}
	if opts.LoopbackCandidates {
		s.SetIncludeLoopbackCandidate(true)
	}
	if len(opts.NetworkTypes) > 0 {
		s.SetNetworkTypes(opts.NetworkTypes)
	}
	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(s),
	), nil
}

// Metrics returns the collector behind enableMetrics and getAndResetMetrics.
func (m *Module) Metrics() *metrics.Collector {
	return m.metrics
}

// register tags obj in table and in the value manager. Engine objects are
// also associated so engine callbacks can find their wrapper.
func register[T valuetag.Object](m *Module, table *valuetag.Table[T], id, tag string, obj T, engine interface{}) {
	table.Add(id, tag, obj)
	m.values.SetTagForObject(tag, obj)
	if engine != nil {
		m.values.SetTagForObject(tag, engine)
	}
}

func unregister[T valuetag.Object](m *Module, table *valuetag.Table[T], obj T, engine interface{}) {
	if tag, ok := table.TagFor(obj); ok {
		table.RemoveByTag(tag)
	}
	m.values.RemoveTagForObject(obj)
	if engine != nil {
		m.values.RemoveTagForObject(engine)
	}
}

func (m *Module) peerConnection(tag string) (*PeerConnection, error) {
	if p, ok := m.peerConnections.ByTag(tag); ok {
		return p, nil
	}
	return nil, notFound("peer connection", tag)
}

// closeAndFinish releases p off the calling goroutine. Engine callbacks
// must never close their own peer connection synchronously.
func (m *Module) closeAndFinish(p *PeerConnection) {
	if !p.closing.CompareAndSwap(false, true) {
		return
	}
	go m.releasePeerConnection(p)
}

// releasePeerConnection closes p and drops every object registered through it.
func (m *Module) releasePeerConnection(p *PeerConnection) {
	p.closing.Store(true)
	tag := p.ValueTag()

	m.opMu.Lock()
	for _, d := range m.dataChannels.All() {
		if d.owner == p {
			unregister(m, m.dataChannels, d, d.dc)
		}
	}
	for _, t := range m.transceivers.All() {
		if t.owner == p {
			unregister(m, m.transceivers, t, t.t)
		}
	}
	for _, s := range m.senders.All() {
		if s.owner == p {
			unregister(m, m.senders, s, s.sender)
		}
	}
	for _, r := range m.receivers.All() {
		if r.owner == p {
			unregister(m, m.receivers, r, r.receiver)
		}
	}
	for _, t := range m.tracks.All() {
		if t.owner == p {
			t.end()
			unregister(m, m.tracks, t, t.remote)
		}
	}
	for _, s := range m.streams.All() {
		if s.owner == p {
			unregister(m, m.streams, s, nil)
			m.values.RemoveTagForString(s.id)
		}
	}
	unregister(m, m.peerConnections, p, p.pc)
	m.opMu.Unlock()

	if err := p.pc.Close(); err != nil {
		log.WithField("valueTag", tag).Warnf("Close peer connection: %v", err)
	}
	log.WithField("valueTag", tag).Infoln("Peer connection released")
}

// FinishLoading closes every peer connection, stops capture and clears
// every registry.
func (m *Module) FinishLoading() {
	for _, p := range m.peerConnections.All() {
		m.releasePeerConnection(p)
	}
	m.capturer.Stop()
	for _, t := range m.tracks.All() {
		t.end()
	}
	m.streams.Clear()
	m.tracks.Clear()
	m.senders.Clear()
	m.receivers.Clear()
	m.transceivers.Clear()
	m.dataChannels.Clear()
	m.values.Clear()
	log.Infoln("Bridge module finished loading, registries cleared")
}

// Dump renders every registry for debug logging.
func (m *Module) Dump() string {
	var sb strings.Builder
	sb.WriteString("peer connections:\n" + m.peerConnections.Dump())
	sb.WriteString("streams:\n" + m.streams.Dump())
	sb.WriteString("tracks:\n" + m.tracks.Dump())
	sb.WriteString("senders:\n" + m.senders.Dump())
	sb.WriteString("receivers:\n" + m.receivers.Dump())
	sb.WriteString("transceivers:\n" + m.transceivers.Dump())
	sb.WriteString("data channels:\n" + m.dataChannels.Dump())
	return sb.String()
}

// Counts reports how many objects of each kind are registered.
func (m *Module) Counts() map[string]int {
	return map[string]int{
		"peerConnections": m.peerConnections.Len(),
		"streams":         m.streams.Len(),
		"tracks":          m.tracks.Len(),
		"senders":         m.senders.Len(),
		"receivers":       m.receivers.Len(),
		"transceivers":    m.transceivers.Len(),
		"dataChannels":    m.dataChannels.Len(),
	}
}

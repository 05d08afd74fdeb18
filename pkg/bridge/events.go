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
	log "github.com/sirupsen/logrus"
)

// Event names.
const (
	EventSignalingStateChanged  = "peerConnectionSignalingStateChanged"
	EventConnectionStateChanged = "peerConnectionConnectionStateChanged"
	EventICEConnectionChanged   = "peerConnectionIceConnectionChanged"
	EventICEGatheringChanged    = "peerConnectionIceGatheringChanged"
	EventGotICECandidate        = "peerConnectionGotICECandidate"
	EventAddedReceiver          = "peerConnectionAddedReceiver"
	EventStartTransceiver       = "peerConnectionStartTransceiver"
	EventShouldNegotiate        = "peerConnectionShouldNegotiate"
	EventAddedDataChannel       = "peerConnectionAddedDataChannel"
	EventDataChannelState       = "dataChannelStateChanged"
	EventDataChannelMessage     = "dataChannelOnMessage"
	EventDataChannelBuffered    = "dataChannelOnBufferedAmount"
)

// Event is a notification for the scripting side. Data always carries
// the valueTag of the object that raised it.
type Event struct {
	Name string                 `json:"event"`
	Data map[string]interface{} `json:"data"`
}

// Subscribe registers fn for every event and returns a function that
// removes it. fn runs on engine goroutines and must not block.
func (m *Module) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subsMu.Unlock()
	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

func (m *Module) emit(name, valueTag string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["valueTag"] = valueTag
	ev := Event{Name: name, Data: data}

	log.WithFields(log.Fields{
		"event":    name,
		"valueTag": valueTag,
	}).Debugln("Emit event")

	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	for _, fn := range m.subs {
		fn(ev)
	}
}

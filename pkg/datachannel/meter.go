/*
Copyright © 2024-2026 Anton Brekhov <anton@abrekhov.ru>

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

package datachannel

import (
	"sync/atomic"
	"time"
)

// Meter counts the traffic of one data channel. It is safe for concurrent use.
type Meter struct {
	StartTime time.Time

	bytesSent        int64
	bytesReceived    int64
	messagesSent     int64
	messagesReceived int64
}

// Traffic is a snapshot of a Meter.
type Traffic struct {
	BytesSent        int64
	BytesReceived    int64
	MessagesSent     int64
	MessagesReceived int64
	SendRate         float64 // bytes per second
	ReceiveRate      float64 // bytes per second
	Elapsed          time.Duration
}

// NewMeter starts a meter now.
func NewMeter() *Meter {
	return &Meter{StartTime: time.Now()}
}

// AddSent counts one outbound message of n bytes.
func (m *Meter) AddSent(n int) {
	if n < 0 {
		return
	}
	atomic.AddInt64(&m.bytesSent, int64(n))
	atomic.AddInt64(&m.messagesSent, 1)
}

// AddReceived counts one inbound message of n bytes.
func (m *Meter) AddReceived(n int) {
	if n < 0 {
		return
	}
	atomic.AddInt64(&m.bytesReceived, int64(n))
	atomic.AddInt64(&m.messagesReceived, 1)
}

// Snapshot returns the counters and average rates at now.
func (m *Meter) Snapshot(now time.Time) Traffic {
	t := Traffic{
		BytesSent:        atomic.LoadInt64(&m.bytesSent),
		BytesReceived:    atomic.LoadInt64(&m.bytesReceived),
		MessagesSent:     atomic.LoadInt64(&m.messagesSent),
		MessagesReceived: atomic.LoadInt64(&m.messagesReceived),
		Elapsed:          now.Sub(m.StartTime),
	}
	if t.Elapsed > 0 {
		t.SendRate = float64(t.BytesSent) / t.Elapsed.Seconds()
		t.ReceiveRate = float64(t.BytesReceived) / t.Elapsed.Seconds()
	}
	return t
}

// JSON projects the counters for the bridge.
func (t Traffic) JSON() map[string]interface{} {
	return map[string]interface{}{
		"bytesSent":        t.BytesSent,
		"bytesReceived":    t.BytesReceived,
		"messagesSent":     t.MessagesSent,
		"messagesReceived": t.MessagesReceived,
	}
}

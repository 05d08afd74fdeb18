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
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
)

func TestMeter_Counts(t *testing.T) {
	t.Run("counts bytes and messages", func(t *testing.T) {
		m := NewMeter()
		m.AddSent(100)
		m.AddSent(50)
		m.AddReceived(10)

		s := m.Snapshot(time.Now())
		assert.Equal(t, int64(150), s.BytesSent)
		assert.Equal(t, int64(2), s.MessagesSent)
		assert.Equal(t, int64(10), s.BytesReceived)
		assert.Equal(t, int64(1), s.MessagesReceived)
	})

	t.Run("empty messages still count", func(t *testing.T) {
		m := NewMeter()
		m.AddReceived(0)
		s := m.Snapshot(time.Now())
		assert.Equal(t, int64(0), s.BytesReceived)
		assert.Equal(t, int64(1), s.MessagesReceived)
	})

	t.Run("negative sizes are ignored", func(t *testing.T) {
		m := NewMeter()
		m.AddSent(-5)
		assert.Equal(t, int64(0), m.Snapshot(time.Now()).MessagesSent)
	})
}

func TestMeter_Rates(t *testing.T) {
	m := NewMeter()
	m.StartTime = time.Now().Add(-2 * time.Second)
	m.AddSent(2000)
	m.AddReceived(1000)

	s := m.Snapshot(m.StartTime.Add(2 * time.Second))
	assert.InDelta(t, 1000.0, s.SendRate, 0.001)
	assert.InDelta(t, 500.0, s.ReceiveRate, 0.001)
	assert.Equal(t, 2*time.Second, s.Elapsed)

	zero := m.Snapshot(m.StartTime)
	assert.Equal(t, 0.0, zero.SendRate)
}

func TestMeter_Concurrent(t *testing.T) {
	m := NewMeter()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.AddSent(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1000), m.Snapshot(time.Now()).BytesSent)
}

func TestTraffic_JSON(t *testing.T) {
	tr := Traffic{BytesSent: 1, BytesReceived: 2, MessagesSent: 3, MessagesReceived: 4}
	assert.Equal(t, map[string]interface{}{
		"bytesSent":        int64(1),
		"bytesReceived":    int64(2),
		"messagesSent":     int64(3),
		"messagesReceived": int64(4),
	}, tr.JSON())
}

func TestMessagePayload(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"data": "hi", "binary": false},
		MessagePayload(webrtc.DataChannelMessage{IsString: true, Data: []byte("hi")}))
	assert.Equal(t, map[string]interface{}{"data": "AQI=", "binary": true},
		MessagePayload(webrtc.DataChannelMessage{Data: []byte{1, 2}}))
}

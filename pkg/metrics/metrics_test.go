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

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleByName(t *testing.T, samples []Sample, name string) Sample {
	t.Helper()
	for _, s := range samples {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("histogram %s not reported", name)
	return Sample{}
}

func TestCollector_DisabledByDefault(t *testing.T) {
	c := New()
	assert.False(t, c.Enabled())
	c.Observe(CallDuration, "peerConnectionInit", 3)

	samples, err := c.GetAndReset()
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Empty(t, sampleByName(t, samples, CallDuration).Samples)
}

func TestCollector_ObserveAndReset(t *testing.T) {
	c := New()
	c.Enable()

	c.Observe(CallDuration, "a", 1)
	c.Observe(CallDuration, "b", 3)
	c.Observe(CallDuration, "b", 3)
	c.Observe(CallDuration, "a", 1e6)
	c.Observe(DataChannelMessageSize, "in", 10)

	samples, err := c.GetAndReset()
	require.NoError(t, err)

	calls := sampleByName(t, samples, CallDuration)
	assert.Equal(t, 1, calls.Min)
	assert.Equal(t, 8192, calls.Max)
	assert.Equal(t, 14, calls.BucketCount)
	assert.Equal(t, map[int]uint64{1: 1, 4: 2, 8192: 1}, calls.Samples)

	sizes := sampleByName(t, samples, DataChannelMessageSize)
	assert.Equal(t, map[int]uint64{16: 1}, sizes.Samples)

	samples, err = c.GetAndReset()
	require.NoError(t, err)
	assert.Empty(t, sampleByName(t, samples, CallDuration).Samples)
}

func TestCollector_UnknownHistogramIgnored(t *testing.T) {
	c := New()
	c.Enable()
	c.Observe("WebRTC.Unknown", "x", 1)
	samples, err := c.GetAndReset()
	require.NoError(t, err)
	assert.Len(t, samples, 3)
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.Enable()
	c.Observe(RTPPacketSize, "video", 1200)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rtcbridge_rtp_inbound_packet_bytes_count{kind="video"} 1`)
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() { c.Observe(CallDuration, "x", 1) })
}

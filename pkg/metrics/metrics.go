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

// Package metrics keeps the bridge histograms. Nothing is recorded until
// the collector is enabled.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram names as reported by getAndResetMetrics.
const (
	CallDuration           = "WebRTC.Bridge.CallDuration"
	DataChannelMessageSize = "WebRTC.DataChannel.MessageSize"
	RTPPacketSize          = "WebRTC.RTP.InboundPacketSize"
)

// Sample is the snapshot of one histogram. Samples maps a bucket upper
// bound to the number of observations that fell into that bucket; values
// above Max are counted in the Max bucket.
type Sample struct {
	Name        string         `json:"name"`
	Min         int            `json:"min"`
	Max         int            `json:"max"`
	BucketCount int            `json:"bucketCount"`
	Samples     map[int]uint64 `json:"samples"`
}

type histogram struct {
	name    string
	promKey string
	buckets []float64
	vec     *prometheus.HistogramVec
}

// Collector owns the bridge histograms and their registry.
type Collector struct {
	enabled  atomic.Bool
	registry *prometheus.Registry

	mu         sync.Mutex
	histograms map[string]*histogram
}

// New creates a disabled collector with the bridge histograms registered.
func New() *Collector {
	c := &Collector{
		registry:   prometheus.NewRegistry(),
		histograms: make(map[string]*histogram),
	}
	c.register(CallDuration, "rtcbridge_call_duration_milliseconds",
		"Bridge method latency in milliseconds.", "method",
		prometheus.ExponentialBuckets(1, 2, 14))
	c.register(DataChannelMessageSize, "rtcbridge_datachannel_message_bytes",
		"Data channel message size in bytes.", "direction",
		prometheus.ExponentialBuckets(16, 4, 9))
	c.register(RTPPacketSize, "rtcbridge_rtp_inbound_packet_bytes",
		"Inbound RTP packet size in bytes.", "kind",
		prometheus.LinearBuckets(100, 100, 14))
	return c
}

func (c *Collector) register(name, promKey, help, label string, buckets []float64) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    promKey,
		Help:    help,
		Buckets: buckets,
	}, []string{label})
	c.registry.MustRegister(vec)
	c.histograms[name] = &histogram{name: name, promKey: promKey, buckets: buckets, vec: vec}
}

// Enable starts recording.
func (c *Collector) Enable() {
	c.enabled.Store(true)
}

// Enabled reports whether observations are recorded.
func (c *Collector) Enabled() bool {
	return c.enabled.Load()
}

// Observe records v in the named histogram under label.
func (c *Collector) Observe(name, label string, v float64) {
	if c == nil || !c.Enabled() {
		return
	}
	c.mu.Lock()
	h, ok := c.histograms[name]
	c.mu.Unlock()
	if !ok {
		return
	}
	h.vec.WithLabelValues(label).Observe(v)
}

// Registry returns the prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GetAndReset snapshots every histogram, ordered by name, and resets them.
func (c *Collector) GetAndReset() ([]Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	families, err := c.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	byKey := make(map[string]*histogram, len(c.histograms))
	for _, h := range c.histograms {
		byKey[h.promKey] = h
	}

	var out []Sample
	seen := make(map[string]bool)
	for _, mf := range families {
		h, ok := byKey[mf.GetName()]
		if !ok {
			continue
		}
		seen[h.name] = true
		s := h.emptySample()
		for _, m := range mf.GetMetric() {
			ph := m.GetHistogram()
			var prev uint64
			for i, b := range ph.GetBucket() {
				n := b.GetCumulativeCount() - prev
				prev = b.GetCumulativeCount()
				if n > 0 {
					s.Samples[bound(h.buckets[i])] += n
				}
			}
			if over := ph.GetSampleCount() - prev; over > 0 {
				s.Samples[s.Max] += over
			}
		}
		out = append(out, s)
		h.vec.Reset()
	}
	for _, h := range c.histograms {
		if !seen[h.name] {
			out = append(out, h.emptySample())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (h *histogram) emptySample() Sample {
	return Sample{
		Name:        h.name,
		Min:         bound(h.buckets[0]),
		Max:         bound(h.buckets[len(h.buckets)-1]),
		BucketCount: len(h.buckets),
		Samples:     make(map[int]uint64),
	}
}

func bound(f float64) int {
	return int(math.Round(f))
}

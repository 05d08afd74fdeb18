/*
 *   Copyright (c) 2021-2026 Anton Brekhov
 *   All rights reserved.
 */

// Package datachannel wires engine data channel callbacks to bridge
// handlers and keeps per-channel traffic counters.
package datachannel

import (
	"github.com/abrekhov/rtcbridge/pkg/convert"
	"github.com/pion/webrtc/v3"
)

// BufferedAmountLowThreshold is the default threshold for buffered amount events.
const BufferedAmountLowThreshold uint64 = 64 * 1024

// MessagePayload projects an inbound message into the bridge buffer shape.
func MessagePayload(msg webrtc.DataChannelMessage) map[string]interface{} {
	return convert.DataBufferJSON(msg.Data, !msg.IsString)
}

// Info projects the static and dynamic properties of a channel.
func Info(channel *webrtc.DataChannel) map[string]interface{} {
	out := map[string]interface{}{
		"label":             channel.Label(),
		"ordered":           channel.Ordered(),
		"protocol":          channel.Protocol(),
		"negotiated":        channel.Negotiated(),
		"readyState":        convert.DataChannelStateString(channel.ReadyState()),
		"bufferedAmount":    channel.BufferedAmount(),
		"maxPacketLifeTime": nil,
		"maxRetransmits":    nil,
		"id":                nil,
	}
	if id := channel.ID(); id != nil {
		out["id"] = int(*id)
	}
	if v := channel.MaxPacketLifeTime(); v != nil {
		out["maxPacketLifeTime"] = int(*v)
	}
	if v := channel.MaxRetransmits(); v != nil {
		out["maxRetransmits"] = int(*v)
	}
	return out
}

/*
 *   Copyright (c) 2021-2026 Anton Brekhov
 *   All rights reserved.
 */

package datachannel

import (
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

// Handler receives data channel events.
type Handler interface {
	OnStateChange(state webrtc.DataChannelState)
	OnMessage(msg webrtc.DataChannelMessage)
	OnBufferedAmountLow(amount uint64)
}

// Observe registers h for every callback of channel and counts inbound
// traffic on meter when it is not nil.
func Observe(channel *webrtc.DataChannel, h Handler, meter *Meter) {
	channel.SetBufferedAmountLowThreshold(BufferedAmountLowThreshold)

	channel.OnOpen(func() {
		log.WithFields(log.Fields{
			"label": channel.Label(),
			"id":    channel.ID(),
		}).Debugln("Data channel open")
		h.OnStateChange(webrtc.DataChannelStateOpen)
	})
	channel.OnClose(func() {
		log.WithField("label", channel.Label()).Debugln("Data channel closed")
		h.OnStateChange(webrtc.DataChannelStateClosed)
	})
	channel.OnMessage(func(msg webrtc.DataChannelMessage) {
		if meter != nil {
			meter.AddReceived(len(msg.Data))
		}
		h.OnMessage(msg)
	})
	channel.OnBufferedAmountLow(func() {
		h.OnBufferedAmountLow(channel.BufferedAmount())
	})
	channel.OnError(func(err error) {
		log.WithField("label", channel.Label()).Errorf("Data channel error: %v", err)
	})
}

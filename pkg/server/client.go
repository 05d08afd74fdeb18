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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/abrekhov/rtcbridge/pkg/bridge"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("bridge client closed")

// message is anything the server writes: a response or an event.
type message struct {
	ID     int64                  `json:"id"`
	Result json.RawMessage        `json:"result"`
	Error  *ErrorBody             `json:"error"`
	Event  string                 `json:"event"`
	Data   map[string]interface{} `json:"data"`
}

// Client talks to a bridge server.
type Client struct {
	ws     *websocket.Conn
	nextID atomic.Int64
	events chan bridge.Event

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan message
	err     error
	done    chan struct{}
}

// Dial connects to a bridge endpoint such as ws://127.0.0.1:8089/bridge.
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge: %w", err)
	}
	c := &Client{
		ws:      ws,
		events:  make(chan bridge.Event, outboxSize),
		pending: make(map[int64]chan message),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events delivers bridge events until the client closes. Events are
// dropped while the channel is full.
func (c *Client) Events() <-chan bridge.Event {
	return c.events
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Call runs method on the server. A failed call returns a *bridge.Error
// carrying the server's code.
func (c *Client) Call(ctx context.Context, method string, params map[string]interface{}) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	replyCh := make(chan message, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.pending[id] = replyCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.ws.WriteJSON(Request{ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case reply := <-replyCh:
		if reply.Error != nil {
			return nil, &bridge.Error{Code: reply.Error.Code, Message: reply.Error.Message}
		}
		return reply.Result, nil
	case <-c.done:
		return nil, c.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close ends the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		var msg message
		if err := c.ws.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.err = fmt.Errorf("%w: %v", ErrClosed, err)
			c.mu.Unlock()
			close(c.done)
			return
		}
		if msg.Event != "" {
			select {
			case c.events <- bridge.Event{Name: msg.Event, Data: msg.Data}:
			default:
				log.WithField("event", msg.Event).Debugln("Event dropped, consumer is slow")
			}
			continue
		}
		c.mu.Lock()
		replyCh, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if ok {
			replyCh <- msg
		}
	}
}

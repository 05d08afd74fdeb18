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

// Package server exposes a bridge Module over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/abrekhov/rtcbridge/pkg/bridge"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// BridgePath is the websocket endpoint.
	BridgePath = "/bridge"
	// MetricsPath serves Prometheus metrics.
	MetricsPath = "/metrics"

	outboxSize      = 256
	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Request is a bridge call sent by a client.
type Request struct {
	ID     int64                  `json:"id"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ErrorBody describes a failed call.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID     int64       `json:"id"`
	Result interface{} `json:"result"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// Server serves one Module to any number of websocket clients. Events fan
// out to every client.
type Server struct {
	module   *bridge.Module
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// New creates a Server for module.
func New(module *bridge.Module) *Server {
	return &Server{
		module: module,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*conn]struct{}),
	}
}

// Handler routes the bridge and metrics endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(BridgePath, s.handleBridge)
	mux.Handle(MetricsPath, s.module.Metrics().Handler())
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then closes every
// client and releases the module.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	log.WithField("addr", listener.Addr().String()).Infoln("Bridge server listening")

	select {
	case err := <-errCh:
		s.module.FinishLoading()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeAll()
	s.module.FinishLoading()
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	log.Infoln("Bridge server stopped")
	return err
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	c := newConn(ws)
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	go c.writeLoop()
	unsubscribe := s.module.Subscribe(c.event)

	logger := log.WithField("remote", r.RemoteAddr)
	logger.Infoln("Bridge client connected")
	defer func() {
		unsubscribe()
		c.close()
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		logger.Infoln("Bridge client disconnected")
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf("Read failed: %v", err)
			}
			return
		}
		if !c.reply(s.handle(r.Context(), data)) {
			return
		}
	}
}

// handle runs one request. Requests on a connection run in order.
func (s *Server) handle(ctx context.Context, data []byte) Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Response{Error: &ErrorBody{Code: bridge.CodeType, Message: fmt.Sprintf("malformed request: %v", err)}}
	}
	result, err := s.module.Call(ctx, req.Method, req.Params)
	if err != nil {
		return Response{ID: req.ID, Error: &ErrorBody{Code: bridge.ErrorCode(err), Message: err.Error()}}
	}
	return Response{ID: req.ID, Result: result}
}

// conn owns the write side of one websocket.
type conn struct {
	ws     *websocket.Conn
	outbox chan interface{}
	done   chan struct{}
	once   sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:     ws,
		outbox: make(chan interface{}, outboxSize),
		done:   make(chan struct{}),
	}
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.outbox:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				log.Debugf("Write failed: %v", err)
				c.close()
				return
			}
		}
	}
}

// reply queues a response and reports whether the connection is still open.
func (c *conn) reply(resp Response) bool {
	select {
	case c.outbox <- resp:
		return true
	case <-c.done:
		return false
	}
}

// event queues an event without blocking the engine goroutine that raised it.
func (c *conn) event(ev bridge.Event) {
	select {
	case c.outbox <- ev:
	case <-c.done:
	default:
		log.WithField("event", ev.Name).Warnln("Client outbox full, event dropped")
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.ws.Close()
	})
}

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
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abrekhov/rtcbridge/pkg/bridge"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*bridge.Module, *httptest.Server) {
	t.Helper()
	m, err := bridge.New(bridge.Options{})
	require.NoError(t, err)
	t.Cleanup(m.FinishLoading)
	srv := httptest.NewServer(New(m).Handler())
	t.Cleanup(srv.Close)
	return m, srv
}

func bridgeURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + BridgePath
}

func dial(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, bridgeURL(srv))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func callCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCall(t *testing.T) {
	_, srv := newTestServer(t)
	c := dial(t, srv)

	res, err := c.Call(callCtx(t), "getAudioPort", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"none"`, string(res))

	_, err = c.Call(callCtx(t), "peerConnectionInit", map[string]interface{}{"valueTag": "pc"})
	require.NoError(t, err)

	_, err = c.Call(callCtx(t), "peerConnectionInit", map[string]interface{}{"valueTag": "pc"})
	var bridgeErr *bridge.Error
	require.True(t, errors.As(err, &bridgeErr))
	assert.Equal(t, bridge.CodeInvalidState, bridgeErr.Code)

	_, err = c.Call(callCtx(t), "launchRocket", nil)
	require.True(t, errors.As(err, &bridgeErr))
	assert.Equal(t, bridge.CodeUnknownMethod, bridgeErr.Code)
}

func TestMalformedRequest(t *testing.T) {
	_, srv := newTestServer(t)
	ws, _, err := websocket.DefaultDialer.Dial(bridgeURL(srv), nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var resp struct {
		ID    int64      `json:"id"`
		Error *ErrorBody `json:"error"`
	}
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, ws.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, bridge.CodeType, resp.Error.Code)
}

func TestEventsFanOut(t *testing.T) {
	_, srv := newTestServer(t)
	first := dial(t, srv)
	second := dial(t, srv)

	_, err := first.Call(callCtx(t), "peerConnectionInit", map[string]interface{}{"valueTag": "pc"})
	require.NoError(t, err)
	res, err := first.Call(callCtx(t), "getUserMedia", map[string]interface{}{
		"constraints": map[string]interface{}{"audio": true},
	})
	require.NoError(t, err)

	var media struct {
		Tracks []struct {
			Kind     string `json:"kind"`
			ValueTag string `json:"valueTag"`
		} `json:"tracks"`
	}
	require.NoError(t, json.Unmarshal(res, &media))
	var audioTag string
	for _, tr := range media.Tracks {
		if tr.Kind == "audio" {
			audioTag = tr.ValueTag
		}
	}
	require.NotEmpty(t, audioTag)

	_, err = first.Call(callCtx(t), "peerConnectionAddTrack", map[string]interface{}{
		"valueTag": "pc", "trackValueTag": audioTag,
	})
	require.NoError(t, err)

	for name, c := range map[string]*Client{"first": first, "second": second} {
		waitEvent(t, c, bridge.EventShouldNegotiate, "pc", name)
	}
}

func waitEvent(t *testing.T, c *Client, event, valueTag, who string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "%s: connection closed", who)
			if ev.Name == event && ev.Data["valueTag"] == valueTag {
				return
			}
		case <-timeout:
			t.Fatalf("%s: no %s event", who, event)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestServer(t)
	c := dial(t, srv)

	_, err := c.Call(callCtx(t), "enableMetrics", nil)
	require.NoError(t, err)
	_, err = c.Call(callCtx(t), "getAudioPort", nil)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `rtcbridge_call_duration_milliseconds_bucket{method="getAudioPort"`)

	res, err := c.Call(callCtx(t), "getAndResetMetrics", nil)
	require.NoError(t, err)
	var samples []struct {
		Name    string            `json:"name"`
		Samples map[string]uint64 `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(res, &samples))
	assert.NotEmpty(t, samples)
}

func TestServe_ShutdownReleasesModule(t *testing.T) {
	m, err := bridge.New(bridge.Options{})
	require.NoError(t, err)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- New(m).Serve(ctx, listener) }()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	c, err := Dial(dialCtx, "ws://"+listener.Addr().String()+BridgePath)
	require.NoError(t, err)
	_, err = c.Call(callCtx(t), "peerConnectionInit", map[string]interface{}{"valueTag": "pc"})
	require.NoError(t, err)
	require.Equal(t, 1, m.Counts()["peerConnections"])

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, 0, m.Counts()["peerConnections"])

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client was not disconnected")
	}
	_, err = c.Call(callCtx(t), "getAudioPort", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

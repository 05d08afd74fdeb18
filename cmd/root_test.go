/*
Copyright © 2021 Anton Brekhov <anton@abrekhov.ru>

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

package cmd

import (
	"bytes"
	"testing"

	webrtc "github.com/pion/webrtc/v3"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestICEServers(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		servers, err := iceServers(nil)
		require.NoError(t, err)
		require.Len(t, servers, 1)
		assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, servers[0].URLs)
	})

	t.Run("environment list", func(t *testing.T) {
		servers, err := iceServers("stun:a.example:3478, turn:b.example:3478,")
		require.NoError(t, err)
		require.Len(t, servers, 2)
		assert.Equal(t, []string{"turn:b.example:3478"}, servers[1].URLs)
	})

	t.Run("config objects", func(t *testing.T) {
		servers, err := iceServers([]interface{}{
			map[string]interface{}{
				"urls":       "turn:turn.example:3478",
				"username":   "user",
				"credential": "secret",
			},
		})
		require.NoError(t, err)
		require.Len(t, servers, 1)
		assert.Equal(t, "user", servers[0].Username)
		assert.Equal(t, "secret", servers[0].Credential)
		assert.Equal(t, webrtc.ICECredentialTypePassword, servers[0].CredentialType)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := iceServers([]interface{}{"stun:nope"})
		assert.Error(t, err)
		_, err = iceServers(42)
		assert.Error(t, err)
	})
}

func TestModuleOptions(t *testing.T) {
	v := viper.New()
	v.Set("loopback_candidates", true)
	v.Set("audio_file", "/tmp/voice.ogg")
	v.Set("devices", []interface{}{
		map[string]interface{}{"id": "front", "facing": "user", "file": "/tmp/front.ivf"},
		map[string]interface{}{"id": "back", "facing": "environment"},
	})

	opts, err := moduleOptions(v)
	require.NoError(t, err)
	assert.True(t, opts.LoopbackCandidates)
	assert.Equal(t, "/tmp/voice.ogg", opts.AudioFile)
	require.Len(t, opts.Devices, 2)
	assert.Equal(t, "front", opts.Devices[0].ID)
	assert.Equal(t, "/tmp/front.ivf", opts.Devices[0].File)
	assert.Equal(t, "environment", opts.Devices[1].Facing)
	assert.Len(t, opts.ICEServers, 1)
	assert.NotNil(t, opts.Logger)
}

func TestBridgeURL(t *testing.T) {
	assert.Equal(t, "ws://127.0.0.1:8089/bridge", bridgeURL(":8089"))
	assert.Equal(t, "ws://10.0.0.2:9000/bridge", bridgeURL("10.0.0.2:9000"))
}

func TestParseParams(t *testing.T) {
	params, err := parseParams(`{"valueTag":"pc","init":{"ordered":false}}`)
	require.NoError(t, err)
	assert.Equal(t, "pc", params["valueTag"])
	assert.Equal(t, false, params["init"].(map[string]interface{})["ordered"])

	params, err = parseParams("  ")
	require.NoError(t, err)
	assert.Nil(t, params)

	_, err = parseParams(`["not", "an", "object"]`)
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, nil)
	printResult(&buf, map[string]interface{}{"type": "offer"})
	assert.Equal(t, "ok\n{\n  \"type\": \"offer\"\n}\n", buf.String())
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version", "--long"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "rtcbridge\tdev")
	assert.Contains(t, buf.String(), "engine\t"+Engine)
}

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
	"fmt"
	"strings"

	"github.com/abrekhov/rtcbridge/pkg/bridge"
	"github.com/abrekhov/rtcbridge/pkg/capture"
	"github.com/abrekhov/rtcbridge/pkg/convert"
	"github.com/abrekhov/rtcbridge/pkg/server"
	webrtc "github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// moduleOptions builds bridge options from the loaded configuration.
func moduleOptions(v *viper.Viper) (bridge.Options, error) {
	servers, err := iceServers(v.Get("ice_servers"))
	if err != nil {
		return bridge.Options{}, err
	}
	var devices []capture.Device
	if err := v.UnmarshalKey("devices", &devices); err != nil {
		return bridge.Options{}, fmt.Errorf("devices: %w", err)
	}
	return bridge.Options{
		ICEServers:         servers,
		LoopbackCandidates: v.GetBool("loopback_candidates"),
		Devices:            devices,
		AudioFile:          v.GetString("audio_file"),
		Logger:             log.StandardLogger(),
	}, nil
}

// iceServers accepts a list of server objects from a config file, or a
// comma separated list of urls from the environment.
func iceServers(raw interface{}) ([]webrtc.ICEServer, error) {
	switch v := raw.(type) {
	case nil:
		return []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}, nil
	case string:
		var out []webrtc.ICEServer
		for _, url := range strings.Split(v, ",") {
			if url = strings.TrimSpace(url); url != "" {
				out = append(out, webrtc.ICEServer{URLs: []string{url}})
			}
		}
		return out, nil
	case []interface{}:
		out := make([]webrtc.ICEServer, 0, len(v))
		for i, entry := range v {
			server, err := convert.ICEServer(entry)
			if err != nil {
				return nil, fmt.Errorf("ice_servers[%d]: %w", i, err)
			}
			out = append(out, *server)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("ice_servers: unexpected %T", raw)
	}
}

// bridgeURL turns a listen address into the websocket url of the bridge.
func bridgeURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		listen = "127.0.0.1" + listen
	}
	return "ws://" + listen + server.BridgePath
}

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
	"os"
	"os/signal"
	"syscall"

	"github.com/abrekhov/rtcbridge/pkg/bridge"
	"github.com/abrekhov/rtcbridge/pkg/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd runs the bridge server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bridge over a websocket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := moduleOptions(viper.GetViper())
		if err != nil {
			return err
		}
		m, err := bridge.New(opts)
		if err != nil {
			return err
		}
		if viper.GetBool("metrics") {
			m.Metrics().Enable()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		listen := viper.GetString("listen")
		log.WithFields(log.Fields{
			"url":        bridgeURL(listen),
			"iceServers": len(opts.ICEServers),
			"devices":    len(opts.Devices),
		}).Infoln("Starting bridge")
		return server.New(m).ListenAndServe(ctx, listen)
	},
}

func init() {
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default 127.0.0.1:8089)")
	serveCmd.Flags().Bool("metrics", false, "Enable metrics from startup")
	serveCmd.Flags().Bool("loopback-candidates", false, "Gather loopback ICE candidates")
	cobra.CheckErr(viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen")))
	cobra.CheckErr(viper.BindPFlag("metrics", serveCmd.Flags().Lookup("metrics")))
	cobra.CheckErr(viper.BindPFlag("loopback_candidates", serveCmd.Flags().Lookup("loopback-candidates")))
	rootCmd.AddCommand(serveCmd)
}

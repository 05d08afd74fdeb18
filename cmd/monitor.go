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
	"context"
	"time"

	"github.com/abrekhov/rtcbridge/pkg/server"
	"github.com/abrekhov/rtcbridge/pkg/tui"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const dialTimeout = 10 * time.Second

var monitorURL string

// monitorCmd attaches a live view to a running bridge
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch bridge events of a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		url := monitorURL
		if url == "" {
			url = bridgeURL(viper.GetString("listen"))
		}

		p := tea.NewProgram(tui.NewModel(url))
		clients := make(chan *server.Client, 1)
		go func() {
			ctx, cancel := context.WithTimeout(cmd.Context(), dialTimeout)
			defer cancel()
			client, err := server.Dial(ctx, url)
			if err != nil {
				p.Send(tui.ErrorMsg{Err: err})
				close(clients)
				return
			}
			clients <- client
			p.Send(tui.ConnectedMsg{Events: client.Events()})
		}()

		_, err := p.Run()
		if client, ok := <-clients; ok {
			if cerr := client.Close(); cerr != nil {
				log.Debugf("Close bridge client: %v", cerr)
			}
		}
		return err
	},
}

func init() {
	monitorCmd.Flags().StringVarP(&monitorURL, "url", "u", "", "Bridge websocket url (default from listen)")
	rootCmd.AddCommand(monitorCmd)
}

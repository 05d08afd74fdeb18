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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/abrekhov/rtcbridge/pkg/bridge"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	consoleQuit = "quit"
	consoleDump = "dump"
)

// consoleCmd drives an in-process bridge from prompts
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Call bridge methods interactively",
	Long: `console runs a bridge in this process and prompts for methods and
their JSON params. Events are logged as they arrive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := moduleOptions(viper.GetViper())
		if err != nil {
			return err
		}
		m, err := bridge.New(opts)
		if err != nil {
			return err
		}
		defer m.FinishLoading()

		unsubscribe := m.Subscribe(func(ev bridge.Event) {
			log.WithFields(log.Fields(ev.Data)).Infoln(ev.Name)
		})
		defer unsubscribe()

		return runConsole(cmd, m)
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, m *bridge.Module) error {
	choices := append([]string{consoleQuit, consoleDump}, bridge.Methods()...)
	out := cmd.OutOrStdout()
	for {
		var method string
		if err := survey.AskOne(&survey.Select{
			Message:  "Method:",
			Options:  choices,
			PageSize: 15,
		}, &method); err != nil {
			return promptErr(err)
		}
		switch method {
		case consoleQuit:
			return nil
		case consoleDump:
			fmt.Fprint(out, m.Dump())
			continue
		}

		var raw string
		if err := survey.AskOne(&survey.Input{
			Message: "Params (JSON):",
			Default: "{}",
		}, &raw, survey.WithValidator(func(ans interface{}) error {
			_, err := parseParams(ans.(string))
			return err
		})); err != nil {
			return promptErr(err)
		}
		params, _ := parseParams(raw)

		result, err := m.Call(cmd.Context(), method, params)
		if err != nil {
			fmt.Fprintf(out, "error %s: %v\n", bridge.ErrorCode(err), err)
			continue
		}
		printResult(out, result)
	}
}

// promptErr treats an interrupted prompt as a clean exit.
func promptErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// parseParams decodes a JSON object. An empty string means no params.
func parseParams(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	return params, nil
}

func printResult(w io.Writer, result interface{}) {
	if result == nil {
		fmt.Fprintln(w, "ok")
		return
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%#v\n", result)
		return
	}
	fmt.Fprintln(w, string(data))
}

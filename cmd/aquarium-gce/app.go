/**
 * Copyright 2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/adobe/aquarium-gce/lib/config"
	"github.com/adobe/aquarium-gce/lib/drivers"
	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
	"github.com/adobe/aquarium-gce/lib/monitoring"
	"github.com/adobe/aquarium-gce/lib/util"
)

// Skips the config & driver initialization for the command
const annotationNoDriver = "no-driver"

// Marks the group of commands working with one resource kind
const annotationResource = "resource"

type app struct {
	out io.Writer

	cfgPath      string
	providerName string
	logVerbosity string
	logTimestamp bool
	output       string
	timeout      time.Duration

	cfg     *config.Config
	monitor *monitoring.Monitor
	drv     provider.Driver
}

func newApp(out io.Writer) *app {
	return &app{out: out}
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aquarium-gce",
		Short:         "Aquarium GCE",
		Long:          `Part of the Aquarium suite - manages Google Compute Engine resources through the provider abstraction`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ /*args*/ []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.cfgPath, "cfg", "c", "", "yaml configuration file")
	flags.StringVarP(&a.providerName, "provider", "p", "", "provider driver instance from config, default_provider if not set")
	flags.StringVarP(&a.logVerbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")
	flags.BoolVar(&a.logTimestamp, "timestamp", true, "prepend timestamps for each log line")
	flags.Lookup("timestamp").NoOptDefVal = "false"
	flags.StringVarP(&a.output, "output", "o", "yaml", "output format (yaml, json)")
	flags.DurationVar(&a.timeout, "timeout", 0, "limit for the whole command, no limit when 0")

	cmd.AddCommand(
		&cobra.Command{
			Use:         "version",
			Short:       "Print version",
			Annotations: map[string]string{annotationNoDriver: "true"},
			RunE: func(_ *cobra.Command, _ []string) error {
				_, err := fmt.Fprintln(a.out, versionString())
				return err
			},
		},
		a.vmCommand(),
		a.volumeCommand(),
		a.snapshotCommand(),
		a.imageCommand(),
		a.vlanCommand(),
		a.firewallCommand(),
		a.lbCommand(),
		a.ipCommand(),
	)

	return cmd
}

// init sets up logging, monitoring & the selected provider driver
func (a *app) init(cmd *cobra.Command) error {
	logCfg := log.DefaultConfig()
	logCfg.Level = a.logVerbosity
	logCfg.UseTimestamp = a.logTimestamp
	logCfg.Writer = cmd.ErrOrStderr()
	if err := log.Initialize(logCfg); err != nil {
		return err
	}
	if cmd.Annotations[annotationNoDriver] != "" {
		return nil
	}
	if a.output != "yaml" && a.output != "json" {
		return fmt.Errorf("Unsupported output format: %q", a.output)
	}

	logger := log.WithFunc("main", "init")

	a.cfg = &config.Config{}
	if err := a.cfg.ReadConfigFile(a.cfgPath); err != nil {
		logger.Error("Unable to apply config file", "cfg_path", a.cfgPath, "err", err)
		return err
	}
	// Flags are winning over the config file
	if cmd.Flags().Changed("verbosity") {
		a.cfg.Log.Level = a.logVerbosity
	}
	if cmd.Flags().Changed("timestamp") {
		a.cfg.Log.UseTimestamp = a.logTimestamp
	}
	if a.cfg.Log.Output == "" || a.cfg.Log.Output == "stderr" {
		a.cfg.Log.Writer = cmd.ErrOrStderr()
	}
	if err := log.Initialize(a.cfg.Log); err != nil {
		return err
	}

	var err error
	if a.monitor, err = monitoring.Initialize(cmd.Context(), a.cfg.Monitoring); err != nil {
		logger.Error("Unable to initialize monitoring", "err", err)
		return fmt.Errorf("Unable to initialize monitoring: %w", err)
	}

	name := a.providerName
	if name == "" {
		name = a.cfg.DefaultProvider
	}
	if name == "" {
		return fmt.Errorf("Provider is not selected, use --provider or default_provider in config")
	}
	drvCfg, ok := a.cfg.Drivers.Providers[name]
	if !ok {
		return fmt.Errorf("Provider %q is not configured", name)
	}
	// Only the used driver is prepared to not verify all the configured accounts
	if err = drivers.Init(cmd.Context(), drivers.ConfigDrivers{
		Providers: map[string]util.UnparsedJSON{name: drvCfg},
	}); err != nil {
		return err
	}
	a.drv = drivers.GetProvider(name)

	for c := cmd; c != nil; c = c.Parent() {
		if kind := c.Annotations[annotationResource]; kind != "" {
			if !supports(a.drv, kind) {
				return provider.ErrNotSupported(kind)
			}
			break
		}
	}
	return nil
}

// context returns the command context limited by --timeout
func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(cmd.Context(), a.timeout)
	}
	return context.WithCancel(cmd.Context())
}

// print writes the result in the selected format
func (a *app) print(v any) error {
	var data []byte
	var err error
	if a.output == "json" {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	} else {
		// Converts through json to respect the json field names
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("Unable to format output: %w", err)
	}
	_, err = a.out.Write(data)
	return err
}

// readOptions parses yaml or json options from inline flag value or from file
func readOptions(inline, path string, out any) error {
	data := []byte(inline)
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return provider.WrapError(provider.KindBadArgument, fmt.Sprintf("Unable to read options file %q", path), err)
		}
	}
	// Options are owned by the driver, so yaml is only translated to json here
	var js util.UnparsedJSON
	if err := yamlv3.Unmarshal(data, &js); err != nil {
		return provider.WrapError(provider.KindBadArgument, "Unable to parse options", err)
	}
	return provider.ParseOptions(js.Bytes(), out)
}

func supports(d provider.Driver, kind string) bool {
	switch kind {
	case "vm":
		return d.VirtualMachines() != nil
	case "volume":
		return d.Volumes() != nil
	case "snapshot":
		return d.Snapshots() != nil
	case "image":
		return d.Images() != nil
	case "vlan":
		return d.VLANs() != nil
	case "firewall":
		return d.Firewalls() != nil
	case "lb":
		return d.LoadBalancers() != nil
	case "ip":
		return d.IPAddresses() != nil
	}
	return false
}

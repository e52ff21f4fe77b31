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

	"github.com/spf13/cobra"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
)

func (a *app) vmCommand() *cobra.Command {
	vms := func(d provider.Driver) provider.VirtualMachineService { return d.VirtualMachines() }
	cmd := groupCommand(a, "vm", "Manage virtual machines", func(d provider.Driver) getLister[provider.VirtualMachine] {
		return vms(d)
	})

	var count int
	launchMany := optionsCommand(a, "launch-many", "Launch batch of machines named <name>-<index>",
		func(ctx context.Context, opts provider.VMLaunchOptions) (any, error) {
			return vms(a.drv).LaunchMany(ctx, opts, count)
		})
	launchMany.Flags().IntVarP(&count, "count", "n", 1, "amount of machines to launch")

	var location string
	products := &cobra.Command{
		Use:   "products",
		Short: "List available machine types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			out, err := vms(a.drv).ListProducts(ctx, location)
			if err != nil {
				return err
			}
			return a.print(out)
		},
	}
	products.Flags().StringVarP(&location, "location", "l", "", "zone, driver default when empty")

	cmd.AddCommand(
		optionsCommand(a, "launch", "Launch machine", func(ctx context.Context, opts provider.VMLaunchOptions) (any, error) {
			return vms(a.drv).Launch(ctx, opts)
		}),
		launchMany,
		products,
		idCommand(a, "start ID", "Start stopped machine", 1, func(ctx context.Context, args []string) (any, error) {
			return done(vms(a.drv).Start(ctx, args[0]))
		}),
		idCommand(a, "stop ID", "Stop machine", 1, func(ctx context.Context, args []string) (any, error) {
			return done(vms(a.drv).Stop(ctx, args[0]))
		}),
		idCommand(a, "reboot ID", "Reboot machine", 1, func(ctx context.Context, args []string) (any, error) {
			return done(vms(a.drv).Reboot(ctx, args[0]))
		}),
		idCommand(a, "pause ID", "Pause machine", 1, func(ctx context.Context, args []string) (any, error) {
			return done(vms(a.drv).Pause(ctx, args[0]))
		}),
		idCommand(a, "unpause ID", "Unpause machine", 1, func(ctx context.Context, args []string) (any, error) {
			return done(vms(a.drv).Unpause(ctx, args[0]))
		}),
		idCommand(a, "terminate ID", "Terminate machine", 1, func(ctx context.Context, args []string) (any, error) {
			return done(vms(a.drv).Terminate(ctx, args[0]))
		}),
		idCommand(a, "alter ID PRODUCT", "Change machine type of the stopped machine", 2, func(ctx context.Context, args []string) (any, error) {
			return vms(a.drv).AlterProduct(ctx, args[0], args[1])
		}),
		&cobra.Command{
			Use:   "console ID",
			Short: "Print serial console output",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := a.context(cmd)
				defer cancel()
				out, err := vms(a.drv).ConsoleOutput(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = a.out.Write([]byte(out))
				return err
			},
		},
	)
	return cmd
}

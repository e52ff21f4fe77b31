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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/util"
)

func (a *app) volumeCommand() *cobra.Command {
	cmd := groupCommand(a, "volume", "Manage block storage volumes", func(d provider.Driver) getLister[provider.Volume] {
		return d.Volumes()
	})

	var device string
	attach := idCommand(a, "attach ID VM_ID", "Attach volume to the machine", 2, func(ctx context.Context, args []string) (any, error) {
		return done(a.drv.Volumes().Attach(ctx, args[0], args[1], device))
	})
	attach.Flags().StringVar(&device, "device", "", "device name inside the machine, volume name when empty")

	cmd.AddCommand(
		optionsCommand(a, "create", "Create volume", func(ctx context.Context, opts provider.VolumeCreateOptions) (any, error) {
			return a.drv.Volumes().Create(ctx, opts)
		}),
		idCommand(a, "delete ID", "Delete volume", 1, func(ctx context.Context, args []string) (any, error) {
			return done(a.drv.Volumes().Delete(ctx, args[0]))
		}),
		attach,
		idCommand(a, "detach ID VM_ID", "Detach volume from the machine", 2, func(ctx context.Context, args []string) (any, error) {
			return done(a.drv.Volumes().Detach(ctx, args[0], args[1]))
		}),
		idCommand(a, "resize ID SIZE", "Grow volume to the size (like 50GB)", 2, func(ctx context.Context, args []string) (any, error) {
			size, err := util.NewHumanSize(args[1])
			if err != nil {
				return nil, provider.WrapError(provider.KindBadArgument, fmt.Sprintf("Invalid size %q", args[1]), err)
			}
			return a.drv.Volumes().Resize(ctx, args[0], size.Gigabytes())
		}),
	)
	return cmd
}

func (a *app) snapshotCommand() *cobra.Command {
	cmd := groupCommand(a, "snapshot", "Manage volume snapshots", func(d provider.Driver) getLister[provider.Snapshot] {
		return d.Snapshots()
	})
	cmd.AddCommand(
		optionsCommand(a, "create", "Take snapshot of the volume", func(ctx context.Context, opts provider.SnapshotCreateOptions) (any, error) {
			return a.drv.Snapshots().Create(ctx, opts)
		}),
		idCommand(a, "delete ID", "Delete snapshot", 1, func(ctx context.Context, args []string) (any, error) {
			return done(a.drv.Snapshots().Delete(ctx, args[0]))
		}),
	)
	return cmd
}

func (a *app) imageCommand() *cobra.Command {
	cmd := groupCommand(a, "image", "Manage machine images", func(d provider.Driver) getLister[provider.MachineImage] {
		return d.Images()
	})
	cmd.AddCommand(
		optionsCommand(a, "create", "Capture image from volume or import it from storage", func(ctx context.Context, opts provider.ImageCreateOptions) (any, error) {
			return a.drv.Images().Create(ctx, opts)
		}),
		idCommand(a, "delete ID", "Delete image", 1, func(ctx context.Context, args []string) (any, error) {
			return done(a.drv.Images().Delete(ctx, args[0]))
		}),
	)
	return cmd
}

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
)

type getLister[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	List(ctx context.Context, filter provider.FilterOptions) ([]*T, error)
}

// groupCommand creates the parent command of the resource kind with get & list subcommands
func groupCommand[T any](a *app, kind, short string, svc func(provider.Driver) getLister[T]) *cobra.Command {
	group := &cobra.Command{
		Use:         kind,
		Short:       short,
		Annotations: map[string]string{annotationResource: kind},
	}

	var filter provider.FilterOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List " + kind + " resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			out, err := svc(a.drv).List(ctx, filter)
			if err != nil {
				return err
			}
			return a.print(out)
		},
	}
	list.Flags().StringVarP(&filter.Location, "location", "l", "", "zone or region, all when empty")
	list.Flags().StringVar(&filter.NameRegex, "name-regex", "", "regular expression the name should match")
	list.Flags().StringToStringVar(&filter.Labels, "label", nil, "label the resource should have (key=value)")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show " + kind + " resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			out, err := svc(a.drv).Get(ctx, args[0])
			if err != nil {
				return err
			}
			if out == nil {
				return provider.NewError(provider.KindNotFound, fmt.Sprintf("%s %q not found", kind, args[0]))
			}
			return a.print(out)
		},
	}

	group.AddCommand(list, get)
	return group
}

// optionsCommand runs the action with the options given inline or by file
func optionsCommand[O any](a *app, use, short string, run func(ctx context.Context, opts O) (any, error)) *cobra.Command {
	var inline, path string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts O
			if err := readOptions(inline, path, &opts); err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			out, err := run(ctx, opts)
			if err != nil {
				return err
			}
			return a.print(out)
		},
	}
	cmd.Flags().StringVar(&inline, "opts", "", "options in yaml or json format")
	cmd.Flags().StringVarP(&path, "file", "f", "", "file with options in yaml or json format")
	return cmd
}

// idCommand runs the action on the resource, nil result is printed as nothing
func idCommand(a *app, use, short string, nargs int, run func(ctx context.Context, args []string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			out, err := run(ctx, args)
			if err != nil || out == nil {
				return err
			}
			return a.print(out)
		},
	}
}

// done wraps the actions which return only error
func done(err error) (any, error) {
	return nil, err
}

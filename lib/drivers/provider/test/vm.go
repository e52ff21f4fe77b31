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

package test

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/adobe/aquarium-gce/lib/crypt"
	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
	"github.com/adobe/aquarium-gce/lib/util"
)

type vmService struct {
	d *Driver
}

func (s *vmService) Get(_ context.Context, id string) (*provider.VirtualMachine, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	vm, ok := s.d.vms[id]
	if !ok {
		return nil, nil
	}
	return copyVM(vm), nil
}

func (s *vmService) List(_ context.Context, filter provider.FilterOptions) ([]*provider.VirtualMachine, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	var out []*provider.VirtualMachine
	for _, id := range slices.Sorted(maps.Keys(s.d.vms)) {
		vm := s.d.vms[id]
		if filter.Location != "" && vm.Location != filter.Location {
			continue
		}
		if !filter.Matches(vm.Name, vm.Labels) {
			continue
		}
		out = append(out, copyVM(vm))
	}
	return out, nil
}

func (s *vmService) ListProducts(_ context.Context, location string) ([]*provider.VMProduct, error) {
	if location == "" {
		location = s.d.cfg.Location
	}
	out := make([]*provider.VMProduct, 0, len(s.d.cfg.Products))
	for i, p := range s.d.cfg.Products {
		out = append(out, &provider.VMProduct{
			ID:       p,
			Location: location,
			CPUs:     int64(2 << i),
			MemoryMB: int64(4096 << i),
		})
	}
	return out, nil
}

func (s *vmService) Launch(ctx context.Context, opts provider.VMLaunchOptions) (*provider.VirtualMachine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !slices.Contains(s.d.cfg.Products, opts.ProductID) {
		return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("TEST: Unknown product %q", opts.ProductID))
	}
	if opts.Name == "" {
		opts.Name = "test-" + crypt.RandStringCharset(6, crypt.RandStringCharsetName)
	}
	if opts.Location == "" {
		opts.Location = s.d.cfg.Location
	}

	logger := log.WithFunc("test", "Launch").With("provider.name", s.d.name, "vm.name", opts.Name)

	if err := randomFail("Launch "+opts.Name, s.d.cfg.FailLaunch); err != nil {
		logger.Error("RandomFail", "err", err)
		return nil, err
	}
	if slices.Contains(s.d.cfg.FailLaunchNames, opts.Name) {
		return nil, provider.NewError(provider.KindRemoteOperation, fmt.Sprintf("TEST: Launch %s failed", opts.Name))
	}

	// Render the metadata the same way the machine would receive it
	var boot strings.Builder
	if len(opts.Metadata) > 0 {
		data, err := util.SerializeMetadata(opts.MetadataFormat, "", opts.Metadata)
		if err != nil {
			return nil, provider.WrapError(provider.KindBadArgument, "TEST: Unable to serialize metadata", err)
		}
		boot.Write(data)
		boot.WriteString("\n")
	}

	vm := &provider.VirtualMachine{
		ID:        opts.Location + "/" + opts.Name,
		Name:      opts.Name,
		Location:  opts.Location,
		ProductID: opts.ProductID,
		ImageID:   opts.ImageID,
		State:     provider.VMPending,
		Labels:    maps.Clone(opts.Labels),
		Created:   time.Now(),
	}
	if opts.GenerateSSHKey {
		key, err := crypt.GenerateSSHKey()
		if err != nil {
			return nil, provider.WrapError(provider.KindGeneral, "TEST: Unable to generate ssh key", err)
		}
		vm.SSHPrivateKey = string(key)
	}

	s.d.mu.Lock()
	if _, ok := s.d.vms[vm.ID]; ok {
		s.d.mu.Unlock()
		return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("TEST: Machine %q already exists", vm.ID))
	}
	s.d.counter++
	vm.Private = []string{fmt.Sprintf("10.0.%d.%d", s.d.counter/250, s.d.counter%250+2)}
	if opts.PublicIP {
		vm.Public = []string{fmt.Sprintf("203.0.%d.%d", s.d.counter/250, s.d.counter%250+2)}
	}
	s.d.vms[vm.ID] = vm
	s.d.console[vm.ID] = []string{"Booting " + vm.Name, boot.String()}
	s.d.mu.Unlock()

	if s.d.cfg.DelayLaunch > 0 {
		select {
		case <-ctx.Done():
			s.remove(vm.ID)
			return nil, provider.NewTimeout("TEST: Launch interrupted: " + ctx.Err().Error())
		case <-time.After(time.Duration(s.d.cfg.DelayLaunch)):
		}
	}

	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	vm.State = provider.VMRunning
	logger.Info("Machine launched", "vm.id", vm.ID)
	out := copyVM(vm)
	out.SSHPrivateKey = vm.SSHPrivateKey
	vm.SSHPrivateKey = ""
	return out, nil
}

func (s *vmService) LaunchMany(ctx context.Context, opts provider.VMLaunchOptions, count int) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.GenerateSSHKey {
		return nil, provider.NewError(provider.KindBadArgument, "TEST: Generated ssh keys can't be returned by the batch launch")
	}
	prefix := opts.Name
	if prefix == "" {
		prefix = "test-" + crypt.RandStringCharset(6, crypt.RandStringCharsetName)
	}

	return provider.LaunchBatch(ctx, s.d.cfg.LaunchConcurrency, count, func(ctx context.Context, index int) (string, error) {
		item := opts
		item.Name = fmt.Sprintf("%s-%d", prefix, index)
		vm, err := s.Launch(ctx, item)
		if err != nil {
			return "", err
		}
		return vm.ID, nil
	})
}

func (s *vmService) Start(_ context.Context, id string) error {
	return s.transition(id, "start", []provider.VMState{provider.VMStopped, provider.VMRunning}, provider.VMRunning)
}

func (s *vmService) Stop(_ context.Context, id string) error {
	return s.transition(id, "stop", []provider.VMState{provider.VMRunning, provider.VMStopped, provider.VMSuspended}, provider.VMStopped)
}

func (s *vmService) Reboot(_ context.Context, id string) error {
	return s.transition(id, "reboot", []provider.VMState{provider.VMRunning}, provider.VMRunning)
}

func (s *vmService) Pause(_ context.Context, id string) error {
	return s.transition(id, "pause", []provider.VMState{provider.VMRunning}, provider.VMSuspended)
}

func (s *vmService) Unpause(_ context.Context, id string) error {
	return s.transition(id, "unpause", []provider.VMState{provider.VMSuspended}, provider.VMRunning)
}

func (s *vmService) Terminate(_ context.Context, id string) error {
	if err := randomFail("Terminate "+id, s.d.cfg.FailTerminate); err != nil {
		log.WithFunc("test", "Terminate").Error("RandomFail", "err", err)
		return err
	}
	if !s.remove(id) {
		return provider.NewError(provider.KindNotFound, fmt.Sprintf("TEST: Machine %q not found", id))
	}
	return nil
}

func (s *vmService) AlterProduct(_ context.Context, id, productID string) (*provider.VirtualMachine, error) {
	if !slices.Contains(s.d.cfg.Products, productID) {
		return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("TEST: Unknown product %q", productID))
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	vm, ok := s.d.vms[id]
	if !ok {
		return nil, provider.NewError(provider.KindNotFound, fmt.Sprintf("TEST: Machine %q not found", id))
	}
	if vm.State != provider.VMStopped {
		return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("TEST: Machine %q should be stopped to change product, it's %s", id, vm.State))
	}
	vm.ProductID = productID
	return copyVM(vm), nil
}

func (s *vmService) ConsoleOutput(_ context.Context, id string) (string, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	lines, ok := s.d.console[id]
	if !ok {
		return "", provider.NewError(provider.KindNotFound, fmt.Sprintf("TEST: Machine %q not found", id))
	}
	return strings.Join(lines, "\n"), nil
}

// transition moves the machine to the new state if the current one allows it
func (s *vmService) transition(id, action string, from []provider.VMState, to provider.VMState) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	vm, ok := s.d.vms[id]
	if !ok {
		return provider.NewError(provider.KindNotFound, fmt.Sprintf("TEST: Machine %q not found", id))
	}
	if !slices.Contains(from, vm.State) {
		return provider.NewError(provider.KindBadArgument, fmt.Sprintf("TEST: Unable to %s machine %q in state %s", action, id, vm.State))
	}
	vm.State = to
	s.d.console[id] = append(s.d.console[id], fmt.Sprintf("%s: %s", action, to))
	return nil
}

func (s *vmService) remove(id string) bool {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.vms[id]; !ok {
		return false
	}
	delete(s.d.vms, id)
	delete(s.d.console, id)
	return true
}

func copyVM(vm *provider.VirtualMachine) *provider.VirtualMachine {
	out := *vm
	out.Private = slices.Clone(vm.Private)
	out.Public = slices.Clone(vm.Public)
	out.Labels = maps.Clone(vm.Labels)
	out.SSHPrivateKey = ""
	return &out
}

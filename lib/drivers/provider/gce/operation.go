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

// Author: Sergei Parshev (@sparshev)

package gce

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/compute/v1"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
	"github.com/adobe/aquarium-gce/lib/monitoring"
)

var gceTracer = otel.Tracer("aquarium-gce/gce")

// OperationDone is the only terminal status of the operation
const OperationDone = "DONE"

// ScopeKind defines which endpoint is used to fetch the operation
type ScopeKind string

const (
	ScopeGlobal   ScopeKind = "GLOBAL"
	ScopeRegional ScopeKind = "REGIONAL"
	ScopeZonal    ScopeKind = "ZONAL"
)

// OperationScope is the kind of the operation with region or zone for the scoped ones
type OperationScope struct {
	Kind     ScopeKind
	Location string
}

// GlobalScope is for the project level resources like images, networks and firewalls
func GlobalScope() OperationScope {
	return OperationScope{Kind: ScopeGlobal}
}

// RegionScope is for addresses, subnets and load balancer parts
func RegionScope(region string) OperationScope {
	return OperationScope{Kind: ScopeRegional, Location: region}
}

// ZoneScope is for instances and disks
func ZoneScope(zone string) OperationScope {
	return OperationScope{Kind: ScopeZonal, Location: zone}
}

// Validate checks the scoped kinds have location
func (s OperationScope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		return nil
	case ScopeRegional, ScopeZonal:
		if s.Location == "" {
			return provider.NewError(provider.KindBadArgument, fmt.Sprintf("Operation scope %s requires location", s.Kind))
		}
		return nil
	}
	return provider.NewError(provider.KindBadArgument, fmt.Sprintf("Unknown operation scope: %q", s.Kind))
}

func (s OperationScope) String() string {
	if s.Location == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.Location
}

// OperationGetter fetches the current state of the operation through the scope endpoint
type OperationGetter interface {
	GetGlobalOperation(ctx context.Context, project, name string) (*compute.Operation, error)
	GetRegionOperation(ctx context.Context, project, region, name string) (*compute.Operation, error)
	GetZoneOperation(ctx context.Context, project, zone, name string) (*compute.Operation, error)
}

// computeOperations is OperationGetter over the compute api client
type computeOperations struct {
	svc *compute.Service
}

func (c computeOperations) GetGlobalOperation(ctx context.Context, project, name string) (*compute.Operation, error) {
	return c.svc.GlobalOperations.Get(project, name).Context(ctx).Do()
}

func (c computeOperations) GetRegionOperation(ctx context.Context, project, region, name string) (*compute.Operation, error) {
	return c.svc.RegionOperations.Get(project, region, name).Context(ctx).Do()
}

func (c computeOperations) GetZoneOperation(ctx context.Context, project, zone, name string) (*compute.Operation, error) {
	return c.svc.ZoneOperations.Get(project, zone, name).Context(ctx).Do()
}

// Poller waits for the long running operations to complete
type Poller struct {
	getter   OperationGetter
	project  string
	interval time.Duration
	timeout  time.Duration

	// Replaced in tests to not wait for real
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates the poller, timeout <= 0 means the default 20 minutes
func NewPoller(getter OperationGetter, project string, interval, timeout time.Duration) *Poller {
	if interval < 0 {
		interval = 0
	}
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return &Poller{
		getter:   getter,
		project:  project,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// WithInterval returns copy of the poller with another poll interval
func (p *Poller) WithInterval(interval time.Duration) *Poller {
	out := *p
	if interval >= 0 {
		out.interval = interval
	}
	return &out
}

// Await polls the operation until it's done, failed or the timeout is reached
// The embedded errors are checked first on every iteration, so the failed operation
// is reported regardless of the status it has
func (p *Poller) Await(ctx context.Context, op *compute.Operation, scope OperationScope) (*compute.Operation, error) {
	if op == nil {
		return nil, provider.NewError(provider.KindBadArgument, "Operation is not set")
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	ctx, span := gceTracer.Start(ctx, "gce.Poller.Await",
		trace.WithAttributes(
			attribute.String("gce.operation", op.Name),
			attribute.String("gce.scope", string(scope.Kind)),
			attribute.String("gce.location", scope.Location),
		))
	defer span.End()

	logger := log.WithFunc("gce", "Await").With("operation", op.Name, "scope", scope.String())
	metrics := monitoring.Default()

	start := p.now()
	deadline := start.Add(p.timeout)
	polls := 0
	finish := func(outcome string, err error) {
		span.SetAttributes(attribute.Int("gce.polls", polls), attribute.String("gce.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.RecordOperationComplete(ctx, string(scope.Kind), outcome, p.now().Sub(start))
	}

	current := op
	for {
		if current.Error != nil && len(current.Error.Errors) > 0 {
			err := operationError(current)
			logger.Error("Operation failed", "status", current.Status, "err", err)
			finish("failed", err)
			return nil, err
		}
		if current.Status == OperationDone {
			logger.Debug("Operation done", "polls", polls)
			finish("done", nil)
			return current, nil
		}
		if !p.now().Before(deadline) {
			err := provider.NewTimeout(fmt.Sprintf("Operation %q did not complete in %s, last status: %s", op.Name, p.timeout, current.Status))
			logger.Error("Operation timeout", "err", err)
			finish("timeout", err)
			return nil, err
		}
		if op.Name == "" {
			err := provider.NewError(provider.KindBadArgument, "Operation is not done and has no name to fetch it")
			finish("error", err)
			return nil, err
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			err = mapError(ctx, fmt.Sprintf("Wait for operation %q interrupted", op.Name), err)
			finish("error", err)
			return nil, err
		}

		polls++
		metrics.RecordOperationPoll(ctx, string(scope.Kind))
		fetched, err := p.fetch(ctx, op.Name, scope)
		if err != nil {
			if isTransient(err) {
				logger.Warn("Unable to fetch operation status, will retry", "err", err)
				continue
			}
			err = mapError(ctx, fmt.Sprintf("Unable to fetch operation %q", op.Name), err)
			finish("error", err)
			return nil, err
		}
		logger.Debug("Operation status", "status", fetched.Status, "progress", fetched.Progress)
		current = fetched
	}
}

// fetch uses the endpoint of the scope the operation belongs to
func (p *Poller) fetch(ctx context.Context, name string, scope OperationScope) (*compute.Operation, error) {
	switch scope.Kind {
	case ScopeRegional:
		return p.getter.GetRegionOperation(ctx, p.project, scope.Location, name)
	case ScopeZonal:
		return p.getter.GetZoneOperation(ctx, p.project, scope.Location, name)
	}
	return p.getter.GetGlobalOperation(ctx, p.project, name)
}

// operationError converts the first embedded error of the operation
func operationError(op *compute.Operation) *provider.Error {
	first := op.Error.Errors[0]
	msg := first.Message
	if msg == "" {
		msg = op.HttpErrorMessage
	}
	if msg == "" {
		msg = first.Code
	}
	return &provider.Error{
		Kind:         provider.KindRemoteOperation,
		HTTPStatus:   int(op.HttpErrorStatusCode),
		ProviderCode: first.Code,
		Message:      msg,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

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

package gce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
)

type fetchCall struct {
	path     string
	location string
	name     string
}

// fakeGetter returns the scripted responses one by one and records the calls
type fakeGetter struct {
	responses []*compute.Operation
	errs      []error
	calls     []fetchCall
}

func (f *fakeGetter) next(call fetchCall) (*compute.Operation, error) {
	i := len(f.calls)
	f.calls = append(f.calls, call)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	if len(f.responses) > 0 {
		return f.responses[len(f.responses)-1], nil
	}
	return &compute.Operation{Name: call.name, Status: "RUNNING"}, nil
}

func (f *fakeGetter) GetGlobalOperation(_ context.Context, _, name string) (*compute.Operation, error) {
	return f.next(fetchCall{path: "global", name: name})
}

func (f *fakeGetter) GetRegionOperation(_ context.Context, _, region, name string) (*compute.Operation, error) {
	return f.next(fetchCall{path: "region", location: region, name: name})
}

func (f *fakeGetter) GetZoneOperation(_ context.Context, _, zone, name string) (*compute.Operation, error) {
	return f.next(fetchCall{path: "zone", location: zone, name: name})
}

// newTestPoller uses fake clock which moves forward on every sleep
func newTestPoller(getter OperationGetter, interval, timeout time.Duration) *Poller {
	p := NewPoller(getter, "test-project", interval, timeout)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		now = now.Add(d)
		return ctx.Err()
	}
	return p
}

func op(name, status string, errs ...string) *compute.Operation {
	out := &compute.Operation{Name: name, Status: status}
	if len(errs) > 0 {
		out.Error = &compute.OperationError{}
		for _, e := range errs {
			out.Error.Errors = append(out.Error.Errors, &compute.OperationErrorErrors{Code: "QUOTA_EXCEEDED", Message: e})
		}
	}
	return out
}

func Test_await_zonal_done_after_two_fetches(t *testing.T) {
	getter := &fakeGetter{responses: []*compute.Operation{
		op("op-1", "RUNNING"),
		op("op-1", "DONE"),
	}}
	p := newTestPoller(getter, time.Second, time.Minute)

	out, err := p.Await(context.Background(), op("op-1", "PENDING"), ZoneScope("us-central1-a"))
	if err != nil {
		t.Fatalf("Await() error: %v", err)
	}
	if out.Status != OperationDone {
		t.Fatalf("Await() status = %q; want DONE", out.Status)
	}
	if len(getter.calls) != 2 {
		t.Fatalf("Await() fetched %d times; want: 2", len(getter.calls))
	}
	for _, c := range getter.calls {
		if c.path != "zone" || c.location != "us-central1-a" || c.name != "op-1" {
			t.Fatalf("Await() used wrong fetch: %+v", c)
		}
	}
}

func Test_await_done_with_errors_fails_without_fetch(t *testing.T) {
	getter := &fakeGetter{}
	p := newTestPoller(getter, time.Second, time.Minute)

	_, err := p.Await(context.Background(), op("op-2", "DONE", "quota exceeded"), GlobalScope())
	if err == nil {
		t.Fatalf("Await() should fail")
	}
	if len(getter.calls) != 0 {
		t.Fatalf("Await() fetched %d times; want: 0", len(getter.calls))
	}
	var perr *provider.Error
	if !errors.As(err, &perr) {
		t.Fatalf("Await() error is not provider error: %T", err)
	}
	if perr.Kind != provider.KindRemoteOperation || perr.Message != "quota exceeded" || perr.ProviderCode != "QUOTA_EXCEEDED" {
		t.Fatalf("Await() error = %+v; want RemoteOperation with quota exceeded", perr)
	}
}

func Test_await_errors_checked_before_status(t *testing.T) {
	// Errors appear on the running operation
	getter := &fakeGetter{responses: []*compute.Operation{
		op("op-3", "RUNNING", "disk is broken", "second error"),
		op("op-3", "DONE"),
	}}
	p := newTestPoller(getter, time.Second, time.Minute)

	_, err := p.Await(context.Background(), op("op-3", "PENDING"), RegionScope("us-central1"))
	if err == nil {
		t.Fatalf("Await() should fail")
	}
	if len(getter.calls) != 1 {
		t.Fatalf("Await() fetched %d times; want: 1", len(getter.calls))
	}
	if !provider.IsKind(err, provider.KindRemoteOperation) {
		t.Fatalf("Await() error kind = %s; want RemoteOperation", provider.KindOf(err))
	}
	var perr *provider.Error
	if errors.As(err, &perr) && perr.Message != "disk is broken" {
		t.Fatalf("Await() should report the first error, got: %q", perr.Message)
	}
}

func Test_await_done_without_errors(t *testing.T) {
	getter := &fakeGetter{}
	p := newTestPoller(getter, time.Second, time.Minute)

	in := op("op-4", "DONE")
	in.Error = &compute.OperationError{}
	out, err := p.Await(context.Background(), in, GlobalScope())
	if err != nil {
		t.Fatalf("Await() error: %v", err)
	}
	if out != in || len(getter.calls) != 0 {
		t.Fatalf("Await() should return the done operation without fetching, fetched: %d", len(getter.calls))
	}
}

func Test_await_timeout(t *testing.T) {
	getter := &fakeGetter{}
	p := newTestPoller(getter, time.Second, 10*time.Second)

	_, err := p.Await(context.Background(), op("op-5", "RUNNING"), GlobalScope())
	if !provider.IsTimeout(err) {
		t.Fatalf("Await() error = %v; want timeout", err)
	}
	if len(getter.calls) != 10 {
		t.Fatalf("Await() fetched %d times; want: 10", len(getter.calls))
	}
}

func Test_await_scope_paths(t *testing.T) {
	tests := []struct {
		scope    OperationScope
		path     string
		location string
	}{
		{GlobalScope(), "global", ""},
		{RegionScope("europe-west1"), "region", "europe-west1"},
		{ZoneScope("europe-west1-b"), "zone", "europe-west1-b"},
	}
	for _, tt := range tests {
		t.Run(tt.scope.String(), func(t *testing.T) {
			getter := &fakeGetter{responses: []*compute.Operation{op("op-6", "DONE")}}
			p := newTestPoller(getter, 0, time.Minute)
			if _, err := p.Await(context.Background(), op("op-6", "PENDING"), tt.scope); err != nil {
				t.Fatalf("Await() error: %v", err)
			}
			if len(getter.calls) != 1 || getter.calls[0].path != tt.path || getter.calls[0].location != tt.location {
				t.Fatalf("Await() calls = %+v; want path %s:%s", getter.calls, tt.path, tt.location)
			}
		})
	}
}

func Test_await_scope_without_location(t *testing.T) {
	for _, scope := range []OperationScope{{Kind: ScopeRegional}, {Kind: ScopeZonal}, {Kind: "OTHER"}} {
		t.Run(string(scope.Kind), func(t *testing.T) {
			getter := &fakeGetter{}
			p := newTestPoller(getter, 0, time.Minute)
			_, err := p.Await(context.Background(), op("op-7", "RUNNING"), scope)
			if !provider.IsKind(err, provider.KindBadArgument) {
				t.Fatalf("Await() error = %v; want BadArgument", err)
			}
			if len(getter.calls) != 0 {
				t.Fatalf("Await() should not fetch, fetched: %d", len(getter.calls))
			}
		})
	}
}

func Test_await_nil_operation(t *testing.T) {
	p := newTestPoller(&fakeGetter{}, 0, time.Minute)
	if _, err := p.Await(context.Background(), nil, GlobalScope()); !provider.IsKind(err, provider.KindBadArgument) {
		t.Fatalf("Await(nil) error = %v; want BadArgument", err)
	}
}

func Test_await_transient_fetch_retried(t *testing.T) {
	getter := &fakeGetter{
		errs: []error{
			&googleapi.Error{Code: http.StatusServiceUnavailable, Message: "backend unavailable"},
			&googleapi.Error{Code: http.StatusTooManyRequests, Message: "rate limit"},
			&url.Error{Op: "Get", URL: "http://compute", Err: errors.New("connection reset by peer")},
		},
		responses: []*compute.Operation{nil, nil, nil, op("op-8", "DONE")},
	}
	p := newTestPoller(getter, time.Second, time.Minute)

	if _, err := p.Await(context.Background(), op("op-8", "RUNNING"), ZoneScope("us-east1-b")); err != nil {
		t.Fatalf("Await() error: %v", err)
	}
	if len(getter.calls) != 4 {
		t.Fatalf("Await() fetched %d times; want: 4", len(getter.calls))
	}
}

func Test_await_fatal_fetch_error(t *testing.T) {
	getter := &fakeGetter{errs: []error{
		&googleapi.Error{Code: http.StatusForbidden, Message: "no access", Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}},
	}}
	p := newTestPoller(getter, time.Second, time.Minute)

	_, err := p.Await(context.Background(), op("op-9", "RUNNING"), GlobalScope())
	var perr *provider.Error
	if !errors.As(err, &perr) || perr.Kind != provider.KindAuthentication || perr.HTTPStatus != http.StatusForbidden || perr.ProviderCode != "forbidden" {
		t.Fatalf("Await() error = %v; want Authentication 403 forbidden", err)
	}
	if len(getter.calls) != 1 {
		t.Fatalf("Await() fetched %d times; want: 1", len(getter.calls))
	}
}

func Test_await_decode_error_not_retried(t *testing.T) {
	getter := &fakeGetter{errs: []error{json.Unmarshal([]byte("<html>"), &compute.Operation{})}}
	p := newTestPoller(getter, time.Second, time.Minute)

	_, err := p.Await(context.Background(), op("op-10", "RUNNING"), RegionScope("us-east1"))
	if provider.KindOf(err) != provider.KindGeneral || provider.IsTimeout(err) {
		t.Fatalf("Await() error = %v; want General", err)
	}
	if !strings.Contains(err.Error(), "invalid character") {
		t.Fatalf("Await() error should keep the cause, got %v", err)
	}
	if len(getter.calls) != 1 {
		t.Fatalf("Await() fetched %d times; want: 1", len(getter.calls))
	}
}

func Test_await_log_attributes(t *testing.T) {
	var buf bytes.Buffer
	if err := log.Initialize(&log.Config{Level: "debug", Format: "console", Writer: &buf}); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	defer log.Initialize(log.DefaultConfig())

	getter := &fakeGetter{responses: []*compute.Operation{op("op-11", "DONE")}}
	p := newTestPoller(getter, time.Second, time.Minute)
	if _, err := p.Await(context.Background(), op("op-11", "RUNNING"), ZoneScope("us-east1-b")); err != nil {
		t.Fatalf("Await() error: %v", err)
	}
	if !strings.Contains(buf.String(), "gce.operation=op-11") {
		t.Fatalf("Log should contain the operation name, got: %s", buf.String())
	}
	if strings.Contains(buf.String(), "gce.gce.") {
		t.Fatalf("Log attributes should not repeat the package group, got: %s", buf.String())
	}
}

func Test_await_context_cancelled(t *testing.T) {
	getter := &fakeGetter{}
	p := newTestPoller(getter, time.Second, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Await(ctx, op("op-10", "RUNNING"), GlobalScope())
	if !provider.IsKind(err, provider.KindCommunication) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Await() error = %v; want Communication wrapping context.Canceled", err)
	}
	if len(getter.calls) != 0 {
		t.Fatalf("Await() should not fetch after cancel, fetched: %d", len(getter.calls))
	}
}

func Test_await_operation_http_status(t *testing.T) {
	in := op("op-11", "DONE", "")
	in.HttpErrorStatusCode = http.StatusNotFound
	in.HttpErrorMessage = "NOT FOUND"

	_, err := newTestPoller(&fakeGetter{}, 0, time.Minute).Await(context.Background(), in, GlobalScope())
	var perr *provider.Error
	if !errors.As(err, &perr) || perr.HTTPStatus != http.StatusNotFound || perr.Message != "NOT FOUND" {
		t.Fatalf("Await() error = %+v; want status 404 with operation message", err)
	}
}

func Test_sleep_context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("sleepContext() = %v; want context.Canceled", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepContext() = %v; want nil", err)
	}
}

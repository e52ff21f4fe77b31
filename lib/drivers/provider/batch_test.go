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

package provider

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
)

func Test_launch_batch_partial(t *testing.T) {
	// Odd indexes fail
	launch := func(_ context.Context, i int) (string, error) {
		if i%2 == 1 {
			return "", NewError(KindRemoteOperation, fmt.Sprintf("failed %d", i))
		}
		return fmt.Sprintf("vm-%d", i), nil
	}

	ids, err := LaunchBatch(context.Background(), 2, 5, launch)
	if err != nil {
		t.Fatalf("LaunchBatch() error: %v", err)
	}
	if want := []string{"vm-0", "vm-2", "vm-4"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("LaunchBatch() = %v; want: %v", ids, want)
	}
}

func Test_launch_batch_all_failed(t *testing.T) {
	launch := func(_ context.Context, i int) (string, error) {
		return "", NewError(KindRemoteOperation, fmt.Sprintf("failed %d", i))
	}

	ids, err := LaunchBatch(context.Background(), 3, 3, launch)
	if err == nil {
		t.Fatalf("LaunchBatch() = %v; want error", ids)
	}
	if len(ids) != 0 {
		t.Fatalf("LaunchBatch() returned ids on failure: %v", ids)
	}
	var perr *Error
	if !errorsAs(err, &perr) || perr.Message != "failed 0" {
		t.Fatalf("LaunchBatch() should return the first error, got: %v", err)
	}
}

func Test_launch_batch_concurrency(t *testing.T) {
	var running, maxRunning int32
	block := make(chan struct{})
	launch := func(_ context.Context, i int) (string, error) {
		cur := atomic.AddInt32(&running, 1)
		for {
			prev := atomic.LoadInt32(&maxRunning)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxRunning, prev, cur) {
				break
			}
		}
		<-block
		atomic.AddInt32(&running, -1)
		return fmt.Sprintf("vm-%d", i), nil
	}

	done := make(chan struct{})
	var ids []string
	go func() {
		ids, _ = LaunchBatch(context.Background(), 2, 6, launch)
		close(done)
	}()
	close(block)
	<-done

	if len(ids) != 6 {
		t.Fatalf("LaunchBatch() launched %d; want: 6", len(ids))
	}
	if maxRunning > 2 {
		t.Fatalf("LaunchBatch() ran %d in parallel; limit is 2", maxRunning)
	}
}

func Test_launch_batch_bad_count(t *testing.T) {
	_, err := LaunchBatch(context.Background(), 1, 0, nil)
	if !IsKind(err, KindBadArgument) {
		t.Fatalf("LaunchBatch(count=0) error = %v; want BadArgument", err)
	}
}

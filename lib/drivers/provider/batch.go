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

	"golang.org/x/sync/errgroup"

	"github.com/adobe/aquarium-gce/lib/log"
)

// LaunchFunc creates one resource of the batch and returns its identifier
type LaunchFunc func(ctx context.Context, index int) (string, error)

// LaunchBatch runs count independent launches with at most concurrency in parallel
// The batch is failed only if every launch failed, then the error of the lowest index is returned
// Otherwise the identifiers of the successful launches are returned in index order
func LaunchBatch(ctx context.Context, concurrency, count int, launch LaunchFunc) ([]string, error) {
	if count < 1 {
		return nil, NewError(KindBadArgument, fmt.Sprintf("Batch count should be positive, got %d", count))
	}
	if concurrency < 1 {
		concurrency = 1
	}

	logger := log.WithFunc("provider", "LaunchBatch").With("count", count)

	ids := make([]string, count)
	errs := make([]error, count)

	// Plain group without context: one failure should not cancel the rest
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			ids[i], errs[i] = launch(ctx, i)
			if errs[i] != nil {
				logger.Warn("Launch of batch item failed", "index", i, "err", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []string
	var firstErr error
	for i := 0; i < count; i++ {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		out = append(out, ids[i])
	}

	if len(out) == 0 {
		logger.Error("All the batch launches failed", "err", firstErr)
		return nil, firstErr
	}
	if len(out) < count {
		logger.Warn("Batch partially launched", "launched", len(out))
	}
	return out, nil
}

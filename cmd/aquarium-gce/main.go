/**
 * Copyright 2021-2025 Adobe. All rights reserved.
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

// Starting point for aquarium-gce cmd
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adobe/aquarium-gce/lib/build"
	"github.com/adobe/aquarium-gce/lib/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := newApp(os.Stdout)
	err := a.rootCommand().ExecuteContext(ctx)
	stop()

	if a.monitor != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if serr := a.monitor.Shutdown(sctx); serr != nil {
			log.WithFunc("main", "main").Error("Error shutting down monitoring", "err", serr)
		}
		cancel()
	}
	if err != nil {
		os.Exit(1)
	}
}

func versionString() string {
	return fmt.Sprintf("Aquarium GCE %s (%s)", build.Version, build.Time)
}

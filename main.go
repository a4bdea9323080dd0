// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"audioviz/cmd"
	applog "audioviz/internal/log"
	"audioviz/pkg/build"
)

// main is the entry point for the visualizer.
//
//  1. Startup: build information, command line and config.
//  2. Running: capture, frame loop and outputs until a signal arrives or
//     the panel quits.
//  3. Shutdown: every component is stopped in reverse start order by the
//     command that started it.
func main() {
	// Release builds stamp their metadata with -ldflags; development
	// builds use what the toolchain recorded.
	if err := build.Initialize(); err != nil {
		build.InitializeDev()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		applog.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

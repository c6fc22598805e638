// SPDX-License-Identifier: MIT
package main

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"soundviz/cmd"
	"soundviz/internal/engine"
	applog "soundviz/internal/log"
	"soundviz/internal/source"
	"soundviz/internal/tui"
	"soundviz/pkg/build"
)

// main drives the program through three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Assemble and start the engine for the selected source
//   - Audio producer, output callback, and render loop run concurrently
//
// 3. Shutdown Phase (Cold Path):
//   - Exit on termination signal or when playback drains
//   - Tear the engine down in reverse start order
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	// One thread for the audio callback, one for decode/render work.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}

	if level, ok := applog.ParseLevel(opts.Config.LogLevel); ok {
		applog.SetLevel(level)
	}
	if opts.Config.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	if err := source.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer source.Terminate()

	if opts.Command == "list" {
		if opts.Plain {
			if err := source.ListDevices(); err != nil {
				applog.Fatalf("%v", err)
			}
		} else if err := tui.RunDeviceBrowser(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	e, err := engine.New(opts.Config, opts.Mode, opts.Param)
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if err := e.Start(); err != nil {
		applog.Fatalf("%v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	applog.Infof("%s %s running, Ctrl+C to stop",
		build.GetBuildFlags().Name, build.GetBuildFlags().Version)

	// Poll for drain so file and stream playback exit on their own once
	// the last buffered sample has been played.
	drain := time.NewTicker(100 * time.Millisecond)
	defer drain.Stop()

loop:
	for {
		select {
		case <-sig:
			applog.Infof("Received termination signal")
			break loop
		case <-drain.C:
			if e.Drained() {
				applog.Infof("Playback finished")
				break loop
			}
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if n := e.Underruns(); n > 0 {
		applog.Debugf("Playback underruns: %d", n)
	}
	e.Close()
}

// Command adv-sim is an interactive advertisement simulator.
//
// It wires a synthetic BLE sensor through the full ingestion pipeline
// (dispatcher, unavailability tracker, coordinator, entity bindings)
// and lets you drive it from a command prompt: emit advertisements,
// inject parse failures, and watch availability flip when the device
// goes silent.
//
// Usage:
//
//	adv-sim [flags]
//
// Flags:
//
//	-address string   Simulated device address (default "AA:BB:CC:DD:EE:FF")
//	-name string      Simulated device name (default "Thermo Sim")
//	-timeout duration Unavailability timeout (default 30s)
//	-interval duration Emit interval when the emitter is running (default 2s)
//	-capture string   Write an event log (.blog) to this path
//
// Examples:
//
//	# Quick availability demo: short timeout, auto-emitter
//	adv-sim -timeout 10s -interval 1s
//
//	# Capture everything for later inspection with adv-log
//	adv-sim -capture session.blog
package main

import (
	"context"
	stdlog "log"
	"time"

	"github.com/blecore/blecore-go/cmd/adv-sim/interactive"
	"github.com/blecore/blecore-go/pkg/log"
	"github.com/blecore/blecore-go/pkg/scanner"
)

func main() {
	cfg := interactive.ParseFlags()

	stdlog.SetFlags(stdlog.Ltime)

	var logger log.Logger = log.NoopLogger{}
	var fileLogger *log.FileLogger
	if cfg.CapturePath != "" {
		fl, err := log.NewFileLogger(cfg.CapturePath)
		if err != nil {
			stdlog.Fatalf("Failed to open capture log: %v", err)
		}
		fileLogger = fl
		logger = fl
		stdlog.Printf("Capturing events to %s", cfg.CapturePath)
	}

	scanCfg := scanner.Config{
		UnavailableTimeout:    scanner.Duration(cfg.Timeout),
		CaptureAdvertisements: cfg.CapturePath != "",
	}
	dispatcher, err := scanner.NewDispatcher(scanCfg, logger)
	if err != nil {
		stdlog.Fatalf("Failed to create dispatcher: %v", err)
	}

	sim, err := interactive.New(cfg, dispatcher, logger)
	if err != nil {
		stdlog.Fatalf("Failed to start simulator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim.Run(ctx, cancel)

	dispatcher.Shutdown()
	if fileLogger != nil {
		_ = fileLogger.Close()
	}

	// Give timer goroutines a moment to drain before exit.
	time.Sleep(50 * time.Millisecond)
}

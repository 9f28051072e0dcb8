package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/tunnelguard/internal/config"
	"github.com/banshee-data/tunnelguard/internal/hardware"
	"github.com/banshee-data/tunnelguard/internal/monitoring"
	"github.com/banshee-data/tunnelguard/internal/serialmux"
	"github.com/banshee-data/tunnelguard/internal/timeutil"
	"github.com/banshee-data/tunnelguard/internal/tunnel"
	"github.com/banshee-data/tunnelguard/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to a JSON or YAML config file (defaults apply when empty)")
	port        = flag.String("port", "", "Serial port of the I/O controller (overrides serial_port)")
	simMode     = flag.Bool("sim", false, "Drive a scripted simulated board instead of the serial controller")
	simScenario = flag.String("sim-scenario", "", "YAML scenario played by the simulated board (-sim only)")
	logLevel    = flag.String("log.level", "info", "Log level: "+monitoring.LevelNames())
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(path, portOverride string) (*config.TunnelConfig, error) {
	cfg := config.EmptyTunnelConfig()
	if path != "" {
		var err error
		cfg, err = config.LoadTunnelConfig(path)
		if err != nil {
			return nil, err
		}
	}
	if portOverride != "" {
		cfg.SerialPort = &portOverride
	}
	return cfg, nil
}

// openSim builds the simulated board. Without a scenario every sensor is
// silent and the button is never pressed.
func openSim(clock timeutil.Clock, scenario string) (*hardware.Sim, error) {
	script := &hardware.Script{Name: "quiet"}
	if scenario != "" {
		var err error
		script, err = hardware.LoadScript(scenario)
		if err != nil {
			return nil, fmt.Errorf("load scenario: %w", err)
		}
	}
	return hardware.NewSim(clock, *script), nil
}

// startMonitor runs the serial monitor on its own context so replies keep
// arriving while the outputs are cleared after a signal. The returned func
// stops the monitor and waits for it to exit.
func startMonitor(mux serialmux.SerialMuxInterface) func() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// runController drives the coordinator until ctx is done, then clears every
// output on a fresh context bounded by shutdownTimeout.
func runController(ctx context.Context, coordinator *tunnel.Coordinator, shutdownTimeout time.Duration) error {
	if err := coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("controller stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return coordinator.Shutdown(shutdownCtx)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *simScenario != "" && !*simMode {
		log.Fatal("-sim-scenario requires -sim")
	}

	if err := monitoring.Configure(*logLevel, os.Stderr); err != nil {
		log.Fatalf("invalid -log.level: %v", err)
	}
	log.Printf("starting %s", version.String())

	cfg, err := loadConfig(*configFile, *port)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	settings := tunnel.SettingsFromConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopMonitor := func() {}
	var hw hardware.Hardware
	clock := timeutil.RealClock{}

	if *simMode {
		sim, err := openSim(clock, *simScenario)
		if err != nil {
			log.Fatalf("failed to start simulated board: %v", err)
		}
		log.Printf("simulated board playing scenario %q", sim.Script().Name)
		hw = sim
	} else {
		opts := cfg.SerialOptions()
		mux, err := serialmux.NewRealSerialMux(cfg.GetSerialPort(), opts)
		if err != nil {
			log.Fatalf("failed to open I/O controller: %v", err)
		}
		defer mux.Close()

		// run the monitor routine to manage IO on the serial port
		stopMonitor = startMonitor(mux)

		board := hardware.NewBoard(mux, cfg.GetReplyTimeout())
		firmware, err := board.Handshake(ctx)
		if err != nil {
			log.Fatalf("I/O controller on %s (%s) did not answer: %v", cfg.GetSerialPort(), opts, err)
		}
		log.Printf("I/O controller on %s (%s), firmware %s", cfg.GetSerialPort(), opts, firmware)
		hw = board
	}

	coordinator := tunnel.NewCoordinator(hw, clock, settings)
	if err := runController(ctx, coordinator, cfg.GetShutdownTimeout()); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	stats := coordinator.Stats()
	log.Printf("ticks=%d resets=%d hardware_errors=%d", stats.Ticks, stats.Resets, stats.HardwareErrors)

	stop()
	stopMonitor()
	log.Printf("Graceful shutdown complete")
}

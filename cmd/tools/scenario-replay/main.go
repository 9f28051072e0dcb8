// Command scenario-replay plays a scripted scenario against the simulated
// board on a mock clock and prints what the controller did.
//
//	scenario-replay -scenario config/scenarios/side-road-merge.yaml -png plots/ -html merge.html
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/banshee-data/tunnelguard/internal/config"
	"github.com/banshee-data/tunnelguard/internal/fsutil"
	"github.com/banshee-data/tunnelguard/internal/hardware"
	"github.com/banshee-data/tunnelguard/internal/monitoring"
	"github.com/banshee-data/tunnelguard/internal/tunnel"
)

var (
	scenarioFile = flag.String("scenario", "", "YAML scenario to replay (required)")
	configFile   = flag.String("config", "", "Path to a JSON or YAML config file (defaults apply when empty)")
	duration     = flag.Duration("duration", 0, "Override the scenario duration")
	writes       = flag.Bool("writes", false, "Also print every bank write")
	pngDir       = flag.String("png", "", "Directory for PNG timelines (skipped when empty)")
	htmlFile     = flag.String("html", "", "File for the HTML timeline (skipped when empty)")
	logLevel     = flag.String("log.level", "warn", "Log level: "+monitoring.LevelNames())
)

func main() {
	flag.Parse()

	if *scenarioFile == "" {
		log.Fatal("-scenario is required")
	}
	if err := monitoring.Configure(*logLevel, os.Stderr); err != nil {
		log.Fatalf("invalid -log.level: %v", err)
	}

	cfg := config.EmptyTunnelConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadTunnelConfig(*configFile); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	settings := tunnel.SettingsFromConfig(cfg)

	script, err := hardware.LoadScript(*scenarioFile)
	if err != nil {
		log.Fatalf("failed to load scenario: %v", err)
	}
	if *duration > 0 {
		script.Duration = *duration
	}

	start := time.Now()
	rep, err := runScenario(context.Background(), *script, settings)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	if err := rep.WriteTrace(os.Stdout, *writes); err != nil {
		log.Fatalf("failed to write trace: %v", err)
	}
	log.Printf("replayed %s of %q in %s", rep.Duration, rep.Name, time.Since(start).Round(time.Millisecond))

	fsys := fsutil.OSFileSystem{}
	if *pngDir != "" {
		n, err := rep.WritePlots(fsys, *pngDir, settings.DetectionThresholdCM)
		if err != nil {
			log.Fatalf("failed to write plots: %v", err)
		}
		log.Printf("wrote %d plots to %s", n, *pngDir)
	}

	if *htmlFile != "" {
		f, err := fsys.Create(*htmlFile)
		if err != nil {
			log.Fatalf("failed to create %s: %v", *htmlFile, err)
		}
		if err := rep.WriteHTML(f); err != nil {
			f.Close()
			log.Fatalf("failed to render HTML: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("failed to close %s: %v", *htmlFile, err)
		}
		log.Printf("wrote %s", *htmlFile)
	}
}

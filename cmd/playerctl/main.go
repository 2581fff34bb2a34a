// Package main provides the playerctl entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playmux/internal/app/backend"
	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/app/player"
	"github.com/osa030/playmux/internal/infra/config"
	"github.com/osa030/playmux/internal/infra/logger"
	"github.com/osa030/playmux/internal/infra/scenario"
)

var (
	app        = kingpin.New("playerctl", "Drive playback scenarios against the simulated engines")
	configPath = app.Flag("config", "Path to config file (default: built-in defaults)").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// run command (default)
	runCmd       = app.Command("run", "Run a scenario file (default)").Default()
	scenarioPath = runCmd.Arg("scenario", "Path to scenario file").Required().ExistingFile()
	realtime     = runCmd.Flag("realtime", "Run on the wall clock instead of a virtual one").Bool()

	// probe command
	probeCmd          = app.Command("probe", "Print the backend the capability probe picks")
	probeManufacturer = probeCmd.Flag("manufacturer", "Override the device manufacturer").String()
	probeModel        = probeCmd.Flag("model", "Override the device model").String()
	probeAPILevel     = probeCmd.Flag("api-level", "Override the device API level").Int()

	// list-actions command
	listActionsCmd = app.Command("list-actions", "List scenario actions and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listActionsCmd.FullCommand() {
		printActions()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger, command-line flags win over the config file
	loggerConfig := logger.FromConfig(cfg.Log)
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	switch command {
	case probeCmd.FullCommand():
		err = probe(cfg)
	default:
		err = run(cfg)
	}
	if err != nil {
		zlog.Error().Msgf("playerctl: %v", err)
		closeLog()
		os.Exit(1)
	}
	closeLog()
}

func loadConfig() (*config.Config, error) {
	if *configPath == "" {
		return config.Default()
	}
	return config.Load(*configPath)
}

// run plays the scenario and prints its report.
func run(cfg *config.Config) error {
	sc, err := scenario.Load(*scenarioPath)
	if err != nil {
		return err
	}
	backendOpts, err := backend.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	var driver scenario.Driver
	if *realtime {
		loop := looper.New(64)
		defer loop.Close()
		driver = scenario.NewLoopDriver(loop)
	} else {
		driver = scenario.NewVirtualDriver()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zlog.Info().Msgf("Running scenario %q from %s", sc.Name, *scenarioPath)
	report, runErr := scenario.NewRunner(sc, driver, backendOpts, player.OptionsFromConfig(cfg.Player)).Run(ctx)
	printReport(report)
	if runErr != nil {
		return errors.Wrapf(runErr, "scenario %q failed", sc.Name)
	}
	return nil
}

// probe prints the backend choice for the configured device.
func probe(cfg *config.Config) error {
	opts, err := backend.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	caps := opts.Capabilities
	if *probeManufacturer != "" {
		caps.Manufacturer = *probeManufacturer
	}
	if *probeModel != "" {
		caps.Model = *probeModel
	}
	if *probeAPILevel > 0 {
		caps.APILevel = *probeAPILevel
	}

	fmt.Printf("Device:  %s %s (api %d)\n", caps.Manufacturer, caps.Model, caps.APILevel)
	fmt.Printf("Forced:  %s\n", opts.Probe.Forced)
	fmt.Printf("Rich:    %t\n", opts.Probe.SupportsRich(caps))
	fmt.Printf("Backend: %s\n", opts.Probe.Choose(caps))
	return nil
}

// printActions prints available scenario actions.
func printActions() {
	fmt.Println("Available Actions:")
	for _, a := range scenario.Actions() {
		fmt.Printf("  %-18s - %s\n", a.Name, a.Description)
	}
}

// printReport prints a run summary.
func printReport(r *scenario.Report) {
	if r == nil {
		return
	}
	fmt.Printf("Scenario: %s\n", r.Scenario)
	fmt.Printf("Backend:  %s\n", r.Backend)
	for _, e := range r.Events() {
		fmt.Printf("  %8dms  %-13s %s\n", e.At.Milliseconds(), e.Kind, e.Detail)
	}
	fmt.Printf("Final:    %s at %dms\n", r.FinalState, r.PositionMs)
}

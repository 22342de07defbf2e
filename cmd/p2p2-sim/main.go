// Command p2p2-sim runs a set of simulated P2P2 devices on a shared
// in-memory medium.
//
// Without -scenario it starts an interactive shell that sends control
// commands to the devices. With -scenario it runs YAML scenarios and exits
// non-zero when one fails.
//
// Usage:
//
//	p2p2-sim [flags]
//
// Flags:
//
//	-devices N          Number of devices without -config (default: 2)
//	-config PATH        YAML device layout
//	-scenario PATH      Scenario file or directory to run
//	-timeout D          Default event wait timeout in scenarios (default: 5s)
//	-log-level LEVEL    Log level: debug, info, warn, error (default: info)
//	-protocol-log PATH  File path for protocol event logging (CBOR format)
//	-trace              Also write protocol events to the log (frames at debug level)
//
// Examples:
//
//	p2p2-sim -devices 3
//	p2p2-sim -scenario ./scenarios -protocol-log run.cbor
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p2p2-protocol/p2p2-go/internal/scenario"
	"github.com/p2p2-protocol/p2p2-go/pkg/log"
)

var (
	deviceCount  = flag.Int("devices", 2, "Number of devices without -config")
	configPath   = flag.String("config", "", "YAML device layout")
	scenarioPath = flag.String("scenario", "", "Scenario file or directory to run")
	timeout      = flag.Duration("timeout", 5*time.Second, "Default event wait timeout in scenarios")
	logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	protocolLog  = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	trace        = flag.Bool("trace", false, "Also write protocol events to the log (frames at debug level)")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var err error
	if *scenarioPath != "" {
		err = runScenarios(ctx)
	} else {
		err = runInteractive(ctx, cancel)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(level string, out io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl}))
}

// protocolLogger combines the optional CBOR file and slog trace outputs.
// It returns a nil logger when neither is enabled.
// The returned closer must be called before exit.
func protocolLogger(logger *slog.Logger) (log.Logger, func(), error) {
	var loggers []log.Logger
	closer := func() {}

	if *protocolLog != "" {
		fl, err := log.NewFileLogger(*protocolLog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create protocol log: %w", err)
		}
		loggers = append(loggers, fl)
		closer = func() {
			if err := fl.Close(); err != nil {
				logger.Warn("failed to close protocol log", "error", err)
			}
			written, dropped := fl.Stats()
			logger.Info("protocol log closed", "events", written, "dropped", dropped)
		}
		logger.Info("protocol logging enabled", "path", *protocolLog)
	}
	if *trace {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	return log.Combine(loggers...), closer, nil
}

func loadScenarios(path string) ([]*scenario.Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return scenario.LoadDirectory(path)
	}
	sc, err := scenario.LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return []*scenario.Scenario{sc}, nil
}

func runScenarios(ctx context.Context) error {
	logger := setupLogging(*logLevel, os.Stderr)

	scenarios, err := loadScenarios(*scenarioPath)
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios in %s", *scenarioPath)
	}

	plog, closeLog, err := protocolLogger(logger)
	if err != nil {
		return err
	}
	defer closeLog()

	runner := scenario.NewRunner(scenario.Config{
		DefaultTimeout: *timeout,
		ProtocolLogger: plog,
		Logger:         logger,
	})

	fmt.Println("P2P2 Scenario Runner")
	fmt.Println("====================")
	results := runner.RunAll(ctx, scenarios)

	failed := printResults(os.Stdout, results)
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

func runInteractive(ctx context.Context, cancel context.CancelFunc) error {
	cfg := defaultSimConfig(*deviceCount)
	if *configPath != "" {
		var err error
		if cfg, err = loadSimConfig(*configPath); err != nil {
			return err
		}
	} else if *deviceCount < 1 {
		return fmt.Errorf("need at least one device")
	}

	shell, err := NewShell()
	if err != nil {
		return err
	}
	defer shell.Close()

	// Log through the shell so lines do not break the prompt.
	logger := setupLogging(*logLevel, shell.Stderr())
	plog, closeLog, err := protocolLogger(logger)
	if err != nil {
		return err
	}
	defer closeLog()

	net := scenario.NewNetwork(scenario.Config{ProtocolLogger: plog, Logger: logger})
	defer func() {
		if err := net.Close(); err != nil {
			logger.Warn("failed to stop devices", "error", err)
		}
	}()

	for _, spec := range cfg.Devices {
		iface, err := net.Add(ctx, spec)
		if err != nil {
			return err
		}
		logger.Info("device started", "name", spec.Name, "address", iface.Device().Address())
	}

	shell.Attach(net)
	shell.Run(ctx, cancel)
	return nil
}

// printResults prints one line per scenario and returns the failure count.
func printResults(w io.Writer, results []*scenario.Result) int {
	failed := 0
	for _, r := range results {
		if r.Passed() {
			fmt.Fprintf(w, "PASS  %-12s (%d steps, %v)\n", r.ScenarioID, len(r.Steps), r.Duration.Round(time.Millisecond))
			continue
		}
		failed++
		fmt.Fprintf(w, "FAIL  %-12s %v\n", r.ScenarioID, r.Err)
	}
	fmt.Fprintf(w, "\n%d passed, %d failed\n", len(results)-failed, failed)
	return failed
}

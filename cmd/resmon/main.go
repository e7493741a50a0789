// Package main is the resmon command-line tool. It runs a child command
// under the resource monitor and prints an aggregate usage report when the
// command finishes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/resmon-dev/resmon/internal/config"
	"github.com/resmon-dev/resmon/internal/monitor"
	"github.com/resmon-dev/resmon/internal/platform"
	"github.com/resmon-dev/resmon/internal/probe"
	"github.com/resmon-dev/resmon/internal/report"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "resmon",
		Short:         "Run a command and report its system resource usage",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		cfgPath      string
		pollInterval time.Duration
		format       string
		output       string
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a command under the resource monitor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfgPath, pollInterval, format, output)
			if err != nil {
				return err
			}
			return run(cfg, args)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to configuration file")
	cmd.Flags().DurationVarP(&pollInterval, "interval", "i", 0, "sampling interval (overrides config)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "report format: text, json, or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	return cmd
}

// loadConfig builds the effective configuration:
// flags > env vars > config file > defaults.
func loadConfig(cmd *cobra.Command, cfgPath string, pollInterval time.Duration, format, output string) (*config.Config, error) {
	if cfgPath == "" {
		cfgPath = config.Locate()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("interval") {
		cfg.Monitor.PollInterval = config.Duration{Duration: pollInterval}
	}
	if format != "" {
		cfg.Report.Format = format
	}
	if output != "" {
		cfg.Report.Output = output
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run executes argv under the monitor and renders the report. The child's
// exit error is returned unchanged so main can propagate its exit code.
func run(cfg *config.Config, argv []string) error {
	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Debug("Starting resmon",
		zap.String("version", version),
		zap.Strings("command", argv))

	// Keep sampling overhead away from the measured workload.
	platform.LowerPriority(logger)

	m := monitor.New(probe.Detect(logger), cfg.Monitor.PollInterval.Duration, logger)
	if err := m.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal, stopping command", zap.String("signal", sig.String()))
		cancel()
	}()

	child := exec.CommandContext(ctx, argv[0], argv[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	m.RecordEvent("command start")
	runErr := m.Phase("command", child.Run)
	m.RecordEvent("command exit")

	if err := m.Stop(); err != nil {
		logger.Error("Failed to stop monitor", zap.Error(err))
	}

	if err := writeReport(cfg, m); err != nil {
		logger.Error("Failed to write report", zap.Error(err))
	}

	return runErr
}

// writeReport renders the run summary to the configured destination.
func writeReport(cfg *config.Config, m *monitor.Monitor) error {
	out := os.Stdout
	if cfg.Report.Output != "" {
		f, err := os.Create(cfg.Report.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return report.Render(out, report.Build(m), cfg.Report.Format)
}

// initLogger creates a zap logger based on the configuration.
// It outputs to stderr (human-readable) and optionally a JSON log file,
// leaving stdout to the child command and the report.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			fileCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			)
			cores = append(cores, fileCore)
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}

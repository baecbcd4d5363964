package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/uptrends"
	"github.com/jpalmerr/uptrends/config"
	"github.com/jpalmerr/uptrends/record"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}

// runCmd starts polling.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the Uptrends API on the configured schedule",
	Long: `Poll the Uptrends API on the configured schedule.

The poller will:
  - Load configuration from the specified YAML file
  - Run every configured operation on each scheduled cycle
  - Write one JSON record per line to stdout (unless output is "none")
  - Serve recent records, live events and metrics if a port is configured

It runs until interrupted (Ctrl+C), until it receives SIGTERM, or after the
single cycle of an "at" or "in" schedule.

Example:
  uptrends run -c config.yaml
  uptrends run -c config.yaml --once`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	runCmd.Flags().Bool("once", false, "run a single cycle immediately and exit")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, uptrends.WithLogger(logger))
	if cfg.Output == config.OutputStdout {
		opts = append(opts, uptrends.WithSink(record.NewWriterSink(cmd.OutOrStdout())))
	}

	p, err := uptrends.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}

	logger.Info("config loaded",
		"operations", len(p.Operations()),
		"schedule", p.Schedule().String(),
		"port", p.Port(),
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once, _ := cmd.Flags().GetBool("once"); once {
		failed := 0
		for _, res := range p.RunOnce(ctx) {
			if !res.Succeeded() {
				failed++
			}
		}
		if failed > 0 {
			logger.Warn("cycle finished with failures", "failed", failed)
		}
		return nil
	}

	// run - blocks until context cancelled or the schedule ends
	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("poller error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for the in-flight cycle with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("poller error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	questmonitor "github.com/Syaviii/Quest-Resource-Monitor"
	"github.com/Syaviii/Quest-Resource-Monitor/config"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// watchCmd runs the monitor against a backend.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the monitor and stream state changes",
	Long: `Run the monitor against the configured backend.

The monitor will:
  - Wait for the backend health endpoint to respond
  - Poll device status and metrics on their configured cadences
  - Print every state change to stdout as a JSON line
  - Serve snapshots and SSE on the inspect address, if configured

The monitor runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  questmon watch -c config.yaml
  questmon watch -c config.yaml --quiet --summary 10s`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = watchCmd.MarkFlagRequired("config")

	watchCmd.Flags().Bool("quiet", false, "do not print state changes to stdout")
	watchCmd.Flags().Duration("summary", 30*time.Second, "interval between summary log lines (0 disables)")
}

// stateChange is the stdout representation of one store write.
type stateChange struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.SlogLevel())
	logger.Info("config loaded",
		"base_url", cfg.BaseURL,
		"listen", cfg.Listen,
	)

	opts := append(config.Options(cfg), questmonitor.WithLogger(logger))
	m, err := questmonitor.New(cfg.BaseURL, opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if !quiet {
		// change callbacks fire on the polling goroutines, so the
		// encoder needs its own lock
		var mu sync.Mutex
		enc := json.NewEncoder(os.Stdout)
		m.Subscribe(questmonitor.Wildcard, func(value, old any, path string) {
			mu.Lock()
			defer mu.Unlock()
			_ = enc.Encode(stateChange{Path: path, Value: value})
		})
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.Start(gctx)
	})

	summaryInterval, _ := cmd.Flags().GetDuration("summary")
	if summaryInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(summaryInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-ticker.C:
					logSummary(logger, m)
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("monitor error: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// logSummary emits a one-line overview of the most-watched values.
func logSummary(logger *slog.Logger, m *questmonitor.Monitor) {
	store := m.Store()
	logger.Info("status",
		"phase", m.Phase(),
		"pc_status", store.Get("devices.pc.status"),
		"quest_status", store.Get("devices.quest_3.status"),
		"pc_cpu", store.Get("devices.pc.metrics.cpu"),
		"quest_battery", store.Get("devices.quest_3.metrics.battery"),
		"connection", store.Get("connection.state"),
	)
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/nipe/internal/logger"
	"github.com/user/nipe/internal/metrics"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run in the foreground, rotating identity and serving metrics until interrupted",
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().String("country", "", "exit node country code (e.g. us, de), applied strictly")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	m := metrics.New()
	engine, err := newEngine(cmd, "change firewall rules", m)
	if err != nil {
		return err
	}
	engine.Supervise = true
	defer engine.Close()

	ctx := cmd.Context()
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	logger.Info("Daemon running, waiting for SIGINT or SIGTERM")

	cfg, _ := setup()
	if listen := cfg.Get().Metrics.Listen; listen != "" {
		logger.SafeGo("metricsServer", func() {
			if err := m.Serve(ctx, listen); err != nil {
				logger.Error("Metrics endpoint stopped: %v", err)
			}
		})
	}

	rotation := cfg.Get().Rotation
	var tick <-chan time.Time
	if rotation.AutoRotate {
		interval := time.Duration(rotation.IntervalSeconds) * time.Second
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
		logger.Info("Auto-rotating identity every %s", interval)
	}

	exited := engine.Exited()
	var runErr error

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-exited:
			runErr = fmt.Errorf("proxy process exited unexpectedly, see %s", engine.Tor.LogPath())
			logger.Error("%v", runErr)
			break loop
		case <-tick:
			if err := engine.Rotate(ctx); err != nil {
				logger.Warning("Scheduled rotation failed: %v", err)
			}
		}
	}

	logger.Info("Shutting down")
	if err := engine.Stop(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	return runErr
}

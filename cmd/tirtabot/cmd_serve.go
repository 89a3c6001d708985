package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/tirtabot/internal/delivery"
	"github.com/user/tirtabot/internal/gateway"
	"github.com/user/tirtabot/internal/metrics"
	"github.com/user/tirtabot/internal/scheduler"
	"github.com/user/tirtabot/internal/telegram"
	"github.com/user/tirtabot/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tirtabot daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func pidPath(dataDir string) string {
	return filepath.Join(dataDir, "tirtabot.pid")
}

func writePIDFile(dataDir string) (string, error) {
	path := pidPath(dataDir)
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return path, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := scheduler.Validate(cfg.PruneSchedule); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	path, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Stores
	b, err := openBackends(ctx, cfg, "")
	defer b.Close()
	if err != nil {
		return err
	}

	eng, err := newEngine(cfg, b, m, false)
	if err != nil {
		return err
	}

	// Delivery and gateway
	channels := delivery.NewRegistry()
	gw := gateway.New(eng, delivery.NewExecutor(channels, m), int64(cfg.MaxConcurrent), gateway.WithMetrics(m))
	gw.Queue.SetIdleTimeout(cfg.LaneIdleTimeout())
	gw.Start(ctx)
	defer gw.Stop()

	g, gctx := errgroup.WithContext(ctx)

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		channels.Register(telegram.ChannelName, adapter)
		g.Go(func() error {
			adapter.Start(gctx)
			return nil
		})
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Session pruning
	sched := scheduler.New(b.sessions, cfg.PruneSchedule, m)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// HTTP surface
	if cfg.HTTP.Enabled {
		srv := webhook.NewServer(webhook.Config{
			Gateway:        gw,
			Sessions:       b.sessions,
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		})
		g.Go(func() error {
			return webhook.ListenAndServe(gctx, cfg.HTTP.Listen, srv)
		})
	}

	slog.Info("tirtabot started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"session_store", cfg.SessionStore,
		"session_ttl", cfg.SessionTTL(),
		"http", cfg.HTTP.Enabled,
		"pid_file", path,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-gctx.Done():
			cancel()
			if err := g.Wait(); err != nil {
				return fmt.Errorf("component failed: %w", err)
			}
			return nil
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				slog.Info("received SIGHUP, restarting")
				execPath, err := os.Executable()
				if err != nil {
					slog.Error("failed to get executable path", "error", err)
					continue
				}
				os.Remove(path)
				if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
					slog.Error("failed to re-exec", "error", err)
					if _, werr := writePIDFile(cfg.DataDir); werr != nil {
						slog.Error("failed to re-write PID file", "error", werr)
					}
				}
				continue
			}
			slog.Info("shutting down", "signal", sig)
			cancel()
			return g.Wait()
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"watchtorian/internal/collector"
	"watchtorian/internal/config"
	"watchtorian/internal/datalog"
	"watchtorian/internal/monitor"
	"watchtorian/internal/notify"
	"watchtorian/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "watchtorian: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		once       bool
		addr       string
		logLevel   string
	)
	pflag.StringVar(&configPath, "config", "config.yaml", "path to configuration file (YAML)")
	pflag.BoolVar(&once, "once", false, "run a single poll cycle and exit")
	pflag.StringVar(&addr, "addr", "", "address for the HTTP API (overrides listen_addr)")
	pflag.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides log_level)")
	pflag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}

	logger := buildLogger(cfg)
	logger.Info("configuration loaded", "path", configPath, "machines", len(cfg.Machines), "interval_minutes", cfg.IntervalMinutes)

	log := datalog.New(datalog.Options{
		Path:       cfg.DataFile,
		Logger:     logger.With("component", "datalog"),
		ArchiveDir: cfg.ArchiveDirectory,
	})
	mon := monitor.New(monitor.Options{
		Config:   cfg,
		Log:      log,
		Source:   collector.NewHostCollector(cfg.DiskPath, logger.With("component", "collector")),
		Notifier: notify.NewLogNotifier(logger.With("component", "notify")),
		Logger:   logger.With("component", "monitor"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		result, err := mon.RunOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("poll complete",
			"warnings", len(result.Warnings),
			"published", result.Published,
			"reported", result.Reported,
			"rotated", result.Rotated,
		)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mon.Run(gctx)
	})
	if cfg.ListenAddr != "" {
		srv := server.New(cfg.ListenAddr, log, logger.With("component", "server"))
		g.Go(func() error {
			logger.Info("http api listening", "addr", cfg.ListenAddr)
			if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("watchtorian stopped")
	return err
}

func buildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

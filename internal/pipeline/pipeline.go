// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package pipeline wires the daemon's components together and owns its
// top-level lifecycle: start everything, apply SIGHUP reloads of the
// settings that don't require reopening already-open resources, and tear
// down — uncleanly if need be — on SIGINT/SIGTERM.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/wczasowa/groundlogger/internal/cache"
	"github.com/wczasowa/groundlogger/internal/config"
	"github.com/wczasowa/groundlogger/internal/console"
	"github.com/wczasowa/groundlogger/internal/diskbuffer"
	"github.com/wczasowa/groundlogger/internal/hostmetrics"
	"github.com/wczasowa/groundlogger/internal/ping"
	"github.com/wczasowa/groundlogger/internal/queue"
	"github.com/wczasowa/groundlogger/internal/remotestore"
	"github.com/wczasowa/groundlogger/internal/scheduling"
	"github.com/wczasowa/groundlogger/internal/scraper"
	"github.com/wczasowa/groundlogger/internal/serialio"
	"github.com/wczasowa/groundlogger/internal/stats"
	"github.com/wczasowa/groundlogger/internal/uploader"
)

// Run builds every component from cfg and blocks until SIGINT/SIGTERM.
// configPath is kept around so SIGHUP can reload it; lvl is the logger's
// live level, swapped in place on reload.
func Run(ctx context.Context, configPath string, cfg *config.LoggerConfig, logger *slog.Logger, lvl *slog.LevelVar) error {
	logger.Info("starting groundlogger", "instance_prefix", cfg.InstancePrefix)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readingsCache := cache.New()
	q := queue.New()

	statsCfg := stats.Config{InstancePrefix: cfg.InstancePrefix, MaxQueueSize: cfg.MaxQueueSize}
	statsCollector := stats.New(q, statsCfg, logger.With("component", "stats"))

	parser := serialio.New(readingsCache, logger.With("component", "serial"), statsCollector)
	parser.WithReopenDelay(cfg.Serial.ReopenDelay)

	scrapeTranslation := make([]scraper.Translation, len(cfg.Translation))
	for i, t := range cfg.Translation {
		scrapeTranslation[i] = scraper.Translation{CommLabel: t.CommLabel, CanonicalName: t.CanonicalName}
	}
	scrapeCfg := scraper.Config{
		InstancePrefix: cfg.InstancePrefix,
		Translation:    scrapeTranslation,
		IntervalSec:    cfg.IntervalSec,
		MaxQueueSize:   cfg.MaxQueueSize,
	}
	scr := scraper.New(readingsCache, q, scrapeCfg, logger.With("component", "scraper"), statsCollector)

	pingCfg := ping.Config{InstancePrefix: cfg.InstancePrefix, MaxQueueSize: cfg.MaxQueueSize}
	prober := ping.New(q, pingCfg, logger.With("component", "ping"))

	hostCfg := hostmetrics.Config{InstancePrefix: cfg.InstancePrefix, MaxQueueSize: cfg.MaxQueueSize}
	hostCollector := hostmetrics.New(q, hostCfg, logger.With("component", "hostmetrics"))

	var limiter *rate.Limiter
	if cfg.DiskBuffer.WriteRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.DiskBuffer.WriteRatePerSec), int(cfg.DiskBuffer.WriteRatePerSec))
	}
	buffer, err := diskbuffer.New(ctx, cfg.DiskBuffer.Path, q, logger.With("component", "diskbuffer"), limiter)
	if err != nil {
		return fmt.Errorf("opening disk buffer: %w", err)
	}
	defer buffer.Close()

	newClient := remoteClientFactory(cfg, logger)
	up := uploader.New(q, newClient, logger.With("component", "uploader"), statsCollector)

	periodic := scheduling.NewPeriodic(logger.With("component", "scheduler"))
	if err := periodic.EverySeconds(cfg.IntervalSec, "scraper", scr.Tick); err != nil {
		return err
	}
	if err := periodic.EverySeconds(cfg.IntervalSec, "ping", prober.Tick); err != nil {
		return err
	}
	if err := periodic.EverySeconds(cfg.IntervalSec, "hostmetrics", hostCollector.Tick); err != nil {
		return err
	}
	if err := periodic.EverySeconds(cfg.StatsIntervalSec, "stats-flush", statsCollector.Tick); err != nil {
		return err
	}
	if err := periodic.EverySeconds(5, "diskbuffer-policy", buffer.Tick); err != nil {
		return err
	}
	periodic.Start()
	defer periodic.Stop(context.Background())

	go func() {
		if err := parser.Run(ctx, serialio.DeviceOpener(cfg.Serial.Device, cfg.Serial.Baud)); err != nil {
			logger.Warn("serial parser stopped", "error", err)
		}
	}()

	go func() {
		if err := up.Run(ctx); err != nil {
			logger.Warn("uploader stopped", "error", err)
		}
	}()

	var metricsServer *stats.MetricsServer
	if cfg.Metrics.Addr != "" {
		metricsServer = stats.NewMetricsServer(cfg.Metrics.Addr, statsCollector)
		go metricsServer.Start(ctx, logger.With("component", "metrics"))
	}

	go console.Run(ctx, os.Stdin, os.Stdout, statsCollector)

	reload := func() {
		reloaded, err := config.Load(configPath)
		if err != nil {
			logger.Error("SIGHUP reload failed, keeping running configuration", "error", err)
			return
		}
		lvl.Set(parseLevelForReload(reloaded.Logging.Level))

		translation := make([]scraper.Translation, len(reloaded.Translation))
		for i, t := range reloaded.Translation {
			translation[i] = scraper.Translation{CommLabel: t.CommLabel, CanonicalName: t.CanonicalName}
		}
		scr.SetTranslation(translation)
		scr.SetIntervalSec(reloaded.IntervalSec)

		if err := periodic.Reschedule("scraper", reloaded.IntervalSec); err != nil {
			logger.Warn("rescheduling scraper after reload failed", "error", err)
		}
		if err := periodic.Reschedule("ping", reloaded.IntervalSec); err != nil {
			logger.Warn("rescheduling ping prober after reload failed", "error", err)
		}
		if err := periodic.Reschedule("hostmetrics", reloaded.IntervalSec); err != nil {
			logger.Warn("rescheduling host metrics after reload failed", "error", err)
		}
		if err := periodic.Reschedule("stats-flush", reloaded.StatsIntervalSec); err != nil {
			logger.Warn("rescheduling stats flush after reload failed", "error", err)
		}

		logger.Info("applied SIGHUP reload", "interval_sec", reloaded.IntervalSec, "stats_interval_sec", reloaded.StatsIntervalSec)
	}

	return waitForSignal(ctx, logger, cancel, reload)
}

func waitForSignal(ctx context.Context, logger *slog.Logger, cancel context.CancelFunc, reload func()) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				logger.Info("received SIGHUP, reloading configuration")
				reload()
				continue
			}
			logger.Info("received signal, shutting down", "signal", sig)
		case <-ctx.Done():
		}
		break
	}
	cancel()
	// A brief grace window lets in-flight goroutines observe ctx.Done();
	// the process may still come down with work in flight, which is
	// acceptable here — the disk buffer holds whatever was spilled.
	time.Sleep(200 * time.Millisecond)
	return nil
}

// parseLevelForReload mirrors logging's own level parsing so a reloaded
// config can retarget the live slog.LevelVar without reopening the logger.
func parseLevelForReload(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func remoteClientFactory(cfg *config.LoggerConfig, logger *slog.Logger) uploader.ClientFactory {
	if cfg.DryRun {
		return func() (remotestore.Client, error) {
			return remotestore.NewDryRunClient(logger.With("component", "remotestore")), nil
		}
	}
	return func() (remotestore.Client, error) {
		return remotestore.NewNATSClient(remotestore.NATSConfig{
			URL:            cfg.Remote.NATSURL,
			Subject:        cfg.Remote.Subject,
			RequestTimeout: cfg.Remote.RequestTimeout,
			TLSEnabled:     cfg.Remote.TLS.Enabled,
			CACertPath:     cfg.Remote.TLS.CACert,
			ClientCert:     cfg.Remote.TLS.ClientCert,
			ClientKey:      cfg.Remote.TLS.ClientKey,
		})
	}
}

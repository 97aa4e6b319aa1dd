// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package stats

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the collector's counters to Prometheus, entirely
// optional and off the critical path of the ingest/upload pipeline.
type MetricsServer struct {
	srv *http.Server
	reg *prometheus.Registry
	c   *Collector

	uptimeGauge    prometheus.GaugeFunc
	commBytes      prometheus.CounterFunc
	commLines      prometheus.CounterFunc
	commParsed     prometheus.CounterFunc
	newReadings    prometheus.CounterFunc
}

// NewMetricsServer builds a Prometheus registry wired to c's live counters
// and serves it on addr.
func NewMetricsServer(addr string, c *Collector) *MetricsServer {
	reg := prometheus.NewRegistry()

	m := &MetricsServer{reg: reg, c: c}

	m.uptimeGauge = promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "groundlogger",
		Name:      "uptime_seconds",
		Help:      "Time since the collector started.",
	}, func() float64 { return c.Snapshot().UptimeSeconds })

	m.commBytes = promauto.With(reg).NewCounterFunc(prometheus.CounterOpts{
		Namespace: "groundlogger",
		Name:      "serial_bytes_total",
		Help:      "Bytes read off the serial stream.",
	}, func() float64 { return float64(c.Snapshot().CommBytes) })

	m.commLines = promauto.With(reg).NewCounterFunc(prometheus.CounterOpts{
		Namespace: "groundlogger",
		Name:      "serial_lines_total",
		Help:      "Lines read off the serial stream.",
	}, func() float64 { return float64(c.Snapshot().CommLines) })

	m.commParsed = promauto.With(reg).NewCounterFunc(prometheus.CounterOpts{
		Namespace: "groundlogger",
		Name:      "serial_lines_parsed_total",
		Help:      "Lines successfully parsed into readings.",
	}, func() float64 { return float64(c.Snapshot().CommParsedLines) })

	m.newReadings = promauto.With(reg).NewCounterFunc(prometheus.CounterOpts{
		Namespace: "groundlogger",
		Name:      "readings_enqueued_total",
		Help:      "Readings enqueued by the scraper.",
	}, func() float64 { return float64(c.Snapshot().NewReadings) })

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	m.srv = &http.Server{Addr: addr, Handler: mux}
	return m
}

// Start serves metrics until ctx is cancelled.
func (m *MetricsServer) Start(ctx context.Context, logger *slog.Logger) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.srv.Shutdown(shutdownCtx)
	}()

	if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped unexpectedly", "error", err)
	}
}

// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package stats accumulates upload outcomes and communication counters and
// periodically turns them into gauge Readings.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wczasowa/groundlogger/internal/queue"
	"github.com/wczasowa/groundlogger/internal/telemetry"
)

// MinSamples is the minimum number of upload samples accumulated in a
// window before a flush will emit the derived gauges. Below this the
// sample is considered too thin to be meaningful, and nothing is enqueued
// for that window — not even an absent-value placeholder.
const MinSamples = 5

// Config parameterizes a Collector.
type Config struct {
	InstancePrefix string
	MaxQueueSize   int
}

// Collector accumulates counters between flushes and emits readings derived
// from them.
type Collector struct {
	queue  *queue.PriorityQueue
	cfg    Config
	logger *slog.Logger

	startTime time.Time

	commBytes       atomic.Int64
	commLines       atomic.Int64
	commParsedLines atomic.Int64
	newReadings     atomic.Int64

	mu              sync.Mutex
	successes       int
	failures        int
	latencies       []float64
	elementsWritten int64

	lastSuccess atomic.Int64 // unix nanos, 0 = never
	lastFailure atomic.Int64
}

// New creates a Collector.
func New(q *queue.PriorityQueue, cfg Config, logger *slog.Logger) *Collector {
	return &Collector{queue: q, cfg: cfg, logger: logger, startTime: time.Now().UTC()}
}

// RecordUploadResult is called by the uploader after every batch attempt.
func (c *Collector) RecordUploadResult(success bool, latencySeconds float64, elements int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.successes++
		c.lastSuccess.Store(time.Now().UTC().UnixNano())
		c.latencies = append(c.latencies, latencySeconds)
		c.elementsWritten += int64(elements)
	} else {
		c.failures++
		c.lastFailure.Store(time.Now().UTC().UnixNano())
	}
}

// RecordNewReading is called by the scraper whenever it enqueues a reading.
func (c *Collector) RecordNewReading() { c.newReadings.Add(1) }

// AddCommBytes is called by the serial parser.
func (c *Collector) AddCommBytes(n int) { c.commBytes.Add(int64(n)) }

// AddCommLines is called by the serial parser.
func (c *Collector) AddCommLines(n int) { c.commLines.Add(int64(n)) }

// AddCommParsedLines is called by the serial parser.
func (c *Collector) AddCommParsedLines(n int) { c.commParsedLines.Add(int64(n)) }

// Snapshot is a point-in-time view of accumulated counters, used by the
// operator console and the optional Prometheus exporter.
type Snapshot struct {
	UptimeSeconds   float64
	CommBytes       int64
	CommLines       int64
	CommParsedLines int64
	NewReadings     int64
	ElementsWritten int64
	WindowSuccesses int
	WindowFailures  int
	LastSuccessUnix int64
	LastFailureUnix int64
}

// Snapshot returns the current cumulative/window counters without clearing
// anything.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		UptimeSeconds:   time.Since(c.startTime).Seconds(),
		CommBytes:       c.commBytes.Load(),
		CommLines:       c.commLines.Load(),
		CommParsedLines: c.commParsedLines.Load(),
		NewReadings:     c.newReadings.Load(),
		ElementsWritten: c.elementsWritten,
		WindowSuccesses: c.successes,
		WindowFailures:  c.failures,
		LastSuccessUnix: c.lastSuccess.Load(),
		LastFailureUnix: c.lastFailure.Load(),
	}
}

// Tick flushes the current upload-result window into gauge readings and
// clears it. If the window accumulated fewer than MinSamples results, it is
// left untouched so the next tick's samples accumulate into it instead of
// being discarded.
func (c *Collector) Tick(ctx context.Context) {
	if c.queue.Size() >= c.cfg.MaxQueueSize {
		c.logger.Warn("queue at capacity, skipping stats flush", "size", c.queue.Size())
		return
	}

	c.mu.Lock()
	successes, failures := c.successes, c.failures
	latencies := c.latencies
	total := successes + failures
	if total < MinSamples {
		c.mu.Unlock()
		return
	}
	c.successes, c.failures, c.latencies = 0, 0, nil
	c.mu.Unlock()

	now := time.Now().UTC()
	rate := float64(successes) / float64(total)
	c.enqueue(now, "cloud_db_write_success_rate", rate)

	if len(latencies) >= MinSamples {
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		c.enqueue(now, "cloud_db_write_latency", sum/float64(len(latencies)))
	}
}

func (c *Collector) enqueue(ts time.Time, name string, value float64) {
	kind := telemetry.BuildKind(c.cfg.InstancePrefix, telemetry.CategoryConnection, name)
	c.queue.EnqueueNew(telemetry.NewReading(kind, ts, telemetry.NewValue(value)))
}

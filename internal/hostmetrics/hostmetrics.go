// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package hostmetrics reports the daemon's own host load as a
// connection: gauge: the host running the daemon is part of the
// reliability picture (a starved host produces the same symptoms as a
// network outage), so this is enqueued on the same cadence as the ping
// prober.
package hostmetrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/load"

	"github.com/wczasowa/groundlogger/internal/queue"
	"github.com/wczasowa/groundlogger/internal/telemetry"
)

// Config parameterizes a Collector.
type Config struct {
	InstancePrefix string
	MaxQueueSize   int
}

// loadAvg is overridden in tests.
type loadAvg func() (float64, error)

// Collector periodically samples 1-minute host load average and enqueues it
// as a reading.
type Collector struct {
	queue  *queue.PriorityQueue
	cfg    Config
	logger *slog.Logger
	sample loadAvg
}

// New creates a Collector backed by gopsutil's load package.
func New(q *queue.PriorityQueue, cfg Config, logger *slog.Logger) *Collector {
	return &Collector{
		queue:  q,
		cfg:    cfg,
		logger: logger,
		sample: realLoadAvg,
	}
}

func realLoadAvg() (float64, error) {
	avg, err := load.Avg()
	if err != nil {
		return 0, err
	}
	return avg.Load1, nil
}

// Tick samples host load and enqueues it, subject to the same backpressure
// check every producer performs.
func (c *Collector) Tick(ctx context.Context) {
	if c.queue.Size() >= c.cfg.MaxQueueSize {
		c.logger.Warn("queue at capacity, skipping host metrics tick", "size", c.queue.Size())
		return
	}

	v, err := c.sample()
	if err != nil {
		c.logger.Debug("failed to collect host load average", "error", err)
		return
	}

	kind := telemetry.BuildKind(c.cfg.InstancePrefix, telemetry.CategoryConnection, "host_load")
	c.queue.EnqueueNew(telemetry.NewReading(kind, time.Now().UTC(), telemetry.NewValue(v)))
}

// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package ping probes a fixed set of well-known hosts and publishes a
// single "internet reachable, minimum observed latency" gauge reading per
// tick.
package ping

import (
	"context"
	"log/slog"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/wczasowa/groundlogger/internal/queue"
	"github.com/wczasowa/groundlogger/internal/telemetry"
)

// DefaultHosts is used when Config.Hosts is empty.
var DefaultHosts = []string{"8.8.8.8", "8.8.4.4", "1.1.1.1", "1.0.0.1"}

// Config parameterizes a Prober.
type Config struct {
	InstancePrefix string
	Hosts          []string
	MaxQueueSize   int
	Timeout        time.Duration
}

// Prober is the periodic ICMP reachability check.
type Prober struct {
	queue  *queue.PriorityQueue
	cfg    Config
	logger *slog.Logger
	ping   func(host string, timeout time.Duration) (time.Duration, bool)
}

// New creates a Prober backed by real ICMP pings.
func New(q *queue.PriorityQueue, cfg Config, logger *slog.Logger) *Prober {
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = DefaultHosts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	return &Prober{queue: q, cfg: cfg, logger: logger, ping: icmpPing}
}

// Tick probes every configured host and, if at least one answered, enqueues
// a single reading carrying the minimum RTT observed across all of them.
// If none answered, nothing is enqueued for this tick.
func (p *Prober) Tick(ctx context.Context) {
	if p.queue.Size() >= p.cfg.MaxQueueSize {
		p.logger.Warn("queue at capacity, skipping ping tick", "size", p.queue.Size())
		return
	}

	var (
		best    time.Duration
		anyOK   bool
	)
	for _, host := range p.cfg.Hosts {
		if ctx.Err() != nil {
			return
		}
		rtt, ok := p.ping(host, p.cfg.Timeout)
		if !ok {
			continue
		}
		if !anyOK || rtt < best {
			best = rtt
			anyOK = true
		}
	}

	if !anyOK {
		p.logger.Warn("all ping targets unreachable", "hosts", p.cfg.Hosts)
		return
	}

	kind := telemetry.BuildKind(p.cfg.InstancePrefix, telemetry.CategoryConnection, "internet_latency")
	reading := telemetry.NewReading(kind, time.Now().UTC(), telemetry.NewValue(best.Seconds()))
	p.queue.EnqueueNew(reading)
}

// icmpPing sends a single unprivileged ICMP echo and reports the RTT.
func icmpPing(host string, timeout time.Duration) (time.Duration, bool) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return 0, false
	}
	pinger.SetPrivileged(false)
	pinger.Count = 1
	pinger.Timeout = timeout

	if err := pinger.Run(); err != nil {
		return 0, false
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, false
	}
	return stats.MinRtt, true
}

// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package scheduling provides the single periodic-task runner every
// component in this daemon ticks on (scraper, ping prober, stats flush,
// disk buffer policy loop): named cron "@every" jobs with an execution
// guard that skips an overlapping run instead of queueing it.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Periodic runs named tasks on cron "@every" schedules, guarding each task
// against overlapping invocations.
type Periodic struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	fns     map[string]func(ctx context.Context)
}

// NewPeriodic creates a Periodic runner. Call Start to begin ticking.
func NewPeriodic(logger *slog.Logger) *Periodic {
	return &Periodic{
		cron:    cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)))),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
		fns:     make(map[string]func(ctx context.Context)),
	}
}

// EverySeconds registers fn to run every interval seconds under the given
// name. If a previous invocation of the same task is still running when the
// next tick fires, the new tick is skipped rather than queued.
func (p *Periodic) EverySeconds(intervalSec int, name string, fn func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, err := p.add(intervalSec, name, fn)
	if err != nil {
		return err
	}
	p.entries[name] = id
	p.fns[name] = fn
	return nil
}

// Reschedule changes the interval of an already-registered task, used to
// apply a reloaded interval value without restarting the process. Unknown
// names are a no-op.
func (p *Periodic) Reschedule(name string, intervalSec int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn, ok := p.fns[name]
	if !ok {
		return nil
	}
	if oldID, ok := p.entries[name]; ok {
		p.cron.Remove(oldID)
	}
	id, err := p.add(intervalSec, name, fn)
	if err != nil {
		return err
	}
	p.entries[name] = id
	return nil
}

func (p *Periodic) add(intervalSec int, name string, fn func(ctx context.Context)) (cron.EntryID, error) {
	var running atomic.Bool
	spec := fmt.Sprintf("@every %ds", intervalSec)
	id, err := p.cron.AddFunc(spec, func() {
		if !running.CompareAndSwap(false, true) {
			p.logger.Warn("periodic task still running, skipping tick", "task", name)
			return
		}
		defer running.Store(false)
		fn(context.Background())
	})
	if err != nil {
		return 0, fmt.Errorf("scheduling periodic task %q: %w", name, err)
	}
	return id, nil
}

// Start begins ticking all registered tasks.
func (p *Periodic) Start() {
	p.cron.Start()
}

// Stop waits up to ctx's deadline for in-flight ticks to finish.
func (p *Periodic) Stop(ctx context.Context) {
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		p.logger.Warn("periodic runner stop timed out")
	}
}

// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package scraper converts fresh ReadingsCache entries into Readings on a
// fixed cadence and enqueues them for upload.
package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wczasowa/groundlogger/internal/cache"
	"github.com/wczasowa/groundlogger/internal/queue"
	"github.com/wczasowa/groundlogger/internal/telemetry"
)

// Translation maps one raw sensor-line label to the canonical name it is
// published under.
type Translation struct {
	CommLabel     string
	CanonicalName string
}

// NewReadingRecorder receives a notification every time the scraper emits a
// Reading. Optional.
type NewReadingRecorder interface {
	RecordNewReading()
}

// Config parameterizes a Scraper.
type Config struct {
	InstancePrefix string
	Translation    []Translation
	IntervalSec    int
	MaxQueueSize   int
}

// Scraper is the cache -> queue bridge: it promotes fresh cached samples
// into Readings on a fixed cadence.
//
// Dedup quirk, preserved intentionally: "last emitted" for a label is
// stamped to the tick's wall-clock time, not to the sample's own
// timestamp. If the sensor emits two samples inside one scraper interval,
// the second (newer) one can be skipped on the following tick because its
// timestamp compares less than the "last emitted" time recorded a tick
// ago. See DESIGN.md "Open Question decision — dedup quirk preserved" for
// why this is kept as-is rather than fixed.
type Scraper struct {
	cache  *cache.ReadingsCache
	queue  *queue.PriorityQueue
	cfg    Config
	logger *slog.Logger
	stats  NewReadingRecorder

	mu          sync.Mutex
	lastEmitted map[string]time.Time
}

// New creates a Scraper. stats may be nil.
func New(c *cache.ReadingsCache, q *queue.PriorityQueue, cfg Config, logger *slog.Logger, stats NewReadingRecorder) *Scraper {
	return &Scraper{
		cache:       c,
		queue:       q,
		cfg:         cfg,
		logger:      logger,
		stats:       stats,
		lastEmitted: make(map[string]time.Time),
	}
}

// SetTranslation replaces the label -> canonical name table, applied on the
// next tick. Used to apply a reloaded configuration without restarting.
func (s *Scraper) SetTranslation(t []Translation) {
	s.mu.Lock()
	s.cfg.Translation = t
	s.mu.Unlock()
}

// SetIntervalSec replaces the staleness window used to judge a cached
// sample fresh. Used to apply a reloaded configuration without restarting.
func (s *Scraper) SetIntervalSec(sec int) {
	s.mu.Lock()
	s.cfg.IntervalSec = sec
	s.mu.Unlock()
}

// Tick runs one scrape cycle. Exported so the periodic runner and tests can
// both drive it directly.
func (s *Scraper) Tick(ctx context.Context) {
	if s.queue.Size() >= s.cfg.MaxQueueSize {
		s.logger.Warn("queue at capacity, skipping scraper tick", "size", s.queue.Size())
		return
	}

	s.mu.Lock()
	translation := s.cfg.Translation
	intervalSec := s.cfg.IntervalSec
	s.mu.Unlock()

	now := time.Now().UTC()
	staleAfter := time.Duration(intervalSec) * time.Second

	for _, t := range translation {
		sample, ok := s.cache.Snapshot(t.CommLabel)
		if !ok {
			continue
		}

		// Staleness takes precedence here, though
		// both filters are independent rejections with the same outcome.
		if now.Sub(sample.Timestamp) >= staleAfter {
			continue
		}

		s.mu.Lock()
		last, seen := s.lastEmitted[t.CommLabel]
		s.mu.Unlock()
		if seen && !sample.Timestamp.After(last) {
			continue
		}

		kind := telemetry.BuildKind(s.cfg.InstancePrefix, telemetry.CategoryReading, t.CanonicalName)
		reading := telemetry.NewReading(kind, sample.Timestamp, telemetry.NewValue(sample.Value))
		s.queue.EnqueueNew(reading)
		if s.stats != nil {
			s.stats.RecordNewReading()
		}

		s.mu.Lock()
		s.lastEmitted[t.CommLabel] = now
		s.mu.Unlock()
	}
}

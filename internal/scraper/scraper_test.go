// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package scraper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wczasowa/groundlogger/internal/cache"
	"github.com/wczasowa/groundlogger/internal/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type counter struct{ n int }

func (c *counter) RecordNewReading() { c.n++ }

func cfg() Config {
	return Config{
		InstancePrefix: "test:ground_level:",
		Translation: []Translation{
			{CommLabel: "Temperature", CanonicalName: "temperature_c"},
		},
		IntervalSec:  60,
		MaxQueueSize: 1000,
	}
}

func TestTick_EmitsFreshSample(t *testing.T) {
	c := cache.New()
	q := queue.New()
	cnt := &counter{}
	s := New(c, q, cfg(), discardLogger(), cnt)

	c.Update("Temperature", 21.5, time.Now().UTC())
	s.Tick(context.Background())

	if q.Size() != 1 {
		t.Fatalf("expected 1 enqueued reading, got %d", q.Size())
	}
	if cnt.n != 1 {
		t.Fatalf("expected RecordNewReading called once, got %d", cnt.n)
	}
	r, ok := q.PopNewestNoWait()
	if !ok {
		t.Fatal("expected a reading")
	}
	if r.Kind() != "test:ground_level:reading:temperature_c" {
		t.Fatalf("unexpected kind %q", r.Kind())
	}
}

func TestTick_SkipsStaleSample(t *testing.T) {
	c := cache.New()
	q := queue.New()
	s := New(c, q, cfg(), discardLogger(), nil)

	c.Update("Temperature", 21.5, time.Now().UTC().Add(-2*time.Minute))
	s.Tick(context.Background())

	if q.Size() != 0 {
		t.Fatalf("expected stale sample skipped, got size %d", q.Size())
	}
}

func TestTick_SkipsAbsentLabel(t *testing.T) {
	c := cache.New()
	q := queue.New()
	s := New(c, q, cfg(), discardLogger(), nil)

	s.Tick(context.Background())
	if q.Size() != 0 {
		t.Fatalf("expected no reading for absent label, got %d", q.Size())
	}
}

// TestTick_DedupQuirk exercises the scraper's dedup quirk. Because "last
// emitted" is stamped to wall-clock tick time rather than the sample's own
// timestamp, a refreshed sample whose timestamp is newer than the first
// sample's but not newer than the previous tick's wall-clock time is NOT
// emitted on the following tick.
func TestTick_DedupQuirk(t *testing.T) {
	c := cache.New()
	q := queue.New()
	s := New(c, q, cfg(), discardLogger(), nil)

	base := time.Now().UTC().Add(-10 * time.Second)
	c.Update("Temperature", 20.0, base)
	s.Tick(context.Background())
	if q.Size() != 1 {
		t.Fatalf("expected first tick to emit, got size %d", q.Size())
	}
	first, _ := q.PopNewestNoWait()
	if v, _ := first.Value().Float(); v != 20.0 {
		t.Fatalf("expected first emitted value 20.0, got %v", v)
	}

	// Sample refreshes to a newer timestamp before the next tick, but that
	// timestamp is still earlier than the first tick's wall-clock "now",
	// which is what "last emitted" holds.
	c.Update("Temperature", 20.5, base.Add(1*time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	s.Tick(context.Background())

	if q.Size() != 0 {
		t.Fatalf("expected dedup quirk to suppress re-emission, got size %d", q.Size())
	}
}

func TestTick_NoopWhenQueueAtCapacity(t *testing.T) {
	c := cache.New()
	q := queue.New()
	conf := cfg()
	conf.MaxQueueSize = 0
	s := New(c, q, conf, discardLogger(), nil)

	c.Update("Temperature", 21.5, time.Now().UTC())
	s.Tick(context.Background())

	if q.Size() != 0 {
		t.Fatalf("expected tick to be a no-op at capacity, got size %d", q.Size())
	}
}

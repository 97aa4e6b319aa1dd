// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package hostmetrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/wczasowa/groundlogger/internal/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTick_EnqueuesHostLoadReading(t *testing.T) {
	q := queue.New()
	c := New(q, Config{InstancePrefix: "t:", MaxQueueSize: 100}, discardLogger())
	c.sample = func() (float64, error) { return 1.25, nil }

	c.Tick(context.Background())

	if q.Size() != 1 {
		t.Fatalf("expected 1 reading enqueued, got %d", q.Size())
	}
	r, _ := q.PopOldestNoWait()
	v, _ := r.Value().Float()
	if v != 1.25 {
		t.Fatalf("expected value 1.25, got %v", v)
	}
}

func TestTick_SampleErrorEnqueuesNothing(t *testing.T) {
	q := queue.New()
	c := New(q, Config{InstancePrefix: "t:", MaxQueueSize: 100}, discardLogger())
	c.sample = func() (float64, error) { return 0, errors.New("boom") }

	c.Tick(context.Background())

	if q.Size() != 0 {
		t.Fatalf("expected no reading on sample error, got %d", q.Size())
	}
}

func TestTick_NoopAtCapacity(t *testing.T) {
	q := queue.New()
	c := New(q, Config{InstancePrefix: "t:", MaxQueueSize: 0}, discardLogger())
	c.sample = func() (float64, error) { return 1, nil }

	c.Tick(context.Background())
	if q.Size() != 0 {
		t.Fatalf("expected no-op at capacity, got %d", q.Size())
	}
}

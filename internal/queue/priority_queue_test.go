// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/wczasowa/groundlogger/internal/telemetry"
)

func reading(t *testing.T, kind string, ts time.Time) telemetry.Reading {
	t.Helper()
	return telemetry.NewReading(kind, ts, telemetry.NewValue(1))
}

func TestEnqueueNew_PopNewest_UniqueNewestReturnsIt(t *testing.T) {
	q := New()
	base := time.Now().UTC()
	q.EnqueueNew(reading(t, "a", base))
	q.EnqueueNew(reading(t, "b", base.Add(-time.Second)))
	newest := reading(t, "c", base.Add(time.Minute))
	q.EnqueueNew(newest)

	got := q.PopNewest()
	if got.Kind() != "c" {
		t.Fatalf("expected newest reading 'c', got %q", got.Kind())
	}
}

func TestPopOldestNoWait_AbsentIffEmpty(t *testing.T) {
	q := New()
	if _, ok := q.PopOldestNoWait(); ok {
		t.Fatal("expected absent on empty queue")
	}
	q.EnqueueNew(reading(t, "x", time.Now().UTC()))
	if _, ok := q.PopOldestNoWait(); !ok {
		t.Fatal("expected present after enqueue")
	}
	if _, ok := q.PopOldestNoWait(); ok {
		t.Fatal("expected absent again after drain")
	}
}

func TestNewestFirstVisibility(t *testing.T) {
	q := New()
	base := time.Now().UTC()
	for i := 0; i < 100; i++ {
		q.EnqueueNew(reading(t, "r", base.Add(time.Duration(i)*time.Second)))
	}

	var batch []telemetry.Reading
	for len(batch) < 10 {
		r, ok := q.PopNewestNoWait()
		if !ok {
			t.Fatal("expected more entries")
		}
		batch = append(batch, r)
	}

	for i, r := range batch {
		wantSeconds := 99 - i
		want := base.Add(time.Duration(wantSeconds) * time.Second)
		if !r.Timestamp().Equal(want) {
			t.Errorf("batch[%d]: expected ts %v, got %v", i, want, r.Timestamp())
		}
	}
}

func TestPutBack_DoesNotCountTowardTotalNewEnqueued(t *testing.T) {
	q := New()
	q.EnqueueNew(reading(t, "a", time.Now().UTC()))
	if got := q.TotalNewEnqueued(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	r, _ := q.PopOldestNoWait()
	q.PutBack(r)
	if got := q.TotalNewEnqueued(); got != 1 {
		t.Fatalf("PutBack must not increment TotalNewEnqueued, got %d", got)
	}
	if q.Size() != 1 {
		t.Fatalf("expected size 1 after put-back, got %d", q.Size())
	}
}

func TestPopOldest_BlocksUntilEnqueued(t *testing.T) {
	q := New()
	done := make(chan telemetry.Reading, 1)
	go func() {
		done <- q.PopOldest()
	}()

	select {
	case <-done:
		t.Fatal("PopOldest returned before any enqueue")
	case <-time.After(50 * time.Millisecond):
	}

	q.EnqueueNew(reading(t, "blocked", time.Now().UTC()))

	select {
	case r := <-done:
		if r.Kind() != "blocked" {
			t.Fatalf("expected 'blocked', got %q", r.Kind())
		}
	case <-time.After(time.Second):
		t.Fatal("PopOldest never returned after enqueue")
	}
}

func TestSize_Concurrent(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	base := time.Now().UTC()
	for i := 0; i < 200; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			q.EnqueueNew(reading(t, "c", base.Add(time.Duration(i)*time.Millisecond)))
		}()
	}
	wg.Wait()
	if q.Size() != 200 {
		t.Fatalf("expected size 200, got %d", q.Size())
	}
	if q.TotalNewEnqueued() != 200 {
		t.Fatalf("expected total 200, got %d", q.TotalNewEnqueued())
	}
}

// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package serialio

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wczasowa/groundlogger/internal/cache"
)

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

type countingStats struct {
	bytes, lines, parsed atomic.Int64
}

func (s *countingStats) AddCommBytes(n int)       { s.bytes.Add(int64(n)) }
func (s *countingStats) AddCommLines(n int)       { s.lines.Add(int64(n)) }
func (s *countingStats) AddCommParsedLines(n int) { s.parsed.Add(int64(n)) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParser_HappyPath(t *testing.T) {
	input := "Temperature: 21.5\nHumidity: 44.0\nbad line\nPressure: 1013.2\n"
	c := cache.New()
	stats := &countingStats{}
	p := New(c, discardLogger(), stats)

	ctx, cancel := context.WithCancel(context.Background())
	opened := false
	opener := func(ctx context.Context) (io.ReadCloser, error) {
		if opened {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		opened = true
		return nopCloser{strings.NewReader(input)}, nil
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, opener) }()

	deadline := time.After(2 * time.Second)
	for {
		if stats.parsed.Load() == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for parsed lines, got %d", stats.parsed.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	labels := c.Labels()
	if len(labels) != 3 {
		t.Fatalf("expected 3 labels, got %d: %v", len(labels), labels)
	}

	sample, ok := c.Snapshot("Temperature")
	if !ok || sample.Value != 21.5 {
		t.Fatalf("expected Temperature=21.5, got %+v ok=%v", sample, ok)
	}
	if _, ok := c.Snapshot("Humidity"); !ok {
		t.Fatal("expected Humidity to be cached")
	}
	if _, ok := c.Snapshot("Pressure"); !ok {
		t.Fatal("expected Pressure to be cached")
	}

	if stats.lines.Load() != 4 {
		t.Errorf("expected 4 lines read, got %d", stats.lines.Load())
	}
	if stats.parsed.Load() != 3 {
		t.Errorf("expected 3 parsed lines, got %d", stats.parsed.Load())
	}
}

func TestParser_EmptyLinesAndMalformedNumbersDropped(t *testing.T) {
	input := "\nFoo: notanumber\nBar: 12.0\n\n"
	c := cache.New()
	p := New(c, discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	opened := false
	opener := func(ctx context.Context) (io.ReadCloser, error) {
		if opened {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		opened = true
		return nopCloser{strings.NewReader(input)}, nil
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, opener) }()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := c.Snapshot("Bar"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for Bar to be cached")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if _, ok := c.Snapshot("Foo"); ok {
		t.Fatal("expected Foo (malformed number) to be dropped")
	}
	if len(c.Labels()) != 1 {
		t.Fatalf("expected only Bar cached, got %v", c.Labels())
	}
}

func TestParser_ReopensOnEndOfStream(t *testing.T) {
	c := cache.New()
	p := New(c, discardLogger(), nil).WithReopenDelay(10 * time.Millisecond)

	var openCount atomic.Int32
	opener := func(ctx context.Context) (io.ReadCloser, error) {
		n := openCount.Add(1)
		if n == 1 {
			return nopCloser{strings.NewReader("A: 1.0\n")}, nil
		}
		return nopCloser{strings.NewReader("B: 2.0\n")}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, opener) }()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := c.Snapshot("B"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for reconnect to produce data")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if openCount.Load() < 2 {
		t.Fatalf("expected at least 2 opens (reconnect), got %d", openCount.Load())
	}
}

// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package remotestore

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wczasowa/groundlogger/internal/telemetry"
)

func TestEntryFromReading_PresentValue(t *testing.T) {
	r := telemetry.NewReading("t:reading:temp", time.Unix(0, 0), telemetry.NewValue(12.5))
	e := EntryFromReading(r)
	if e.Value == nil || *e.Value != 12.5 {
		t.Fatalf("expected present value 12.5, got %+v", e.Value)
	}
	if e.Kind != "t:reading:temp" {
		t.Fatalf("unexpected kind %q", e.Kind)
	}
}

func TestEntryFromReading_AbsentValue(t *testing.T) {
	r := telemetry.NewReading("t:reading:temp", time.Unix(0, 0), telemetry.Absent())
	e := EntryFromReading(r)
	if e.Value != nil {
		t.Fatalf("expected nil value for absent reading, got %v", *e.Value)
	}
}

func TestDryRunClient_AlwaysSucceeds(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewDryRunClient(logger)
	batch := []Entry{EntryFromReading(telemetry.NewReading("t:reading:x", time.Now(), telemetry.NewValue(1)))}

	if err := c.PutBatch(context.Background(), batch); err != nil {
		t.Fatalf("expected dry-run PutBatch to succeed, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("expected dry-run Close to succeed, got %v", err)
	}
}

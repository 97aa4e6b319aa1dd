// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package remotestore is the client side of the cloud datastore boundary
// described below. It deliberately implements nothing of the
// datastore itself — only the small batch-write contract the uploader
// depends on.
package remotestore

import (
	"context"
	"time"

	"github.com/wczasowa/groundlogger/internal/telemetry"
)

// Entry is one reading as it crosses the wire to the remote store.
type Entry struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Value     *float64  `json:"value,omitempty"`
}

// EntryFromReading converts a telemetry.Reading to its wire form. An absent
// value is carried by leaving Value nil rather than encoding a sentinel
// number, matching the absent-value convention used throughout this daemon.
func EntryFromReading(r telemetry.Reading) Entry {
	e := Entry{Kind: r.Kind(), Timestamp: r.Timestamp()}
	if f, ok := r.Value().Float(); ok {
		v := f
		e.Value = &v
	}
	return e
}

// Client is the remote store's write side. Implementations must treat
// PutBatch as all-or-nothing: a returned error means none of the batch was
// durably stored and the caller is free to retry the whole batch.
type Client interface {
	PutBatch(ctx context.Context, batch []Entry) error
	Close() error
}

// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package diskbuffer spills queued readings to a local SQLite file when the
// in-memory priority queue grows too large, and refills the queue from disk
// once it drains back down.
package diskbuffer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"

	"github.com/wczasowa/groundlogger/internal/queue"
	"github.com/wczasowa/groundlogger/internal/telemetry"
)

const (
	// DumpAmount is the max number of readings moved to disk per Dump call.
	DumpAmount = 50
	// FetchAmount is the max number of readings pulled back from disk per
	// Fetch call.
	FetchAmount = 50
	// DumpHiWater is the in-memory queue size at or above which the policy
	// loop starts spilling to disk.
	DumpHiWater = 150
	// FetchLoWater is the in-memory queue size at or below which the
	// policy loop starts refilling from disk, provided disk rows exist.
	FetchLoWater = 10

	reopenDelay = 120 * time.Second
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS readings (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_utc    TEXT NOT NULL,
	kind      TEXT NOT NULL,
	has_value INTEGER NOT NULL,
	value     REAL
)`

// Buffer owns the on-disk spill file and the queue it drains into/from.
type Buffer struct {
	path    string
	queue   *queue.PriorityQueue
	logger  *slog.Logger
	limiter *rate.Limiter

	db         *sql.DB
	rowsOnDisk atomic.Int64
}

// New opens (or creates) the SQLite file at path and counts its existing
// rows. limiter may be nil for unlimited write rate.
func New(ctx context.Context, path string, q *queue.PriorityQueue, logger *slog.Logger, limiter *rate.Limiter) (*Buffer, error) {
	b := &Buffer{path: path, queue: q, logger: logger, limiter: limiter}
	if err := b.open(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer) open(ctx context.Context) error {
	db, err := sql.Open("sqlite", b.path)
	if err != nil {
		return fmt.Errorf("opening disk buffer %s: %w", b.path, err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return fmt.Errorf("creating disk buffer schema: %w", err)
	}

	var count int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM readings").Scan(&count); err != nil {
		db.Close()
		return fmt.Errorf("counting disk buffer rows: %w", err)
	}

	b.db = db
	b.rowsOnDisk.Store(count)
	return nil
}

// RowsOnDisk reports how many readings currently live on disk.
func (b *Buffer) RowsOnDisk() int64 { return b.rowsOnDisk.Load() }

// Dump pops up to DumpAmount oldest readings off the queue and commits them
// to disk as one transaction. On any failure the popped readings are put
// back onto the queue so nothing is lost.
func (b *Buffer) Dump(ctx context.Context) error {
	taken := make([]telemetry.Reading, 0, DumpAmount)
	for len(taken) < DumpAmount {
		r, ok := b.queue.PopOldestNoWait()
		if !ok {
			break
		}
		taken = append(taken, r)
	}
	if len(taken) == 0 {
		return nil
	}

	if err := b.await(ctx); err != nil {
		b.putBack(taken)
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		b.putBack(taken)
		return fmt.Errorf("beginning dump transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO readings (ts_utc, kind, has_value, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		b.putBack(taken)
		return fmt.Errorf("preparing dump insert: %w", err)
	}

	for _, r := range taken {
		v, present := r.Value().Float()
		hasValue := 0
		var dbValue interface{}
		if present {
			hasValue = 1
			dbValue = v
		}
		if _, err := stmt.ExecContext(ctx, r.Timestamp().Format(time.RFC3339Nano), r.Kind(), hasValue, dbValue); err != nil {
			stmt.Close()
			tx.Rollback()
			b.putBack(taken)
			return fmt.Errorf("inserting dumped reading: %w", err)
		}
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		b.putBack(taken)
		return fmt.Errorf("committing dump transaction: %w", err)
	}

	b.rowsOnDisk.Add(int64(len(taken)))
	b.logger.Info("spilled readings to disk", "count", len(taken), "rows_on_disk", b.rowsOnDisk.Load())
	return nil
}

// Fetch pulls up to FetchAmount of the oldest on-disk rows back into the
// queue and deletes them from disk, within one transaction.
func (b *Buffer) Fetch(ctx context.Context) error {
	if err := b.await(ctx); err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning fetch transaction: %w", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT id, ts_utc, kind, has_value, value FROM readings ORDER BY id ASC LIMIT ?", FetchAmount)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("selecting fetch rows: %w", err)
	}

	type row struct {
		id       int64
		reading  telemetry.Reading
	}
	var fetched []row
	for rows.Next() {
		var (
			id       int64
			tsStr    string
			kind     string
			hasValue int
			value    sql.NullFloat64
		)
		if err := rows.Scan(&id, &tsStr, &kind, &hasValue, &value); err != nil {
			rows.Close()
			tx.Rollback()
			return fmt.Errorf("scanning fetch row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			ts = time.Now().UTC()
		}
		v := telemetry.Absent()
		if hasValue != 0 && value.Valid {
			v = telemetry.NewValue(value.Float64)
		}
		fetched = append(fetched, row{id: id, reading: telemetry.NewReading(kind, ts, v)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		tx.Rollback()
		return fmt.Errorf("iterating fetch rows: %w", err)
	}
	rows.Close()

	if len(fetched) == 0 {
		tx.Rollback()
		return nil
	}

	del, err := tx.PrepareContext(ctx, "DELETE FROM readings WHERE id = ?")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing fetch delete: %w", err)
	}
	for _, f := range fetched {
		if _, err := del.ExecContext(ctx, f.id); err != nil {
			del.Close()
			tx.Rollback()
			return fmt.Errorf("deleting fetched row: %w", err)
		}
	}
	del.Close()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing fetch transaction: %w", err)
	}

	for _, f := range fetched {
		b.queue.PutBack(f.reading)
	}
	b.rowsOnDisk.Add(-int64(len(fetched)))
	b.logger.Info("refilled queue from disk", "count", len(fetched), "rows_on_disk", b.rowsOnDisk.Load())
	return nil
}

func (b *Buffer) putBack(readings []telemetry.Reading) {
	for _, r := range readings {
		b.queue.PutBack(r)
	}
}

func (b *Buffer) await(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	return b.limiter.Wait(ctx)
}

// Tick runs one policy decision: spill when the queue is too full, refill
// when it is too empty and disk has rows to give back. On any SQL failure
// it reopens the database after a fixed delay, mirroring the other
// components' fixed-backoff reconnect policy.
func (b *Buffer) Tick(ctx context.Context) {
	size := b.queue.Size()
	switch {
	case size >= DumpHiWater:
		if err := b.Dump(ctx); err != nil {
			b.logger.Error("disk buffer dump failed", "error", err)
			b.reopenAfterFailure(ctx)
		}
	case size <= FetchLoWater && b.rowsOnDisk.Load() > 0:
		if err := b.Fetch(ctx); err != nil {
			b.logger.Error("disk buffer fetch failed", "error", err)
			b.reopenAfterFailure(ctx)
		}
	}
}

func (b *Buffer) reopenAfterFailure(ctx context.Context) {
	b.db.Close()
	select {
	case <-time.After(reopenDelay):
	case <-ctx.Done():
		return
	}
	if err := b.open(ctx); err != nil {
		b.logger.Error("failed to reopen disk buffer", "error", err)
	}
}

// Close releases the underlying database handle.
func (b *Buffer) Close() error {
	return b.db.Close()
}

// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package uploader drains the priority queue newest-first and ships batches
// of up to BatchMax readings to the remote store.
package uploader

import (
	"context"
	"log/slog"
	"time"

	"github.com/wczasowa/groundlogger/internal/queue"
	"github.com/wczasowa/groundlogger/internal/remotestore"
	"github.com/wczasowa/groundlogger/internal/telemetry"
)

// BatchMax is the maximum number of readings shipped per upload attempt.
const BatchMax = 10

const retryDelay = 120 * time.Second

// UploadRecorder receives the outcome of every upload attempt. Optional.
type UploadRecorder interface {
	RecordUploadResult(success bool, latencySeconds float64, elements int)
}

// ClientFactory builds a fresh remote store client. It is called again each
// time the current client needs replacing after a failure.
type ClientFactory func() (remotestore.Client, error)

// Uploader is the queue -> remote-store pump.
type Uploader struct {
	queue      *queue.PriorityQueue
	newClient  ClientFactory
	logger     *slog.Logger
	stats      UploadRecorder
	client     remotestore.Client
}

// New creates an Uploader. stats may be nil.
func New(q *queue.PriorityQueue, newClient ClientFactory, logger *slog.Logger, stats UploadRecorder) *Uploader {
	return &Uploader{queue: q, newClient: newClient, logger: logger, stats: stats}
}

// Run drains the queue forever, uploading newest readings first in batches
// of up to BatchMax. On upload failure, the batch is put back on the queue
// and a fresh client is obtained after a fixed delay.
func (u *Uploader) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if u.client == nil {
			client, err := u.newClient()
			if err != nil {
				u.logger.Error("building remote store client failed", "error", err)
				if !sleep(ctx, retryDelay) {
					return ctx.Err()
				}
				continue
			}
			u.client = client
		}

		batch := u.fillBatch(ctx)
		if len(batch) == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		start := time.Now()
		entries := make([]remotestore.Entry, len(batch))
		for i, r := range batch {
			entries[i] = remotestore.EntryFromReading(r)
		}

		err := u.client.PutBatch(ctx, entries)
		elapsed := time.Since(start)

		if err != nil {
			u.logger.Error("batch upload failed, returning readings to queue", "error", err, "count", len(batch))
			u.recordResult(false, elapsed.Seconds(), len(batch))
			for _, r := range batch {
				u.queue.PutBack(r)
			}
			u.client.Close()
			u.client = nil
			if !sleep(ctx, retryDelay) {
				return ctx.Err()
			}
			continue
		}

		u.recordResult(true, elapsed.Seconds(), len(batch))
	}
}

// fillBatch blocks for the first reading, then opportunistically grabs up
// to BatchMax-1 more without blocking, so a quiet queue does not force the
// uploader to wait for a full batch before shipping anything.
func (u *Uploader) fillBatch(ctx context.Context) []telemetry.Reading {
	first, ok := u.blockingPopNewest(ctx)
	if !ok {
		return nil
	}
	batch := make([]telemetry.Reading, 0, BatchMax)
	batch = append(batch, first)

	for len(batch) < BatchMax {
		r, ok := u.queue.PopNewestNoWait()
		if !ok {
			break
		}
		batch = append(batch, r)
	}
	return batch
}

// blockingPopNewest waits for PopNewest to return, but bails out if ctx is
// cancelled first.
func (u *Uploader) blockingPopNewest(ctx context.Context) (telemetry.Reading, bool) {
	type result struct {
		r telemetry.Reading
	}
	done := make(chan result, 1)
	go func() {
		done <- result{r: u.queue.PopNewest()}
	}()

	select {
	case res := <-done:
		return res.r, true
	case <-ctx.Done():
		return telemetry.Reading{}, false
	}
}

func (u *Uploader) recordResult(success bool, latencySeconds float64, elements int) {
	if u.stats != nil {
		u.stats.RecordUploadResult(success, latencySeconds, elements)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package remotestore

import (
	"context"
	"log/slog"
)

// DryRunClient logs each batch instead of shipping it anywhere. It backs the
// config DryRun flag used for local testing and demos without a reachable
// remote store.
type DryRunClient struct {
	logger *slog.Logger
}

// NewDryRunClient creates a DryRunClient.
func NewDryRunClient(logger *slog.Logger) *DryRunClient {
	return &DryRunClient{logger: logger}
}

// PutBatch always succeeds.
func (c *DryRunClient) PutBatch(ctx context.Context, batch []Entry) error {
	c.logger.Info("dry-run upload", "entries", len(batch))
	return nil
}

// Close is a no-op.
func (c *DryRunClient) Close() error { return nil }

var _ Client = (*DryRunClient)(nil)

// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package telemetry defines the Reading — the single unit that flows
// through the cache, the priority queue, the disk buffer, and the remote
// store.
package telemetry

import (
	"fmt"
	"time"
)

// Category namespaces a Reading's Kind: a sensor value, or a gauge the
// daemon emits about its own health.
type Category string

const (
	CategoryReading    Category = "reading:"
	CategoryConnection Category = "connection:"
)

// BuildKind assembles the fully namespaced key a Reading is appended under
// in the remote store: <instancePrefix><category><name>.
func BuildKind(instancePrefix string, category Category, name string) string {
	return instancePrefix + string(category) + name
}

// Reading is immutable once constructed. Timestamp is UTC; Kind is
// non-empty; Value is either a finite number or explicitly absent.
type Reading struct {
	timestamp time.Time
	kind      string
	value     Value
}

// NewReading constructs a Reading. It panics if kind is empty — callers in
// this module always derive kind via BuildKind, so an empty kind is a
// programmer error, not a runtime condition to recover from.
func NewReading(kind string, timestamp time.Time, value Value) Reading {
	if kind == "" {
		panic("telemetry: reading kind must not be empty")
	}
	return Reading{
		timestamp: timestamp.UTC(),
		kind:      kind,
		value:     value,
	}
}

func (r Reading) Timestamp() time.Time { return r.timestamp }
func (r Reading) Kind() string         { return r.kind }
func (r Reading) Value() Value         { return r.value }

func (r Reading) String() string {
	return fmt.Sprintf("Reading{kind=%s, ts=%s, value=%s}", r.kind, r.timestamp.Format(time.RFC3339Nano), r.value)
}

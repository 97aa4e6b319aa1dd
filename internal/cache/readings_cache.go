// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package cache holds the most recent value seen for each raw sensor
// label, independent of whether that label is ever promoted to a Reading.
package cache

import (
	"sync"
	"time"
)

// Sample is the last value observed for a label, and when it was observed.
type Sample struct {
	Value     float64
	Timestamp time.Time
}

// ReadingsCache is a thread-safe label -> Sample map. A key is created on
// first successful parse of that label and only ever mutated afterward —
// it is never deleted for the lifetime of the process.
type ReadingsCache struct {
	mu      sync.RWMutex
	samples map[string]Sample
}

// New creates an empty cache.
func New() *ReadingsCache {
	return &ReadingsCache{samples: make(map[string]Sample)}
}

// Update records the latest value for label. Called from the serial
// parser's read loop on every accepted line.
func (c *ReadingsCache) Update(label string, value float64, timestamp time.Time) {
	c.mu.Lock()
	c.samples[label] = Sample{Value: value, Timestamp: timestamp}
	c.mu.Unlock()
}

// Snapshot returns the last sample recorded for label, if any.
func (c *ReadingsCache) Snapshot(label string) (Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.samples[label]
	return s, ok
}

// Labels returns every label the cache has ever seen, for diagnostics.
func (c *ReadingsCache) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	labels := make([]string, 0, len(c.samples))
	for label := range c.samples {
		labels = append(labels, label)
	}
	return labels
}

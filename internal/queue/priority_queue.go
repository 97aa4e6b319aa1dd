// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package queue implements the in-memory priority buffer sitting between
// producers (scraper, ping prober, stats collector) and consumers (cloud
// uploader, disk spill buffer).
//
// The source re-sorted a plain list on every insert. That is not intrinsic
// to the design, so this implementation keeps two binary heaps over the
// same set of items — one ordered oldest-first, one newest-first — with
// each item tracking its own index in both, so popping from either heap in
// O(log n) can remove the matching entry from the other in O(log n) too.
package queue

import (
	"container/heap"
	"sync"

	"github.com/wczasowa/groundlogger/internal/telemetry"
)

// item is one Reading plus its position bookkeeping in both heaps.
type item struct {
	reading telemetry.Reading
	seq     uint64
	minIdx  int
	maxIdx  int
}

// minHeap orders items oldest-first (smallest timestamp on top). Ties are
// broken by insertion sequence, giving a stable order.
type minHeap []*item

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	ti, tj := h[i].reading.Timestamp(), h[j].reading.Timestamp()
	if ti.Equal(tj) {
		return h[i].seq < h[j].seq
	}
	return ti.Before(tj)
}
func (h minHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].minIdx = i
	h[j].minIdx = j
}
func (h *minHeap) Push(x any) {
	it := x.(*item)
	it.minIdx = len(*h)
	*h = append(*h, it)
}
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// maxHeap orders items newest-first (largest timestamp on top). Same
// stable tie-break as minHeap.
type maxHeap []*item

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool {
	ti, tj := h[i].reading.Timestamp(), h[j].reading.Timestamp()
	if ti.Equal(tj) {
		return h[i].seq < h[j].seq
	}
	return ti.After(tj)
}
func (h maxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].maxIdx = i
	h[j].maxIdx = j
}
func (h *maxHeap) Push(x any) {
	it := x.(*item)
	it.maxIdx = len(*h)
	*h = append(*h, it)
}
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// PriorityQueue is a thread-safe, unbounded buffer with both oldest-first
// and newest-first extraction. Bounds are enforced by callers consulting
// Size() before enqueuing.
type PriorityQueue struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	min      minHeap
	max      maxHeap
	nextSeq  uint64
	totalNew uint64
}

// New creates an empty PriorityQueue.
func New() *PriorityQueue {
	q := &PriorityQueue{}
	q.notEmpty.L = &q.mu
	return q
}

func (q *PriorityQueue) insert(r telemetry.Reading) *item {
	it := &item{reading: r, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.min, it)
	heap.Push(&q.max, it)
	return it
}

// EnqueueNew inserts r as newly produced work: it counts toward
// TotalNewEnqueued and wakes one blocked popper.
func (q *PriorityQueue) EnqueueNew(r telemetry.Reading) {
	q.mu.Lock()
	q.insert(r)
	q.totalNew++
	q.notEmpty.Signal()
	q.mu.Unlock()
}

// PutBack restores a Reading a consumer failed to finish processing. It
// does not count toward TotalNewEnqueued.
func (q *PriorityQueue) PutBack(r telemetry.Reading) {
	q.mu.Lock()
	q.insert(r)
	q.notEmpty.Signal()
	q.mu.Unlock()
}

// popFromMin pops the heap-top min item and deletes its twin from max.
func (q *PriorityQueue) popFromMin() telemetry.Reading {
	it := heap.Pop(&q.min).(*item)
	heap.Remove(&q.max, it.maxIdx)
	return it.reading
}

// popFromMax pops the heap-top max item and deletes its twin from min.
func (q *PriorityQueue) popFromMax() telemetry.Reading {
	it := heap.Pop(&q.max).(*item)
	heap.Remove(&q.min, it.minIdx)
	return it.reading
}

// PopOldest blocks until non-empty, then removes and returns the Reading
// with the smallest timestamp.
func (q *PriorityQueue) PopOldest() telemetry.Reading {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.min) == 0 {
		q.notEmpty.Wait()
	}
	return q.popFromMin()
}

// PopNewest blocks until non-empty, then removes and returns the Reading
// with the largest timestamp.
func (q *PriorityQueue) PopNewest() telemetry.Reading {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.max) == 0 {
		q.notEmpty.Wait()
	}
	return q.popFromMax()
}

// PopOldestNoWait returns (Reading, true), or (zero, false) if empty.
func (q *PriorityQueue) PopOldestNoWait() (telemetry.Reading, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.min) == 0 {
		return telemetry.Reading{}, false
	}
	return q.popFromMin(), true
}

// PopNewestNoWait returns (Reading, true), or (zero, false) if empty.
func (q *PriorityQueue) PopNewestNoWait() (telemetry.Reading, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.max) == 0 {
		return telemetry.Reading{}, false
	}
	return q.popFromMax(), true
}

// Size returns the current number of buffered Readings.
func (q *PriorityQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.min)
}

// TotalNewEnqueued returns the monotonic count of EnqueueNew calls.
func (q *PriorityQueue) TotalNewEnqueued() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalNew
}

/*
 * Copyright © 2024 Kaleido, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
 * an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
 * specific language governing permissions and limitations under the License.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package opqueue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/wendi777/hyperline/internal/metrics"
	"github.com/wendi777/hyperline/internal/operation"
)

// OpQueue is a per-destination priority queue of PendingOperations
// (spec.md §4.4). Its internal container is guarded by a single exclusive
// gate; multiple producers may Push concurrently, but only one goroutine
// is expected to call Pop/PopMany at a time.
type OpQueue struct {
	mu sync.Mutex
	h  opHeap

	destination string
	queueLabel  string

	retries chan RetryRequest
	nextSeq uint64
}

// New constructs an empty queue. destination/queueLabel are metric labels
// only (spec.md §4.4's (destination, queue_label, app_context) tuple);
// app_context is read per-operation at push time.
func New(destination, queueLabel string) *OpQueue {
	return &OpQueue{
		destination: destination,
		queueLabel:  queueLabel,
		retries:     make(chan RetryRequest, 256),
	}
}

// Push takes ownership of op, computing its heap key from its current
// next_attempt_after/priority. Push takes no status argument: any status
// transition that precedes this push is made by the operation itself;
// OpQueue does not inspect or set Status.
func (q *OpQueue) Push(op operation.PendingOperation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushLocked(op)
	metrics.QueueGauge.WithLabelValues(q.destination, q.queueLabel, op.AppContext()).Inc()
}

func (q *OpQueue) pushLocked(op operation.PendingOperation) {
	next, ok := op.NextAttemptAfter()
	if !ok {
		next = time.Time{}
	}
	q.nextSeq++
	heap.Push(&q.h, &entry{
		op:               op,
		nextAttemptAfter: next,
		priority:         op.Priority(),
		seq:              q.nextSeq,
	})
}

// Pop applies any pending retry requests, then removes and returns the
// head of the heap. Returns (nil, false) if the queue is empty.
func (q *OpQueue) Pop() (operation.PendingOperation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processRetryRequestsLocked()
	return q.popLocked()
}

func (q *OpQueue) popLocked() (operation.PendingOperation, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	e := heap.Pop(&q.h).(*entry)
	metrics.QueueGauge.WithLabelValues(q.destination, q.queueLabel, e.op.AppContext()).Dec()
	return e.op, true
}

// PopMany atomically removes up to limit operations, head-first.
func (q *OpQueue) PopMany(limit int) []operation.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processRetryRequestsLocked()

	out := make([]operation.PendingOperation, 0, limit)
	for len(out) < limit {
		op, ok := q.popLocked()
		if !ok {
			break
		}
		out = append(out, op)
	}
	return out
}

// Len reports the current heap size.
func (q *OpQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// RequestRetry enqueues a retry request for asynchronous application on the
// next Pop/PopMany. Non-blocking: if the channel is full the request is
// dropped (bounded volume is a documented assumption, spec.md §4.4).
func (q *OpQueue) RequestRetry(r RetryRequest) {
	select {
	case q.retries <- r:
	default:
	}
}

// ProcessRetryRequests drains the retry channel and reprioritizes matching
// operations, without requiring a subsequent Pop. Exposed for callers (e.g.
// a dedicated retry-draining goroutine) that want to apply requests eagerly
// rather than only at the next pop.
func (q *OpQueue) ProcessRetryRequests() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processRetryRequestsLocked()
}

// processRetryRequestsLocked drains the channel (non-blocking) and, for
// each request, zeroes the attempt counters of every matching heap entry,
// then rebuilds the heap once. O(n) per drain cycle - acceptable because
// retry volume is bounded small (spec.md §4.4).
func (q *OpQueue) processRetryRequestsLocked() {
	var pending []RetryRequest
	for {
		select {
		case r := <-q.retries:
			pending = append(pending, r)
		default:
			goto drained
		}
	}
drained:
	if len(pending) == 0 {
		return
	}

	// Process requests in arrival order so earlier requests land closer to
	// the head: each request stamps its matches with the request's own
	// "now", which places them at the head of the heap (spec.md §4.4) while
	// preserving request order among multiple targeted operations.
	changed := false
	for _, r := range pending {
		ts := time.Now()
		for _, e := range q.h {
			if r.Matches(e.op.ID(), e.op.DestinationDomain()) {
				e.op.ResetAttempts()
				e.nextAttemptAfter = ts
				changed = true
			}
		}
	}
	if changed {
		heap.Init(&q.h)
	}
}

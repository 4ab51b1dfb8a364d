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
	"time"

	"github.com/wendi777/hyperline/internal/operation"
)

// entry wraps a PendingOperation with the fields container/heap sorts on,
// captured at push/requeue time so ordering doesn't require re-locking the
// operation on every heap comparison.
type entry struct {
	op               operation.PendingOperation
	nextAttemptAfter time.Time
	priority         int
	seq              uint64 // insertion order, compared only when next_attempt_after, priority and id all tie
}

// opHeap is a container/heap.Interface over entry, ordered by
// (next_attempt_after asc, priority desc, id asc) per spec.md §4.4. Ties
// left after all three keys (the same operation pushed more than once) are
// broken by seq, i.e. insertion order.
type opHeap []*entry

func (h opHeap) Len() int { return len(h) }

func (h opHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.nextAttemptAfter.Equal(b.nextAttemptAfter) {
		return a.nextAttemptAfter.Before(b.nextAttemptAfter)
	}
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	aID, bID := a.op.ID(), b.op.ID()
	for k := range aID {
		if aID[k] != bID[k] {
			return aID[k] < bID[k]
		}
	}
	return a.seq < b.seq
}

func (h opHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *opHeap) Push(x any) {
	*h = append(*h, x.(*entry))
}

func (h *opHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

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

// Package controlplane is the relayer's small HTTP surface: a retry
// endpoint that publishes onto a Broadcaster, which every OpQueue-owning
// Submitter subscribes to (spec.md §6, out of core scope but its wire
// shape and fan-out semantics are specified).
package controlplane

import (
	"sync"

	"github.com/wendi777/hyperline/internal/opqueue"
)

// Broadcaster is a multi-producer, multi-consumer pub/sub of retry
// requests: the closest idiomatic Go analogue of a broadcast channel,
// since neither the standard library nor the teacher's dependency set
// offers one directly.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int]chan opqueue.RetryRequest
	nextID      int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[int]chan opqueue.RetryRequest)}
}

// Subscribe registers a new receiver with a small buffer and returns it
// along with an unsubscribe function. Receivers must drain non-blockingly;
// a full subscriber channel silently drops the newest request rather than
// blocking the publisher (spec.md §5: "receivers use non-blocking drain
// semantics").
func (b *Broadcaster) Subscribe() (<-chan opqueue.RetryRequest, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan opqueue.RetryRequest, 16)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Publish fans a retry request out to every live subscriber.
func (b *Broadcaster) Publish(r opqueue.RetryRequest) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- r:
		default:
		}
	}
}

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

package adapters

import (
	"context"

	"github.com/wendi777/hyperline/internal/hyperlane"
)

// LogRange is an inclusive block range [From, To].
type LogRange struct {
	From uint64
	To   uint64
}

// Indexer is the narrow per-(origin, event-type) contract the core indexer
// loop (internal/indexer) drives. T is typically hyperlane.Message, but the
// same shape indexes gas-payment events for the out-of-core-scope gas-payment
// indexer that shares the same MessageStore.
type Indexer[T any] interface {
	// FetchLogs returns every matching event in the inclusive range, sorted by
	// the adapter's natural on-chain order (nonce order for dispatch events).
	FetchLogs(ctx context.Context, r LogRange) ([]IndexedItem[T], error)
	// GetFinalizedBlockNumber returns the highest block number considered safe
	// from reorg by this adapter's configured finality policy.
	GetFinalizedBlockNumber(ctx context.Context) (uint64, error)
}

// IndexedItem pairs a decoded item with the on-chain location it came from.
type IndexedItem[T any] struct {
	Item T
	Meta hyperlane.LogMeta
}

// SequenceAwareIndexer is an optional refinement of Indexer for event types
// that carry a well-defined sequence number (the dispatch nonce): it lets
// indexer startup ask "what's the latest sequence number and chain tip"
// in a single adapter round-trip instead of inferring it from fetched logs.
type SequenceAwareIndexer[T any] interface {
	Indexer[T]
	// LatestSequenceCountAndTip returns the highest known sequence number (None
	// if the mailbox has never dispatched) and the current finalized tip.
	LatestSequenceCountAndTip(ctx context.Context) (sequenceCount *uint32, tip uint64, err error)
}

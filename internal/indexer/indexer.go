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

package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/hyperledger/firefly-common/pkg/confutil"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/hyperledger/firefly-common/pkg/retry"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
	"github.com/wendi777/hyperline/internal/metrics"
	"github.com/wendi777/hyperline/internal/store"
)

// MessageIndexer drives one origin domain's dispatch-event tail: it fetches
// logs in chunks up to the finalized tip, checks nonce continuity, and
// persists every newly observed message through the store (spec.md §4.1).
type MessageIndexer struct {
	domain       hyperlane.Domain
	source       adapters.SequenceAwareIndexer[hyperlane.Message]
	store        *store.MessageStore
	chunkSize    uint64
	poll         time.Duration
	retry        *retry.Retry
	onDispatched func(hyperlane.Message)
}

// OnDispatched registers a callback invoked once per newly stored message,
// after it has been durably persisted but before the cursor advances past
// it. The relayer wiring uses this to hand each message straight to its
// destination's Submitter without a second pass over the store.
func (idx *MessageIndexer) OnDispatched(fn func(hyperlane.Message)) {
	idx.onDispatched = fn
}

func NewMessageIndexer(domain hyperlane.Domain, source adapters.SequenceAwareIndexer[hyperlane.Message], ms *store.MessageStore, conf *Config) *MessageIndexer {
	if conf == nil {
		conf = &DefaultConfig
	}
	return &MessageIndexer{
		domain:    domain,
		source:    source,
		store:     ms,
		chunkSize: uint64(confutil.IntMin(conf.ChunkSize, 1, *DefaultConfig.ChunkSize)),
		poll:      confutil.DurationMin(conf.PollInterval, minPollInterval, *DefaultConfig.PollInterval),
		retry:     retry.NewRetryIndefinite(&conf.Retry),
	}
}

// Run tails the origin domain until ctx is cancelled. It never returns a
// retryable error to the caller - those are absorbed by the retry policy and
// logged; it only returns on ctx cancellation or a non-retryable failure
// that the continuity checker itself raises (which never happens, since
// ValidateContinuity is pure and total over []uint32).
func (idx *MessageIndexer) Run(ctx context.Context) error {
	l := log.L(ctx).WithField("domain", idx.domain)
	l.Infof("starting indexer")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := idx.indexOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Errorf("index cycle failed, will retry: %+v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idx.poll):
		}
	}
}

// indexOnce advances the domain's cursor by at most one chunk. Returning nil
// means either a chunk was consumed, or the cursor is already at the tip.
func (idx *MessageIndexer) indexOnce(ctx context.Context) error {
	cycleID, _ := nanoid.New()
	l := log.L(ctx).WithField("domain", idx.domain).WithField("cycle", cycleID)

	var tip uint64
	var lastKnown uint32
	var haveLastKnown bool
	err := idx.retry.Do(ctx, "get_finalized_tip", func(_ int) (bool, error) {
		var sequenceCount *uint32
		var innerErr error
		sequenceCount, tip, innerErr = idx.source.LatestSequenceCountAndTip(ctx)
		if innerErr != nil {
			var cce *hyperlane.ChainCommunicationError
			if errors.As(innerErr, &cce) && cce.Category() == hyperlane.CategoryNonRetryable {
				return false, innerErr
			}
			return true, innerErr
		}
		if sequenceCount != nil {
			lastKnown = *sequenceCount
			haveLastKnown = true
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	from, ok, err := idx.store.Cursor(ctx, idx.domain)
	if err != nil {
		return err
	}
	if !ok {
		from = 0
	} else {
		from++
	}
	if from > tip {
		return nil
	}

	to := from + idx.chunkSize - 1
	if to > tip {
		to = tip
	}

	var items []adapters.IndexedItem[hyperlane.Message]
	err = idx.retry.Do(ctx, "fetch_logs", func(_ int) (bool, error) {
		var innerErr error
		items, innerErr = idx.source.FetchLogs(ctx, adapters.LogRange{From: from, To: to})
		var cce *hyperlane.ChainCommunicationError
		if errors.As(innerErr, &cce) && cce.Category() == hyperlane.CategoryNonRetryable {
			return false, innerErr
		}
		return true, innerErr
	})
	if err != nil {
		return err
	}

	nonces := make([]uint32, len(items))
	for i, item := range items {
		nonces[i] = item.Item.Nonce
	}

	switch res := ValidateContinuity(lastKnown, haveLastKnown, nonces); res {
	case ContinuityEmpty:
		l.Debugf("no dispatches in range [%d,%d]", from, to)
	case ContinuityContainsGaps:
		// Per spec.md §8 S4: re-index the same range unchanged rather than
		// advancing the cursor, so the next cycle retries it wholesale.
		l.Warnf("continuity check returned %s for domain %s range [%d,%d], re-indexing", res, idx.domain, from, to)
		return nil
	case ContinuityInvalidContinuation:
		// Per spec.md §8 S5: a reorg was detected. from does not advance (the
		// cursor is left unchanged, so the next cycle re-fetches the same
		// range from last_valid_range_start) and the reorg is surfaced as a
		// missed_events metric delta, not just a log line.
		l.Warnf("continuity check returned %s for domain %s range [%d,%d], re-indexing", res, idx.domain, from, to)
		metrics.MissedEvents.WithLabelValues(idx.domain.String()).Inc()
		return nil
	default:
		for _, item := range items {
			if err := idx.store.StoreDispatched(ctx, item.Item, item.Meta.BlockNumber); err != nil {
				return err
			}
			if idx.onDispatched != nil {
				idx.onDispatched(item.Item)
			}
		}
	}

	return idx.store.SetCursor(ctx, idx.domain, to)
}

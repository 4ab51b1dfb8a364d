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

package operation

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/hyperledger/firefly-common/pkg/log"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
)

// MessageOperation is the sole concrete PendingOperation: it delivers one
// dispatched Message to its destination mailbox. Other operation kinds
// (e.g. a gas-payment quote) could implement the same interface, but the
// relayer's core pipeline only ever constructs this one.
type MessageOperation struct {
	mu sync.Mutex

	message     hyperlane.Message
	destination hyperlane.Domain
	mailbox     adapters.Mailbox
	priority    int
	appContext  string

	status           Status
	nextAttemptAfter time.Time
	retries          uint32
	backoff          Backoff

	metadata     adapters.Metadata
	metadataBuilder *MetadataBuilder
	txOutcome    *adapters.TxOutcome
	costEstimate *big.Int
}

// NewMessageOperation constructs a PendingOperation for one dispatched
// message. metadataBuilder may be nil - a chain configured without a
// CheckpointSyncer/ISM resolver (e.g. in tests, or a destination where
// validator checkpoints aren't wired up yet) falls back to submitting with
// empty Metadata, since there is nothing to assemble it from; once wired,
// Prepare consumes it to build the real ISM proof blob.
func NewMessageOperation(message hyperlane.Message, mailbox adapters.Mailbox, priority int, appContext string, metadataBuilder *MetadataBuilder) *MessageOperation {
	return &MessageOperation{
		message:         message,
		destination:     message.Destination,
		mailbox:         mailbox,
		priority:        priority,
		appContext:      appContext,
		status:          StatusPrepared,
		backoff:         NewBackoff(),
		metadataBuilder: metadataBuilder,
	}
}

func (op *MessageOperation) ID() hyperlane.H256 { return op.message.ID() }

func (op *MessageOperation) DestinationDomain() hyperlane.Domain { return op.destination }

func (op *MessageOperation) Priority() int { return op.priority }

func (op *MessageOperation) AppContext() string { return op.appContext }

func (op *MessageOperation) Status() Status {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.status
}

func (op *MessageOperation) NextAttemptAfter() (time.Time, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.nextAttemptAfter, !op.nextAttemptAfter.IsZero()
}

func (op *MessageOperation) SetNextAttemptAfter(t time.Time) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.nextAttemptAfter = t
}

// ResetAttempts zeroes the backoff state, placing the operation at the head
// of the queue on the next heap rebuild (spec.md §4.4 retry semantics).
func (op *MessageOperation) ResetAttempts() {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.retries = 0
	op.nextAttemptAfter = time.Time{}
}

func (op *MessageOperation) SetRetries(n uint32) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.retries = n
}

func (op *MessageOperation) Retries() uint32 {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.retries
}

func (op *MessageOperation) scheduleRetry() {
	op.retries++
	op.nextAttemptAfter = time.Now().Add(op.backoff.Next(op.retries))
}

// Prepare verifies the destination hasn't already delivered this message
// and resolves the ISM metadata needed by Process. It never mutates chain
// state.
func (op *MessageOperation) Prepare(ctx context.Context) Result {
	op.mu.Lock()
	defer op.mu.Unlock()

	delivered, err := op.mailbox.Delivered(ctx, op.message.ID())
	if err != nil {
		log.L(ctx).Warnf("prepare: delivered() check failed for %s: %+v", op.message.ID(), err)
		op.scheduleRetry()
		return ResultRetry
	}
	if delivered {
		// DuplicateMessage per spec.md §7: treat as Success, idempotent.
		op.status = StatusDelivered
		return ResultSuccess
	}

	ismAddr, err := op.mailbox.RecipientISM(ctx, hyperlane.AddressFromH256(op.message.Recipient))
	if err != nil {
		op.scheduleRetry()
		return ResultRetry
	}

	if op.metadataBuilder != nil {
		metadata, err := op.metadataBuilder.Build(ctx, op.message, ismAddr)
		if err != nil {
			log.L(ctx).Warnf("prepare: metadata build failed for %s against ism %s: %+v", op.message.ID(), ismAddr, err)
			op.scheduleRetry()
			return ResultRetry
		}
		op.metadata = metadata
	}

	estimate, err := op.mailbox.ProcessEstimateCosts(ctx, op.message, op.metadata)
	if err != nil {
		op.scheduleRetry()
		return ResultRetry
	}
	op.costEstimate = estimate.GasLimit

	op.status = StatusReady
	return ResultSuccess
}

// Submit dispatches the message to the destination mailbox. A post-send
// timeout is surfaced as Confirm with a backoff delay, so the Confirm phase,
// not Submit, resolves whether delivery actually landed - see spec.md §9's
// re-entrancy note. Any other Process error is surfaced as Retry.
func (op *MessageOperation) Submit(ctx context.Context) Result {
	op.mu.Lock()
	defer op.mu.Unlock()

	outcome, err := op.mailbox.Process(ctx, op.message, op.metadata, nil)
	if err != nil {
		if _, isTimeout := err.(*hyperlane.TransactionTimeout); isTimeout {
			op.nextAttemptAfter = time.Now().Add(op.backoff.Next(op.retries + 1))
			op.status = StatusConfirming
			return ResultConfirm
		}
		op.scheduleRetry()
		return ResultRetry
	}
	op.txOutcome = &outcome
	op.status = StatusConfirming
	return ResultConfirm
}

func (op *MessageOperation) SetSubmissionOutcome(outcome adapters.TxOutcome) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.txOutcome = &outcome
}

// Confirm checks whether the submitted transaction reached finality.
func (op *MessageOperation) Confirm(ctx context.Context) Result {
	op.mu.Lock()
	defer op.mu.Unlock()

	delivered, err := op.mailbox.Delivered(ctx, op.message.ID())
	if err != nil {
		op.scheduleRetry()
		return ResultRetry
	}
	if !delivered {
		if op.txOutcome != nil && !op.txOutcome.Success {
			op.scheduleRetry()
			return ResultRetry
		}
		op.scheduleRetry()
		return ResultNotReady
	}
	op.status = StatusDelivered
	return ResultSuccess
}

func (op *MessageOperation) SetOperationOutcome(result Result, cost *big.Int) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if result == ResultDrop {
		op.status = StatusDropped
	}
	op.costEstimate = cost
}

func (op *MessageOperation) TxCostEstimate() (*big.Int, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.costEstimate, op.costEstimate != nil
}

// Message returns the wrapped message, for submitter/store bookkeeping
// (mark_nonce_processed needs the origin/nonce after Confirm succeeds).
func (op *MessageOperation) Message() hyperlane.Message {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.message
}

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

// Package adapters defines the capability interfaces the core consumes from
// per-chain contract bindings (spec.md §6). The core never depends on a
// concrete chain kind - only on these interfaces - so a new chain family is
// added by implementing them, not by touching the queue/submitter/indexer.
package adapters

import (
	"context"
	"math/big"

	"github.com/wendi777/hyperline/internal/hyperlane"
)

// TxOutcome is the result of a submitted destination-chain transaction.
type TxOutcome struct {
	TransactionHash hyperlane.H256
	Success         bool
	GasUsed         *big.Int
}

// TxCostEstimate is returned by process_estimate_costs, used by the
// gas-payment policy layer (out of core scope) to decide whether a message
// has enough prepaid gas to be worth submitting.
type TxCostEstimate struct {
	GasLimit *big.Int
	GasPrice *big.Int
}

// Metadata is the opaque ISM-specific proof blob passed to Mailbox.Process -
// its shape is determined by whichever ISM variant the recipient configured,
// and the core never inspects its contents.
type Metadata []byte

// Mailbox is the uniform capability interface onto a chain's mailbox
// contract, covering both the Outbox (dispatch/tree/checkpoint) and Inbox
// (delivered/process) halves.
type Mailbox interface {
	Domain() hyperlane.Domain
	Address() hyperlane.Address

	// Count returns the number of leaves ever inserted into the Outbox tree.
	Count(ctx context.Context) (uint32, error)
	// Delivered reports whether the Inbox has already processed this message id.
	Delivered(ctx context.Context, id hyperlane.H256) (bool, error)
	// DefaultISM returns the mailbox-wide default interchain security module.
	DefaultISM(ctx context.Context) (hyperlane.Address, error)
	// RecipientISM returns the ISM a specific recipient contract has opted into,
	// falling back to DefaultISM if the recipient hasn't overridden it.
	RecipientISM(ctx context.Context, recipient hyperlane.Address) (hyperlane.Address, error)
	// Tree returns a snapshot of the Outbox's incremental Merkle tree, optionally
	// lagged by `lag` blocks behind the chain tip (reorg safety margin).
	Tree(ctx context.Context, lag *uint32) (hyperlane.IncrementalMerkle, error)
	// LatestCheckpoint derives the checkpoint at the current (optionally lagged) tip.
	LatestCheckpoint(ctx context.Context, lag *uint32) (hyperlane.Checkpoint, error)
	// Process delivers a message to the Inbox, with its ISM metadata proof and an
	// optional caller-supplied gas limit override.
	Process(ctx context.Context, message hyperlane.Message, metadata Metadata, gasLimit *big.Int) (TxOutcome, error)
	// ProcessEstimateCosts estimates the cost of a Process call without submitting it.
	ProcessEstimateCosts(ctx context.Context, message hyperlane.Message, metadata Metadata) (TxCostEstimate, error)
}

// BatchSubmitter is an optional capability a Mailbox adapter may additionally
// implement: batched delivery of multiple messages in one transaction.
// Per spec.md's Open Question resolution (SPEC_FULL.md §9), batch failure is
// best-effort non-atomic: a partial success is permitted, and confirm() still
// resolves outcome per individual operation afterward.
type BatchSubmitter interface {
	Mailbox
	// ProcessBatch attempts to deliver all given messages in as few transactions
	// as the adapter can manage, returning one TxOutcome (or error) per message,
	// in the same order as the input slice.
	ProcessBatch(ctx context.Context, messages []hyperlane.Message, metadata []Metadata) ([]BatchItemResult, error)
}

// BatchItemResult is the per-message outcome of a batched submission attempt.
type BatchItemResult struct {
	Outcome TxOutcome
	Err     error
}

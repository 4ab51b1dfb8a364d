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

package hyperlane

import (
	"context"

	"github.com/wendi777/hyperline/internal/msgs"

	"github.com/hyperledger/firefly-common/pkg/i18n"
)

// Checkpoint is a witness of an Outbox Merkle-tree's state at a given index.
// Index always equals tree.count - 1 at the time the checkpoint was taken.
type Checkpoint struct {
	MailboxAddress Address
	MailboxDomain  Domain
	Root           H256
	Index          uint32
}

// SignedCheckpointWithMessageId additionally binds the message id dispatched
// at Index, and carries the independent validator signatures attesting to it.
type SignedCheckpointWithMessageID struct {
	Checkpoint
	MessageID  H256
	Signatures [][]byte
}

// IncrementalMerkle is the append-only tree mirrored off the Outbox contract.
// Only Count is needed by the relayer core (to derive a Checkpoint's Index);
// the full branch/root computation is the adapter's responsibility, since it
// requires the same incremental-tree algorithm as the on-chain contract.
type IncrementalMerkle struct {
	Root  H256
	Count uint32
}

// LatestCheckpoint derives a Checkpoint from a tree snapshot, failing with
// MsgEmptyTree if the tree has never had a leaf inserted (spec.md §8 boundary
// behavior: count()==0 implies latest_checkpoint() fails).
func (t IncrementalMerkle) LatestCheckpoint(ctx context.Context, mailbox Address, domain Domain) (Checkpoint, error) {
	if t.Count == 0 {
		return Checkpoint{}, i18n.NewError(ctx, msgs.MsgEmptyTree)
	}
	return Checkpoint{
		MailboxAddress: mailbox,
		MailboxDomain:  domain,
		Root:           t.Root,
		Index:          t.Count - 1,
	}, nil
}

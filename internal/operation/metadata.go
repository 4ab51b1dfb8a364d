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
	"encoding/binary"
	"fmt"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
)

// ISMResolver resolves an on-chain ISM address to the concrete capability
// interface spec.md §6 names (Multisig/Aggregation/Routing). Each chain
// adapter bundle supplies its own resolver, backed by however it discovers
// an ISM contract's variant (the EVM adapter's does it with moduleType(),
// internal/adapters/evm/ism.go).
type ISMResolver interface {
	Resolve(ctx context.Context, addr hyperlane.Address) (adapters.ISM, error)
}

// MetadataBuilder is the "consuming side of already-signed checkpoints" half
// of spec.md §1's "deliver them, with cryptographic attestations from
// independent validators": it combines a recipient's configured ISM with the
// latest checkpoint its CheckpointSyncer has published into the Metadata
// blob Mailbox.Process expects. Validator signing itself stays out of scope
// (the checkpoints it reads are already signed by the time they reach the
// syncer); this only assembles what the relayer is responsible for.
type MetadataBuilder struct {
	syncer adapters.CheckpointSyncer
	isms   ISMResolver
}

func NewMetadataBuilder(syncer adapters.CheckpointSyncer, isms ISMResolver) *MetadataBuilder {
	return &MetadataBuilder{syncer: syncer, isms: isms}
}

// Build resolves ismAddr to its concrete ISM kind and assembles the Metadata
// proving message's inclusion under the latest checkpoint the validators
// signed. A RoutingISM is followed recursively to whatever ISM it delegates
// to for this specific message.
func (b *MetadataBuilder) Build(ctx context.Context, message hyperlane.Message, ismAddr hyperlane.Address) (adapters.Metadata, error) {
	resolved, err := b.isms.Resolve(ctx, ismAddr)
	if err != nil {
		return nil, err
	}

	switch resolved.Kind() {
	case adapters.ISMKindRouting:
		routing, ok := resolved.(adapters.RoutingISM)
		if !ok {
			return nil, fmt.Errorf("ism %s reports routing kind but does not implement RoutingISM", ismAddr)
		}
		next, err := routing.Route(ctx, message)
		if err != nil {
			return nil, err
		}
		return b.Build(ctx, message, next)

	case adapters.ISMKindAggregation:
		agg, ok := resolved.(adapters.AggregationISM)
		if !ok {
			return nil, fmt.Errorf("ism %s reports aggregation kind but does not implement AggregationISM", ismAddr)
		}
		modules, threshold, err := agg.ModulesAndThreshold(ctx, message)
		if err != nil {
			return nil, err
		}
		checkpoint, err := b.latestSignedCheckpoint(ctx)
		if err != nil {
			return nil, err
		}
		return encodeCheckpointMetadata(checkpoint, modules, threshold), nil

	case adapters.ISMKindMultisig:
		multisig, ok := resolved.(adapters.MultisigISM)
		if !ok {
			return nil, fmt.Errorf("ism %s reports multisig kind but does not implement MultisigISM", ismAddr)
		}
		validators, threshold, err := multisig.ValidatorsAndThreshold(ctx, message)
		if err != nil {
			return nil, err
		}
		checkpoint, err := b.latestSignedCheckpoint(ctx)
		if err != nil {
			return nil, err
		}
		return encodeCheckpointMetadata(checkpoint, validators, threshold), nil

	default:
		return nil, fmt.Errorf("ism %s reported an unrecognized kind", ismAddr)
	}
}

func (b *MetadataBuilder) latestSignedCheckpoint(ctx context.Context) (*hyperlane.SignedCheckpointWithMessageID, error) {
	index, err := b.syncer.LatestIndex(ctx)
	if err != nil {
		return nil, err
	}
	if index == nil {
		return nil, fmt.Errorf("checkpoint syncer has not published any checkpoint yet")
	}
	checkpoint, err := b.syncer.FetchCheckpoint(ctx, *index)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, fmt.Errorf("checkpoint syncer has no checkpoint at index %d", *index)
	}
	return checkpoint, nil
}

// encodeCheckpointMetadata lays out mailbox_address(32) || root(32) ||
// index(4 BE) || threshold(1) || validator_count(1) || validators(20 each)
// || signature_count(1) || length-prefixed signatures. Metadata is opaque to
// the rest of the core (adapters.Metadata's doc comment) - this layout only
// needs to agree with whichever on-chain ISM the destination adapter
// targets, and carries everything ValidatorsAndThreshold/
// ModulesAndThreshold plus the signed checkpoint provide.
func encodeCheckpointMetadata(checkpoint *hyperlane.SignedCheckpointWithMessageID, addrs []hyperlane.Address, threshold uint8) adapters.Metadata {
	buf := make([]byte, 0, 32+32+4+1+1+len(addrs)*20+1)
	mailboxH256 := checkpoint.MailboxAddress.AsH256()
	buf = append(buf, mailboxH256[:]...)
	buf = append(buf, checkpoint.Root[:]...)

	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], checkpoint.Index)
	buf = append(buf, idx[:]...)

	buf = append(buf, threshold)
	buf = append(buf, byte(len(addrs)))
	for _, a := range addrs {
		buf = append(buf, a[:]...)
	}

	buf = append(buf, byte(len(checkpoint.Signatures)))
	for _, sig := range checkpoint.Signatures {
		buf = append(buf, byte(len(sig)))
		buf = append(buf, sig...)
	}
	return buf
}

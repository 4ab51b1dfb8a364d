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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
)

type fakeMultisigISM struct {
	addr       hyperlane.Address
	validators []hyperlane.Address
	threshold  uint8
}

func (f *fakeMultisigISM) Kind() adapters.ISMKind      { return adapters.ISMKindMultisig }
func (f *fakeMultisigISM) Address() hyperlane.Address { return f.addr }
func (f *fakeMultisigISM) ValidatorsAndThreshold(context.Context, hyperlane.Message) ([]hyperlane.Address, uint8, error) {
	return f.validators, f.threshold, nil
}

type fakeRoutingISM struct {
	addr hyperlane.Address
	next hyperlane.Address
}

func (f *fakeRoutingISM) Kind() adapters.ISMKind      { return adapters.ISMKindRouting }
func (f *fakeRoutingISM) Address() hyperlane.Address { return f.addr }
func (f *fakeRoutingISM) Route(context.Context, hyperlane.Message) (hyperlane.Address, error) {
	return f.next, nil
}

type fakeISMResolver struct {
	byAddr map[hyperlane.Address]adapters.ISM
}

func (r *fakeISMResolver) Resolve(_ context.Context, addr hyperlane.Address) (adapters.ISM, error) {
	return r.byAddr[addr], nil
}

type fakeCheckpointSyncer struct {
	index      *uint32
	checkpoint *hyperlane.SignedCheckpointWithMessageID
}

func (s *fakeCheckpointSyncer) LatestIndex(context.Context) (*uint32, error) { return s.index, nil }
func (s *fakeCheckpointSyncer) FetchCheckpoint(context.Context, uint32) (*hyperlane.SignedCheckpointWithMessageID, error) {
	return s.checkpoint, nil
}
func (s *fakeCheckpointSyncer) WriteCheckpoint(context.Context, *hyperlane.SignedCheckpointWithMessageID) error {
	return nil
}
func (s *fakeCheckpointSyncer) WriteAnnouncement(context.Context, []byte) error { return nil }

func testMessage() hyperlane.Message {
	return hyperlane.Message{
		Version:     hyperlane.DefaultMessageVersion,
		Nonce:       1,
		Origin:      hyperlane.Domain(10),
		Destination: hyperlane.Domain(20),
		Body:        []byte("x"),
	}
}

func TestMetadataBuilderMultisigEncodesCheckpointAndValidators(t *testing.T) {
	ismAddr := hyperlane.Address{1}
	validators := []hyperlane.Address{{2}, {3}}
	index := uint32(5)
	checkpoint := &hyperlane.SignedCheckpointWithMessageID{
		Checkpoint: hyperlane.Checkpoint{
			MailboxAddress: hyperlane.Address{9},
			MailboxDomain:  hyperlane.Domain(10),
			Root:           hyperlane.H256{7},
			Index:          index,
		},
		MessageID:  hyperlane.H256{8},
		Signatures: [][]byte{{0xAA, 0xBB}, {0xCC}},
	}

	resolver := &fakeISMResolver{byAddr: map[hyperlane.Address]adapters.ISM{
		ismAddr: &fakeMultisigISM{addr: ismAddr, validators: validators, threshold: 2},
	}}
	syncer := &fakeCheckpointSyncer{index: &index, checkpoint: checkpoint}
	b := NewMetadataBuilder(syncer, resolver)

	meta, err := b.Build(context.Background(), testMessage(), ismAddr)
	require.NoError(t, err)
	require.NotEmpty(t, meta)

	// mailbox_address(32) || root(32) || index(4) || threshold(1) || count(1)
	assert.Equal(t, checkpoint.MailboxAddress.AsH256(), hyperlane.H256(meta[0:32]))
	assert.Equal(t, checkpoint.Root, hyperlane.H256(meta[32:64]))
	assert.Equal(t, uint8(2), meta[68])
	assert.Equal(t, uint8(len(validators)), meta[69])
}

func TestMetadataBuilderRoutingFollowsToNestedISM(t *testing.T) {
	routingAddr := hyperlane.Address{1}
	multisigAddr := hyperlane.Address{2}
	index := uint32(0)
	checkpoint := &hyperlane.SignedCheckpointWithMessageID{
		Checkpoint: hyperlane.Checkpoint{MailboxAddress: hyperlane.Address{9}, Root: hyperlane.H256{1}, Index: 0},
	}

	resolver := &fakeISMResolver{byAddr: map[hyperlane.Address]adapters.ISM{
		routingAddr:  &fakeRoutingISM{addr: routingAddr, next: multisigAddr},
		multisigAddr: &fakeMultisigISM{addr: multisigAddr, validators: []hyperlane.Address{{3}}, threshold: 1},
	}}
	syncer := &fakeCheckpointSyncer{index: &index, checkpoint: checkpoint}
	b := NewMetadataBuilder(syncer, resolver)

	meta, err := b.Build(context.Background(), testMessage(), routingAddr)
	require.NoError(t, err)
	assert.NotEmpty(t, meta)
}

func TestMetadataBuilderNoCheckpointYetIsAnError(t *testing.T) {
	ismAddr := hyperlane.Address{1}
	resolver := &fakeISMResolver{byAddr: map[hyperlane.Address]adapters.ISM{
		ismAddr: &fakeMultisigISM{addr: ismAddr, validators: nil, threshold: 1},
	}}
	syncer := &fakeCheckpointSyncer{}
	b := NewMetadataBuilder(syncer, resolver)

	_, err := b.Build(context.Background(), testMessage(), ismAddr)
	assert.Error(t, err)
}

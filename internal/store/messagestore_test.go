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

package store

import (
	"context"
	"math/big"
	"testing"

	"github.com/wendi777/hyperline/internal/hyperlane"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(nonce uint32) hyperlane.Message {
	var sender, recipient hyperlane.H256
	sender[0] = 1
	recipient[0] = 2
	return hyperlane.Message{
		Version:     hyperlane.DefaultMessageVersion,
		Nonce:       nonce,
		Origin:      hyperlane.Domain(100),
		Sender:      sender,
		Destination: hyperlane.Domain(200),
		Recipient:   recipient,
		Body:        []byte("payload"),
	}
}

func TestStoreDispatchedAndLookup(t *testing.T) {
	ctx := context.Background()
	ms := NewMessageStore(NewMemKV())
	m := testMessage(7)

	require.NoError(t, ms.StoreDispatched(ctx, m, 1000))

	byNonce, err := ms.MessageByNonce(ctx, m.Origin, 7)
	require.NoError(t, err)
	require.NotNil(t, byNonce)
	assert.Equal(t, m, *byNonce)

	byID, err := ms.MessageByID(ctx, m.Origin, m.ID())
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, m, *byID)
}

func TestStoreDispatchedIdempotent(t *testing.T) {
	ctx := context.Background()
	ms := NewMessageStore(NewMemKV())
	m := testMessage(1)

	require.NoError(t, ms.StoreDispatched(ctx, m, 500))
	require.NoError(t, ms.StoreDispatched(ctx, m, 500))

	byNonce, err := ms.MessageByNonce(ctx, m.Origin, 1)
	require.NoError(t, err)
	assert.Equal(t, m, *byNonce)
}

func TestMessageByNonceMissing(t *testing.T) {
	ctx := context.Background()
	ms := NewMessageStore(NewMemKV())
	m, err := ms.MessageByNonce(ctx, hyperlane.Domain(1), 999)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMarkNonceProcessedIdempotent(t *testing.T) {
	ctx := context.Background()
	ms := NewMessageStore(NewMemKV())
	origin := hyperlane.Domain(5)

	processed, err := ms.IsNonceProcessed(ctx, origin, 3)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, ms.MarkNonceProcessed(ctx, origin, 3))
	require.NoError(t, ms.MarkNonceProcessed(ctx, origin, 3)) // idempotent

	processed, err = ms.IsNonceProcessed(ctx, origin, 3)
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestProcessGasPaymentIdempotence(t *testing.T) {
	ctx := context.Background()
	ms := NewMessageStore(NewMemKV())
	id := hyperlane.H256{1}
	meta := hyperlane.GasPaymentMeta{TransactionHash: hyperlane.H256{2}, LogIndex: 0}

	first, err := ms.ProcessGasPayment(ctx, id, meta, big.NewInt(100))
	require.NoError(t, err)
	assert.True(t, first, "first call with a fresh meta processes the payment")

	second, err := ms.ProcessGasPayment(ctx, id, meta, big.NewInt(100))
	require.NoError(t, err)
	assert.False(t, second, "repeat call with the same meta must not re-process")

	total, err := ms.GasPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), total, "payment accumulates only for first-time calls")

	// a second distinct meta for the same message DOES accumulate
	meta2 := hyperlane.GasPaymentMeta{TransactionHash: hyperlane.H256{3}, LogIndex: 1}
	third, err := ms.ProcessGasPayment(ctx, id, meta2, big.NewInt(50))
	require.NoError(t, err)
	assert.True(t, third)

	total, err = ms.GasPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(150), total)
}

func TestGasExpenditureAccumulates(t *testing.T) {
	ctx := context.Background()
	ms := NewMessageStore(NewMemKV())
	id := hyperlane.H256{9}

	require.NoError(t, ms.RecordGasExpenditure(ctx, id, big.NewInt(30)))
	require.NoError(t, ms.RecordGasExpenditure(ctx, id, big.NewInt(20)))

	total, err := ms.GasExpenditure(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), total)
}

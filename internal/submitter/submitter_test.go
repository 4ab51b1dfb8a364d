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

package submitter

import (
	"context"
	"io"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
	"github.com/wendi777/hyperline/internal/operation"
	"github.com/wendi777/hyperline/internal/store"
)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// duplicateMailbox simulates a destination that has already delivered the
// message by the time Prepare first checks: Delivered reports true from the
// start, and a second concurrent Process call would return DuplicateMessage
// (modeled here simply by Delivered short-circuiting Prepare to Success).
type duplicateMailbox struct {
	domain      hyperlane.Domain
	delivered   atomic.Bool
	processCalls atomic.Int32
}

func (m *duplicateMailbox) Domain() hyperlane.Domain   { return m.domain }
func (m *duplicateMailbox) Address() hyperlane.Address  { return hyperlane.Address{} }
func (m *duplicateMailbox) Count(context.Context) (uint32, error) { return 0, nil }
func (m *duplicateMailbox) Delivered(context.Context, hyperlane.H256) (bool, error) {
	return m.delivered.Load(), nil
}
func (m *duplicateMailbox) DefaultISM(context.Context) (hyperlane.Address, error) {
	return hyperlane.Address{}, nil
}
func (m *duplicateMailbox) RecipientISM(context.Context, hyperlane.Address) (hyperlane.Address, error) {
	return hyperlane.Address{}, nil
}
func (m *duplicateMailbox) Tree(context.Context, *uint32) (hyperlane.IncrementalMerkle, error) {
	return hyperlane.IncrementalMerkle{}, nil
}
func (m *duplicateMailbox) LatestCheckpoint(context.Context, *uint32) (hyperlane.Checkpoint, error) {
	return hyperlane.Checkpoint{}, nil
}
func (m *duplicateMailbox) Process(context.Context, hyperlane.Message, adapters.Metadata, *big.Int) (adapters.TxOutcome, error) {
	m.processCalls.Add(1)
	m.delivered.Store(true)
	return adapters.TxOutcome{Success: true}, nil
}
func (m *duplicateMailbox) ProcessEstimateCosts(context.Context, hyperlane.Message, adapters.Metadata) (adapters.TxCostEstimate, error) {
	return adapters.TxCostEstimate{GasLimit: big.NewInt(21000)}, nil
}

func TestS6DuplicateDeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	origin := hyperlane.Domain(300)
	destination := hyperlane.Domain(301)
	hyperlane.RegisterDomain(origin, "s6-origin")
	hyperlane.RegisterDomain(destination, "s6-destination")

	mb := &duplicateMailbox{domain: destination}
	ms := store.NewMessageStore(store.NewMemKV())
	sub := New(destination, mb, ms, 5)

	message := hyperlane.Message{
		Version:     hyperlane.DefaultMessageVersion,
		Nonce:       42,
		Origin:      origin,
		Destination: destination,
		Body:        []byte("payload"),
	}

	// First delivery: prepare -> ready -> submit -> confirm -> delivered.
	op1 := operation.NewMessageOperation(message, mb, 0, "s6", nil)
	require.Equal(t, operation.ResultSuccess, op1.Prepare(ctx))
	require.Equal(t, operation.ResultConfirm, op1.Submit(ctx))
	require.Equal(t, operation.ResultSuccess, op1.Confirm(ctx))
	sub.markDelivered(ctx, discardLogger(), op1)

	processed, err := ms.IsNonceProcessed(ctx, origin, 42)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, int32(1), mb.processCalls.Load())

	// Second delivery attempt for the same message: Prepare short-circuits
	// to Success via Delivered()==true (spec.md §7: DuplicateMessage is
	// treated as Success, not a failure).
	op2 := operation.NewMessageOperation(message, mb, 0, "s6", nil)
	require.Equal(t, operation.ResultSuccess, op2.Prepare(ctx))
	assert.Equal(t, int32(1), mb.processCalls.Load(), "Process must not be called again once Delivered() is true")

	// mark_nonce_processed is still only reflected once in the store, even
	// if the submitter pipeline ran markDelivered a second time.
	sub.markDelivered(ctx, discardLogger(), op2)
	processed, err = ms.IsNonceProcessed(ctx, origin, 42)
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestSubmitterStartStopDrainsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	destination := hyperlane.Domain(302)
	hyperlane.RegisterDomain(destination, "s6-stop-destination")

	mb := &duplicateMailbox{domain: destination}
	ms := store.NewMessageStore(store.NewMemKV())
	sub := New(destination, mb, ms, 5)

	sub.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()
	sub.Stop()
}

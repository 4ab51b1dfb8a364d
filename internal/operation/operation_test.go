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
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
)

type fakeMailbox struct {
	domain    hyperlane.Domain
	delivered bool
	deliverErr error
	processErr error
	processOutcome adapters.TxOutcome
}

func (f *fakeMailbox) Domain() hyperlane.Domain  { return f.domain }
func (f *fakeMailbox) Address() hyperlane.Address { return hyperlane.Address{} }
func (f *fakeMailbox) Count(context.Context) (uint32, error) { return 0, nil }
func (f *fakeMailbox) Delivered(context.Context, hyperlane.H256) (bool, error) {
	return f.delivered, f.deliverErr
}
func (f *fakeMailbox) DefaultISM(context.Context) (hyperlane.Address, error) {
	return hyperlane.Address{}, nil
}
func (f *fakeMailbox) RecipientISM(context.Context, hyperlane.Address) (hyperlane.Address, error) {
	return hyperlane.Address{}, nil
}
func (f *fakeMailbox) Tree(context.Context, *uint32) (hyperlane.IncrementalMerkle, error) {
	return hyperlane.IncrementalMerkle{}, nil
}
func (f *fakeMailbox) LatestCheckpoint(context.Context, *uint32) (hyperlane.Checkpoint, error) {
	return hyperlane.Checkpoint{}, nil
}
func (f *fakeMailbox) Process(context.Context, hyperlane.Message, adapters.Metadata, *big.Int) (adapters.TxOutcome, error) {
	return f.processOutcome, f.processErr
}
func (f *fakeMailbox) ProcessEstimateCosts(context.Context, hyperlane.Message, adapters.Metadata) (adapters.TxCostEstimate, error) {
	return adapters.TxCostEstimate{GasLimit: big.NewInt(21000)}, nil
}

func testOp(mb adapters.Mailbox) *MessageOperation {
	m := hyperlane.Message{
		Version:     hyperlane.DefaultMessageVersion,
		Nonce:       1,
		Origin:      hyperlane.Domain(10),
		Destination: hyperlane.Domain(20),
		Body:        []byte("x"),
	}
	return NewMessageOperation(m, mb, 5, "test", nil)
}

func TestPrepareSuccessMovesToReady(t *testing.T) {
	op := testOp(&fakeMailbox{})
	res := op.Prepare(context.Background())
	assert.Equal(t, ResultSuccess, res)
	assert.Equal(t, StatusReady, op.Status())
}

func TestPrepareAlreadyDeliveredIsSuccess(t *testing.T) {
	op := testOp(&fakeMailbox{delivered: true})
	res := op.Prepare(context.Background())
	assert.Equal(t, ResultSuccess, res)
	assert.Equal(t, StatusDelivered, op.Status())
}

func TestPrepareErrorSchedulesRetry(t *testing.T) {
	op := testOp(&fakeMailbox{deliverErr: errors.New("rpc down")})
	res := op.Prepare(context.Background())
	assert.Equal(t, ResultRetry, res)
	next, ok := op.NextAttemptAfter()
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))
	assert.Equal(t, uint32(1), op.Retries())
}

func TestSubmitSuccessMovesToConfirming(t *testing.T) {
	mb := &fakeMailbox{processOutcome: adapters.TxOutcome{Success: true}}
	op := testOp(mb)
	res := op.Submit(context.Background())
	assert.Equal(t, ResultConfirm, res)
	assert.Equal(t, StatusConfirming, op.Status())
}

func TestSubmitTimeoutProceedsToConfirm(t *testing.T) {
	mb := &fakeMailbox{processErr: &hyperlane.TransactionTimeout{Domain: hyperlane.Domain(20)}}
	op := testOp(mb)
	res := op.Submit(context.Background())
	assert.Equal(t, ResultConfirm, res, "a submit timeout proceeds to confirm rather than retrying blindly")
}

func TestSubmitOtherErrorRetries(t *testing.T) {
	mb := &fakeMailbox{processErr: errors.New("nonce too low")}
	op := testOp(mb)
	res := op.Submit(context.Background())
	assert.Equal(t, ResultRetry, res)
}

func TestConfirmDeliveredIsSuccess(t *testing.T) {
	op := testOp(&fakeMailbox{delivered: true})
	res := op.Confirm(context.Background())
	assert.Equal(t, ResultSuccess, res)
	assert.Equal(t, StatusDelivered, op.Status())
}

func TestConfirmNotYetDeliveredIsNotReady(t *testing.T) {
	op := testOp(&fakeMailbox{delivered: false})
	res := op.Confirm(context.Background())
	assert.Equal(t, ResultNotReady, res)
}

func TestResetAttemptsClearsBackoff(t *testing.T) {
	op := testOp(&fakeMailbox{deliverErr: errors.New("boom")})
	op.Prepare(context.Background())
	require.Equal(t, uint32(1), op.Retries())

	op.ResetAttempts()
	assert.Equal(t, uint32(0), op.Retries())
	_, ok := op.NextAttemptAfter()
	assert.False(t, ok)
}

func TestBackoffIsClamped(t *testing.T) {
	b := NewBackoff()
	for attempt := uint32(1); attempt < 20; attempt++ {
		d := b.Next(attempt)
		assert.GreaterOrEqual(t, d, minBackoff)
		assert.LessOrEqual(t, d, maxBackoff)
	}
}

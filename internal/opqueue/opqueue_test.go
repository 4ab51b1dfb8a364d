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

package opqueue

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
	"github.com/wendi777/hyperline/internal/operation"
)

// fakeOp is a minimal operation.PendingOperation test double whose fields
// are directly settable, bypassing the Prepare/Submit/Confirm lifecycle
// that MessageOperation enforces.
type fakeOp struct {
	id          hyperlane.H256
	destination hyperlane.Domain
	priority    int
	next        time.Time
	hasNext     bool
	status      operation.Status
}

func newFakeOp(idByte byte, destination hyperlane.Domain, priority int, next time.Time) *fakeOp {
	id := hyperlane.H256{}
	id[31] = idByte
	return &fakeOp{id: id, destination: destination, priority: priority, next: next, hasNext: true}
}

func (f *fakeOp) ID() hyperlane.H256                  { return f.id }
func (f *fakeOp) DestinationDomain() hyperlane.Domain { return f.destination }
func (f *fakeOp) Priority() int                       { return f.priority }
func (f *fakeOp) AppContext() string                  { return "test" }
func (f *fakeOp) Status() operation.Status            { return f.status }
func (f *fakeOp) NextAttemptAfter() (time.Time, bool)  { return f.next, f.hasNext }
func (f *fakeOp) SetNextAttemptAfter(t time.Time)      { f.next = t; f.hasNext = true }
func (f *fakeOp) ResetAttempts()                       { f.next = time.Time{}; f.hasNext = false }
func (f *fakeOp) SetRetries(uint32)                    {}
func (f *fakeOp) Retries() uint32                      { return 0 }
func (f *fakeOp) Prepare(context.Context) operation.Result { return operation.ResultSuccess }
func (f *fakeOp) Submit(context.Context) operation.Result  { return operation.ResultConfirm }
func (f *fakeOp) SetSubmissionOutcome(adapters.TxOutcome)  {}
func (f *fakeOp) Confirm(context.Context) operation.Result { return operation.ResultSuccess }
func (f *fakeOp) SetOperationOutcome(operation.Result, *big.Int) {}
func (f *fakeOp) TxCostEstimate() (*big.Int, bool) { return nil, false }

func idsOf(ops []operation.PendingOperation) []byte {
	out := make([]byte, len(ops))
	for i, op := range ops {
		id := op.ID()
		out[i] = id[31]
	}
	return out
}

// S1 — ordered delivery within a single destination queue: draining yields
// operations in next_attempt_after order.
func TestS1OrderedDeliveryWithinQueue(t *testing.T) {
	now := time.Now()
	q := New("dest1", "prepare")
	a := newFakeOp('A', 1, 0, now.Add(1*time.Second))
	b := newFakeOp('B', 1, 0, now.Add(2*time.Second))
	c := newFakeOp('C', 1, 0, now.Add(3*time.Second))
	q.Push(c)
	q.Push(a)
	q.Push(b)

	popped := q.PopMany(3)
	require.Len(t, popped, 3)
	assert.Equal(t, []byte{'A', 'B', 'C'}, idsOf(popped))
}

// S2 — retry by message-id preempts backoff: targeted ids move to the head
// in request order, remaining items keep their original relative order.
func TestS2RetryByMessageIDPreempts(t *testing.T) {
	now := time.Now()
	q := New("dest1", "prepare")
	ops := map[byte]*fakeOp{
		'a': newFakeOp('a', 1, 0, now.Add(1*time.Second)),
		'b': newFakeOp('b', 1, 0, now.Add(2*time.Second)),
		'c': newFakeOp('c', 1, 0, now.Add(3*time.Second)),
		'd': newFakeOp('d', 1, 0, now.Add(4*time.Second)),
		'e': newFakeOp('e', 1, 0, now.Add(5*time.Second)),
	}
	for _, k := range []byte{'a', 'b', 'c', 'd', 'e'} {
		q.Push(ops[k])
	}

	cID := ops['c'].id
	bID := ops['b'].id
	q.RequestRetry(RetryRequest{MessageID: &cID})
	q.RequestRetry(RetryRequest{MessageID: &bID})

	popped := q.PopMany(5)
	require.Len(t, popped, 5)
	assert.Equal(t, []byte{'c', 'b', 'a', 'd', 'e'}, idsOf(popped))
}

// S3 — retry by destination domain: all matching-destination ops surface
// before the rest, which retain their original relative order.
func TestS3RetryByDestinationDomain(t *testing.T) {
	now := time.Now()
	q := New("multi", "prepare")
	d1 := hyperlane.Domain(1)
	d2 := hyperlane.Domain(2)
	ops := []*fakeOp{
		newFakeOp(1, d1, 0, now.Add(1*time.Second)),
		newFakeOp(2, d1, 0, now.Add(2*time.Second)),
		newFakeOp(3, d2, 0, now.Add(3*time.Second)),
		newFakeOp(4, d2, 0, now.Add(4*time.Second)),
		newFakeOp(5, d2, 0, now.Add(5*time.Second)),
	}
	for _, op := range ops {
		q.Push(op)
	}

	q.RequestRetry(RetryRequest{DestinationDomain: &d2})

	popped := q.PopMany(5)
	require.Len(t, popped, 5)
	ids := idsOf(popped)

	// the three D2 ops (3,4,5) surface first (order among them unspecified),
	// then the two D1 ops (1,2) in their original relative order.
	first3 := map[byte]bool{ids[0]: true, ids[1]: true, ids[2]: true}
	assert.True(t, first3[3] && first3[4] && first3[5])
	assert.Equal(t, []byte{1, 2}, ids[3:5])
}

func TestPopOnEmptyQueueReturnsFalse(t *testing.T) {
	q := New("dest1", "prepare")
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueueLenTracksPushAndPop(t *testing.T) {
	q := New("dest1", "prepare")
	assert.Equal(t, 0, q.Len())
	q.Push(newFakeOp('a', 1, 0, time.Now()))
	assert.Equal(t, 1, q.Len())
	_, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 0, q.Len())
}

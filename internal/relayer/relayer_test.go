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

package relayer

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/controlplane"
	"github.com/wendi777/hyperline/internal/hyperlane"
	"github.com/wendi777/hyperline/internal/opqueue"
	"github.com/wendi777/hyperline/internal/store"
)

// noopMailbox implements adapters.Mailbox with no real chain behind it -
// enough to exercise routing and queue wiring without a live node.
type noopMailbox struct {
	domain hyperlane.Domain
}

func (m *noopMailbox) Domain() hyperlane.Domain   { return m.domain }
func (m *noopMailbox) Address() hyperlane.Address { return hyperlane.Address{} }
func (m *noopMailbox) Count(ctx context.Context) (uint32, error)                     { return 0, nil }
func (m *noopMailbox) Delivered(ctx context.Context, id hyperlane.H256) (bool, error) { return false, nil }
func (m *noopMailbox) DefaultISM(ctx context.Context) (hyperlane.Address, error) {
	return hyperlane.Address{}, nil
}
func (m *noopMailbox) RecipientISM(ctx context.Context, recipient hyperlane.Address) (hyperlane.Address, error) {
	return hyperlane.Address{}, nil
}
func (m *noopMailbox) Tree(ctx context.Context, lag *uint32) (hyperlane.IncrementalMerkle, error) {
	return hyperlane.IncrementalMerkle{}, nil
}
func (m *noopMailbox) LatestCheckpoint(ctx context.Context, lag *uint32) (hyperlane.Checkpoint, error) {
	return hyperlane.Checkpoint{}, nil
}
func (m *noopMailbox) Process(ctx context.Context, message hyperlane.Message, metadata adapters.Metadata, gasLimit *big.Int) (adapters.TxOutcome, error) {
	return adapters.TxOutcome{}, nil
}
func (m *noopMailbox) ProcessEstimateCosts(ctx context.Context, message hyperlane.Message, metadata adapters.Metadata) (adapters.TxCostEstimate, error) {
	return adapters.TxCostEstimate{}, nil
}

// noopSource never returns any logs - the tests drive routing directly via
// routeDispatched rather than waiting on a real index cycle.
type noopSource struct{}

func (noopSource) FetchLogs(ctx context.Context, r adapters.LogRange) ([]adapters.IndexedItem[hyperlane.Message], error) {
	return nil, nil
}
func (noopSource) GetFinalizedBlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (noopSource) LatestSequenceCountAndTip(ctx context.Context) (*uint32, uint64, error) {
	return nil, 0, nil
}

func newTestRelayer(t *testing.T, domains ...hyperlane.Domain) *Relayer {
	t.Helper()
	ms := store.NewMessageStore(store.NewMemKV())
	chains := make([]ChainConfig, 0, len(domains))
	for _, d := range domains {
		chains = append(chains, ChainConfig{
			Domain:     d,
			Name:       "test-" + d.String(),
			Mailbox:    &noopMailbox{domain: d},
			Source:     noopSource{},
			MaxRetries: 3,
		})
	}
	return New(ms, controlplane.NewBroadcaster(), chains)
}

func TestRouteDispatchedEnqueuesOnDestinationSubmitter(t *testing.T) {
	r := newTestRelayer(t, hyperlane.Domain(900), hyperlane.Domain(901))

	msg := hyperlane.Message{
		Version:     hyperlane.DefaultMessageVersion,
		Nonce:       0,
		Origin:      hyperlane.Domain(900),
		Destination: hyperlane.Domain(901),
	}
	r.routeDispatched(msg)

	assert.Equal(t, 1, r.chains[hyperlane.Domain(901)].submitter.PendingCount())
	assert.Equal(t, 0, r.chains[hyperlane.Domain(900)].submitter.PendingCount())
}

func TestRouteDispatchedToUnconfiguredDestinationIsDroppedNotPanicked(t *testing.T) {
	r := newTestRelayer(t, hyperlane.Domain(902))

	msg := hyperlane.Message{
		Version:     hyperlane.DefaultMessageVersion,
		Origin:      hyperlane.Domain(902),
		Destination: hyperlane.Domain(999),
	}
	assert.NotPanics(t, func() { r.routeDispatched(msg) })
}

func TestStartStopDrainsCleanly(t *testing.T) {
	r := newTestRelayer(t, hyperlane.Domain(903))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	r.Stop()
}

func TestRetryBroadcastWhileRunningKeepsChainsIntact(t *testing.T) {
	r := newTestRelayer(t, hyperlane.Domain(904), hyperlane.Domain(905))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r.Start(ctx)
	defer r.Stop()

	domain := hyperlane.Domain(904)
	r.broadcaster.Publish(opqueue.RetryRequest{DestinationDomain: &domain})
	time.Sleep(50 * time.Millisecond)
	require.NotNil(t, r.chains[domain])
}

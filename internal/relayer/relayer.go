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

// Package relayer wires one MessageIndexer and one Submitter per configured
// chain around a shared MessageStore, the way the teacher's transaction
// manager keeps one orchestrator per signing key in
// InFlightOrchestrators map[tktypes.EthAddress]*orchestrator - here the map
// key is the chain's numeric domain instead of a signing address, since a
// relayer's unit of concurrency is "one destination mailbox", not "one key".
package relayer

import (
	"context"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/log"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/controlplane"
	"github.com/wendi777/hyperline/internal/hyperlane"
	"github.com/wendi777/hyperline/internal/indexer"
	"github.com/wendi777/hyperline/internal/operation"
	"github.com/wendi777/hyperline/internal/opqueue"
	"github.com/wendi777/hyperline/internal/store"
	"github.com/wendi777/hyperline/internal/submitter"
)

// ChainConfig is everything the relayer needs to bring one chain online:
// its mailbox binding (used both as a Submitter's delivery target and as
// the source of RecipientISM/ProcessEstimateCosts during Prepare) and its
// log source (used to tail the chain's own dispatch events).
type ChainConfig struct {
	Domain        hyperlane.Domain
	Name          string
	Mailbox       adapters.Mailbox
	Source        adapters.SequenceAwareIndexer[hyperlane.Message]
	IndexerConfig *indexer.Config
	MaxRetries    uint32

	// CheckpointSyncer and ISMResolver are optional: together they let the
	// destination's message preparer assemble real ISM Metadata (spec.md §6)
	// instead of submitting with an empty proof blob. A chain configured
	// with only one of the two, or neither, falls back to empty Metadata -
	// see MessageOperation's doc comment on metadataBuilder.
	CheckpointSyncer adapters.CheckpointSyncer
	ISMResolver      operation.ISMResolver
}

type chainRuntime struct {
	mailbox         adapters.Mailbox
	indexer         *indexer.MessageIndexer
	submitter       *submitter.Submitter
	metadataBuilder *operation.MetadataBuilder
}

// Relayer is the top-level object cmd/relayer constructs: N chains in,
// messages flowing origin-indexer -> store -> destination-submitter out,
// plus a control-plane broadcaster fanning retry requests to every chain's
// queues.
type Relayer struct {
	store       *store.MessageStore
	broadcaster *controlplane.Broadcaster
	chains      map[hyperlane.Domain]*chainRuntime

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(ms *store.MessageStore, broadcaster *controlplane.Broadcaster, chains []ChainConfig) *Relayer {
	r := &Relayer{
		store:       ms,
		broadcaster: broadcaster,
		chains:      make(map[hyperlane.Domain]*chainRuntime, len(chains)),
	}

	for _, c := range chains {
		hyperlane.RegisterDomain(c.Domain, c.Name)
		rt := &chainRuntime{
			mailbox:   c.Mailbox,
			indexer:   indexer.NewMessageIndexer(c.Domain, c.Source, ms, c.IndexerConfig),
			submitter: submitter.New(c.Domain, c.Mailbox, ms, c.MaxRetries),
		}
		if c.CheckpointSyncer != nil && c.ISMResolver != nil {
			rt.metadataBuilder = operation.NewMetadataBuilder(c.CheckpointSyncer, c.ISMResolver)
		}
		r.chains[c.Domain] = rt
	}

	// Wired as a second pass since a dispatch on chain A may name chain B (or
	// itself) as its destination, and every chainRuntime must already exist
	// before any indexer can route to it.
	for _, rt := range r.chains {
		rt.indexer.OnDispatched(r.routeDispatched)
	}

	return r
}

// routeDispatched hands a freshly-indexed message to its destination's
// Submitter. A message whose destination domain has no configured chain
// adapter is logged and dropped at the door - spec.md §4.1 scopes
// multi-domain fan-out to configured destinations only.
func (r *Relayer) routeDispatched(message hyperlane.Message) {
	rt, ok := r.chains[message.Destination]
	if !ok {
		log.L(context.Background()).
			WithField("origin", message.Origin).
			WithField("destination", message.Destination).
			Warnf("no chain adapter configured for destination domain, dropping dispatched message")
		return
	}
	op := operation.NewMessageOperation(message, rt.mailbox, 0, "", rt.metadataBuilder)
	rt.submitter.Enqueue(op)
}

// Start launches every chain's indexer and submitter goroutines, plus a
// fan-out loop forwarding control-plane retry broadcasts to every chain's
// queues. It returns immediately; call Stop to unwind everything.
func (r *Relayer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, rt := range r.chains {
		rt.submitter.Start(ctx)
	}

	retries, unsubscribe := r.broadcaster.Subscribe()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unsubscribe()
		r.drainRetries(ctx, retries)
	}()

	for domain, rt := range r.chains {
		r.wg.Add(1)
		go func(domain hyperlane.Domain, rt *chainRuntime) {
			defer r.wg.Done()
			if err := rt.indexer.Run(ctx); err != nil && ctx.Err() == nil {
				log.L(ctx).WithField("domain", domain).Errorf("indexer exited: %+v", err)
			}
		}(domain, rt)
	}
}

func (r *Relayer) drainRetries(ctx context.Context, retries <-chan opqueue.RetryRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-retries:
			if !ok {
				return
			}
			for _, rt := range r.chains {
				rt.submitter.RequestRetry(req)
			}
		}
	}
}

// Stop cancels every chain's goroutines and blocks until they exit.
func (r *Relayer) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	for _, rt := range r.chains {
		rt.submitter.Stop()
	}
	r.wg.Wait()
}

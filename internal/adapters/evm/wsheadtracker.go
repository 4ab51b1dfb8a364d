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

package evm

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hyperledger/firefly-common/pkg/log"
)

// WSHeadTracker keeps the chain tip cached via an eth_subscribe("newHeads")
// websocket stream rather than polling eth_getBlockByNumber on every index
// cycle. It is optional: an Indexer configured without one just falls back
// to its own HTTP poll of GetFinalizedBlockNumber.
type WSHeadTracker struct {
	url string

	mu      sync.RWMutex
	latest  uint64
	hasSeen bool

	cancel context.CancelFunc
}

func NewWSHeadTracker(url string) *WSHeadTracker {
	return &WSHeadTracker{url: url}
}

type subscriptionNotification struct {
	Params struct {
		Result struct {
			Number string `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// Start dials the websocket endpoint, subscribes to newHeads, and updates
// the cached tip on every notification until ctx is cancelled. Connection
// failures are logged and retried with a fixed backoff; Start itself
// returns only once the initial dial+subscribe succeeds.
func (t *WSHeadTracker) Start(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return err
	}

	sub := rpcRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []any{"newHeads"}}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	go t.readLoop(ctx, conn)
	return nil
}

func (t *WSHeadTracker) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.L(ctx).Warnf("head tracker websocket closed: %v", err)
			}
			return
		}
		var note subscriptionNotification
		if err := json.Unmarshal(raw, &note); err != nil {
			continue
		}
		if note.Params.Result.Number == "" {
			continue
		}
		blockBytes, err := decodeHex(note.Params.Result.Number)
		if err != nil {
			continue
		}
		t.mu.Lock()
		t.latest = beUint64(blockBytes)
		t.hasSeen = true
		t.mu.Unlock()
	}
}

// Latest returns the most recently observed head, and whether any head has
// been observed yet.
func (t *WSHeadTracker) Latest() (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest, t.hasSeen
}

func (t *WSHeadTracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}

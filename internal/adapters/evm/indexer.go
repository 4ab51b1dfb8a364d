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
	"fmt"
	"sort"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
)

// dispatchEventSig is the canonical Hyperlane Mailbox Dispatch event,
// indexed on sender/destination/recipient with the encoded message as its
// sole dynamic data field.
const dispatchEventSig = "Dispatch(address,uint32,bytes32,bytes)"

// Indexer implements adapters.SequenceAwareIndexer[hyperlane.Message] over
// eth_getLogs, decoding each Dispatch event's message field with the same
// DecodeMessage the relayer core uses for any other transport.
type Indexer struct {
	rpc            *RPCClient
	domain         hyperlane.Domain
	mailboxAddr    hyperlane.Address
	messageVersion uint8
	heads          *WSHeadTracker
}

func NewIndexer(rpc *RPCClient, domain hyperlane.Domain, mailboxAddr hyperlane.Address, messageVersion uint8) *Indexer {
	return &Indexer{rpc: rpc, domain: domain, mailboxAddr: mailboxAddr, messageVersion: messageVersion}
}

// WithHeadTracker wires a running WSHeadTracker as a fast path for
// GetFinalizedBlockNumber, for chains configured without a websocket
// endpoint returning the HTTP "finalized" tag (pre-merge EVM chains and
// most L2s). The tracked value is the latest head, not a finality-lagged
// tip - callers that need a stricter reorg safety margin should leave this
// unset and rely on the "finalized" block tag instead.
func (ix *Indexer) WithHeadTracker(t *WSHeadTracker) *Indexer {
	ix.heads = t
	return ix
}

type rpcLog struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	BlockNumber      string   `json:"blockNumber"`
	BlockHash        string   `json:"blockHash"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex string   `json:"transactionIndex"`
	LogIndex         string   `json:"logIndex"`
}

func (ix *Indexer) FetchLogs(ctx context.Context, r adapters.LogRange) ([]adapters.IndexedItem[hyperlane.Message], error) {
	filter := map[string]any{
		"address":   hexAddr(ix.mailboxAddr),
		"fromBlock": hexQuantity(r.From),
		"toBlock":   hexQuantity(r.To),
		"topics":    []string{hexH256(topicHash(dispatchEventSig))},
	}

	var logs []rpcLog
	if err := ix.rpc.Call(ctx, &logs, "eth_getLogs", filter); err != nil {
		return nil, err
	}

	items := make([]adapters.IndexedItem[hyperlane.Message], 0, len(logs))
	for _, l := range logs {
		msg, meta, err := ix.decodeDispatch(ctx, l)
		if err != nil {
			return nil, err
		}
		items = append(items, adapters.IndexedItem[hyperlane.Message]{Item: msg, Meta: meta})
	}
	// eth_getLogs is not contractually required to return logs in strictly
	// ascending order across multiple topics/addresses; the core's
	// ValidateContinuity depends on nonce order, so sort defensively by the
	// decoded nonce before returning.
	sort.Slice(items, func(i, j int) bool { return items[i].Item.Nonce < items[j].Item.Nonce })
	return items, nil
}

func (ix *Indexer) decodeDispatch(ctx context.Context, l rpcLog) (hyperlane.Message, hyperlane.LogMeta, error) {
	data, err := decodeHex(l.Data)
	if err != nil {
		return hyperlane.Message{}, hyperlane.LogMeta{}, err
	}
	raw := decodeDynamicBytesAtOffset(data, 0)
	msg, err := hyperlane.DecodeMessage(ctx, ix.messageVersion, raw)
	if err != nil {
		return hyperlane.Message{}, hyperlane.LogMeta{}, err
	}

	blockNum, err := decodeHex(l.BlockNumber)
	if err != nil {
		return hyperlane.Message{}, hyperlane.LogMeta{}, err
	}
	txIndex, err := decodeHex(l.TransactionIndex)
	if err != nil {
		return hyperlane.Message{}, hyperlane.LogMeta{}, err
	}
	logIndex, err := decodeHex(l.LogIndex)
	if err != nil {
		return hyperlane.Message{}, hyperlane.LogMeta{}, err
	}

	var blockHash, txHash hyperlane.H256
	if bh, err := hyperlane.ParseH256(l.BlockHash); err == nil {
		blockHash = bh
	}
	if th, err := hyperlane.ParseH256(l.TransactionHash); err == nil {
		txHash = th
	}

	meta := hyperlane.LogMeta{
		Address:          ix.mailboxAddr,
		BlockNumber:      beUint64(blockNum),
		BlockHash:        blockHash,
		TransactionHash:  txHash,
		TransactionIndex: beUint64(txIndex),
		LogIndex:         beUint64(logIndex),
	}
	return msg, meta, nil
}

func (ix *Indexer) GetFinalizedBlockNumber(ctx context.Context) (uint64, error) {
	if ix.heads != nil {
		if n, ok := ix.heads.Latest(); ok {
			return n, nil
		}
	}

	var block struct {
		Number string `json:"number"`
	}
	if err := ix.rpc.Call(ctx, &block, "eth_getBlockByNumber", "finalized", false); err != nil {
		return 0, err
	}
	n, err := decodeHex(block.Number)
	if err != nil {
		return 0, err
	}
	return beUint64(n), nil
}

func (ix *Indexer) LatestSequenceCountAndTip(ctx context.Context) (*uint32, uint64, error) {
	tip, err := ix.GetFinalizedBlockNumber(ctx)
	if err != nil {
		return nil, 0, err
	}

	var countHex string
	tx := buildEthTx(hyperlane.Address{}, ix.mailboxAddr, packCall("count()", nil, nil), nil)
	if err := ix.rpc.Call(ctx, &countHex, "eth_call", tx, "latest"); err != nil {
		return nil, 0, err
	}
	countBytes, err := decodeHex(countHex)
	if err != nil {
		return nil, 0, err
	}
	count := decodeUint32(countBytes)
	if count == 0 {
		return nil, tip, nil
	}
	sequenceCount := count - 1
	return &sequenceCount, tip, nil
}

func hexQuantity(n uint64) string { return fmt.Sprintf("0x%x", n) }

func beUint64(b []byte) uint64 {
	var v uint64
	for _, by := range b {
		v = v<<8 | uint64(by)
	}
	return v
}

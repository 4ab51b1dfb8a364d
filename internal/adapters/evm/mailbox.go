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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
)

// buildEthTx assembles the eth_call/eth_sendTransaction/eth_estimateGas
// request object the same way the teacher's buildEthTX does in
// transaction_manager.go: an ethsigner.Transaction carries From/To/Data/
// GasLimit in firefly-signer's hex codecs, so calldata and gas values
// marshal with the exact 0x-prefixed, leading-zero-stripped hex JSON-RPC
// expects. Only the fields a read/write eth_call or eth_sendTransaction
// actually needs are populated; fee-market fields are left nil since gas
// pricing is this relayer's Non-goal.
func buildEthTx(from, to hyperlane.Address, data []byte, gasLimit *big.Int) *ethsigner.Transaction {
	tx := &ethsigner.Transaction{
		From: json.RawMessage(`"` + hexAddr(from) + `"`),
		To:   hexAddr(to),
		Data: ethtypes.HexBytes0xPrefix(data),
	}
	if gasLimit != nil {
		tx.GasLimit = (*ethtypes.HexInteger)(gasLimit)
	}
	return tx
}

// Mailbox implements adapters.Mailbox against an EVM Hyperlane Mailbox
// contract over plain JSON-RPC (eth_call/eth_sendTransaction), without
// pulling in a full go-ethereum client - the teacher's own EVM interactions
// in transaction_manager.go stay at the JSON-RPC + firefly-signer level too.
type Mailbox struct {
	rpc     *RPCClient
	domain  hyperlane.Domain
	address hyperlane.Address
	from    hyperlane.Address
}

func NewMailbox(rpc *RPCClient, domain hyperlane.Domain, address, from hyperlane.Address) *Mailbox {
	return &Mailbox{rpc: rpc, domain: domain, address: address, from: from}
}

func (m *Mailbox) Domain() hyperlane.Domain   { return m.domain }
func (m *Mailbox) Address() hyperlane.Address { return m.address }

func (m *Mailbox) call(ctx context.Context, data []byte) ([]byte, error) {
	var resultHex string
	tx := buildEthTx(m.from, m.address, data, nil)
	if err := m.rpc.Call(ctx, &resultHex, "eth_call", tx, "latest"); err != nil {
		return nil, err
	}
	return decodeHex(resultHex)
}

func (m *Mailbox) Count(ctx context.Context) (uint32, error) {
	ret, err := m.call(ctx, packCall("count()", nil, nil))
	if err != nil {
		return 0, err
	}
	return decodeUint32(ret), nil
}

func (m *Mailbox) Delivered(ctx context.Context, id hyperlane.H256) (bool, error) {
	ret, err := m.call(ctx, packCall("delivered(bytes32)", [][]byte{encodeBytes32(id)}, nil))
	if err != nil {
		return false, err
	}
	return decodeBool(ret), nil
}

func (m *Mailbox) DefaultISM(ctx context.Context) (hyperlane.Address, error) {
	ret, err := m.call(ctx, packCall("defaultIsm()", nil, nil))
	if err != nil {
		return hyperlane.Address{}, err
	}
	return decodeAddress(ret), nil
}

func (m *Mailbox) RecipientISM(ctx context.Context, recipient hyperlane.Address) (hyperlane.Address, error) {
	ret, err := m.call(ctx, packCall("recipientIsm(address)", [][]byte{encodeAddress(recipient)}, nil))
	if err != nil {
		return hyperlane.Address{}, err
	}
	if (ret == nil || decodeAddress(ret) == hyperlane.Address{}) {
		return m.DefaultISM(ctx)
	}
	return decodeAddress(ret), nil
}

// Tree reads the Outbox's root() and count() views. lag is not applied to
// the eth_call block tag here (this adapter always reads "latest"); callers
// that need a reorg-safety margin should derive it from
// GetFinalizedBlockNumber instead, which the indexer already does.
func (m *Mailbox) Tree(ctx context.Context, lag *uint32) (hyperlane.IncrementalMerkle, error) {
	rootRet, err := m.call(ctx, packCall("root()", nil, nil))
	if err != nil {
		return hyperlane.IncrementalMerkle{}, err
	}
	countRet, err := m.call(ctx, packCall("count()", nil, nil))
	if err != nil {
		return hyperlane.IncrementalMerkle{}, err
	}
	return hyperlane.IncrementalMerkle{Root: decodeH256(rootRet), Count: decodeUint32(countRet)}, nil
}

func (m *Mailbox) LatestCheckpoint(ctx context.Context, lag *uint32) (hyperlane.Checkpoint, error) {
	tree, err := m.Tree(ctx, lag)
	if err != nil {
		return hyperlane.Checkpoint{}, err
	}
	return tree.LatestCheckpoint(ctx, m.address, m.domain)
}

func (m *Mailbox) Process(ctx context.Context, message hyperlane.Message, metadata adapters.Metadata, gasLimit *big.Int) (adapters.TxOutcome, error) {
	data := packTwoDynamicBytes("process(bytes,bytes)", metadata, message.Encode())
	tx := buildEthTx(m.from, m.address, data, gasLimit)

	var txHashHex string
	if err := m.rpc.Call(ctx, &txHashHex, "eth_sendTransaction", tx); err != nil {
		return adapters.TxOutcome{}, err
	}
	txHash, err := hyperlane.ParseH256(txHashHex)
	if err != nil {
		return adapters.TxOutcome{}, err
	}

	return m.waitForReceipt(ctx, txHash)
}

type receiptResult struct {
	Status          string `json:"status"`
	GasUsed         string `json:"gasUsed"`
	TransactionHash string `json:"transactionHash"`
}

// waitForReceipt polls eth_getTransactionReceipt. A nil receipt means the
// transaction is still pending - this loop bounds itself to the caller's
// context rather than layering its own timeout on top.
func (m *Mailbox) waitForReceipt(ctx context.Context, txHash hyperlane.H256) (adapters.TxOutcome, error) {
	for {
		var receipt *receiptResult
		if err := m.rpc.Call(ctx, &receipt, "eth_getTransactionReceipt", hexH256(txHash)); err != nil {
			return adapters.TxOutcome{}, err
		}
		if receipt != nil {
			gasUsed, _ := decodeHex(receipt.GasUsed)
			return adapters.TxOutcome{
				TransactionHash: txHash,
				Success:         receipt.Status == "0x1",
				GasUsed:         new(big.Int).SetBytes(gasUsed),
			}, nil
		}
		select {
		case <-ctx.Done():
			return adapters.TxOutcome{}, hyperlane.NewChainCommunicationError("eth_getTransactionReceipt", m.domain, hyperlane.CategoryRetryable, ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
}

func (m *Mailbox) ProcessEstimateCosts(ctx context.Context, message hyperlane.Message, metadata adapters.Metadata) (adapters.TxCostEstimate, error) {
	data := packTwoDynamicBytes("process(bytes,bytes)", metadata, message.Encode())
	tx := buildEthTx(m.from, m.address, data, nil)

	var gasHex string
	if err := m.rpc.Call(ctx, &gasHex, "eth_estimateGas", tx); err != nil {
		return adapters.TxCostEstimate{}, err
	}
	gasLimit, err := decodeHex(gasHex)
	if err != nil {
		return adapters.TxCostEstimate{}, err
	}

	var priceHex string
	if err := m.rpc.Call(ctx, &priceHex, "eth_gasPrice"); err != nil {
		return adapters.TxCostEstimate{}, err
	}
	gasPrice, err := decodeHex(priceHex)
	if err != nil {
		return adapters.TxCostEstimate{}, err
	}

	return adapters.TxCostEstimate{
		GasLimit: new(big.Int).SetBytes(gasLimit),
		GasPrice: new(big.Int).SetBytes(gasPrice),
	}, nil
}

func hexAddr(a hyperlane.Address) string {
	return "0x" + hex.EncodeToString(a[:])
}

func hexH256(h hyperlane.H256) string {
	return "0x" + hex.EncodeToString(h[:])
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding hex result %q: %w", s, err)
	}
	return b, nil
}

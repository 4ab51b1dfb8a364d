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
	"encoding/binary"
	"math/big"
	"time"

	"github.com/wendi777/hyperline/internal/hyperlane"
)

// MessageStore is the typed wrapper over KVStore described in spec.md §4.2:
// every key is prefix-segregated by domain, writes that must be observed
// together are batched, and payments accumulate monotonically.
type MessageStore struct {
	kv KVStore
}

func NewMessageStore(kv KVStore) *MessageStore {
	return &MessageStore{kv: kv}
}

// StoreDispatched persists a newly observed dispatch: the three MESSAGE_*
// keys are written in a single batch so a reader that sees the id always
// finds its message (spec.md §3 invariant). It is idempotent by nonce - a
// second call with the same (nonce, id) leaves identical store state,
// because the batch overwrites with the same values (spec.md §8 invariant 2).
func (s *MessageStore) StoreDispatched(ctx context.Context, message hyperlane.Message, blockNumber uint64) error {
	id := message.ID()
	origin := message.Origin
	encoded := message.Encode()

	var blockBuf [8]byte
	binary.BigEndian.PutUint64(blockBuf[:], blockNumber)

	entries := []KVEntry{
		{Key: buildKey(origin, keyMessageID, nonceSuffix(message.Nonce)), Value: id[:]},
		{Key: buildKey(origin, keyMessage, idSuffix(id)), Value: encoded},
		{Key: buildKey(origin, keyDispatchedBlock, nonceSuffix(message.Nonce)), Value: blockBuf[:]},
	}
	return wrapStoreErr("store_dispatched", s.kv.BatchPut(ctx, entries))
}

// MessageByNonce resolves nonce -> id -> message, the two-lookup path
// spec.md §4.2 specifies.
func (s *MessageStore) MessageByNonce(ctx context.Context, origin hyperlane.Domain, nonce uint32) (*hyperlane.Message, error) {
	id, ok, err := s.messageIDByNonce(ctx, origin, nonce)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.MessageByID(ctx, origin, id)
}

func (s *MessageStore) messageIDByNonce(ctx context.Context, origin hyperlane.Domain, nonce uint32) (hyperlane.H256, bool, error) {
	raw, ok, err := s.kv.Get(ctx, buildKey(origin, keyMessageID, nonceSuffix(nonce)))
	if err != nil {
		return hyperlane.H256{}, false, wrapStoreErr("message_id_by_nonce", err)
	}
	if !ok {
		return hyperlane.H256{}, false, nil
	}
	var id hyperlane.H256
	copy(id[:], raw)
	return id, true, nil
}

// MessageByID loads a previously stored message by its identity.
func (s *MessageStore) MessageByID(ctx context.Context, origin hyperlane.Domain, id hyperlane.H256) (*hyperlane.Message, error) {
	raw, ok, err := s.kv.Get(ctx, buildKey(origin, keyMessage, idSuffix(id)))
	if err != nil {
		return nil, wrapStoreErr("message_by_id", err)
	}
	if !ok {
		return nil, nil
	}
	m, err := hyperlane.DecodeMessage(ctx, hyperlane.DefaultMessageVersion, raw)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// WaitForMessageNonce polls every ~100ms until the message at this nonce is
// present, used by a prover-sync subsystem outside the core (spec.md §4.2).
func (s *MessageStore) WaitForMessageNonce(ctx context.Context, origin hyperlane.Domain, nonce uint32) (hyperlane.H256, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		id, ok, err := s.messageIDByNonce(ctx, origin, nonce)
		if err != nil {
			return hyperlane.H256{}, err
		}
		if ok {
			return id, nil
		}
		select {
		case <-ctx.Done():
			return hyperlane.H256{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// MarkNonceProcessed records that a nonce's delivery has been confirmed.
// Per spec.md §8 invariant 6, the caller (the submitter's confirm task) is
// responsible for calling this at most once per nonce across restarts; the
// store itself is idempotent if called twice (it just overwrites `true`
// with `true`).
func (s *MessageStore) MarkNonceProcessed(ctx context.Context, origin hyperlane.Domain, nonce uint32) error {
	return wrapStoreErr("mark_nonce_processed", s.kv.Put(ctx, buildKey(origin, keyNonceProcessed, nonceSuffix(nonce)), []byte{1}))
}

// IsNonceProcessed reports whether MarkNonceProcessed has been called for
// this nonce.
func (s *MessageStore) IsNonceProcessed(ctx context.Context, origin hyperlane.Domain, nonce uint32) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, buildKey(origin, keyNonceProcessed, nonceSuffix(nonce)))
	if err != nil {
		return false, wrapStoreErr("is_nonce_processed", err)
	}
	return ok && len(raw) == 1 && raw[0] == 1, nil
}

// ProcessGasPayment accumulates a gas payment exactly once per distinct
// meta, returning true the first time a given meta is seen (spec.md §8
// invariant 3). Payment accumulation is commutative - no ordering is
// required between callers racing on different metas for the same message.
func (s *MessageStore) ProcessGasPayment(ctx context.Context, id hyperlane.H256, meta hyperlane.GasPaymentMeta, amount *big.Int) (bool, error) {
	processedKey := buildGlobalKey(keyGasPaymentMetaProcessed, metaSuffix(meta))
	_, alreadyProcessed, err := s.kv.Get(ctx, processedKey)
	if err != nil {
		return false, wrapStoreErr("process_gas_payment", err)
	}
	if alreadyProcessed {
		return false, nil
	}

	existing, err := s.gasPayment(ctx, id)
	if err != nil {
		return false, err
	}
	total := new(big.Int).Add(existing, amount)

	paymentKey := buildGlobalKey(keyGasPayment, idSuffix(id))
	if err := s.kv.BatchPut(ctx, []KVEntry{
		{Key: processedKey, Value: []byte{1}},
		{Key: paymentKey, Value: total.Bytes()},
	}); err != nil {
		return false, wrapStoreErr("process_gas_payment", err)
	}
	return true, nil
}

func (s *MessageStore) gasPayment(ctx context.Context, id hyperlane.H256) (*big.Int, error) {
	raw, ok, err := s.kv.Get(ctx, buildGlobalKey(keyGasPayment, idSuffix(id)))
	if err != nil {
		return nil, wrapStoreErr("gas_payment", err)
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(raw), nil
}

// GasPayment returns the total accumulated payment recorded for a message.
func (s *MessageStore) GasPayment(ctx context.Context, id hyperlane.H256) (*big.Int, error) {
	return s.gasPayment(ctx, id)
}

// RecordGasExpenditure accumulates tokens actually spent delivering a
// message, mirroring the payment accounting path but keyed separately
// (GAS_EXPENDITURE, spec.md §3).
func (s *MessageStore) RecordGasExpenditure(ctx context.Context, id hyperlane.H256, tokensUsed *big.Int) error {
	existingRaw, ok, err := s.kv.Get(ctx, buildGlobalKey(keyGasExpenditure, idSuffix(id)))
	if err != nil {
		return wrapStoreErr("record_gas_expenditure", err)
	}
	existing := big.NewInt(0)
	if ok {
		existing.SetBytes(existingRaw)
	}
	total := new(big.Int).Add(existing, tokensUsed)
	return wrapStoreErr("record_gas_expenditure", s.kv.Put(ctx, buildGlobalKey(keyGasExpenditure, idSuffix(id)), total.Bytes()))
}

// GasExpenditure returns the total tokens recorded as spent delivering a message.
func (s *MessageStore) GasExpenditure(ctx context.Context, id hyperlane.H256) (*big.Int, error) {
	raw, ok, err := s.kv.Get(ctx, buildGlobalKey(keyGasExpenditure, idSuffix(id)))
	if err != nil {
		return nil, wrapStoreErr("gas_expenditure", err)
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(raw), nil
}

// Cursor returns the last fully indexed block recorded for a domain, or
// (0, false) if the indexer has never run for it. Persisted so a crash
// resumes from the stored block rather than re-scanning from genesis
// (spec.md §4.1).
func (s *MessageStore) Cursor(ctx context.Context, domain hyperlane.Domain) (uint64, bool, error) {
	raw, ok, err := s.kv.Get(ctx, buildKey(domain, keyCursor, "last_indexed_block"))
	if err != nil {
		return 0, false, wrapStoreErr("cursor", err)
	}
	if !ok {
		return 0, false, nil
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// SetCursor persists the last fully indexed block for a domain.
func (s *MessageStore) SetCursor(ctx context.Context, domain hyperlane.Domain, block uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], block)
	return wrapStoreErr("set_cursor", s.kv.Put(ctx, buildKey(domain, keyCursor, "last_indexed_block"), buf[:]))
}

func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &hyperlane.StoreError{Op: op, Cause: err}
}

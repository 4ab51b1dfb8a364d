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

package hyperlane

// LogMeta locates the on-chain event a (T, LogMeta) pair was read from. It is
// used for reorg detection (via BlockHash comparison across re-reads of the
// same range) and for scraper attribution.
type LogMeta struct {
	Address          Address
	BlockNumber      uint64
	BlockHash        H256
	TransactionHash  H256
	TransactionIndex uint64
	LogIndex         uint64
}

// GasPaymentMeta is the subset of LogMeta used as the idempotency key for gas
// payment processing (MessageStore.ProcessGasPayment): a payment is uniquely
// identified by the event that emitted it, not by its content, since the same
// payment content could legitimately be paid twice.
type GasPaymentMeta struct {
	TransactionHash H256
	LogIndex        uint64
}

func (lm LogMeta) PaymentMeta() GasPaymentMeta {
	return GasPaymentMeta{TransactionHash: lm.TransactionHash, LogIndex: lm.LogIndex}
}

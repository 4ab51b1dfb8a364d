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
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/wendi777/hyperline/internal/hyperlane"
)

// Key prefix grammar from spec.md §6: <domain_id(u32 LE)>_<key_name>_<suffix>
const (
	keyMessageID                 = "MESSAGE_ID"
	keyMessage                   = "MESSAGE"
	keyDispatchedBlock            = "DISPATCHED_BLOCK"
	keyNonceProcessed             = "NONCE_PROCESSED"
	keyGasPaymentMetaProcessed    = "GAS_PAYMENT_META_PROCESSED"
	keyGasPayment                 = "GAS_PAYMENT"
	keyGasExpenditure             = "GAS_EXPENDITURE"
	keyCursor                     = "CURSOR"
)

// domainPrefix hex-encodes the little-endian u32 domain id so the resulting
// key is always valid printable text, while still encoding exactly the bytes
// spec.md §6 specifies (<domain_id(u32 LE)>).
func domainPrefix(d hyperlane.Domain) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(d))
	return hex.EncodeToString(b[:])
}

func buildKey(d hyperlane.Domain, name string, suffix string) []byte {
	return []byte(fmt.Sprintf("%s_%s_%s", domainPrefix(d), name, suffix))
}

// buildGlobalKey is used for the message-id-keyed entries (GAS_PAYMENT,
// GAS_EXPENDITURE, GAS_PAYMENT_META_PROCESSED) that spec.md §3 lists without
// a domain component, since a message id is already globally unique.
func buildGlobalKey(name string, suffix string) []byte {
	return []byte(fmt.Sprintf("global_%s_%s", name, suffix))
}

func nonceSuffix(nonce uint32) string {
	return fmt.Sprintf("%020d", nonce)
}

func idSuffix(id hyperlane.H256) string {
	return id.String()
}

func metaSuffix(meta hyperlane.GasPaymentMeta) string {
	return fmt.Sprintf("%s_%d", meta.TransactionHash, meta.LogIndex)
}

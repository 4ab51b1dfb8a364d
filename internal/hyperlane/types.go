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

import (
	"encoding/hex"
	"fmt"
)

// H256 is a fixed 32-byte value: message ids, Merkle roots, mailbox
// addresses in their 32-byte convention, and checkpoint digests.
type H256 [32]byte

func (h H256) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h H256) IsZero() bool {
	return h == H256{}
}

// ParseH256 parses a 0x-prefixed or bare hex string into an H256.
func ParseH256(s string) (H256, error) {
	var h H256
	b, err := decodeHex(s)
	if err != nil {
		return h, err
	}
	if len(b) != 32 {
		return h, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// Address is an EVM-style 20-byte address, left-padded to 32 bytes when it
// appears in the Message.sender/recipient fields (Hyperlane's on-chain
// convention represents addresses of any chain family as 32 bytes).
type Address [20]byte

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// AsH256 left-pads the 20-byte address to the 32-byte on-chain convention.
func (a Address) AsH256() H256 {
	var h H256
	copy(h[12:], a[:])
	return h
}

// AddressFromH256 extracts the low 20 bytes of a 32-byte on-chain value,
// as used for EVM recipients/senders in Message fields.
func AddressFromH256(h H256) Address {
	var a Address
	copy(a[:], h[12:])
	return a
}

// ParseAddress parses a 0x-prefixed or bare hex string into a 20-byte Address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := decodeHex(s)
	if err != nil {
		return a, err
	}
	if len(b) != 20 {
		return a, fmt.Errorf("expected 20 bytes, got %d", len(b))
	}
	copy(a[:], b)
	return a, nil
}

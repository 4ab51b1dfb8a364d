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
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/wendi777/hyperline/internal/hyperlane"
)

// selector returns the first 4 bytes of keccak256(signature), the standard
// Solidity function/event discriminator. hyperlane.Message.ID uses the same
// sha3.NewLegacyKeccak256 construction (internal/hyperlane/message.go), so
// this stays consistent with the rest of the module's hashing.
func selector(signature string) [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var sel [4]byte
	copy(sel[:], h.Sum(nil)[:4])
	return sel
}

func topicHash(signature string) hyperlane.H256 {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var out hyperlane.H256
	copy(out[:], h.Sum(nil))
	return out
}

func encodeWord(b []byte) []byte {
	word := make([]byte, 32)
	copy(word[32-len(b):], b)
	return word
}

func encodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return encodeWord(buf)
}

func encodeAddress(a hyperlane.Address) []byte {
	return encodeWord(a[:])
}

func encodeBytes32(h hyperlane.H256) []byte {
	word := make([]byte, 32)
	copy(word, h[:])
	return word
}

// encodeDynamicBytes ABI-encodes the tail of a dynamic `bytes` parameter:
// the length word, then the content right-padded to a 32-byte boundary. The
// head's offset word is not included.
func encodeDynamicBytes(b []byte) []byte {
	length := encodeWord(big.NewInt(int64(len(b))).Bytes())
	padded := len(b)
	if rem := padded % 32; rem != 0 {
		padded += 32 - rem
	}
	content := make([]byte, padded)
	copy(content, b)
	return append(length, content...)
}

// packCall builds calldata for a function taking zero or more fixed-size
// (32-byte word) head arguments followed by at most one trailing dynamic
// `bytes` argument - sufficient for every Mailbox method this adapter calls.
func packCall(sig string, words [][]byte, trailingBytes []byte) []byte {
	sel := selector(sig)
	buf := make([]byte, 0, 4+32*len(words)+32+len(trailingBytes)+32)
	buf = append(buf, sel[:]...)
	headWords := len(words)
	if trailingBytes != nil {
		headWords++
	}
	offset := uint64(32 * headWords)
	for _, w := range words {
		buf = append(buf, w...)
	}
	if trailingBytes != nil {
		buf = append(buf, encodeWord(big.NewInt(int64(offset)).Bytes())...)
		buf = append(buf, encodeDynamicBytes(trailingBytes)...)
	}
	return buf
}

// packTwoDynamicBytes builds calldata for a function taking exactly two
// trailing dynamic `bytes` arguments and nothing else - the shape of the
// Mailbox's process(bytes _metadata, bytes _message).
func packTwoDynamicBytes(sig string, a, b []byte) []byte {
	sel := selector(sig)
	encA := encodeDynamicBytes(a)
	offsetA := uint64(64)
	offsetB := offsetA + uint64(len(encA))
	buf := make([]byte, 0, 4+64+len(encA)+len(encodeDynamicBytes(b)))
	buf = append(buf, sel[:]...)
	buf = append(buf, encodeWord(big.NewInt(int64(offsetA)).Bytes())...)
	buf = append(buf, encodeWord(big.NewInt(int64(offsetB)).Bytes())...)
	buf = append(buf, encA...)
	buf = append(buf, encodeDynamicBytes(b)...)
	return buf
}

func decodeUint32(ret []byte) uint32 {
	if len(ret) < 32 {
		return 0
	}
	return binary.BigEndian.Uint32(ret[28:32])
}

func decodeBool(ret []byte) bool {
	if len(ret) < 32 {
		return false
	}
	return ret[31] != 0
}

func decodeAddress(ret []byte) hyperlane.Address {
	var a hyperlane.Address
	if len(ret) < 32 {
		return a
	}
	copy(a[:], ret[12:32])
	return a
}

func decodeH256(ret []byte) hyperlane.H256 {
	var h hyperlane.H256
	if len(ret) < 32 {
		return h
	}
	copy(h[:], ret[:32])
	return h
}

// decodeDynamicBytesAtOffset reads a single ABI-encoded `bytes` return value,
// given the 32-byte-word offset its head slot points to.
func decodeDynamicBytesAtOffset(data []byte, wordOffset int) []byte {
	if len(data) < wordOffset+32 {
		return nil
	}
	length := new(big.Int).SetBytes(data[wordOffset : wordOffset+32]).Uint64()
	start := wordOffset + 32
	if uint64(len(data)) < uint64(start)+length {
		return nil
	}
	return data[start : start+int(length)]
}

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
	"context"
	"encoding/binary"
	"fmt"

	"github.com/wendi777/hyperline/internal/msgs"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/crypto/sha3"
)

// messagePrefixLen is the fixed-width prefix before the variable-length body:
// version(1) + reserved(3) + nonce(4) + origin(4) + sender(32) + destination(4) + recipient(32)
const messagePrefixLen = 1 + 3 + 4 + 4 + 32 + 4 + 32

// Message is the immutable envelope dispatched from an origin mailbox to a
// destination mailbox. Nonce is assigned by the origin Outbox at dispatch and
// is strictly monotonically increasing per origin domain.
type Message struct {
	Version     uint8
	Nonce       uint32
	Origin      Domain
	Sender      H256
	Destination Domain
	Recipient   H256
	Body        []byte
}

// Encode produces the canonical wire encoding: a fixed 80-byte prefix
// followed by the body, with no length prefix on the body (it consumes the
// remainder of the buffer, as decoders read to completion).
func (m Message) Encode() []byte {
	buf := make([]byte, messagePrefixLen+len(m.Body))
	buf[0] = m.Version
	// buf[1:4] reserved, left zero
	binary.BigEndian.PutUint32(buf[4:8], m.Nonce)
	binary.BigEndian.PutUint32(buf[8:12], uint32(m.Origin))
	copy(buf[12:44], m.Sender[:])
	binary.BigEndian.PutUint32(buf[44:48], uint32(m.Destination))
	copy(buf[48:80], m.Recipient[:])
	copy(buf[80:], m.Body)
	return buf
}

// DecodeMessage parses the canonical wire encoding produced by Encode. It
// returns MsgInvalidMessageEncoding if the buffer is shorter than the fixed
// prefix, and MsgUnsupportedMessageVersion if the version byte doesn't match
// the version this relayer was configured to expect.
func DecodeMessage(ctx context.Context, expectedVersion uint8, raw []byte) (Message, error) {
	var m Message
	if len(raw) < messagePrefixLen {
		return m, i18n.NewError(ctx, msgs.MsgInvalidMessageEncoding, messagePrefixLen, len(raw))
	}
	m.Version = raw[0]
	if m.Version != expectedVersion {
		return m, i18n.NewError(ctx, msgs.MsgUnsupportedMessageVersion, m.Version)
	}
	m.Nonce = binary.BigEndian.Uint32(raw[4:8])
	m.Origin = Domain(binary.BigEndian.Uint32(raw[8:12]))
	copy(m.Sender[:], raw[12:44])
	m.Destination = Domain(binary.BigEndian.Uint32(raw[44:48]))
	copy(m.Recipient[:], raw[48:80])
	body := raw[80:]
	if len(body) > 0 {
		m.Body = make([]byte, len(body))
		copy(m.Body, body)
	}
	return m, nil
}

// ID is the message identity: keccak256 of the canonical encoding. It never
// changes after dispatch and is the stable key everything else (the
// PendingOperation, the MessageStore keys, checkpoint binding) is indexed by.
func (m Message) ID() H256 {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(m.Encode())
	var id H256
	h.Sum(id[:0])
	return id
}

func (m Message) String() string {
	return fmt.Sprintf("Message(origin=%s,nonce=%d,destination=%s,id=%s)",
		m.Origin, m.Nonce, m.Destination, m.ID())
}

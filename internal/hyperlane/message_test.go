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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() Message {
	var sender, recipient H256
	sender[0] = 0xAA
	recipient[0] = 0xBB
	return Message{
		Version:     DefaultMessageVersion,
		Nonce:       42,
		Origin:      Domain(1),
		Sender:      sender,
		Destination: Domain(2),
		Recipient:   recipient,
		Body:        []byte("hello hyperlane"),
	}
}

func TestMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := sampleMessage()
	encoded := m.Encode()
	decoded, err := DecodeMessage(ctx, DefaultMessageVersion, encoded)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestMessageRoundTripEmptyBody(t *testing.T) {
	ctx := context.Background()
	m := sampleMessage()
	m.Body = nil
	decoded, err := DecodeMessage(ctx, DefaultMessageVersion, m.Encode())
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestMessageIDIsKeccakOfEncoding(t *testing.T) {
	m := sampleMessage()
	id1 := m.ID()
	id2 := m.ID()
	assert.Equal(t, id1, id2, "id must be deterministic")

	other := m
	other.Nonce++
	assert.NotEqual(t, id1, other.ID(), "changing any field changes the id")
}

func TestDecodeMessageRejectsShortBuffer(t *testing.T) {
	ctx := context.Background()
	_, err := DecodeMessage(ctx, DefaultMessageVersion, make([]byte, 10))
	require.Error(t, err)
}

func TestDecodeMessageRejectsWrongVersion(t *testing.T) {
	ctx := context.Background()
	m := sampleMessage()
	encoded := m.Encode()
	encoded[0] = DefaultMessageVersion + 1
	_, err := DecodeMessage(ctx, DefaultMessageVersion, encoded)
	require.Error(t, err)
}

func TestDomainRegistration(t *testing.T) {
	d := Domain(999001)
	RegisterDomain(d, "testchain")
	assert.Equal(t, "testchain", d.Name())

	// re-registering with the same name is fine
	RegisterDomain(d, "testchain")

	ctx := context.Background()
	require.NoError(t, KnownDomain(ctx, d))
	require.Error(t, KnownDomain(ctx, Domain(999002)))
}

func TestDomainRegistrationPanicsOnConflict(t *testing.T) {
	d := Domain(999003)
	RegisterDomain(d, "first-name")
	assert.Panics(t, func() {
		RegisterDomain(d, "second-name")
	})
}

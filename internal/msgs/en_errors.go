// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package msgs

import (
	"sync"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/text/language"
)

var registered sync.Once
var ffe = func(key, translation string, statusHint ...int) i18n.ErrorMessageKey {
	registered.Do(func() {
		i18n.RegisterPrefix("HL01", "Hyperline Relayer")
	})
	return i18n.FFE(language.AmericanEnglish, key, translation, statusHint...)
}

var (
	// Generic HL0100XX
	MsgContextCanceled           = ffe("HL010000", "context canceled")
	MsgInvalidMessageEncoding    = ffe("HL010001", "invalid message encoding: expected at least %d bytes, got %d")
	MsgUnsupportedMessageVersion = ffe("HL010002", "unsupported message version %d")
	MsgUnknownDomain             = ffe("HL010003", "unknown or unregistered domain %d")
	MsgEmptyTree                 = ffe("HL010004", "mailbox tree is empty, cannot derive a latest checkpoint")
	MsgInvalidRetryRequest       = ffe("HL010005", "invalid retry request: must set exactly one of messageId or destinationDomain")
	MsgStoreKeyConflict          = ffe("HL010006", "store key '%s' written concurrently by more than one writer")
	MsgChainCommunicationError   = ffe("HL010007", "chain communication error calling %s on domain %d")
	MsgSignerUnavailable         = ffe("HL010008", "signer unavailable for domain %d")
	MsgMaxRetriesExceeded        = ffe("HL010009", "operation %s exceeded max retries (%d) and was dropped")
	MsgNoAdapterForDomain        = ffe("HL010010", "no chain adapter registered for domain %d")
)

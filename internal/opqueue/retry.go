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

// Package opqueue implements OpQueue (spec.md §4.4): a per-destination
// min-heap of pending operations with out-of-band retry reprioritization.
package opqueue

import (
	"github.com/wendi777/hyperline/internal/hyperlane"
)

// RetryRequest is exactly one of MessageID or DestinationDomain, matching
// spec.md §6's `MessageRetryRequest ∈ { MessageId(H256) | DestinationDomain(u32) }`.
type RetryRequest struct {
	MessageID         *hyperlane.H256
	DestinationDomain *hyperlane.Domain
}

// Matches reports whether this request targets the given operation.
func (r RetryRequest) Matches(id hyperlane.H256, destination hyperlane.Domain) bool {
	if r.MessageID != nil {
		return *r.MessageID == id
	}
	if r.DestinationDomain != nil {
		return *r.DestinationDomain == destination
	}
	return false
}

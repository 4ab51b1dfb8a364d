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

// Package indexer implements the contract-sync loop (spec.md §4.1): tailing
// an origin chain's mailbox, validating nonce continuity, and persisting the
// result through a MessageStore.
package indexer

// ContinuityResult classifies a freshly fetched batch of nonces against the
// last known nonce, per spec.md §4.1's validate_continuity.
type ContinuityResult int

const (
	// ContinuityValid means the batch's nonces form the contiguous sequence
	// last_known+1 .. last_known+N.
	ContinuityValid ContinuityResult = iota
	// ContinuityInvalidContinuation means the first element already skips
	// past last_known+1 - symptomatic of a reorg that un-dispatched messages
	// this indexer had already seen.
	ContinuityInvalidContinuation
	// ContinuityContainsGaps means an interior element skips a nonce - the
	// node returned a partial/incomplete view of the range, not a reorg.
	ContinuityContainsGaps
	// ContinuityEmpty means the batch had no items at all.
	ContinuityEmpty
)

func (r ContinuityResult) String() string {
	switch r {
	case ContinuityValid:
		return "valid"
	case ContinuityInvalidContinuation:
		return "invalid_continuation"
	case ContinuityContainsGaps:
		return "contains_gaps"
	case ContinuityEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ValidateContinuity is the pure gate described in spec.md §4.1: it never
// touches the network or the store, so it is exhaustively unit-testable.
// lastKnown is the highest nonce already indexed (0 with none=true meaning
// "nothing indexed yet", so the first expected nonce is 0).
func ValidateContinuity(lastKnown uint32, haveLastKnown bool, nonces []uint32) ContinuityResult {
	if len(nonces) == 0 {
		return ContinuityEmpty
	}

	expected := uint32(0)
	if haveLastKnown {
		expected = lastKnown + 1
	}

	if nonces[0] != expected {
		return ContinuityInvalidContinuation
	}
	for i := 1; i < len(nonces); i++ {
		if nonces[i] != nonces[i-1]+1 {
			return ContinuityContainsGaps
		}
	}
	return ContinuityValid
}

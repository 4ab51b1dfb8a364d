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

// Package operation implements PendingOperation (spec.md §4.3): the
// per-message state machine that carries retry/attempt state from prepare
// through confirm.
package operation

import (
	"context"
	"math/big"
	"time"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
)

// Result is the outcome of a prepare()/confirm() call.
type Result int

const (
	ResultSuccess Result = iota
	ResultNotReady
	ResultRetry
	ResultDrop
	ResultConfirm
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultNotReady:
		return "not_ready"
	case ResultRetry:
		return "retry"
	case ResultDrop:
		return "drop"
	case ResultConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// Status is the diagnostic state-machine position (spec.md §4.3 diagram).
type Status int

const (
	StatusPrepared Status = iota
	StatusPending
	StatusReady
	StatusSubmitted
	StatusConfirming
	StatusDelivered
	StatusDropped
)

func (s Status) String() string {
	switch s {
	case StatusPrepared:
		return "prepared"
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusSubmitted:
		return "submitted"
	case StatusConfirming:
		return "confirming"
	case StatusDelivered:
		return "delivered"
	case StatusDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// PendingOperation is the capability table from spec.md §4.3. OpQueue and
// Submitter depend only on this interface, never on a concrete operation
// kind - the only implementation in this repository is *MessageOperation,
// but gas-payment quoting or other message kinds could implement it too.
type PendingOperation interface {
	ID() hyperlane.H256
	DestinationDomain() hyperlane.Domain
	Priority() int
	AppContext() string
	Status() Status

	NextAttemptAfter() (time.Time, bool)
	SetNextAttemptAfter(time.Time)
	ResetAttempts()
	SetRetries(uint32)
	Retries() uint32

	Prepare(ctx context.Context) Result
	Submit(ctx context.Context) Result
	SetSubmissionOutcome(adapters.TxOutcome)
	Confirm(ctx context.Context) Result
	SetOperationOutcome(result Result, cost *big.Int)
	TxCostEstimate() (*big.Int, bool)
}

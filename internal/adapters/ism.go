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

package adapters

import (
	"context"

	"github.com/wendi777/hyperline/internal/hyperlane"
)

// ISMKind discriminates the three interchain security module variants named
// in spec.md §6. It is used by the message preparer to decide which metadata
// builder to invoke when assembling the Process() proof blob.
type ISMKind int

const (
	ISMKindMultisig ISMKind = iota
	ISMKindAggregation
	ISMKindRouting
)

// ISM is implemented by each concrete ISM binding; Kind() lets the preparer
// type-switch to the right capability without a failed type assertion.
type ISM interface {
	Kind() ISMKind
	Address() hyperlane.Address
}

// MultisigISM requires a threshold of signatures from a fixed validator set.
type MultisigISM interface {
	ISM
	ValidatorsAndThreshold(ctx context.Context, message hyperlane.Message) (validators []hyperlane.Address, threshold uint8, err error)
}

// AggregationISM requires a threshold of its constituent modules to each
// independently verify the message.
type AggregationISM interface {
	ISM
	ModulesAndThreshold(ctx context.Context, message hyperlane.Message) (modules []hyperlane.Address, threshold uint8, err error)
}

// RoutingISM delegates verification to another ISM chosen per-message.
type RoutingISM interface {
	ISM
	Route(ctx context.Context, message hyperlane.Message) (hyperlane.Address, error)
}

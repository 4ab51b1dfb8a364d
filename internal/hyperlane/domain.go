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
	"strconv"
	"sync"

	"github.com/wendi777/hyperline/internal/msgs"

	"github.com/hyperledger/firefly-common/pkg/i18n"
)

// Domain is the numeric chain identifier used throughout the protocol. A domain
// maps to exactly one chain-adapter bundle, registered once at startup.
type Domain uint32

// DefaultMessageVersion is the version byte this relayer emits and expects on
// the wire. See SPEC_FULL.md §3.1: only the versioned encoding is supported.
const DefaultMessageVersion uint8 = 3

// registry is the process-wide domain -> canonical name table. relayer.New
// registers each configured chain's domain; the core never mutates it after
// startup, so a simple mutex is sufficient (reads vastly outnumber writes, and
// writes only happen during wiring).
type registry struct {
	mu    sync.RWMutex
	names map[Domain]string
}

var globalRegistry = &registry{names: make(map[Domain]string)}

// RegisterDomain associates a canonical name with a domain. Calling it twice
// for the same domain with the same name is a no-op; calling it with a
// different name panics, since that would indicate two chain adapters were
// wired to the same numeric domain by mistake.
func RegisterDomain(d Domain, canonicalName string) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	if existing, ok := globalRegistry.names[d]; ok {
		if existing != canonicalName {
			panic("hyperlane: domain " + existing + " re-registered with a different name")
		}
		return
	}
	globalRegistry.names[d] = canonicalName
}

// Name returns the canonical name registered for a domain, or the numeric
// value formatted as a string if nothing has been registered.
func (d Domain) Name() string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	if name, ok := globalRegistry.names[d]; ok {
		return name
	}
	return d.String()
}

func (d Domain) String() string {
	return strconv.FormatUint(uint64(d), 10)
}

// KnownDomain looks up whether a domain has been registered, returning the
// MsgUnknownDomain i18n error if not. An unregistered domain is a
// configuration mistake rather than a runtime transient. Within this module
// only its tests call it; the relayer's own lookups use its chain map.
func KnownDomain(ctx context.Context, d Domain) error {
	globalRegistry.mu.RLock()
	_, ok := globalRegistry.names[d]
	globalRegistry.mu.RUnlock()
	if !ok {
		return i18n.NewError(ctx, msgs.MsgUnknownDomain, uint32(d))
	}
	return nil
}

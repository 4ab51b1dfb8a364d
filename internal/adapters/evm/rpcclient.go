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

// Package evm is the relayer's only concrete chain adapter: a JSON-RPC
// client implementing adapters.Mailbox and adapters.SequenceAwareIndexer
// against an EVM mailbox contract (spec.md §6). Validator-signing, other
// chain families (Starknet/Sealevel/Cosmos, visible in original_source),
// and gas-oracle pricing are out of scope per spec.md §1's Non-goals.
package evm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/wendi777/hyperline/internal/hyperlane"
	"github.com/wendi777/hyperline/internal/msgs"

	"github.com/hyperledger/firefly-common/pkg/i18n"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// RPCClient is a minimal JSON-RPC 2.0 transport to a single EVM node, built
// on the teacher's HTTP client of choice (resty) rather than hand-rolling
// retries/timeouts on top of net/http.
type RPCClient struct {
	http   *resty.Client
	domain hyperlane.Domain
}

func NewRPCClient(domain hyperlane.Domain, url string) *RPCClient {
	return &RPCClient{
		http:   resty.New().SetBaseURL(url),
		domain: domain,
	}
}

// Call issues a single JSON-RPC request and decodes its result into out.
func (c *RPCClient) Call(ctx context.Context, out any, method string, params ...any) error {
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	var rpcResp rpcResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&rpcResp).
		Post("")
	if err != nil {
		return hyperlane.NewChainCommunicationError(method, c.domain, hyperlane.CategoryRetryable, err)
	}
	if resp.IsError() {
		return hyperlane.NewChainCommunicationError(method, c.domain, classifyHTTPStatus(resp.StatusCode()),
			fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}
	if rpcResp.Error != nil {
		return hyperlane.NewChainCommunicationError(method, c.domain, hyperlane.CategoryNonRetryable,
			i18n.NewError(ctx, msgs.MsgChainCommunicationError, method, uint32(c.domain)))
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

func classifyHTTPStatus(status int) hyperlane.ErrorCategory {
	switch {
	case status == 429:
		return hyperlane.CategoryRateLimited
	case status >= 500:
		return hyperlane.CategoryRetryable
	default:
		return hyperlane.CategoryNonRetryable
	}
}

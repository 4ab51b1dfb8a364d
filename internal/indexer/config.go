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

package indexer

import (
	"time"

	"github.com/hyperledger/firefly-common/pkg/retry"
)

// Config tunes a single domain's indexer loop. Unset fields fall back to
// DefaultConfig's values via confutil at construction time (NewMessageIndexer).
type Config struct {
	// ChunkSize is the maximum number of blocks requested from the adapter
	// in one FetchLogs call.
	ChunkSize *int `mapstructure:"chunkSize"`
	// PollInterval is how long the loop sleeps after every index cycle. The
	// sleep is not skipped while the cursor is still behind the finalized
	// block, so catching up proceeds at one chunk per interval.
	PollInterval *string      `mapstructure:"pollInterval"`
	Retry        retry.Config `mapstructure:"retry"`
}

var DefaultConfig = Config{
	ChunkSize:    confInt(1000),
	PollInterval: confString("5s"),
}

func confInt(v int) *int           { return &v }
func confString(v string) *string { return &v }

const minPollInterval = 250 * time.Millisecond

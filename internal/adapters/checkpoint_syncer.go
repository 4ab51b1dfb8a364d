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

// CheckpointSyncer reads and writes validator-signed checkpoints to an
// off-chain store (S3, GCS, a local directory - the concrete backend is a
// collaborator outside core scope per spec.md §1). The relayer's message
// preparer uses it to fetch the checkpoint proving a message's inclusion.
type CheckpointSyncer interface {
	LatestIndex(ctx context.Context) (*uint32, error)
	FetchCheckpoint(ctx context.Context, index uint32) (*hyperlane.SignedCheckpointWithMessageID, error)
	WriteCheckpoint(ctx context.Context, signed *hyperlane.SignedCheckpointWithMessageID) error
	WriteAnnouncement(ctx context.Context, signature []byte) error
}

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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/wendi777/hyperline/internal/hyperlane"
)

// LocalCheckpointSyncer implements CheckpointSyncer against a plain local
// directory, the simplest of the backends CheckpointSyncer's doc comment
// names (S3, GCS, a local directory). Each index is one JSON file so a
// concurrently running validator/scraper process (out of core scope) can
// write new checkpoints without this relayer holding any lock across
// process boundaries - FetchCheckpoint only ever reads a file it didn't
// write itself.
type LocalCheckpointSyncer struct {
	dir string

	mu       sync.Mutex
	inMemory map[uint32]*hyperlane.SignedCheckpointWithMessageID
}

func NewLocalCheckpointSyncer(dir string) *LocalCheckpointSyncer {
	return &LocalCheckpointSyncer{dir: dir, inMemory: make(map[uint32]*hyperlane.SignedCheckpointWithMessageID)}
}

type checkpointDTO struct {
	MailboxAddress string   `json:"mailbox_address"`
	MailboxDomain  uint32   `json:"mailbox_domain"`
	Root           string   `json:"root"`
	Index          uint32   `json:"index"`
	MessageID      string   `json:"message_id"`
	Signatures     []string `json:"signatures"`
}

func toDTO(signed *hyperlane.SignedCheckpointWithMessageID) checkpointDTO {
	sigs := make([]string, len(signed.Signatures))
	for i, s := range signed.Signatures {
		sigs[i] = "0x" + hex.EncodeToString(s)
	}
	return checkpointDTO{
		MailboxAddress: signed.MailboxAddress.String(),
		MailboxDomain:  uint32(signed.MailboxDomain),
		Root:           signed.Root.String(),
		Index:          signed.Index,
		MessageID:      signed.MessageID.String(),
		Signatures:     sigs,
	}
}

func fromDTO(d checkpointDTO) (*hyperlane.SignedCheckpointWithMessageID, error) {
	addr, err := hyperlane.ParseAddress(d.MailboxAddress)
	if err != nil {
		return nil, fmt.Errorf("decoding mailbox_address: %w", err)
	}
	root, err := hyperlane.ParseH256(d.Root)
	if err != nil {
		return nil, fmt.Errorf("decoding root: %w", err)
	}
	id, err := hyperlane.ParseH256(d.MessageID)
	if err != nil {
		return nil, fmt.Errorf("decoding message_id: %w", err)
	}
	sigs := make([][]byte, len(d.Signatures))
	for i, s := range d.Signatures {
		b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return nil, fmt.Errorf("decoding signature %d: %w", i, err)
		}
		sigs[i] = b
	}
	return &hyperlane.SignedCheckpointWithMessageID{
		Checkpoint: hyperlane.Checkpoint{
			MailboxAddress: addr,
			MailboxDomain:  hyperlane.Domain(d.MailboxDomain),
			Root:           root,
			Index:          d.Index,
		},
		MessageID:  id,
		Signatures: sigs,
	}, nil
}

func (s *LocalCheckpointSyncer) checkpointPath(index uint32) string {
	return filepath.Join(s.dir, fmt.Sprintf("checkpoint_%d.json", index))
}

func (s *LocalCheckpointSyncer) LatestIndex(_ context.Context) (*uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := uint32(0)
	found := false
	for idx := range s.inMemory {
		if !found || idx > best {
			best = idx
			found = true
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			if !found {
				return nil, nil
			}
			return &best, nil
		}
		return nil, hyperlane.NewChainCommunicationError("checkpoint_syncer.latest_index", 0, hyperlane.CategoryRetryable, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		if !strings.HasPrefix(name, "checkpoint_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		n := strings.TrimSuffix(strings.TrimPrefix(name, "checkpoint_"), ".json")
		idx, err := strconv.ParseUint(n, 10, 32)
		if err != nil {
			continue
		}
		if !found || uint32(idx) > best {
			best = uint32(idx)
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	return &best, nil
}

func (s *LocalCheckpointSyncer) FetchCheckpoint(_ context.Context, index uint32) (*hyperlane.SignedCheckpointWithMessageID, error) {
	s.mu.Lock()
	if cached, ok := s.inMemory[index]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	raw, err := os.ReadFile(s.checkpointPath(index))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, hyperlane.NewChainCommunicationError("checkpoint_syncer.fetch_checkpoint", 0, hyperlane.CategoryRetryable, err)
	}
	var dto checkpointDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, hyperlane.NewChainCommunicationError("checkpoint_syncer.fetch_checkpoint", 0, hyperlane.CategoryNonRetryable, err)
	}
	return fromDTO(dto)
}

func (s *LocalCheckpointSyncer) WriteCheckpoint(_ context.Context, signed *hyperlane.SignedCheckpointWithMessageID) error {
	s.mu.Lock()
	s.inMemory[signed.Index] = signed
	s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return hyperlane.NewChainCommunicationError("checkpoint_syncer.write_checkpoint", 0, hyperlane.CategoryRetryable, err)
	}
	raw, err := json.Marshal(toDTO(signed))
	if err != nil {
		return hyperlane.NewChainCommunicationError("checkpoint_syncer.write_checkpoint", 0, hyperlane.CategoryNonRetryable, err)
	}
	if err := os.WriteFile(s.checkpointPath(signed.Index), raw, 0o644); err != nil {
		return hyperlane.NewChainCommunicationError("checkpoint_syncer.write_checkpoint", 0, hyperlane.CategoryRetryable, err)
	}
	return nil
}

func (s *LocalCheckpointSyncer) WriteAnnouncement(_ context.Context, signature []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return hyperlane.NewChainCommunicationError("checkpoint_syncer.write_announcement", 0, hyperlane.CategoryRetryable, err)
	}
	path := filepath.Join(s.dir, "announcement.json")
	raw, err := json.Marshal(map[string]string{"signature": "0x" + hex.EncodeToString(signature)})
	if err != nil {
		return hyperlane.NewChainCommunicationError("checkpoint_syncer.write_announcement", 0, hyperlane.CategoryNonRetryable, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return hyperlane.NewChainCommunicationError("checkpoint_syncer.write_announcement", 0, hyperlane.CategoryRetryable, err)
	}
	return nil
}

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

package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// kvRow is the single-table GORM model backing the byte-level KV contract.
// The teacher persists typed domain rows (public_tx, public_submissions);
// here the table is deliberately untyped (key/value blobs) so MessageStore's
// prefix-segregated keys (spec.md §3/§6) are the only schema the store needs.
type kvRow struct {
	Key   string `gorm:"column:k;primaryKey"`
	Value []byte `gorm:"column:v"`
}

func (kvRow) TableName() string { return "kv_entries" }

// GormKV is a KVStore backed by a single GORM-managed table. It is safe for
// concurrent use by writers on disjoint keys; GORM's underlying *sql.DB pool
// provides the blocking-safe offload spec.md §5 requires without a second
// worker pool.
type GormKV struct {
	db *gorm.DB
}

// NewGormKV opens (and auto-migrates) the KV table against an already
// connected *gorm.DB - the caller owns the underlying connection lifecycle.
func NewGormKV(db *gorm.DB) (*GormKV, error) {
	if err := db.AutoMigrate(&kvRow{}); err != nil {
		return nil, err
	}
	return &GormKV{db: db}, nil
}

func (s *GormKV) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var row kvRow
	err := s.db.WithContext(ctx).Where("k = ?", string(key)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.Value, true, nil
}

func (s *GormKV) Put(ctx context.Context, key, value []byte) error {
	return s.BatchPut(ctx, []KVEntry{{Key: key, Value: value}})
}

func (s *GormKV) BatchPut(ctx context.Context, entries []KVEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]kvRow, len(entries))
	for i, e := range entries {
		rows[i] = kvRow{Key: string(e.Key), Value: e.Value}
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "k"}},
			DoUpdates: clause.AssignmentColumns([]string{"v"}),
		}).
		Create(&rows).Error
}

func (s *GormKV) Delete(ctx context.Context, key []byte) error {
	return s.db.WithContext(ctx).Where("k = ?", string(key)).Delete(&kvRow{}).Error
}

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

// Package config loads the relayer's settings file (YAML, via viper) into
// the per-component Config structs each package already defines
// (indexer.Config, etc). Settings loading is an explicit Non-goal of the
// core per spec.md §1, but every component still needs one, the way the
// teacher wires its own config.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/wendi777/hyperline/internal/indexer"
)

// ChainConfig configures one chain's adapter + indexer + submitter.
type ChainConfig struct {
	Domain      uint32 `mapstructure:"domain"`
	Name        string `mapstructure:"name"`
	RPCURL      string `mapstructure:"rpcUrl"`
	WSURL       string `mapstructure:"wsUrl"`
	MailboxAddr string `mapstructure:"mailboxAddress"`
	MaxRetries  uint32 `mapstructure:"maxRetries"`

	// CheckpointDir, if set, points buildChains at a LocalCheckpointSyncer
	// backing this chain's message preparer (spec.md §6's CheckpointSyncer).
	// Left empty, the chain submits with empty ISM Metadata rather than a
	// resolved proof - see MessageOperation's doc comment.
	CheckpointDir string `mapstructure:"checkpointDir"`

	Indexer indexer.Config `mapstructure:"indexer"`
}

// ControlPlaneConfig configures the retry HTTP surface.
type ControlPlaneConfig struct {
	Address string `mapstructure:"address"`
}

// StoreConfig configures the durable KV store backing MessageStore.
type StoreConfig struct {
	SQLiteDSN string `mapstructure:"sqliteDSN"`
}

// Config is the relayer's top-level settings document.
type Config struct {
	Chains       []ChainConfig      `mapstructure:"chains"`
	ControlPlane ControlPlaneConfig `mapstructure:"controlPlane"`
	Store        StoreConfig        `mapstructure:"store"`
	LogLevel     string             `mapstructure:"logLevel"`
}

// Load reads a YAML config file at path into a Config. Errors here are
// unrecoverable config errors (cmd/relayer maps them to exit code 1).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("controlPlane.address", ":8080")
	v.SetDefault("store.sqliteDSN", "hyperline.db")
	v.SetDefault("logLevel", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("config must declare at least one chain")
	}
	return &cfg, nil
}

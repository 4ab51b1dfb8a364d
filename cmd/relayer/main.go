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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/adapters/evm"
	"github.com/wendi777/hyperline/internal/config"
	"github.com/wendi777/hyperline/internal/controlplane"
	"github.com/wendi777/hyperline/internal/hyperlane"
	"github.com/wendi777/hyperline/internal/relayer"
	"github.com/wendi777/hyperline/internal/store"
)

// Exit codes per the documented operational contract: 0 orderly shutdown,
// 1 unrecoverable config error, 2 adapter initialization failure. Anything
// else reaching os.Exit is a genuine crash (panic), not a coded path here.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitAdapterInitErr = 2
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "relayer",
		Short: "Cross-chain message relayer",
		RunE:  run,
	}
	root.Flags().StringVarP(&configPath, "config", "f", "./config.yaml", "Path to the relayer's YAML config file")

	if err := root.Execute(); err != nil {
		// cobra has already printed the error; Execute only returns a non-nil
		// error for usage/flag problems or whatever RunE itself returned.
		os.Exit(exitConfigError)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(exitConfigError)
	}

	setupLogging(cfg.LogLevel)

	chains, err := buildChains(cfg)
	if err != nil {
		logrus.Errorf("adapter initialization failed: %v", err)
		os.Exit(exitAdapterInitErr)
	}

	ms, err := openStore(cfg.Store.SQLiteDSN)
	if err != nil {
		logrus.Errorf("adapter initialization failed: %v", err)
		os.Exit(exitAdapterInitErr)
	}

	broadcaster := controlplane.NewBroadcaster()
	r := relayer.New(ms, broadcaster, chains)

	server := controlplane.NewServer(broadcaster)
	httpServer := &http.Server{Addr: cfg.ControlPlane.Address, Handler: server.Handler()}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("control-plane server exited: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.Start(ctx)
	logrus.Infof("relayer started, serving control-plane on %s", cfg.ControlPlane.Address)

	<-ctx.Done()
	logrus.Infof("shutdown signal received, draining in-flight operations")

	_ = httpServer.Shutdown(context.Background())
	r.Stop()

	logrus.Infof("shutdown complete")
	os.Exit(exitOK)
	return nil // unreachable, but RunE's signature requires a return
}

// setupLogging mirrors the teacher's toolkit logging stack: logrus with the
// prefixed text formatter, rotated through lumberjack rather than growing a
// single unbounded log file.
func setupLogging(level string) {
	logrus.SetFormatter(&prefixed.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(&lumberjack.Logger{
		Filename:   "hyperline-relayer.log",
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logrus.SetLevel(parsed)
	}
}

func buildChains(cfg *config.Config) ([]relayer.ChainConfig, error) {
	chains := make([]relayer.ChainConfig, 0, len(cfg.Chains))
	for _, cc := range cfg.Chains {
		mailboxAddr, err := hyperlane.ParseAddress(cc.MailboxAddr)
		if err != nil {
			return nil, fmt.Errorf("chain %s: invalid mailbox address: %w", cc.Name, err)
		}

		domain := hyperlane.Domain(cc.Domain)
		rpc := evm.NewRPCClient(domain, cc.RPCURL)
		// The relaying account's own address is the same mailbox address
		// family but configured separately in a full deployment (a signer
		// collaborator, per adapters.Mailbox's doc comment); until that
		// collaborator is wired in, transactions are sent node-signed from
		// the zero address override a node operator configures out of band.
		mailbox := evm.NewMailbox(rpc, domain, mailboxAddr, hyperlane.Address{})
		idx := evm.NewIndexer(rpc, domain, mailboxAddr, hyperlane.DefaultMessageVersion)

		if cc.WSURL != "" {
			heads := evm.NewWSHeadTracker(cc.WSURL)
			if err := heads.Start(context.Background()); err != nil {
				return nil, fmt.Errorf("chain %s: starting websocket head tracker: %w", cc.Name, err)
			}
			idx = idx.WithHeadTracker(heads)
		}

		var syncer adapters.CheckpointSyncer
		if cc.CheckpointDir != "" {
			syncer = adapters.NewLocalCheckpointSyncer(cc.CheckpointDir)
		}

		indexerConf := cc.Indexer
		chains = append(chains, relayer.ChainConfig{
			Domain:           domain,
			Name:             cc.Name,
			Mailbox:          mailbox,
			Source:           idx,
			IndexerConfig:    &indexerConf,
			MaxRetries:       cc.MaxRetries,
			CheckpointSyncer: syncer,
			ISMResolver:      evm.NewISMResolver(rpc, domain),
		})
	}
	return chains, nil
}

func openStore(dsn string) (*store.MessageStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}
	kv, err := store.NewGormKV(db)
	if err != nil {
		return nil, fmt.Errorf("migrating store schema: %w", err)
	}
	return store.NewMessageStore(kv), nil
}

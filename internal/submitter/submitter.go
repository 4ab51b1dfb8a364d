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

// Package submitter implements Submitter (spec.md §4.5): per destination
// domain, three cooperative tasks (prepare, submit, confirm) drain three
// queues and drive each PendingOperation's state machine to completion.
package submitter

import (
	"context"
	"sync"
	"time"

	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/sirupsen/logrus"

	"github.com/wendi777/hyperline/internal/adapters"
	"github.com/wendi777/hyperline/internal/hyperlane"
	"github.com/wendi777/hyperline/internal/metrics"
	"github.com/wendi777/hyperline/internal/operation"
	"github.com/wendi777/hyperline/internal/opqueue"
	"github.com/wendi777/hyperline/internal/store"
)

const defaultBatchSize = 16

// Submitter owns one destination domain's three queues and the three
// goroutines draining them, mirroring the teacher's per-signing-address
// orchestrator lifecycle (one orchestrator per key, started/stopped as a
// unit).
type Submitter struct {
	destination hyperlane.Domain
	mailbox     adapters.Mailbox
	store       *store.MessageStore
	maxRetries  uint32

	prepareQ *opqueue.OpQueue
	submitQ  *opqueue.OpQueue
	confirmQ *opqueue.OpQueue

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Submitter for one destination. Queue labels match
// spec.md §4.4's metric tuple (destination, queue_label, app_context).
func New(destination hyperlane.Domain, mailbox adapters.Mailbox, ms *store.MessageStore, maxRetries uint32) *Submitter {
	label := destination.String()
	return &Submitter{
		destination: destination,
		mailbox:     mailbox,
		store:       ms,
		maxRetries:  maxRetries,
		prepareQ:    opqueue.New(label, "prepare"),
		submitQ:     opqueue.New(label, "submit"),
		confirmQ:    opqueue.New(label, "confirm"),
	}
}

// Enqueue pushes a freshly constructed operation into the prepare queue -
// the entry point for the message-processor task described in spec.md §2.
func (s *Submitter) Enqueue(op operation.PendingOperation) {
	s.prepareQ.Push(op)
}

// PendingCount returns the total number of operations sitting in all three
// internal queues, for tests and operational introspection.
func (s *Submitter) PendingCount() int {
	return s.prepareQ.Len() + s.submitQ.Len() + s.confirmQ.Len()
}

// RequestRetry forwards an out-of-band retry request to all three internal
// queues - a targeted operation could be sitting in any of them.
func (s *Submitter) RequestRetry(r opqueue.RetryRequest) {
	s.prepareQ.RequestRetry(r)
	s.submitQ.RequestRetry(r)
	s.confirmQ.RequestRetry(r)
}

// Start launches the three cooperative tasks. Shutdown is cooperative: on
// ctx cancellation, each task finishes its current operation (an in-flight
// submit() is never interrupted, since the chain-side effect may already
// have occurred) and exits.
func (s *Submitter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(3)
	go s.runPrepare(ctx)
	go s.runSubmit(ctx)
	go s.runConfirm(ctx)
}

// Stop cancels the three tasks and waits for them to drain their current
// operation.
func (s *Submitter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Submitter) runPrepare(ctx context.Context) {
	defer s.wg.Done()
	l := log.L(ctx).WithField("destination", s.destination).WithField("task", "prepare")
	for {
		if ctx.Err() != nil {
			return
		}
		ops := s.prepareQ.PopMany(defaultBatchSize)
		if len(ops) == 0 {
			if !sleep(ctx, 200*time.Millisecond) {
				return
			}
			continue
		}
		for _, op := range ops {
			s.drivePrepare(ctx, l, op)
		}
	}
}

func (s *Submitter) drivePrepare(ctx context.Context, l *logrus.Entry, op operation.PendingOperation) {
	if next, ok := op.NextAttemptAfter(); ok && next.After(time.Now()) {
		s.prepareQ.Push(op)
		return
	}
	switch op.Prepare(ctx) {
	case operation.ResultSuccess:
		s.submitQ.Push(op)
	case operation.ResultDrop:
		s.drop(op, "prepare_drop")
	default:
		if s.shouldDrop(op) {
			s.drop(op, "max_retries_exceeded")
			return
		}
		l.Debugf("operation %s not ready to prepare, requeued", op.ID())
		s.prepareQ.Push(op)
	}
}

func (s *Submitter) runSubmit(ctx context.Context) {
	defer s.wg.Done()
	l := log.L(ctx).WithField("destination", s.destination).WithField("task", "submit")
	batch, batchCapable := s.mailbox.(adapters.BatchSubmitter)
	for {
		if ctx.Err() != nil {
			return
		}
		ops := s.submitQ.PopMany(defaultBatchSize)
		if len(ops) == 0 {
			if !sleep(ctx, 200*time.Millisecond) {
				return
			}
			continue
		}
		if batchCapable && len(ops) > 1 {
			s.driveSubmitBatch(ctx, l, batch, ops)
			continue
		}
		for _, op := range ops {
			s.driveSubmit(ctx, l, op)
		}
	}
}

func (s *Submitter) driveSubmit(ctx context.Context, l *logrus.Entry, op operation.PendingOperation) {
	if next, ok := op.NextAttemptAfter(); ok && next.After(time.Now()) {
		s.submitQ.Push(op)
		return
	}
	switch op.Submit(ctx) {
	case operation.ResultConfirm, operation.ResultSuccess:
		s.confirmQ.Push(op)
	case operation.ResultDrop:
		s.drop(op, "submit_drop")
	default:
		if s.shouldDrop(op) {
			s.drop(op, "max_retries_exceeded")
			return
		}
		l.Debugf("operation %s submit not ready, requeued", op.ID())
		s.submitQ.Push(op)
	}
}

// driveSubmitBatch exercises BatchSubmitter.ProcessBatch when the adapter
// supports it (spec.md §4.5's optional capability). Per the Open Question
// resolution (SPEC_FULL.md §9), batch failure is best-effort non-atomic:
// a partial success is permitted, and confirm() still runs per operation
// regardless of the batch outcome.
func (s *Submitter) driveSubmitBatch(ctx context.Context, l *logrus.Entry, batch adapters.BatchSubmitter, ops []operation.PendingOperation) {
	messages := make([]hyperlane.Message, 0, len(ops))
	type messageOp interface {
		Message() hyperlane.Message
	}
	for _, op := range ops {
		mo, ok := op.(messageOp)
		if !ok {
			for _, op := range ops {
				s.driveSubmit(ctx, l, op)
			}
			return
		}
		messages = append(messages, mo.Message())
	}

	results, err := batch.ProcessBatch(ctx, messages, make([]adapters.Metadata, len(messages)))
	if err != nil {
		l.Warnf("batch submit failed wholesale, falling back to per-item retry: %+v", err)
		for _, op := range ops {
			s.driveSubmit(ctx, l, op)
		}
		return
	}
	for i, op := range ops {
		if i >= len(results) || results[i].Err != nil {
			s.driveSubmit(ctx, l, op)
			continue
		}
		op.SetSubmissionOutcome(results[i].Outcome)
		s.confirmQ.Push(op)
	}
}

func (s *Submitter) runConfirm(ctx context.Context) {
	defer s.wg.Done()
	l := log.L(ctx).WithField("destination", s.destination).WithField("task", "confirm")
	for {
		if ctx.Err() != nil {
			return
		}
		ops := s.confirmQ.PopMany(defaultBatchSize)
		if len(ops) == 0 {
			if !sleep(ctx, 200*time.Millisecond) {
				return
			}
			continue
		}
		for _, op := range ops {
			s.driveConfirm(ctx, l, op)
		}
	}
}

func (s *Submitter) driveConfirm(ctx context.Context, l *logrus.Entry, op operation.PendingOperation) {
	if next, ok := op.NextAttemptAfter(); ok && next.After(time.Now()) {
		s.confirmQ.Push(op)
		return
	}
	switch op.Confirm(ctx) {
	case operation.ResultSuccess:
		op.SetOperationOutcome(operation.ResultSuccess, nil)
		s.markDelivered(ctx, l, op)
	case operation.ResultRetry:
		s.submitQ.Push(op)
	case operation.ResultDrop:
		s.drop(op, "confirm_drop")
	default:
		if s.shouldDrop(op) {
			s.drop(op, "max_retries_exceeded")
			return
		}
		s.confirmQ.Push(op)
	}
}

// markDelivered records the nonce as processed exactly once (spec.md §8
// invariant 6). It expects the concrete operation to expose its message -
// MessageOperation does, via an unexported interface check to avoid the
// core PendingOperation capability table growing a method only this one
// kind needs.
func (s *Submitter) markDelivered(ctx context.Context, l *logrus.Entry, op operation.PendingOperation) {
	type messageOp interface {
		Message() hyperlane.Message
	}
	mo, ok := op.(messageOp)
	if !ok {
		return
	}
	m := mo.Message()
	if processed, err := s.store.IsNonceProcessed(ctx, m.Origin, m.Nonce); err == nil && processed {
		return
	}
	if err := s.store.MarkNonceProcessed(ctx, m.Origin, m.Nonce); err != nil {
		l.Errorf("failed to mark nonce %d processed for origin %s: %+v", m.Nonce, m.Origin, err)
	}
}

func (s *Submitter) shouldDrop(op operation.PendingOperation) bool {
	return op.Retries() > s.maxRetries
}

func (s *Submitter) drop(op operation.PendingOperation, reason string) {
	op.SetOperationOutcome(operation.ResultDrop, nil)
	metrics.OperationsDropped.WithLabelValues(s.destination.String(), reason).Inc()
}

// sleep waits for d or ctx cancellation, returning false if ctx was
// cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

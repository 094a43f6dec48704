// SPDX-License-Identifier: Apache-2.0
/*
Copyright (C) 2026 The MiStomp Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// FailureKind tells at which step a block failed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureBlockSize
	FailureBuffer
	FailureConnect
	FailureRun
	FailurePanic
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureBlockSize:
		return "block-size"
	case FailureBuffer:
		return "buffer"
	case FailureConnect:
		return "connect"
	case FailureRun:
		return "run"
	case FailurePanic:
		return "panic"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Failure describes a block that was replaced by silence.
type Failure struct {
	Kind FailureKind
	// Block is the number of blocks processed successfully before this one.
	Block  uint64
	Frames uint32
	Err    error
	// Panic is the recovered value for FailurePanic.
	Panic any
}

func (f *Failure) String() string {
	if f == nil {
		return "none"
	}
	if f.Kind == FailurePanic {
		return fmt.Sprintf("%s at block %d (%d frames): %v", f.Kind, f.Block, f.Frames, f.Panic)
	}
	return fmt.Sprintf("%s at block %d (%d frames): %v", f.Kind, f.Block, f.Frames, f.Err)
}

// Stats is a snapshot of the bridge counters.
type Stats struct {
	Blocks      uint64
	Failures    uint64
	LastFailure *Failure
}

type counters struct {
	blocks   atomic.Uint64
	failures atomic.Uint64
	last     atomic.Pointer[Failure]
}

// fail records a failure and silences the block. Only the failure path
// allocates.
func (b *Bridge) fail(kind FailureKind, err error, panicValue any, frames uint32) {
	b.failures.Add(1)
	b.last.Store(&Failure{
		Kind:   kind,
		Block:  b.blocks.Load(),
		Frames: frames,
		Err:    err,
		Panic:  panicValue,
	})
	b.silence(frames)
}

// Stats returns a snapshot of the counters. It can be called from any
// goroutine.
func (b *Bridge) Stats() Stats {
	return Stats{
		Blocks:      b.blocks.Load(),
		Failures:    b.failures.Load(),
		LastFailure: b.last.Load(),
	}
}

// Monitor logs the failures recorded since the previous check, every
// interval, until ctx is done.
func (b *Bridge) Monitor(ctx context.Context, logger *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var seen uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seen = b.report(logger, seen)
		}
	}
}

// report logs the failures newer than seen and returns the new count.
func (b *Bridge) report(logger *zap.Logger, seen uint64) uint64 {
	s := b.Stats()
	if s.Failures <= seen {
		return seen
	}
	logger.Warn("audio blocks replaced by silence",
		zap.Uint64("new", s.Failures-seen),
		zap.Uint64("failures", s.Failures),
		zap.Uint64("blocks", s.Blocks),
		zap.Stringer("last", s.LastFailure))
	return s.Failures
}

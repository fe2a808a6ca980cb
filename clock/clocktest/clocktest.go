// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clocktest adapts *clockwork.FakeClock to the clock.Clock
// interface, so reconciler tests can advance time deterministically
// instead of sleeping. Compatibility between Go interfaces is shallow:
// the method returning Timer needs re-boxing since the nominal types
// differ, even though they're structurally identical.
package clocktest

import (
	"context"
	"time"

	"github.com/TrueLayer/ginepro/clock"
	"github.com/jonboulle/clockwork"
)

// FakeClock is a clock.Clock that can be manually advanced.
type FakeClock interface {
	clock.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, waiters int) error
}

// NewFakeClock creates a new FakeClock backed by clockwork.
func NewFakeClock() FakeClock {
	return fakeClock{clockwork.NewFakeClock()}
}

type fakeClock struct {
	clockwork.FakeClock
}

var _ FakeClock = fakeClock{}

func (f fakeClock) NewTimer(d time.Duration) clock.Timer {
	return f.FakeClock.NewTimer(d)
}

func (f fakeClock) BlockUntilContext(ctx context.Context, waiters int) error {
	bc, ok := f.FakeClock.(interface {
		BlockUntilContext(context.Context, int) error
	})
	if !ok {
		f.FakeClock.BlockUntil(waiters)
		return nil
	}
	return bc.BlockUntilContext(ctx, waiters)
}

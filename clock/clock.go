// Copyright 2023 Buf Technologies, Inc.
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

// Package clock abstracts time so the reconciler's tick scheduling
// (probe_interval ticks) can be driven deterministically in tests instead
// of relying on real sleeps.
package clock

import "time"

// Clock is satisfied by the real wall clock and by clocktest's adapter
// around clockwork.FakeClock, so production code never imports clockwork
// directly.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTimer(d time.Duration) Timer
}

// Timer mirrors the behavior of a time.Timer.
type Timer interface {
	Chan() <-chan time.Time
	Stop() bool
}

// New returns a Clock backed by the real time package.
func New() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time                  { return time.Now() }
func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (realClock) NewTimer(d time.Duration) Timer {
	return realTimer{time.NewTimer(d)}
}

type realTimer struct{ *time.Timer }

func (r realTimer) Chan() <-chan time.Time { return r.C }

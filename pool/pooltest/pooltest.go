// Copyright 2023 TrueLayer Ltd.
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

// Package pooltest provides an in-memory SubChannelPool usable in tests
// of the reconciler's reconciliation logic, without dialing any real
// connections.
package pooltest

import (
	"sync"

	"github.com/TrueLayer/ginepro/endpoint"
	"google.golang.org/grpc"
)

// FakePool is an in-memory pool.SubChannelPool. ApplyDiff can be made to
// fail on demand via FailNext, to exercise the reconciler's
// PoolMutationFailed retry path.
type FakePool struct {
	mu       sync.Mutex
	current  endpoint.Set
	failNext error

	// Calls records every ApplyDiff invocation, in order, for assertions.
	Calls []Call
}

// Call records one ApplyDiff invocation.
type Call struct {
	Add    endpoint.Set
	Remove endpoint.Set
}

// New returns an empty FakePool.
func New() *FakePool {
	return &FakePool{current: endpoint.New()}
}

// FailNext causes the next ApplyDiff call to return err instead of
// applying the diff. Subsequent calls succeed normally.
func (p *FakePool) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// ApplyDiff implements pool.SubChannelPool.
func (p *FakePool) ApplyDiff(add, remove endpoint.Set) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, Call{Add: add, Remove: remove})

	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return err
	}

	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	next := make(endpoint.Set, len(p.current)+len(add))
	for k, e := range p.current {
		next[k] = e
	}
	for k := range remove {
		delete(next, k)
	}
	for k, e := range add {
		next[k] = e
	}
	p.current = next
	return nil
}

// CallCount returns the number of ApplyDiff invocations recorded so far.
func (p *FakePool) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Current implements pool.SubChannelPool.
func (p *FakePool) Current() endpoint.Set {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(endpoint.Set, len(p.current))
	for k, e := range p.current {
		out[k] = e
	}
	return out
}

// DispatchHandle implements pool.SubChannelPool. It returns nil since
// FakePool is not wired to a real transport.
func (p *FakePool) DispatchHandle() grpc.ClientConnInterface {
	return nil
}

// Close implements pool.SubChannelPool.
func (p *FakePool) Close() error {
	return nil
}

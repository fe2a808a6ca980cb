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

// Package pool adapts the reconciler's add/remove membership mutations
// onto grpc-go's balancer-aware connection set. The reference
// implementation drives a *grpc.ClientConn through a manual resolver and
// grpc-go's built-in round_robin balancer; the pick policy itself is out
// of scope for this module (see the SubChannelPool contract).
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/TrueLayer/ginepro/endpoint"
	"google.golang.org/grpc"
	"google.golang.org/grpc/resolver"
	"google.golang.org/grpc/resolver/manual"
)

// ErrMutationFailed is returned by ApplyDiff implementations (such as
// pooltest.FakePool, for exercising the reconciler's retry path) when a
// membership mutation is refused. GRPCPool itself never returns it: the
// manual resolver's UpdateState has no synchronous failure mode, so a
// real pool mutation cannot be refused the way the spec's abstract
// SubChannelPool contract allows for.
var ErrMutationFailed = errors.New("pool: mutation failed")

// roundRobinServiceConfig selects grpc-go's built-in round_robin balancer.
// The core assumes round-robin per the spec; picking is delegated entirely
// to grpc-go.
const roundRobinServiceConfig = `{"loadBalancingConfig":[{"round_robin":{}}]}`

// SubChannelPool maintains the live mapping from Endpoint to underlying
// gRPC sub-connection and exposes the dispatch handle applications issue
// RPCs through.
type SubChannelPool interface {
	// ApplyDiff atomically submits membership changes. It must not block
	// the caller on connection establishment. ApplyDiff({},{}) is a no-op.
	ApplyDiff(add, remove endpoint.Set) error
	// Current returns a snapshot of the acknowledged endpoint set.
	Current() endpoint.Set
	// DispatchHandle returns the handle applications issue RPCs through.
	DispatchHandle() grpc.ClientConnInterface
	// Close releases the underlying connection and any resources.
	Close() error
}

// scheme counter avoids collisions between manual resolvers when multiple
// channels are constructed within the same process; grpc-go's resolver
// registry is global and keyed by scheme.
var (
	schemeMu      sync.Mutex
	schemeCounter int
)

func nextScheme() string {
	schemeMu.Lock()
	defer schemeMu.Unlock()
	schemeCounter++
	return fmt.Sprintf("ginepro-%d", schemeCounter)
}

// GRPCPool is the reference SubChannelPool implementation.
type GRPCPool struct {
	conn     *grpc.ClientConn
	resolver *manual.Resolver

	mu      sync.Mutex
	current endpoint.Set
}

// NewGRPCPool dials target (built from the manual resolver's own
// synthetic scheme, so the target string itself is irrelevant) with the
// round_robin balancer and the given dial options. ConnectTimeout, TLS
// credentials, and any other transport concerns are supplied by the
// caller via dialOpts (see ginepro.Builder.WithDialOptions).
func NewGRPCPool(dialOpts ...grpc.DialOption) (*GRPCPool, error) {
	// No initial state is pushed: until the first ApplyDiff hands over an
	// address list, RPCs wait for it instead of failing fast against an
	// empty one.
	manualResolver := manual.NewBuilderWithScheme(nextScheme())

	opts := append([]grpc.DialOption{
		grpc.WithResolvers(manualResolver),
		grpc.WithDefaultServiceConfig(roundRobinServiceConfig),
	}, dialOpts...)

	target := manualResolver.Scheme() + ":///" + manualResolver.Scheme()
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("pool: failed to create grpc client: %w", err)
	}
	conn.Connect()

	return &GRPCPool{
		conn:     conn,
		resolver: manualResolver,
		current:  endpoint.New(),
	}, nil
}

// ApplyDiff implements SubChannelPool.
func (p *GRPCPool) ApplyDiff(add, remove endpoint.Set) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

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

	addrs := make([]resolver.Address, 0, len(next))
	for _, e := range next.Slice() {
		addrs = append(addrs, resolver.Address{Addr: e.HostPort()})
	}

	// UpdateState hands the new address list to grpc-go asynchronously;
	// it does not block on establishing or tearing down sub-connections.
	p.resolver.UpdateState(resolver.State{Addresses: addrs})
	p.current = next
	return nil
}

// Current implements SubChannelPool.
func (p *GRPCPool) Current() endpoint.Set {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(endpoint.Set, len(p.current))
	for k, e := range p.current {
		out[k] = e
	}
	return out
}

// DispatchHandle implements SubChannelPool.
func (p *GRPCPool) DispatchHandle() grpc.ClientConnInterface {
	return p.conn
}

// Close implements SubChannelPool.
func (p *GRPCPool) Close() error {
	return p.conn.Close()
}

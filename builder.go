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

// Package ginepro provides LoadBalancedChannel, a client-side
// load-balanced gRPC channel that presents a single logical transport to
// a named service, while internally reconciling its connections with a
// dynamically resolved set of backend endpoints.
//
// To construct one, use Builder:
//
//	channel, err := ginepro.NewBuilder("my.service.internal", 5000).
//	    WithResolutionStrategy(ginepro.StrategyEager).
//	    WithProbeInterval(10 * time.Second).
//	    Channel(context.Background())
//	if err != nil {
//	    // handle construction failure
//	}
//	defer channel.Close()
//
//	client := myservicepb.NewMyServiceClient(channel.Conn())
package ginepro

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/TrueLayer/ginepro/pool"
	"github.com/TrueLayer/ginepro/reconciler"
	"github.com/TrueLayer/ginepro/resolver"
	"github.com/TrueLayer/ginepro/service"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Strategy is re-exported from reconciler for builder ergonomics.
type Strategy = reconciler.Strategy

const (
	// StrategyLazy returns the channel immediately; the pool may start
	// empty. This is the default.
	StrategyLazy = reconciler.StrategyLazy
	// StrategyEager blocks channel construction until the first
	// successful, non-empty resolution (or WithInitialLookupDeadline
	// expires).
	StrategyEager = reconciler.StrategyEager
)

// Builder configures and constructs a LoadBalancedChannel.
type Builder struct {
	hostname string
	port     int

	probeInterval         time.Duration
	strategy              Strategy
	resolutionTimeout     time.Duration
	connectTimeout        time.Duration
	requestTimeout        time.Duration
	initialLookupDeadline time.Duration
	resolver              resolver.Resolver
	tlsConfig             *tls.Config
	logger                zerolog.Logger
	extraDialOpts         []grpc.DialOption
}

// NewBuilder starts configuring a LoadBalancedChannel for the gRPC
// service reachable at hostname:port. hostname and port are validated
// when Channel is called, via service.New.
func NewBuilder(hostname string, port int) *Builder {
	return &Builder{
		hostname: hostname,
		port:     port,
		logger:   zerolog.Nop(),
	}
}

// WithProbeInterval sets the period between resolution attempts.
// Default 10s.
func (b *Builder) WithProbeInterval(d time.Duration) *Builder {
	b.probeInterval = d
	return b
}

// WithResolutionStrategy sets the bootstrap strategy. Default StrategyLazy.
func (b *Builder) WithResolutionStrategy(s Strategy) *Builder {
	b.strategy = s
	return b
}

// WithResolutionTimeout bounds each individual resolution attempt.
// Defaults to the probe interval.
func (b *Builder) WithResolutionTimeout(d time.Duration) *Builder {
	b.resolutionTimeout = d
	return b
}

// WithConnectTimeout bounds establishment of each sub-connection,
// applied uniformly whether created during Eager bootstrap or later
// ticks (see DESIGN.md for this implementation's resolution of the
// open question on scope).
func (b *Builder) WithConnectTimeout(d time.Duration) *Builder {
	b.connectTimeout = d
	return b
}

// WithRequestTimeout applies a default deadline of d to every RPC
// dispatched through the channel that does not already carry one.
// Callers that set their own context deadline are never overridden.
// This supplements the builder surface with the per-endpoint request
// timeout original_source/ginepro's GrpcServiceProbeConfig exposed
// (endpoint_timeout) and the distilled spec dropped.
func (b *Builder) WithRequestTimeout(d time.Duration) *Builder {
	b.requestTimeout = d
	return b
}

// WithInitialLookupDeadline bounds the overall Eager bootstrap. Only
// honored when WithResolutionStrategy(StrategyEager) is used. Default 5s.
func (b *Builder) WithInitialLookupDeadline(d time.Duration) *Builder {
	b.initialLookupDeadline = d
	return b
}

// WithResolver overrides the default system-DNS resolver.
func (b *Builder) WithResolver(r resolver.Resolver) *Builder {
	b.resolver = r
	return b
}

// WithTLSConfig enables TLS for every sub-connection using config. If
// config.ServerName is unset, it defaults to the service's hostname,
// since sub-connections dial resolved IP literals rather than the
// original name, and TLS verification needs the original name to check
// the certificate against.
func (b *Builder) WithTLSConfig(config *tls.Config) *Builder {
	b.tlsConfig = config
	return b
}

// WithLogger attaches a zerolog.Logger that receives one structured
// event per reconciliation tick (see SPEC_FULL.md §6 Observability).
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithDialOptions appends raw grpc.DialOption values to those this
// package generates (service config, resolver, TLS/insecure
// credentials, connect timeout). This is an escape hatch for transport
// concerns this package deliberately treats as opaque (interceptors,
// keepalive, custom credentials).
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.extraDialOpts = append(b.extraDialOpts, opts...)
	return b
}

// Channel constructs the LoadBalancedChannel. Under StrategyEager, this
// blocks until the first resolution succeeds non-emptily or
// WithInitialLookupDeadline expires, returning ErrInitialResolutionFailed
// on the latter. Under StrategyLazy (the default), it returns
// immediately with a pool that may start empty.
func (b *Builder) Channel(ctx context.Context) (*LoadBalancedChannel, error) {
	svc, err := service.New(b.hostname, b.port)
	if err != nil {
		return nil, fmt.Errorf("ginepro: invalid service definition: %w", err)
	}

	res := b.resolver
	if res == nil {
		res = resolver.NewDNSResolver(nil)
	}

	dialOpts := []grpc.DialOption{
		b.transportCredentialsOption(),
	}
	if b.connectTimeout > 0 {
		dialOpts = append(dialOpts, grpc.WithConnectParams(grpc.ConnectParams{
			MinConnectTimeout: b.connectTimeout,
		}))
	}
	if b.requestTimeout > 0 {
		dialOpts = append(dialOpts,
			grpc.WithChainUnaryInterceptor(defaultDeadlineUnaryInterceptor(b.requestTimeout)),
			grpc.WithChainStreamInterceptor(defaultDeadlineStreamInterceptor(b.requestTimeout)),
		)
	}
	dialOpts = append(dialOpts, b.extraDialOpts...)

	subPool, err := pool.NewGRPCPool(dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("ginepro: failed to create connection pool: %w", err)
	}

	cfg := reconciler.Config{
		ProbeInterval:         b.probeInterval,
		Strategy:              b.strategy,
		ResolutionTimeout:     b.resolutionTimeout,
		InitialLookupDeadline: b.initialLookupDeadline,
	}

	recon, err := reconciler.New(ctx, svc, res, subPool, cfg, reconciler.WithLogger(b.logger))
	if err != nil {
		_ = subPool.Close()
		return nil, err
	}

	return &LoadBalancedChannel{
		svc:        svc,
		pool:       subPool,
		reconciler: recon,
	}, nil
}

func (b *Builder) transportCredentialsOption() grpc.DialOption {
	if b.tlsConfig == nil {
		return grpc.WithTransportCredentials(insecure.NewCredentials())
	}
	cfg := b.tlsConfig
	if cfg.ServerName == "" {
		clone := cfg.Clone()
		clone.ServerName = b.hostname
		cfg = clone
	}
	return grpc.WithTransportCredentials(credentials.NewTLS(cfg))
}

// defaultDeadlineUnaryInterceptor applies d as the RPC's deadline when
// the caller's context does not already carry one. It never shortens
// or overrides a deadline the caller set themselves.
func defaultDeadlineUnaryInterceptor(d time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// defaultDeadlineStreamInterceptor is the streaming counterpart of
// defaultDeadlineUnaryInterceptor. Unlike the unary case, the deadline
// must survive the call to streamer (it bounds the whole stream, which
// outlives this function), so it is deliberately not canceled on
// return; it still expires on its own once d elapses.
func defaultDeadlineStreamInterceptor(d time.Duration) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			ctx, _ = context.WithTimeout(ctx, d) //nolint:govet // cancel intentionally not called; the timeout expires on its own and bounds the stream's lifetime.
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

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

// Package reconciler implements the endpoint reconciliation loop: the
// background task that periodically resolves a service.Definition,
// diffs the result against the pool's currently connected endpoints, and
// issues add/remove mutations. This is the core state machine described
// by the specification this module implements.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TrueLayer/ginepro/clock"
	"github.com/TrueLayer/ginepro/endpoint"
	"github.com/TrueLayer/ginepro/pool"
	"github.com/TrueLayer/ginepro/resolver"
	"github.com/TrueLayer/ginepro/service"
	"github.com/avast/retry-go/v4"
	uuid "github.com/hashicorp/go-uuid"
	"github.com/rs/zerolog"
)

// Strategy controls whether Channel construction blocks on the first
// successful resolution.
type Strategy int

const (
	// StrategyLazy returns immediately; the pool may start empty and is
	// populated by the first background tick. This is the default.
	StrategyLazy Strategy = iota
	// StrategyEager blocks construction until a resolution succeeds (or
	// InitialLookupDeadline expires), guaranteeing a non-empty pool (or
	// an outright construction failure) before the channel is returned.
	StrategyEager
)

// ErrInitialResolutionFailed is returned when StrategyEager's bootstrap
// gate does not observe a successful, non-empty resolution before
// InitialLookupDeadline expires.
var ErrInitialResolutionFailed = errors.New("reconciler: initial resolution failed")

// errEmptyBootstrap marks an empty-but-successful resolution during
// bootstrap as a retryable failure: applications that asked to wait for
// endpoints should not be handed zero of them.
var errEmptyBootstrap = errors.New("reconciler: bootstrap resolution returned no endpoints")

// Config carries the tunables from the builder's configuration table.
type Config struct {
	// ProbeInterval is the period between resolution attempts. Default 10s.
	ProbeInterval time.Duration
	// Strategy selects the bootstrap behavior. Default StrategyLazy.
	Strategy Strategy
	// ResolutionTimeout bounds each individual resolution attempt.
	// Defaults to ProbeInterval.
	ResolutionTimeout time.Duration
	// InitialLookupDeadline bounds the overall Eager bootstrap, across
	// however many retries it takes. Only honored under StrategyEager.
	// Default 5s.
	InitialLookupDeadline time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 10 * time.Second
	}
	if c.ResolutionTimeout <= 0 {
		c.ResolutionTimeout = c.ProbeInterval
	}
	if c.InitialLookupDeadline <= 0 {
		c.InitialLookupDeadline = 5 * time.Second
	}
	return c
}

// Outcome classifies the result of a single tick, for structured logging.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeResolverError Outcome = "resolver_error"
	OutcomeEmptyIgnored  Outcome = "empty_ignored"
	OutcomePoolError     Outcome = "pool_error"
)

// Reconciler is the background task described by §4.4: it polls a
// Resolver and drives a pool.SubChannelPool. It is not safe for
// concurrent use by more than one caller of Close; all other state is
// owned exclusively by the single reconciliation goroutine.
type Reconciler struct {
	svc    service.Definition
	res    resolver.Resolver
	pool   pool.SubChannelPool
	cfg    Config
	clock  clock.Clock
	logger zerolog.Logger

	lastSuccessful *endpoint.Set

	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes Reconciler construction; primarily used by tests to
// inject a fake clock.
type Option func(*Reconciler)

// WithClock overrides the clock used for scheduling ticks. Defaults to
// the real wall clock. Resolution timeouts and the bootstrap deadline are
// context deadlines on real time and do not follow this clock.
func WithClock(c clock.Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// WithLogger attaches a zerolog.Logger used to emit the structured
// per-tick observability event. Defaults to a disabled logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// New constructs and starts a Reconciler. Under StrategyEager, New blocks
// until a resolution succeeds non-emptily or cfg.InitialLookupDeadline
// expires, in which case it returns ErrInitialResolutionFailed and no
// background goroutine is left running. Under StrategyLazy, New returns
// immediately and schedules the first resolution at t=0.
func New(
	ctx context.Context,
	svc service.Definition,
	res resolver.Resolver,
	subPool pool.SubChannelPool,
	cfg Config,
	opts ...Option,
) (*Reconciler, error) {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	r := &Reconciler{
		svc:    svc,
		res:    res,
		pool:   subPool,
		cfg:    cfg,
		clock:  clock.New(),
		logger: zerolog.Nop(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	initialDelay := time.Duration(0)
	if cfg.Strategy == StrategyEager {
		if err := r.bootstrap(ctx); err != nil {
			cancel()
			return nil, err
		}
		initialDelay = cfg.ProbeInterval
	}

	go r.run(ctx, initialDelay)
	return r, nil
}

// bootstrap performs resolutions, with backoff, until one succeeds
// non-emptily or cfg.InitialLookupDeadline expires (§4.4.1).
func (r *Reconciler) bootstrap(ctx context.Context) error {
	deadlineCtx, cancel := context.WithTimeout(ctx, r.cfg.InitialLookupDeadline)
	defer cancel()

	var resolved endpoint.Set
	var lastErr error

	err := retry.Do(
		func() error {
			set, err := r.resolveOnce(deadlineCtx)
			if err != nil {
				lastErr = err
				return err
			}
			if set.Len() == 0 {
				lastErr = errEmptyBootstrap
				return errEmptyBootstrap
			}
			resolved = set
			return nil
		},
		retry.Context(deadlineCtx),
		retry.Attempts(0), // unlimited attempts; bounded only by deadlineCtx
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		return fmt.Errorf("%w: %v", ErrInitialResolutionFailed, err)
	}

	if err := r.pool.ApplyDiff(resolved, endpoint.New()); err != nil {
		return fmt.Errorf("%w: bootstrap pool mutation failed: %v", ErrInitialResolutionFailed, err)
	}
	r.lastSuccessful = &resolved
	return nil
}

// resolveOnce resolves r.svc, bounding the attempt by ResolutionTimeout.
func (r *Reconciler) resolveOnce(ctx context.Context) (endpoint.Set, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ResolutionTimeout)
	defer cancel()
	return r.res.Resolve(ctx, r.svc)
}

// run is the steady-state loop: one goroutine, ticks scheduled by start
// time so an overrunning resolution does not delay the next attempt, and
// no two resolutions ever overlap.
func (r *Reconciler) run(ctx context.Context, initialDelay time.Duration) {
	defer close(r.done)

	timer := r.clock.NewTimer(initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
		}

		start := r.clock.Now()
		r.runTick(ctx)

		if ctx.Err() != nil {
			return
		}

		elapsed := r.clock.Since(start)
		next := r.cfg.ProbeInterval - elapsed
		if next < 0 {
			next = 0
		}
		timer = r.clock.NewTimer(next)
	}
}

// runTick performs exactly one reconciliation tick: resolve, diff,
// apply, observe.
func (r *Reconciler) runTick(ctx context.Context) {
	tickID, _ := uuid.GenerateUUID()
	log := r.logger.With().Str("tick_id", tickID).Str("service", r.svc.String()).Logger()

	resolved, err := r.resolveOnce(ctx)
	if err != nil {
		log.Warn().Err(err).
			Int("added", 0).
			Int("removed", 0).
			Int("total", r.pool.Current().Len()).
			Str("outcome", string(OutcomeResolverError)).
			Msg("reconciliation tick failed to resolve")
		return
	}

	connected := r.pool.Current()

	if resolved.Len() == 0 && r.lastSuccessful != nil && r.lastSuccessful.Len() > 0 {
		// Deliberate departure from naive "last write wins": an empty
		// NOERROR is more often a transient misconfiguration than a
		// planned scale-to-zero. Retain the previous set.
		log.Warn().
			Int("added", 0).
			Int("removed", 0).
			Int("total", connected.Len()).
			Str("outcome", string(OutcomeEmptyIgnored)).
			Msg("resolver returned no endpoints; retaining previous set")
		return
	}

	toAdd := resolved.Difference(connected)
	toRemove := connected.Difference(resolved)

	if err := r.applyDiff(toAdd, toRemove); err != nil {
		log.Error().Err(err).
			Int("added", 0).
			Int("removed", 0).
			Int("total", connected.Len()).
			Str("outcome", string(OutcomePoolError)).
			Msg("pool rejected endpoint diff; will retry next tick")
		return
	}

	r.lastSuccessful = &resolved
	log.Info().
		Int("added", toAdd.Len()).
		Int("removed", toRemove.Len()).
		Int("total", resolved.Len()).
		Str("outcome", string(OutcomeOK)).
		Msg("reconciliation tick applied")
}

// applyDiff calls the pool, skipping the call entirely when there is
// nothing to add or remove.
func (r *Reconciler) applyDiff(add, remove endpoint.Set) error {
	if add.Len() == 0 && remove.Len() == 0 {
		return nil
	}
	return r.pool.ApplyDiff(add, remove)
}

// Close stops the reconciliation loop. An in-flight resolution observes
// context cancellation and the loop exits before the next tick.
func (r *Reconciler) Close() error {
	r.cancel()
	<-r.done
	return nil
}

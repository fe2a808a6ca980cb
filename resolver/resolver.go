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

// Package resolver maps a service.Definition to a set of concrete
// endpoints. The DNS implementation is the reference resolver; the
// interface exists so tests (and alternative service-discovery systems)
// can supply their own.
package resolver

import (
	"context"
	"fmt"

	"github.com/TrueLayer/ginepro/endpoint"
	"github.com/TrueLayer/ginepro/service"
)

// Resolver maps a service.Definition to the current set of endpoints it
// resolves to. Resolve may block on network I/O; callers are expected to
// bound it with a context deadline. An empty, error-free result is valid
// and distinct from an error (see reconciler for how it is handled).
type Resolver interface {
	Resolve(ctx context.Context, svc service.Definition) (endpoint.Set, error)
}

// Kind classifies why a resolution failed. It is advisory: callers may
// use it for logging/metrics, but core reconciliation logic does not
// branch on it.
type Kind int

const (
	// KindTransient indicates a likely-temporary failure (timeout,
	// network unreachable) that may succeed on the next attempt.
	KindTransient Kind = iota
	// KindNotFound indicates the name does not exist (NXDOMAIN).
	KindNotFound
	// KindMisconfigured indicates a likely configuration problem, such
	// as a malformed resolver configuration.
	KindMisconfigured
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindMisconfigured:
		return "misconfigured"
	default:
		return "transient"
	}
}

// Error wraps a resolution failure with an advisory Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolution failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

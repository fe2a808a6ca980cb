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

package resolver_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/TrueLayer/ginepro/endpoint"
	"github.com/TrueLayer/ginepro/resolver"
	"github.com/TrueLayer/ginepro/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// singleShotResolver always returns the same fixed result. It exists to
// verify the Resolver interface's contract independent of any concrete
// implementation (DNS or otherwise), the way a hand-rolled service
// discovery backend would satisfy it.
type singleShotResolver struct {
	set endpoint.Set
	err error
}

func (s singleShotResolver) Resolve(context.Context, service.Definition) (endpoint.Set, error) {
	return s.set, s.err
}

func mustService(t *testing.T) service.Definition {
	t.Helper()
	svc, err := service.New("example.test", 5000)
	require.NoError(t, err)
	return svc
}

func TestResolverInterfaceSatisfiedByAStub(t *testing.T) {
	t.Parallel()
	want := endpoint.New(endpoint.Endpoint{IP: net.ParseIP("10.0.0.1"), Port: 5000})

	var res resolver.Resolver = singleShotResolver{set: want}

	got, err := res.Resolve(context.Background(), mustService(t))
	require.NoError(t, err)
	assert.True(t, got.Equal(want))
}

func TestResolverInterfacePropagatesError(t *testing.T) {
	t.Parallel()
	wantErr := &resolver.Error{Kind: resolver.KindTransient, Err: errors.New("boom")}

	var res resolver.Resolver = singleShotResolver{err: wantErr}

	_, err := res.Resolve(context.Background(), mustService(t))
	require.Error(t, err)
	assert.Same(t, wantErr, err)
}

func TestErrorUnwrapsAndClassifies(t *testing.T) {
	t.Parallel()
	inner := errors.New("boom")
	err := &resolver.Error{Kind: resolver.KindNotFound, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "not_found", err.Kind.String())
	assert.Contains(t, err.Error(), "not_found")
}

func TestKindStringDefaultsToTransient(t *testing.T) {
	t.Parallel()
	var unknown resolver.Kind = 99
	assert.Equal(t, "transient", unknown.String())
	assert.Equal(t, "misconfigured", resolver.KindMisconfigured.String())
}

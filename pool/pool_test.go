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

package pool_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/TrueLayer/ginepro/endpoint"
	"github.com/TrueLayer/ginepro/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func ep(ip string, port uint16) endpoint.Endpoint {
	return endpoint.Endpoint{IP: net.ParseIP(ip), Port: port}
}

// newBufconnPool wires a GRPCPool to an in-memory bufconn listener: the
// resolver addresses it hands grpc-go are never actually dialed over the
// network, since the context dialer always connects to the same
// in-memory listener regardless of the address string. This lets
// ApplyDiff's membership bookkeeping be exercised end to end, through a
// real *grpc.ClientConn and a real server, without binding a socket.
func newBufconnPool(t *testing.T) (*pool.GRPCPool, func()) {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, healthSrv)
	go func() { _ = srv.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}

	p, err := pool.NewGRPCPool(
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	)
	require.NoError(t, err)

	return p, func() {
		_ = p.Close()
		srv.Stop()
		_ = lis.Close()
	}
}

func TestApplyDiffEmptyIsNoOp(t *testing.T) {
	t.Parallel()
	p, stop := newBufconnPool(t)
	defer stop()

	require.NoError(t, p.ApplyDiff(endpoint.New(), endpoint.New()))
	assert.Equal(t, 0, p.Current().Len())
}

func TestApplyDiffAddIsIdempotent(t *testing.T) {
	t.Parallel()
	p, stop := newBufconnPool(t)
	defer stop()

	e := ep("10.1.2.3", 50051)
	require.NoError(t, p.ApplyDiff(endpoint.New(e), endpoint.New()))
	require.NoError(t, p.ApplyDiff(endpoint.New(e), endpoint.New()))

	assert.True(t, p.Current().Equal(endpoint.New(e)))
}

func TestApplyDiffRemoveAbsentIsNoOp(t *testing.T) {
	t.Parallel()
	p, stop := newBufconnPool(t)
	defer stop()

	e := ep("10.1.2.3", 50051)
	require.NoError(t, p.ApplyDiff(endpoint.New(e), endpoint.New()))

	absent := ep("10.9.9.9", 1)
	require.NoError(t, p.ApplyDiff(endpoint.New(), endpoint.New(absent)))

	assert.True(t, p.Current().Equal(endpoint.New(e)))
}

// TestApplyDiffSameSetTwiceIsOneNoOpDiff exercises the round-trip
// property: a caller (the reconciler) who diffs a freshly-resolved set
// against Current() and reapplies an already-applied set computes an
// empty add and an empty remove, and ApplyDiff leaves Current()
// unchanged when handed that empty diff.
func TestApplyDiffSameSetTwiceIsOneNoOpDiff(t *testing.T) {
	t.Parallel()
	p, stop := newBufconnPool(t)
	defer stop()

	set := endpoint.New(ep("10.1.2.3", 50051), ep("10.1.2.4", 50051))
	require.NoError(t, p.ApplyDiff(set, endpoint.New()))
	before := p.Current()

	toAdd := set.Difference(before)
	toRemove := before.Difference(set)
	assert.Equal(t, 0, toAdd.Len())
	assert.Equal(t, 0, toRemove.Len())

	require.NoError(t, p.ApplyDiff(toAdd, toRemove))
	assert.True(t, p.Current().Equal(before))
}

func TestApplyDiffAddAndRemoveInSameCall(t *testing.T) {
	t.Parallel()
	p, stop := newBufconnPool(t)
	defer stop()

	a, b := ep("10.1.2.3", 50051), ep("10.1.2.4", 50051)
	require.NoError(t, p.ApplyDiff(endpoint.New(a), endpoint.New()))

	c := ep("10.1.2.5", 50051)
	require.NoError(t, p.ApplyDiff(endpoint.New(b, c), endpoint.New(a)))

	assert.True(t, p.Current().Equal(endpoint.New(b, c)))
}

// TestDispatchHandleServesRPCsAfterApplyDiff is the true end-to-end dial
// test: after ApplyDiff hands the manual resolver a real address, the
// ClientConn returned by DispatchHandle can actually carry an RPC to the
// bufconn-backed server.
func TestDispatchHandleServesRPCsAfterApplyDiff(t *testing.T) {
	t.Parallel()
	p, stop := newBufconnPool(t)
	defer stop()

	require.NoError(t, p.ApplyDiff(endpoint.New(ep("10.1.2.3", 50051)), endpoint.New()))

	client := grpc_health_v1.NewHealthClient(p.DispatchHandle())
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
		return err == nil && resp.Status == grpc_health_v1.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}

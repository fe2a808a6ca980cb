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

package ginepro

import (
	"context"
	"sync"

	"github.com/TrueLayer/ginepro/pool"
	"github.com/TrueLayer/ginepro/reconciler"
	"github.com/TrueLayer/ginepro/service"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// LoadBalancedChannel is a single logical transport to a named service.
// It owns the background reconciliation task and mediates its lifecycle;
// applications build generated RPC stubs directly on top of Conn().
type LoadBalancedChannel struct {
	svc        service.Definition
	pool       pool.SubChannelPool
	reconciler *reconciler.Reconciler
}

// Conn returns the dispatch handle applications use to issue RPCs, e.g.
// to construct a generated client: pb.NewMyServiceClient(channel.Conn()).
func (c *LoadBalancedChannel) Conn() grpc.ClientConnInterface {
	return c.pool.DispatchHandle()
}

// Service returns the validated ServiceDefinition this channel was built
// for.
func (c *LoadBalancedChannel) Service() service.Definition {
	return c.svc
}

// Close stops the reconciler and closes the underlying connections. The
// channel must not be used after Close returns. Both are closed
// concurrently and their errors combined, so a failure in one does not
// prevent the other from running.
func (c *LoadBalancedChannel) Close() error {
	var result *multierror.Error
	var mu sync.Mutex
	grp, _ := errgroup.WithContext(context.Background())

	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		result = multierror.Append(result, err)
	}

	grp.Go(func() error {
		record(c.reconciler.Close())
		return nil
	})
	grp.Go(func() error {
		record(c.pool.Close())
		return nil
	})
	_ = grp.Wait()

	return result.ErrorOrNil()
}

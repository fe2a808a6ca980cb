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
	"testing"

	"github.com/TrueLayer/ginepro/resolver"
	"github.com/TrueLayer/ginepro/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIPLiteralShortCircuits(t *testing.T) {
	t.Parallel()
	svc, err := service.New("192.0.2.10", 443)
	require.NoError(t, err)

	res := resolver.NewDNSResolver(nil)
	set, err := res.Resolve(context.Background(), svc)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())

	got := set.Slice()[0]
	assert.Equal(t, "192.0.2.10", got.IP.String())
	assert.EqualValues(t, 443, got.Port)
}

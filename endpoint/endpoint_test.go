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

package endpoint_test

import (
	"net"
	"testing"

	"github.com/TrueLayer/ginepro/endpoint"
	"github.com/stretchr/testify/assert"
)

func ep(ip string, port uint16) endpoint.Endpoint {
	return endpoint.Endpoint{IP: net.ParseIP(ip), Port: port}
}

func TestSetEqual(t *testing.T) {
	t.Parallel()
	a := endpoint.New(ep("10.0.0.1", 5000), ep("10.0.0.2", 5000))
	b := endpoint.New(ep("10.0.0.2", 5000), ep("10.0.0.1", 5000))
	c := endpoint.New(ep("10.0.0.1", 5000))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestSetDifference(t *testing.T) {
	t.Parallel()
	a := endpoint.New(ep("10.0.0.1", 5000), ep("10.0.0.2", 5000))
	b := endpoint.New(ep("10.0.0.2", 5000), ep("10.0.0.3", 5000))

	toAdd := b.Difference(a)
	toRemove := a.Difference(b)

	assert.True(t, toAdd.Equal(endpoint.New(ep("10.0.0.3", 5000))))
	assert.True(t, toRemove.Equal(endpoint.New(ep("10.0.0.1", 5000))))
}

func TestSetDeduplicatesRepeats(t *testing.T) {
	t.Parallel()
	s := endpoint.New(ep("10.0.0.1", 5000), ep("10.0.0.1", 5000))
	assert.Equal(t, 1, s.Len())
}

func TestIPv4AndIPv6AreDistinct(t *testing.T) {
	t.Parallel()
	v4 := endpoint.New(ep("127.0.0.1", 80))
	v6 := endpoint.New(ep("::1", 80))
	assert.False(t, v4.Equal(v6))
}

func TestEmptyDiffIsEmpty(t *testing.T) {
	t.Parallel()
	a := endpoint.New(ep("10.0.0.1", 5000))
	assert.Equal(t, 0, a.Difference(a).Len())
}

func TestSetContains(t *testing.T) {
	t.Parallel()
	s := endpoint.New(ep("10.0.0.1", 5000))
	assert.True(t, s.Contains(ep("10.0.0.1", 5000)))
	assert.False(t, s.Contains(ep("10.0.0.2", 5000)))
}

func TestSetUnion(t *testing.T) {
	t.Parallel()
	a := endpoint.New(ep("10.0.0.1", 5000))
	b := endpoint.New(ep("10.0.0.1", 5000), ep("10.0.0.2", 5000))

	union := a.Union(b)
	assert.True(t, union.Equal(endpoint.New(ep("10.0.0.1", 5000), ep("10.0.0.2", 5000))))
	assert.Equal(t, 2, union.Len())
}

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

// Package endpoint represents the resolved (IP, port) targets that the
// reconciler diffs and the pool connects to.
package endpoint

import (
	"fmt"
	"net"
	"sort"
)

// Endpoint is a concrete (IP, port) a client can open a connection to.
type Endpoint struct {
	IP   net.IP
	Port uint16
}

// key is the comparable representation of an Endpoint, used as a map key
// since net.IP is a slice and therefore not itself comparable.
type key struct {
	addr [16]byte
	port uint16
}

func (e Endpoint) key() key {
	var k key
	ip := e.IP.To16()
	copy(k.addr[:], ip)
	k.port = e.Port
	return k
}

// HostPort returns the "host:port" form of the endpoint, bracketing IPv6
// addresses as required by net.JoinHostPort.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.IP.String(), fmt.Sprintf("%d", e.Port))
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return e.HostPort()
}

// Set is an unordered collection of Endpoint values with membership
// semantics: two sets are equal iff they contain the same endpoints,
// regardless of how they were built.
type Set map[key]Endpoint

// New builds a Set from the given endpoints, deduplicating any repeats.
func New(endpoints ...Endpoint) Set {
	set := make(Set, len(endpoints))
	for _, e := range endpoints {
		set[e.key()] = e
	}
	return set
}

// Contains reports whether e is a member of s.
func (s Set) Contains(e Endpoint) bool {
	_, ok := s[e.key()]
	return ok
}

// Equal reports whether s and other contain exactly the same endpoints.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// Difference returns the endpoints in s that are not in other (s \ other).
func (s Set) Difference(other Set) Set {
	diff := make(Set)
	for k, e := range s {
		if _, ok := other[k]; !ok {
			diff[k] = e
		}
	}
	return diff
}

// Union returns the endpoints present in either s or other.
func (s Set) Union(other Set) Set {
	union := make(Set, len(s)+len(other))
	for k, e := range s {
		union[k] = e
	}
	for k, e := range other {
		union[k] = e
	}
	return union
}

// Slice returns the endpoints in s as a slice, sorted by host:port for
// deterministic output (logs, tests). Order carries no semantic meaning;
// Set is a set, per the spec's "avoid stable-ordering assumptions" note.
func (s Set) Slice() []Endpoint {
	out := make([]Endpoint, 0, len(s))
	for _, e := range s {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HostPort() < out[j].HostPort() })
	return out
}

// Len returns the number of endpoints in s.
func (s Set) Len() int {
	return len(s)
}

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

package resolver

import (
	"context"
	"errors"
	"net"

	"github.com/TrueLayer/ginepro/endpoint"
	"github.com/TrueLayer/ginepro/service"
)

// dnsResolver resolves a hostname to the union of its A and AAAA
// records using the system resolver configuration (search domains,
// nameservers from resolv.conf or the platform equivalent).
type dnsResolver struct {
	resolver *net.Resolver
}

// NewDNSResolver returns the reference Resolver implementation, which
// performs A/AAAA lookups via res. If res is nil, net.DefaultResolver is
// used, which honors system DNS configuration. If the service definition's
// hostname is itself an IP literal, Resolve short-circuits and returns a
// singleton set without touching the network.
func NewDNSResolver(res *net.Resolver) Resolver {
	if res == nil {
		res = net.DefaultResolver
	}
	return &dnsResolver{resolver: res}
}

// Resolve implements Resolver.
func (d *dnsResolver) Resolve(ctx context.Context, svc service.Definition) (endpoint.Set, error) {
	if svc.IsIPLiteral() {
		ip := net.ParseIP(svc.Hostname())
		return endpoint.New(endpoint.Endpoint{IP: ip, Port: svc.Port()}), nil
	}

	addrs, err := d.resolver.LookupIPAddr(ctx, svc.Hostname())
	if err != nil {
		return nil, classifyDNSError(err)
	}

	endpoints := make([]endpoint.Endpoint, 0, len(addrs))
	for _, addr := range addrs {
		endpoints = append(endpoints, endpoint.Endpoint{IP: addr.IP, Port: svc.Port()})
	}
	return endpoint.New(endpoints...), nil
}

// classifyDNSError collapses the various failure modes of net.Resolver
// into the advisory Kind taxonomy. The classification is best-effort:
// net.DNSError is the only structured error the standard resolver
// returns, so anything else is treated as Transient.
func classifyDNSError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return &Error{Kind: KindNotFound, Err: err}
		case dnsErr.IsTimeout, dnsErr.IsTemporary:
			return &Error{Kind: KindTransient, Err: err}
		default:
			return &Error{Kind: KindMisconfigured, Err: err}
		}
	}
	return &Error{Kind: KindTransient, Err: err}
}

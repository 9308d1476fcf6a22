// Copyright 2023 The Outline Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"fmt"
	"net"
)

// domainAddr is a [net.Addr] for a destination whose host is a domain name rather
// than a literal IP address. It round-trips the original host:port string instead
// of forcing a DNS resolution that this package has no business performing.
type domainAddr struct {
	network string
	address string
}

var _ net.Addr = (*domainAddr)(nil)

func (a *domainAddr) Network() string { return a.network }
func (a *domainAddr) String() string  { return a.address }

// MakeNetAddr creates a [net.Addr] for the given network ("tcp" or "udp") and
// address (host:port, where host may be a domain name, an IPv4 literal, or a
// bracketed IPv6 literal, and port may be numeric or a service name).
func MakeNetAddr(network, address string) (net.Addr, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	if net.ParseIP(host) == nil {
		port, err := net.LookupPort(network, portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port in address %q: %w", address, err)
		}
		return &domainAddr{network: network, address: net.JoinHostPort(host, fmt.Sprint(port))}, nil
	}
	switch network {
	case "tcp":
		return net.ResolveTCPAddr(network, address)
	case "udp":
		return net.ResolveUDPAddr(network, address)
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}

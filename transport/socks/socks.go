// Copyright 2026 Corewire Authors
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

// Package socks implements a SOCKS4, SOCKS4a and SOCKS5 client protocol
// engine: it negotiates a handshake over a caller-supplied [transport.StreamConn]
// and, on success, hands back a transparent byte-stream tunnel to the
// requested destination.
package socks

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

// Version identifies which SOCKS protocol revision a [Proxy] speaks.
type Version int

const (
	Version4 Version = 4
	Version5 Version = 5
)

// Command is a SOCKS command, shared by SOCKS4 and SOCKS5.
type Command byte

const (
	CmdConnect   Command = 0x01
	CmdBind      Command = 0x02
	CmdAssociate Command = 0x03
)

func (c Command) String() string {
	switch c {
	case CmdConnect:
		return "connect"
	case CmdBind:
		return "bind"
	case CmdAssociate:
		return "associate"
	default:
		return fmt.Sprintf("command(%#x)", byte(c))
	}
}

// AddressType is the ATYP byte of a SOCKS4/SOCKS5 address.
type AddressType byte

const (
	AddrTypeIPv4       AddressType = 0x01
	AddrTypeDomainName AddressType = 0x03
	AddrTypeIPv6       AddressType = 0x04
)

// AuthMethod is a SOCKS5 method-selection byte, per RFC 1928 §3.
type AuthMethod byte

const (
	AuthNoAuth     AuthMethod = 0x00
	AuthUserPass   AuthMethod = 0x02
	AuthNoAccepted AuthMethod = 0xFF
)

// Proxy describes a single SOCKS proxy hop.
type Proxy struct {
	// Host is the proxy's IPv4/IPv6 literal or hostname.
	Host string
	// Port is the proxy's TCP port, 1-65535.
	Port int
	// Version selects SOCKS4 (which also covers SOCKS4a) or SOCKS5.
	Version Version
	// UserID is sent as the SOCKS4 userid field. Ignored for SOCKS5.
	UserID string
	// Username and Password drive SOCKS5 RFC 1929 sub-negotiation. Both
	// empty means "offer no-auth only".
	Username string
	Password string
	// IPAddress is the literal address callers use to reach this proxy. It
	// substitutes for a 0.0.0.0 bind/associate address the proxy reports,
	// since some proxies report the wildcard instead of a routable address.
	IPAddress string
}

// Address returns the proxy's dial address as host:port.
func (p *Proxy) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// RemoteHost is a destination or bound address: a literal or hostname plus a
// port.
type RemoteHost struct {
	Host string
	Port int
}

func (r RemoteHost) String() string {
	if r.Host == "" {
		return ""
	}
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// substituteWildcard replaces host with the proxy's own address whenever the
// proxy reports the 0.0.0.0 wildcard instead of a routable bind address.
func substituteWildcard(proxy *Proxy, host string) string {
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return proxy.IPAddress
	}
	return host
}

// classifyHost returns the [AddressType] to use when framing host on the
// wire, per spec: IPv4 literal, IPv6 literal, else hostname.
func classifyHost(host string) AddressType {
	ip := net.ParseIP(host)
	if ip == nil {
		return AddrTypeDomainName
	}
	if ip4 := ip.To4(); ip4 != nil {
		return AddrTypeIPv4
	}
	return AddrTypeIPv6
}

// appendAddress appends a SOCKS5-framed ATYP+address for host (without a
// port) to b, per RFC 1928 §5.
func appendAddress(b []byte, host string) ([]byte, error) {
	switch classifyHost(host) {
	case AddrTypeIPv4:
		b = append(b, byte(AddrTypeIPv4))
		b = append(b, net.ParseIP(host).To4()...)
	case AddrTypeIPv6:
		b = append(b, byte(AddrTypeIPv6))
		b = append(b, net.ParseIP(host).To16()...)
	default:
		if len(host) > 255 {
			return nil, fmt.Errorf("hostname %q exceeds 255 bytes", host)
		}
		b = append(b, byte(AddrTypeDomainName))
		b = append(b, byte(len(host)))
		b = append(b, host...)
	}
	return b, nil
}

// appendPort appends a big-endian port number to b.
func appendPort(b []byte, port int) []byte {
	return binary.BigEndian.AppendUint16(b, uint16(port))
}

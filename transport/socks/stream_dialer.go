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

package socks

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/corewire/socks/transport"
)

// credentials holds optional RFC 1929 username/password sub-negotiation
// material. A nil *credentials means "offer no-auth only".
type credentials struct {
	username string
	password string
}

// StreamDialer is a [transport.StreamDialer] that routes connections
// through a SOCKS4, SOCKS4a or SOCKS5 proxy.
type StreamDialer struct {
	proxyEndpoint transport.StreamEndpoint
	version       Version
	socks4UserID  string
	cred          *credentials
	timeout       time.Duration
	trace         *SOCKS5ClientTrace
}

var _ transport.StreamDialer = (*StreamDialer)(nil)

// NewStreamDialer creates a [transport.StreamDialer] that routes connections
// to a SOCKS5 proxy listening at the given [transport.StreamEndpoint].
func NewStreamDialer(endpoint transport.StreamEndpoint) (*StreamDialer, error) {
	if endpoint == nil {
		return nil, errors.New("argument endpoint must not be nil")
	}
	return &StreamDialer{proxyEndpoint: endpoint, version: Version5}, nil
}

// NewStreamDialerSOCKS4 creates a [transport.StreamDialer] that routes
// connections to a SOCKS4/SOCKS4a proxy listening at the given
// [transport.StreamEndpoint]. userID is sent as the SOCKS4 USERID field.
func NewStreamDialerSOCKS4(endpoint transport.StreamEndpoint, userID string) (*StreamDialer, error) {
	if endpoint == nil {
		return nil, errors.New("argument endpoint must not be nil")
	}
	return &StreamDialer{proxyEndpoint: endpoint, version: Version4, socks4UserID: userID}, nil
}

// SetCredentials configures SOCKS5 username/password sub-negotiation. It is
// a no-op for a SOCKS4/SOCKS4a dialer.
func (d *StreamDialer) SetCredentials(username, password []byte) error {
	if len(username) > 255 {
		return errors.New("username exceeds 255 bytes")
	}
	if len(username) == 0 {
		return errors.New("username must be at least 1 byte")
	}
	if len(password) > 255 {
		return errors.New("password exceeds 255 bytes")
	}
	if len(password) == 0 {
		return errors.New("password must be at least 1 byte")
	}
	d.cred = &credentials{username: string(username), password: string(password)}
	return nil
}

// SetTimeout overrides the default handshake timeout.
func (d *StreamDialer) SetTimeout(timeout time.Duration) {
	d.timeout = timeout
}

// SetTrace attaches trace hooks fired during every DialStream call. A
// per-call trace in the context (see [WithSOCKS5ClientTrace]) takes
// precedence.
func (d *StreamDialer) SetTrace(trace *SOCKS5ClientTrace) {
	d.trace = trace
}

// DialStream implements [transport.StreamDialer].DialStream using SOCKS.
// A handshake failure is returned as a *[Error]; use errors.As to inspect
// Kind and, for rejection kinds, the raw numeric reply code. An invalid
// remoteAddr or a failure to connect to the proxy endpoint is returned as a
// plain wrapped error, not a *[Error].
func (d *StreamDialer) DialStream(ctx context.Context, remoteAddr string) (transport.StreamConn, error) {
	dest, err := parseRemoteHost(remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("socks: invalid remote address %q: %w", remoteAddr, err)
	}

	proxyConn, err := d.proxyEndpoint.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("socks: could not connect to proxy: %w", err)
	}

	proxy := &Proxy{Version: d.version, UserID: d.socks4UserID}
	if d.cred != nil {
		proxy.Username = d.cred.username
		proxy.Password = d.cred.password
	}

	trace := d.trace
	if ctxTrace := GetSOCKS5ClientTrace(ctx); ctxTrace != nil {
		trace = ctxTrace
	}

	client, err := NewClient(&ClientOptions{
		Proxy:       proxy,
		Destination: dest,
		Command:     CmdConnect,
		Timeout:     d.timeout,
		Conn:        proxyConn,
		Trace:       trace,
	})
	if err != nil {
		proxyConn.Close()
		return nil, err
	}

	conn, _, err := client.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func parseRemoteHost(addr string) (RemoteHost, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return RemoteHost{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return RemoteHost{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return RemoteHost{Host: host, Port: port}, nil
}

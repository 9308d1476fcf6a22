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
	"time"

	"github.com/corewire/socks/transport"
)

// ConnectionOptions configures a single-hop CONNECT or UDP ASSOCIATE through
// one SOCKS proxy, dialed fresh for this call.
type ConnectionOptions struct {
	Proxy       *Proxy
	Destination RemoteHost
	Dialer      transport.StreamDialer
	Timeout     time.Duration
	Trace       *SOCKS5ClientTrace
}

// CreateConnection dials opts.Proxy via opts.Dialer and performs a SOCKS
// CONNECT to opts.Destination, returning a transparent tunnel on success.
func CreateConnection(ctx context.Context, opts *ConnectionOptions) (transport.StreamConn, error) {
	conn, err := opts.Dialer.Dial(ctx, opts.Proxy.Address())
	if err != nil {
		return nil, newError(&ClientOptions{Proxy: opts.Proxy}, KindTransport, err)
	}

	client, err := NewClient(&ClientOptions{
		Proxy:       opts.Proxy,
		Destination: opts.Destination,
		Command:     CmdConnect,
		Timeout:     opts.Timeout,
		Conn:        conn,
		Trace:       opts.Trace,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	established, _, err := client.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return established, nil
}

// CreateAssociation dials opts.Proxy via opts.Dialer and performs a SOCKS5
// UDP ASSOCIATE, returning the tunnel (which must stay open for the
// duration of the UDP relay) and the proxy's UDP relay address.
func CreateAssociation(ctx context.Context, opts *ConnectionOptions) (transport.StreamConn, *RemoteHost, error) {
	conn, err := opts.Dialer.Dial(ctx, opts.Proxy.Address())
	if err != nil {
		return nil, nil, newError(&ClientOptions{Proxy: opts.Proxy}, KindTransport, err)
	}

	client, err := NewClient(&ClientOptions{
		Proxy:       opts.Proxy,
		Destination: opts.Destination,
		Command:     CmdAssociate,
		Timeout:     opts.Timeout,
		Conn:        conn,
		Trace:       opts.Trace,
	})
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	return client.Connect(ctx)
}

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
	"math/rand"
	"time"

	"github.com/corewire/socks/transport"
)

// ChainOptions configures a multi-hop CONNECT chain: Proxies[0] is dialed
// directly, Proxies[0] is then asked to CONNECT to Proxies[1], and so on,
// until the last proxy is asked to CONNECT to Destination. Every hop tunnels
// over the single TCP connection opened to Proxies[0]; there is no
// additional dialing past the first hop.
type ChainOptions struct {
	// Proxies is the hop sequence, in dial order. Must be non-empty.
	Proxies []*Proxy
	// Destination is the final CONNECT target, requested of the last proxy
	// in the chain.
	Destination RemoteHost
	// Dialer reaches Proxies[0]. Required.
	Dialer transport.StreamDialer
	// Timeout bounds each individual hop's handshake.
	Timeout time.Duration
	// Randomize shuffles the hop order before connecting, e.g. to spread
	// load across an equivalent set of proxies. Destination stays the final
	// CONNECT target whichever proxy ends up last; with a single proxy it is
	// a no-op.
	Randomize bool
	// Trace observes each hop's handshake.
	Trace *SOCKS5ClientTrace
}

// randomizeChain returns a shuffled copy of proxies, leaving the input
// slice untouched.
func randomizeChain(proxies []*Proxy) []*Proxy {
	shuffled := make([]*Proxy, len(proxies))
	copy(shuffled, proxies)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// CreateConnectionChain dials opts.Proxies[0] and CONNECTs hop by hop to
// opts.Destination. On any hop's failure the underlying connection is
// closed (the Client driving that hop owns and closes the shared stream),
// and the error is returned with no partial conn.
func CreateConnectionChain(ctx context.Context, opts *ChainOptions) (transport.StreamConn, error) {
	if len(opts.Proxies) == 0 {
		return nil, errors.New("socks: ChainOptions.Proxies must be non-empty")
	}
	if opts.Dialer == nil {
		return nil, errors.New("socks: ChainOptions.Dialer must be set")
	}

	proxies := opts.Proxies
	if opts.Randomize {
		proxies = randomizeChain(proxies)
	}

	firstConn, err := opts.Dialer.Dial(ctx, proxies[0].Address())
	if err != nil {
		return nil, newError(&ClientOptions{Proxy: proxies[0]}, KindTransport, err)
	}

	var conn transport.StreamConn = firstConn
	for i, proxy := range proxies {
		dest := opts.Destination
		if i+1 < len(proxies) {
			next := proxies[i+1]
			dest = RemoteHost{Host: next.IPAddress, Port: next.Port}
		}

		client, err := NewClient(&ClientOptions{
			Proxy:       proxy,
			Destination: dest,
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
		conn = established
	}
	return conn, nil
}

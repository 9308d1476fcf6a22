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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/things-go/go-socks5"

	"github.com/corewire/socks/transport"
)

// TestCreateConnectionChainTwoHops chains two independent SOCKS5 proxies:
// the first is dialed directly, then asked to CONNECT to the second, which
// is then asked to CONNECT to a plain TCP echo server. All three hops ride
// the single TCP connection opened to the first proxy.
func TestCreateConnectionChainTwoHops(t *testing.T) {
	echoListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer echoListener.Close()
	serveRaw(t, echoListener, func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		conn.Write(buf[:n]) //nolint:errcheck
	})

	hop1Listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer hop1Listener.Close()
	go socks5.NewServer().Serve(hop1Listener) //nolint:errcheck

	hop2Listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer hop2Listener.Close()
	go socks5.NewServer().Serve(hop2Listener) //nolint:errcheck

	hop1Host, hop1Port := hostPort(t, hop1Listener.Addr())
	hop2Host, hop2Port := hostPort(t, hop2Listener.Addr())
	echoHost, echoPort := hostPort(t, echoListener.Addr())

	conn, err := CreateConnectionChain(context.Background(), &ChainOptions{
		Proxies: []*Proxy{
			{Host: hop1Host, Port: hop1Port, Version: Version5},
			{Host: hop2Host, Port: hop2Port, Version: Version5},
		},
		Destination: RemoteHost{Host: echoHost, Port: echoPort},
		Dialer:      &transport.TCPStreamDialer{},
		Timeout:     2 * time.Second,
	})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	got := make([]byte, 4)
	_, err = conn.Read(got)
	require.NoError(t, err)
	require.Equal(t, "ping", string(got))
}

// TestCreateConnectionChainUsesProxyIPAddress verifies that a chain hop's
// CONNECT destination is built from the next proxy's IPAddress field, not
// its Host field: the middle proxy is configured with a Host that cannot
// resolve, so the hop only succeeds if IPAddress (set to the real loopback
// address) is what travels over the wire to the previous hop.
func TestCreateConnectionChainUsesProxyIPAddress(t *testing.T) {
	echoListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer echoListener.Close()
	serveRaw(t, echoListener, func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		conn.Write(buf[:n]) //nolint:errcheck
	})

	hop1Listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer hop1Listener.Close()
	go socks5.NewServer().Serve(hop1Listener) //nolint:errcheck

	hop2Listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer hop2Listener.Close()
	go socks5.NewServer().Serve(hop2Listener) //nolint:errcheck

	hop1Host, hop1Port := hostPort(t, hop1Listener.Addr())
	hop2Host, hop2Port := hostPort(t, hop2Listener.Addr())
	echoHost, echoPort := hostPort(t, echoListener.Addr())

	conn, err := CreateConnectionChain(context.Background(), &ChainOptions{
		Proxies: []*Proxy{
			{Host: hop1Host, Port: hop1Port, Version: Version5},
			{Host: "hop2.invalid.example", IPAddress: hop2Host, Port: hop2Port, Version: Version5},
		},
		Destination: RemoteHost{Host: echoHost, Port: echoPort},
		Dialer:      &transport.TCPStreamDialer{},
		Timeout:     2 * time.Second,
	})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	got := make([]byte, 4)
	_, err = conn.Read(got)
	require.NoError(t, err)
	require.Equal(t, "ping", string(got))
}

func TestCreateConnectionChainRequiresProxies(t *testing.T) {
	_, err := CreateConnectionChain(context.Background(), &ChainOptions{
		Dialer: &transport.TCPStreamDialer{},
	})
	require.Error(t, err)
}

func TestCreateConnectionChainRequiresDialer(t *testing.T) {
	_, err := CreateConnectionChain(context.Background(), &ChainOptions{
		Proxies: []*Proxy{{Host: "127.0.0.1", Port: 1080, Version: Version5}},
	})
	require.Error(t, err)
}

// TestCreateConnectionChainFirstHopRejects verifies that a hop rejection
// surfaces the classified error.
func TestCreateConnectionChainFirstHopRejects(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	serveRaw(t, listener, func(conn net.Conn) {
		defer conn.Close()
		req := make([]byte, 256)
		_, err := conn.Read(req)
		require.NoError(t, err)
		conn.Write([]byte{0x00, 0x5c, 0x00, 0x00, 0, 0, 0, 0}) //nolint:errcheck
	})

	host, port := hostPort(t, listener.Addr())
	_, err = CreateConnectionChain(context.Background(), &ChainOptions{
		Proxies: []*Proxy{
			{Host: host, Port: port, Version: Version4},
		},
		Destination: RemoteHost{Host: "93.184.216.34", Port: 80},
		Dialer:      &transport.TCPStreamDialer{},
		Timeout:     2 * time.Second,
	})
	require.Error(t, err)
	var socksErr *Error
	require.True(t, errors.As(err, &socksErr))
	require.Equal(t, KindConnectionRejected, socksErr.Kind)
}

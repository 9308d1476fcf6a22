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
	"io"
	"net"
	"strconv"
	"time"

	"github.com/corewire/socks/transport"
)

// clientUDPBufferSize is the maximum supported UDP relay packet size in
// bytes: large enough for the SOCKS5 header plus a full-size UDP datagram.
const clientUDPBufferSize = 16 * 1024

// PacketListener is a [transport.PacketListener] that opens a UDP relay
// through a SOCKS5 proxy via ASSOCIATE. The proxy connection returned by the
// associate handshake must stay open for as long as the relay is used; the
// listener owns it and closes it when the returned net.PacketConn is
// closed.
type PacketListener struct {
	Proxy   *Proxy
	Dialer  transport.StreamDialer
	Timeout time.Duration
	Trace   *SOCKS5ClientTrace
}

var _ transport.PacketListener = (*PacketListener)(nil)

// ListenPacket implements [transport.PacketListener.ListenPacket]. It opens
// the ASSOCIATE control connection, dials the relay address the proxy
// reports, and returns a [net.PacketConn] that frames/unframes datagrams per
// RFC 1928 §7.
func (l *PacketListener) ListenPacket(ctx context.Context) (net.PacketConn, error) {
	controlConn, err := l.Dialer.Dial(ctx, l.Proxy.Address())
	if err != nil {
		return nil, fmt.Errorf("socks: could not connect to proxy: %w", err)
	}

	client, err := NewClient(&ClientOptions{
		Proxy:       l.Proxy,
		Destination: RemoteHost{Host: "0.0.0.0", Port: 0},
		Command:     CmdAssociate,
		Timeout:     l.Timeout,
		Conn:        controlConn,
		Trace:       l.Trace,
	})
	if err != nil {
		controlConn.Close()
		return nil, err
	}

	sc, relayAddr, err := client.Connect(ctx)
	if err != nil {
		return nil, err
	}

	relayHost := relayAddr.Host
	if ip := net.ParseIP(relayHost); ip != nil && ip.IsUnspecified() {
		if host, _, splitErr := net.SplitHostPort(sc.RemoteAddr().String()); splitErr == nil {
			relayHost = host
		}
	}

	relayConn, err := (&net.Dialer{}).DialContext(ctx, "udp", net.JoinHostPort(relayHost, strconv.Itoa(relayAddr.Port)))
	if err != nil {
		sc.Close()
		return nil, fmt.Errorf("socks: could not dial UDP relay at %s: %w", relayAddr.String(), err)
	}

	return &packetConn{sc: sc, pc: relayConn}, nil
}

// packetConn adapts the SOCKS5 UDP relay framing onto a [net.PacketConn].
// Fragmented relay datagrams (FRAG != 0) are rejected rather than
// reassembled; no SOCKS5 server in common use sends fragments.
type packetConn struct {
	sc transport.StreamConn
	pc net.Conn
}

var _ net.PacketConn = (*packetConn)(nil)

func (p *packetConn) ReadFrom(b []byte) (int, net.Addr, error) {
	buf := make([]byte, clientUDPBufferSize)
	n, err := p.pc.Read(buf)
	if err != nil {
		return 0, nil, err
	}
	frame, err := ParseUDPFrame(buf[:n])
	if err != nil {
		return 0, nil, fmt.Errorf("socks: invalid UDP relay packet: %w", err)
	}
	if frame.FrameNumber != 0 {
		return 0, nil, errors.New("socks: fragmented UDP relay packets are not supported")
	}
	if len(frame.Data) > len(b) {
		return 0, nil, io.ErrShortBuffer
	}
	n = copy(b, frame.Data)
	addr, err := net.ResolveUDPAddr("udp", frame.RemoteHost.String())
	if err != nil {
		return 0, nil, fmt.Errorf("socks: resolving relay source address: %w", err)
	}
	return n, addr, nil
}

func (p *packetConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0, fmt.Errorf("socks: invalid destination address %q: %w", addr.String(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("socks: invalid destination port %q: %w", portStr, err)
	}
	frame, err := CreateUDPFrame(UDPFrame{RemoteHost: RemoteHost{Host: host, Port: port}, Data: b})
	if err != nil {
		return 0, err
	}
	return p.pc.Write(frame)
}

func (p *packetConn) LocalAddr() net.Addr { return p.pc.LocalAddr() }

func (p *packetConn) SetDeadline(t time.Time) error { return p.pc.SetDeadline(t) }

func (p *packetConn) SetReadDeadline(t time.Time) error { return p.pc.SetReadDeadline(t) }

func (p *packetConn) SetWriteDeadline(t time.Time) error { return p.pc.SetWriteDeadline(t) }

func (p *packetConn) Close() error {
	return errors.Join(p.pc.Close(), p.sc.Close())
}

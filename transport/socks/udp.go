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
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// UDPFrame is a single SOCKS5 UDP relay datagram, per RFC 1928 §7.
type UDPFrame struct {
	// FrameNumber is the fragment number. 0 means "standalone, not part of
	// a fragmented sequence" — this package does not reassemble fragments.
	FrameNumber byte
	RemoteHost  RemoteHost
	Data        []byte
}

// CreateUDPFrame encodes f as a SOCKS5 UDP datagram: 2 reserved bytes, the
// fragment number, the address, and the payload.
func CreateUDPFrame(f UDPFrame) ([]byte, error) {
	b := make([]byte, 0, 4+18+len(f.Data))
	b = append(b, 0x00, 0x00, f.FrameNumber)
	b, err := appendAddress(b, f.RemoteHost.Host)
	if err != nil {
		return nil, fmt.Errorf("socks: encoding UDP frame address: %w", err)
	}
	b = appendPort(b, f.RemoteHost.Port)
	b = append(b, f.Data...)
	return b, nil
}

// ParseUDPFrame decodes a SOCKS5 UDP datagram produced by CreateUDPFrame (or
// by a SOCKS5 proxy's UDP relay).
func ParseUDPFrame(b []byte) (UDPFrame, error) {
	if len(b) < 4 {
		return UDPFrame{}, errors.New("socks: UDP frame too short for header")
	}
	if b[0] != 0x00 || b[1] != 0x00 {
		return UDPFrame{}, fmt.Errorf("socks: invalid UDP frame reserved bytes %#x%#x", b[0], b[1])
	}
	frag := b[2]
	atyp := AddressType(b[3])
	rest := b[4:]

	var host string
	switch atyp {
	case AddrTypeIPv4:
		if len(rest) < 4+2 {
			return UDPFrame{}, errors.New("socks: UDP frame too short for IPv4 address")
		}
		host = ipv4String(rest[:4])
		rest = rest[4:]
	case AddrTypeIPv6:
		if len(rest) < 16+2 {
			return UDPFrame{}, errors.New("socks: UDP frame too short for IPv6 address")
		}
		host = ipv6String(rest[:16])
		rest = rest[16:]
	case AddrTypeDomainName:
		if len(rest) < 1 {
			return UDPFrame{}, errors.New("socks: UDP frame too short for hostname length")
		}
		l := int(rest[0])
		rest = rest[1:]
		if len(rest) < l+2 {
			return UDPFrame{}, errors.New("socks: UDP frame too short for hostname")
		}
		host = string(rest[:l])
		rest = rest[l:]
	default:
		return UDPFrame{}, fmt.Errorf("socks: unrecognized UDP frame address type %#x", atyp)
	}

	port := int(binary.BigEndian.Uint16(rest[:2]))
	data := rest[2:]
	payload := make([]byte, len(data))
	copy(payload, data)

	return UDPFrame{
		FrameNumber: frag,
		RemoteHost:  RemoteHost{Host: host, Port: port},
		Data:        payload,
	}, nil
}

func ipv4String(b []byte) string {
	return net.IP(b).String()
}

func ipv6String(b []byte) string {
	return net.IP(b).String()
}

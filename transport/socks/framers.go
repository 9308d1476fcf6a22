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

import "net"

// frameSOCKS4Request builds a SOCKS4/SOCKS4a CONNECT or BIND request:
// VN CD DSTPORT DSTIP USERID NUL [DSTDOMAIN NUL].
func frameSOCKS4Request(cmd Command, dest RemoteHost, userID string) []byte {
	b := make([]byte, 0, 9+len(userID)+len(dest.Host))
	b = append(b, 0x04, byte(cmd))
	b = appendPort(b, dest.Port)

	ip := net.ParseIP(dest.Host)
	ip4 := ip.To4()
	socks4a := ip4 == nil
	if socks4a {
		// SOCKS4a: DSTIP is an invalid-but-nonzero placeholder; the real
		// host travels after the USERID terminator.
		b = append(b, 0x00, 0x00, 0x00, 0x01)
	} else {
		b = append(b, ip4...)
	}
	b = append(b, userID...)
	b = append(b, 0x00)
	if socks4a {
		b = append(b, dest.Host...)
		b = append(b, 0x00)
	}
	return b
}

// frameSOCKS5MethodSelection builds the SOCKS5 method-selection request. It
// offers UserPass alongside NoAuth whenever credentials are configured,
// otherwise NoAuth alone.
func frameSOCKS5MethodSelection(username, password string) []byte {
	if username != "" || password != "" {
		return []byte{0x05, 0x02, byte(AuthNoAuth), byte(AuthUserPass)}
	}
	return []byte{0x05, 0x01, byte(AuthNoAuth)}
}

// frameSOCKS5UserPassAuth builds the RFC 1929 username/password request.
func frameSOCKS5UserPassAuth(username, password string) []byte {
	b := make([]byte, 0, 3+len(username)+len(password))
	b = append(b, 0x01, byte(len(username)))
	b = append(b, username...)
	b = append(b, byte(len(password)))
	b = append(b, password...)
	return b
}

// frameSOCKS5Request builds a SOCKS5 command request: VER CMD RSV ATYP
// DST.ADDR DST.PORT.
func frameSOCKS5Request(cmd Command, dest RemoteHost) ([]byte, error) {
	b := []byte{0x05, byte(cmd), 0x00}
	b, err := appendAddress(b, dest.Host)
	if err != nil {
		return nil, err
	}
	b = appendPort(b, dest.Port)
	return b, nil
}

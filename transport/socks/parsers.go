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
	"fmt"
)

const (
	watermarkSOCKS4Response           = 8
	watermarkSOCKS5MethodSelection    = 2
	watermarkSOCKS5UserPassAuth       = 2
	watermarkSOCKS5CommandResponseMin = 5
)

const socks4Granted = 0x5A

// parseSOCKS4Response consumes exactly 8 bytes from buf (caller must ensure
// buf.length() >= watermarkSOCKS4Response) and decodes VN REP DSTPORT DSTIP.
func parseSOCKS4Response(proxy *Proxy, buf *receiveBuffer) (granted bool, code byte, remoteHost RemoteHost) {
	b := buf.get(watermarkSOCKS4Response)
	code = b[1]
	port := int(binary.BigEndian.Uint16(b[2:4]))
	host := ipv4String(b[4:8])
	host = substituteWildcard(proxy, host)
	return code == socks4Granted, code, RemoteHost{Host: host, Port: port}
}

// parseSOCKS5MethodSelection consumes exactly 2 bytes: VER METHOD.
func parseSOCKS5MethodSelection(opts *ClientOptions, buf *receiveBuffer) (AuthMethod, *Error) {
	b := buf.get(watermarkSOCKS5MethodSelection)
	if b[0] != 0x05 {
		return 0, newError(opts, KindProtocolVersion, fmt.Errorf("unexpected version byte %#x in method selection response", b[0]))
	}
	method := AuthMethod(b[1])
	switch method {
	case AuthNoAccepted:
		return method, newError(opts, KindNoAcceptedAuthMethod, nil)
	case AuthNoAuth, AuthUserPass:
		return method, nil
	default:
		return method, newError(opts, KindUnknownAuthMethod, fmt.Errorf("method %#x", byte(method)))
	}
}

// parseSOCKS5UserPassAuth consumes exactly 2 bytes: VER STATUS.
func parseSOCKS5UserPassAuth(opts *ClientOptions, buf *receiveBuffer) *Error {
	b := buf.get(watermarkSOCKS5UserPassAuth)
	if b[1] != 0x00 {
		return newError(opts, KindAuthenticationFailed, fmt.Errorf("status %#x", b[1]))
	}
	return nil
}

// commandResponseResult is the outcome of attempting to parse a SOCKS5
// command response. needMore is set (with watermark updated) when fewer
// than `required` bytes are buffered; nothing is consumed in that case.
type commandResponseResult struct {
	needMore   bool
	watermark  int
	remoteHost RemoteHost
}

// parseSOCKS5CommandResponse implements §4.8: it peeks enough bytes to learn
// the address type, computes the frame's total length, and only consumes
// once the full frame is buffered.
func parseSOCKS5CommandResponse(proxy *Proxy, opts *ClientOptions, buf *receiveBuffer) (commandResponseResult, *Error) {
	if buf.length() < watermarkSOCKS5CommandResponseMin {
		return commandResponseResult{needMore: true, watermark: watermarkSOCKS5CommandResponseMin}, nil
	}
	head := buf.peek(watermarkSOCKS5CommandResponseMin)
	ver, rep, atyp, firstAddrByte := head[0], head[1], AddressType(head[3]), head[4]
	if ver != 0x05 {
		return commandResponseResult{}, newError(opts, KindProtocolVersion, fmt.Errorf("unexpected version byte %#x in command response", ver))
	}
	if rep != 0x00 {
		return commandResponseResult{}, newRejectError(opts, KindConnectionRejected, rep)
	}

	var required int
	switch atyp {
	case AddrTypeIPv4:
		required = 10
	case AddrTypeIPv6:
		required = 22
	case AddrTypeDomainName:
		required = 7 + int(firstAddrByte)
	default:
		return commandResponseResult{}, newError(opts, KindInternal, fmt.Errorf("unrecognized address type %#x", atyp))
	}
	if buf.length() < required {
		return commandResponseResult{needMore: true, watermark: required}, nil
	}

	frame := buf.get(required)
	var host string
	var port int
	switch atyp {
	case AddrTypeIPv4:
		host = ipv4String(frame[4:8])
		port = int(binary.BigEndian.Uint16(frame[8:10]))
	case AddrTypeIPv6:
		host = ipv6String(frame[4:20])
		port = int(binary.BigEndian.Uint16(frame[20:22]))
	case AddrTypeDomainName:
		l := int(frame[4])
		host = string(frame[5 : 5+l])
		port = int(binary.BigEndian.Uint16(frame[5+l : 7+l]))
	}
	host = substituteWildcard(proxy, host)
	return commandResponseResult{remoteHost: RemoteHost{Host: host, Port: port}}, nil
}

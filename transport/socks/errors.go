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

import "fmt"

// Kind distinguishes the terminal failure categories a Client can surface.
// Exactly one Error, carrying one Kind, terminates a Client instance; errors
// are never retried internally.
type Kind int

const (
	// KindTimeout: the handshake did not reach Established/BoundWaitingForConnection
	// within ClientOptions.Timeout.
	KindTimeout Kind = iota
	// KindSocketClosed: the transport closed before Established.
	KindSocketClosed
	// KindTransport: the underlying stream reported an error.
	KindTransport
	// KindProtocolVersion: a response opened with an unexpected version byte.
	KindProtocolVersion
	// KindNoAcceptedAuthMethod: SOCKS5 method selection returned 0xFF.
	KindNoAcceptedAuthMethod
	// KindUnknownAuthMethod: SOCKS5 method selection returned an unsupported method.
	KindUnknownAuthMethod
	// KindAuthenticationFailed: SOCKS5 user/pass sub-negotiation status != 0.
	KindAuthenticationFailed
	// KindConnectionRejected: SOCKS4/SOCKS5 REP != success.
	KindConnectionRejected
	// KindBoundConnectionRejected: same, for BIND's second response.
	KindBoundConnectionRejected
	// KindInternal: the state machine reached an unreachable dispatch branch.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "proxy timeout"
	case KindSocketClosed:
		return "socket closed"
	case KindTransport:
		return "transport error"
	case KindProtocolVersion:
		return "protocol version mismatch"
	case KindNoAcceptedAuthMethod:
		return "no accepted authentication method"
	case KindUnknownAuthMethod:
		return "unknown authentication method"
	case KindAuthenticationFailed:
		return "authentication failed"
	case KindConnectionRejected:
		return "proxy rejected connection"
	case KindBoundConnectionRejected:
		return "proxy rejected incoming bound connection"
	case KindInternal:
		return "internal error"
	default:
		return "unknown error"
	}
}

// Error is the error type every Client surfaces on failure. It is never
// wrapped further by the engine, so callers can always recover Kind and, for
// rejection kinds, the raw numeric reply code via errors.As.
type Error struct {
	Kind Kind
	// Code is the raw REP/status byte for KindConnectionRejected and
	// KindBoundConnectionRejected, preserved even when it falls outside the
	// named reply-code constants. Zero otherwise.
	Code byte
	// Options is the configuration of the Client instance that failed.
	Options *ClientOptions
	// Cause is the underlying error, if any (e.g. a transport read error).
	Cause error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch e.Kind {
	case KindConnectionRejected, KindBoundConnectionRejected:
		msg = fmt.Sprintf("%s (code %#x)", msg, e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("socks: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("socks: %s", msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(opts *ClientOptions, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Options: opts, Cause: cause}
}

func newRejectError(opts *ClientOptions, kind Kind, code byte) *Error {
	return &Error{Kind: kind, Options: opts, Code: code}
}

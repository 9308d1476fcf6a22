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
)

type contextKey struct{}

// SOCKS5ClientTrace observes the lifecycle of a single Client handshake. All
// fields are optional; nil hooks are simply not called. Hooks run
// synchronously on the Client's own goroutine, so they must not block.
type SOCKS5ClientTrace struct {
	// RequestStarted fires once, right before the initial handshake bytes
	// are written.
	RequestStarted func(cmd byte, addr string)
	// MethodSelected fires after the proxy's SOCKS5 method-selection
	// response is parsed, before any sub-negotiation is attempted.
	MethodSelected func(method AuthMethod)
	// AuthResult fires after a SOCKS5 username/password sub-negotiation
	// completes successfully. It is not called when no auth is negotiated,
	// nor on failure (the handshake's returned error covers that case).
	AuthResult func(ok bool)
	// RequestDone fires exactly once, when the handshake reaches a terminal
	// outcome: proxyAddr is the proxy's host:port, and err is nil on success,
	// in which case bindAddr carries the BIND/ASSOCIATE remote address when
	// one was negotiated.
	RequestDone func(proxyAddr string, bindAddr string, err error)
}

var socksClientTraceKey = contextKey{}

// WithSOCKS5ClientTrace adds trace hooks to the context for a Client to pick
// up, mirroring net/http/httptrace's pattern.
func WithSOCKS5ClientTrace(ctx context.Context, trace *SOCKS5ClientTrace) context.Context {
	return context.WithValue(ctx, socksClientTraceKey, trace)
}

// GetSOCKS5ClientTrace retrieves trace hooks from the context, if any.
func GetSOCKS5ClientTrace(ctx context.Context) *SOCKS5ClientTrace {
	if trace, ok := ctx.Value(socksClientTraceKey).(*SOCKS5ClientTrace); ok {
		return trace
	}
	return nil
}

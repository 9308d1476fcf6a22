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

	"github.com/corewire/socks/transport"
)

// bindResult is the terminal outcome of the second BIND response.
type bindResult struct {
	conn       transport.StreamConn
	remoteHost *RemoteHost
	err        error
}

// BindWaiter represents an in-flight SOCKS BIND request. A BIND negotiates
// in two stages: the proxy first grants a listening port (Bound), then,
// once a peer connects to it, reports the peer's address and completes the
// tunnel (Established). Exactly one of Bound or Established's error paths
// terminates the BindWaiter; calling either after it has already delivered
// a result returns the same result again.
type BindWaiter struct {
	boundCh chan RemoteHost
	doneCh  chan bindResult

	bound     *RemoteHost
	boundErr  error
	boundDone bool

	result *bindResult
}

// Bind starts a BIND handshake and returns once the proxy has granted the
// listening port, or failed to. The returned BindWaiter is then used to wait
// for the eventual peer connection.
func (c *Client) Bind(ctx context.Context) (*BindWaiter, error) {
	if c.opts.Command != CmdBind {
		return nil, errors.New("socks: Client.Bind requires ClientOptions.Command == CmdBind")
	}

	w := &BindWaiter{
		boundCh: make(chan RemoteHost, 1),
		doneCh:  make(chan bindResult, 1),
	}

	go func() {
		conn, remoteHost, err := c.run(ctx, w.boundCh)
		w.doneCh <- bindResult{conn: conn, remoteHost: remoteHost, err: err}
	}()

	select {
	case rh := <-w.boundCh:
		w.bound = &rh
		w.boundDone = true
		return w, nil
	case res := <-w.doneCh:
		// The handshake failed before ever reaching BoundWaitingForConnection.
		w.result = &res
		w.boundDone = true
		w.boundErr = res.err
		return w, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Bound returns the address the proxy is listening on, waiting for the
// first BIND response if it hasn't arrived yet.
func (w *BindWaiter) Bound(ctx context.Context) (*RemoteHost, error) {
	if w.boundDone {
		return w.bound, w.boundErr
	}
	select {
	case rh := <-w.boundCh:
		w.bound = &rh
		w.boundDone = true
		return w.bound, nil
	case res := <-w.doneCh:
		w.result = &res
		w.boundDone = true
		w.boundErr = res.err
		return nil, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Established blocks until a peer connects to the bound port and the proxy
// relays the connection, returning the established tunnel and the peer's
// address.
func (w *BindWaiter) Established(ctx context.Context) (transport.StreamConn, *RemoteHost, error) {
	if w.result != nil {
		return w.result.conn, w.result.remoteHost, w.result.err
	}
	select {
	case res := <-w.doneCh:
		w.result = &res
		return res.conn, res.remoteHost, res.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

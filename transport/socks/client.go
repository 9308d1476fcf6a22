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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/corewire/socks/transport"
)

// DefaultTimeout is the handshake timeout applied when ClientOptions.Timeout
// is zero.
const DefaultTimeout = 30 * time.Second

// readChunkSize is how many bytes Client tries to read from the transport at
// a time. It has no bearing on correctness: the watermark/receiveBuffer
// machinery tolerates any fragmentation or coalescing of inbound bytes.
const readChunkSize = 4096

// ClientOptions configures a single SocksClient handshake.
type ClientOptions struct {
	// Proxy is the SOCKS proxy to negotiate with.
	Proxy *Proxy
	// Destination is the remote host to CONNECT/BIND/ASSOCIATE to.
	Destination RemoteHost
	// Command selects which of the three SOCKS commands to issue.
	Command Command
	// Timeout bounds the whole handshake; zero means DefaultTimeout.
	Timeout time.Duration
	// Endpoint dials the proxy when Conn is nil.
	Endpoint transport.StreamEndpoint
	// Conn, if non-nil, is an already-connected stream to the proxy; the
	// Client adopts it instead of dialing Endpoint.
	Conn transport.StreamConn
	// SetNoDelay requests TCP_NODELAY on the dialed connection, when the
	// underlying conn exposes it.
	SetNoDelay bool
	// Trace, if non-nil, observes handshake progress.
	Trace *SOCKS5ClientTrace
}

func (o *ClientOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Client drives a single SOCKS handshake to completion. It exclusively owns
// its transport.StreamConn until a terminal transition: on success,
// ownership passes to the caller; on error, the stream is closed here.
type Client struct {
	opts *ClientOptions

	conn  transport.StreamConn
	buf   receiveBuffer
	state clientState

	watermark int

	// combinedFinalSent tracks the teacher's merged-write optimization: when
	// only NoAuth is offered and the command is not BIND, the
	// method-selection and command requests are written together to save a round trip, so the final-handshake write
	// must be skipped once the method response confirms NoAuth.
	combinedFinalSent bool
}

// NewClient creates a Client for the given options. It does not dial or
// write anything until Connect or Bind is called.
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil || opts.Proxy == nil {
		return nil, errors.New("socks: ClientOptions.Proxy must be set")
	}
	if opts.Conn == nil && opts.Endpoint == nil {
		return nil, errors.New("socks: ClientOptions must set Conn or Endpoint")
	}
	return &Client{opts: opts, state: stateCreated}, nil
}

// Connect drives a CONNECT or ASSOCIATE handshake to completion and returns
// the transparent tunnel conn (residual buffered bytes already prepended to
// its read path) plus, for ASSOCIATE, the UDP relay's bound address.
//
// Calling Connect with ClientOptions.Command == CmdBind is a programmer
// error; use Bind instead.
func (c *Client) Connect(ctx context.Context) (transport.StreamConn, *RemoteHost, error) {
	if c.opts.Command == CmdBind {
		return nil, nil, errors.New("socks: use Client.Bind for CmdBind")
	}
	return c.run(ctx, nil)
}

// run is the single-owner state machine described in spec §4.9. boundCh, if
// non-nil, receives exactly one RemoteHost when a BIND's first response
// grants the listen request; run then keeps going until the second response
// completes (or fails) the handshake.
func (c *Client) run(ctx context.Context, boundCh chan<- RemoteHost) (transport.StreamConn, *RemoteHost, error) {
	if c.opts.Trace == nil {
		c.opts.Trace = GetSOCKS5ClientTrace(ctx)
	}

	conn, err := c.connectTransport(ctx)
	if err != nil {
		c.setState(stateError)
		return nil, nil, err
	}
	c.conn = conn

	deadline := time.Now().Add(c.opts.timeout())
	_ = conn.SetDeadline(deadline)

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stopWatch:
		}
	}()

	if trace := c.opts.Trace; trace != nil && trace.RequestStarted != nil {
		trace.RequestStarted(byte(c.opts.Command), c.opts.Destination.String())
	}

	if err := c.writeInitialHandshake(); err != nil {
		return c.fail(newError(c.opts, KindTransport, err))
	}

	for {
		established, remoteHost, err := c.pumpUntilWatermark(boundCh)
		if err != nil {
			return c.fail(err)
		}
		if established {
			return c.finish(remoteHost)
		}

		tmp := make([]byte, readChunkSize)
		n, readErr := conn.Read(tmp)
		if n > 0 {
			c.buf.append(tmp[:n])
		}
		if readErr != nil {
			return c.fail(classifyReadError(c.opts, readErr))
		}
	}
}

// pumpUntilWatermark dispatches parses while the buffer satisfies the
// current watermark, looping because a single inbound chunk can contain more
// than one response. It returns established=true once the state machine has
// reached Established.
func (c *Client) pumpUntilWatermark(boundCh chan<- RemoteHost) (established bool, remoteHost *RemoteHost, err *Error) {
	for c.buf.length() >= c.watermark {
		progressed, rh, e := c.dispatch(boundCh)
		if e != nil {
			return false, nil, e
		}
		if c.state == stateEstablished {
			return true, rh, nil
		}
		if !progressed {
			// Parser needs more bytes than currently buffered; watermark was
			// raised by dispatch. Stop looping and read more.
			return false, nil, nil
		}
	}
	return false, nil, nil
}

// dispatch runs one parse step for the current state. progressed is false
// only when a parser determined it needs more bytes than are buffered (and
// consumed nothing).
func (c *Client) dispatch(boundCh chan<- RemoteHost) (progressed bool, remoteHost *RemoteHost, err *Error) {
	proxy := c.opts.Proxy
	switch c.state {
	case stateSentInitialHandshake:
		if proxy.Version == Version4 {
			return c.dispatchSOCKS4Response(boundCh, stageFirst)
		}
		return c.dispatchSOCKS5MethodSelection()

	case stateSentAuthentication:
		return c.dispatchSOCKS5UserPassAuth()

	case stateSentFinalHandshake:
		return c.dispatchSOCKS5CommandResponse(boundCh, stageFirst)

	case stateBoundWaitingForConnection:
		if proxy.Version == Version4 {
			return c.dispatchSOCKS4Response(boundCh, stageSecond)
		}
		return c.dispatchSOCKS5CommandResponse(boundCh, stageSecond)

	case stateEstablished:
		return true, nil, nil

	default:
		return false, nil, newError(c.opts, KindInternal, fmt.Errorf("unexpected state %s", c.state))
	}
}

type bindStage int

const (
	stageFirst bindStage = iota
	stageSecond
)

func (c *Client) dispatchSOCKS4Response(boundCh chan<- RemoteHost, stage bindStage) (bool, *RemoteHost, *Error) {
	granted, code, remoteHost := parseSOCKS4Response(c.opts.Proxy, &c.buf)
	if !granted {
		if stage == stageSecond {
			return false, nil, newRejectError(c.opts, KindBoundConnectionRejected, code)
		}
		return false, nil, newRejectError(c.opts, KindConnectionRejected, code)
	}
	switch c.opts.Command {
	case CmdConnect:
		c.setState(stateEstablished)
		return true, nil, nil
	case CmdBind:
		if stage == stageFirst {
			c.setState(stateBoundWaitingForConnection)
			_ = c.conn.SetDeadline(time.Time{})
			c.watermark = watermarkSOCKS4Response
			if boundCh != nil {
				boundCh <- remoteHost
			}
			return true, nil, nil
		}
		c.setState(stateEstablished)
		return true, &remoteHost, nil
	default:
		return false, nil, newError(c.opts, KindInternal, fmt.Errorf("SOCKS4 does not support command %s", c.opts.Command))
	}
}

func (c *Client) dispatchSOCKS5MethodSelection() (bool, *RemoteHost, *Error) {
	method, parseErr := parseSOCKS5MethodSelection(c.opts, &c.buf)
	if parseErr != nil {
		return false, nil, parseErr
	}
	if trace := c.opts.Trace; trace != nil && trace.MethodSelected != nil {
		trace.MethodSelected(method)
	}
	switch method {
	case AuthUserPass:
		req := frameSOCKS5UserPassAuth(c.opts.Proxy.Username, c.opts.Proxy.Password)
		if err := c.write(req); err != nil {
			return false, nil, newError(c.opts, KindTransport, err)
		}
		c.setState(stateSentAuthentication)
		c.watermark = watermarkSOCKS5UserPassAuth
		return true, nil, nil
	default: // AuthNoAuth
		if !c.combinedFinalSent {
			req, err := frameSOCKS5Request(c.opts.Command, c.opts.Destination)
			if err != nil {
				return false, nil, newError(c.opts, KindInternal, err)
			}
			if err := c.write(req); err != nil {
				return false, nil, newError(c.opts, KindTransport, err)
			}
		}
		c.setState(stateSentFinalHandshake)
		c.watermark = watermarkSOCKS5CommandResponseMin
		return true, nil, nil
	}
}

func (c *Client) dispatchSOCKS5UserPassAuth() (bool, *RemoteHost, *Error) {
	if parseErr := parseSOCKS5UserPassAuth(c.opts, &c.buf); parseErr != nil {
		return false, nil, parseErr
	}
	if trace := c.opts.Trace; trace != nil && trace.AuthResult != nil {
		trace.AuthResult(true)
	}
	c.setState(stateReceivedAuthenticationResponse)
	req, err := frameSOCKS5Request(c.opts.Command, c.opts.Destination)
	if err != nil {
		return false, nil, newError(c.opts, KindInternal, err)
	}
	if err := c.write(req); err != nil {
		return false, nil, newError(c.opts, KindTransport, err)
	}
	c.setState(stateSentFinalHandshake)
	c.watermark = watermarkSOCKS5CommandResponseMin
	return true, nil, nil
}

func (c *Client) dispatchSOCKS5CommandResponse(boundCh chan<- RemoteHost, stage bindStage) (bool, *RemoteHost, *Error) {
	result, parseErr := parseSOCKS5CommandResponse(c.opts.Proxy, c.opts, &c.buf)
	if parseErr != nil {
		if stage == stageSecond && parseErr.Kind == KindConnectionRejected {
			parseErr.Kind = KindBoundConnectionRejected
		}
		return false, nil, parseErr
	}
	if result.needMore {
		c.watermark = result.watermark
		return false, nil, nil
	}
	switch c.opts.Command {
	case CmdConnect:
		c.setState(stateEstablished)
		return true, nil, nil
	case CmdAssociate:
		c.setState(stateEstablished)
		return true, &result.remoteHost, nil
	case CmdBind:
		if stage == stageFirst {
			c.setState(stateBoundWaitingForConnection)
			_ = c.conn.SetDeadline(time.Time{})
			c.watermark = watermarkSOCKS5CommandResponseMin
			if boundCh != nil {
				boundCh <- result.remoteHost
			}
			return true, nil, nil
		}
		c.setState(stateEstablished)
		return true, &result.remoteHost, nil
	default:
		return false, nil, newError(c.opts, KindInternal, fmt.Errorf("unsupported command %s", c.opts.Command))
	}
}

// connectTransport adopts ClientOptions.Conn or dials ClientOptions.Endpoint.
func (c *Client) connectTransport(ctx context.Context) (transport.StreamConn, error) {
	c.setState(stateConnecting)
	var conn transport.StreamConn
	if c.opts.Conn != nil {
		conn = c.opts.Conn
	} else {
		dialed, err := c.opts.Endpoint.Connect(ctx)
		if err != nil {
			return nil, newError(c.opts, KindTransport, fmt.Errorf("dialing proxy: %w", err))
		}
		conn = dialed
	}
	if c.opts.SetNoDelay {
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
	}
	c.setState(stateConnected)
	return conn, nil
}

// writeInitialHandshake frames and sends the SOCKS4/SOCKS4a request or the
// SOCKS5 method-selection request (optionally combined with the final
// command request, per the no-auth fast path).
func (c *Client) writeInitialHandshake() error {
	proxy := c.opts.Proxy
	if proxy.Version == Version4 {
		req := frameSOCKS4Request(c.opts.Command, c.opts.Destination, proxy.UserID)
		if err := c.write(req); err != nil {
			return err
		}
		c.setState(stateSentInitialHandshake)
		c.watermark = watermarkSOCKS4Response
		return nil
	}

	req := frameSOCKS5MethodSelection(proxy.Username, proxy.Password)
	if proxy.Username == "" && proxy.Password == "" && c.opts.Command != CmdBind {
		cmdReq, err := frameSOCKS5Request(c.opts.Command, c.opts.Destination)
		if err != nil {
			return err
		}
		req = append(req, cmdReq...)
		c.combinedFinalSent = true
	}
	if err := c.write(req); err != nil {
		return err
	}
	c.setState(stateSentInitialHandshake)
	c.watermark = watermarkSOCKS5MethodSelection
	return nil
}

func (c *Client) write(b []byte) error {
	_, err := c.conn.Write(b)
	return err
}

// fail transitions to the absorbing Error state, destroys the stream, and
// returns the error to the caller. It is the only path by which run() ends
// unsuccessfully.
func (c *Client) fail(err *Error) (transport.StreamConn, *RemoteHost, error) {
	c.setState(stateError)
	if c.conn != nil {
		c.conn.Close()
	}
	if trace := c.opts.Trace; trace != nil && trace.RequestDone != nil {
		trace.RequestDone(c.opts.Proxy.Address(), "", err)
	}
	return nil, nil, err
}

// finish completes a successful handshake: it clears the handshake
// deadline, prepends any residual buffered bytes onto the stream's read
// path, and hands the stream to the caller.
func (c *Client) finish(remoteHost *RemoteHost) (transport.StreamConn, *RemoteHost, error) {
	_ = c.conn.SetDeadline(time.Time{})
	conn := c.conn
	if residual := c.buf.drain(); len(residual) > 0 {
		conn = transport.WrapConn(conn, io.MultiReader(bytes.NewReader(residual), conn), conn)
	}
	if trace := c.opts.Trace; trace != nil && trace.RequestDone != nil {
		bindAddr := ""
		if remoteHost != nil {
			bindAddr = remoteHost.String()
		}
		trace.RequestDone(c.opts.Proxy.Address(), bindAddr, nil)
	}
	return conn, remoteHost, nil
}

func classifyReadError(opts *ClientOptions, err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(opts, KindTimeout, err)
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return newError(opts, KindSocketClosed, err)
	}
	return newError(opts, KindTransport, err)
}

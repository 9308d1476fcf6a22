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

// clientState is the Client's protocol state, ordered by typical progression.
// Error is absorbing: once a Client enters it, state never changes again.
type clientState int

const (
	stateCreated clientState = iota
	stateConnecting
	stateConnected
	stateSentInitialHandshake
	stateSentAuthentication
	stateReceivedAuthenticationResponse
	stateSentFinalHandshake
	stateReceivedFinalResponse
	stateBoundWaitingForConnection
	stateEstablished
	stateError
)

func (s clientState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateSentInitialHandshake:
		return "sent-initial-handshake"
	case stateSentAuthentication:
		return "sent-authentication"
	case stateReceivedAuthenticationResponse:
		return "received-authentication-response"
	case stateSentFinalHandshake:
		return "sent-final-handshake"
	case stateReceivedFinalResponse:
		return "received-final-response"
	case stateBoundWaitingForConnection:
		return "bound-waiting-for-connection"
	case stateEstablished:
		return "established"
	case stateError:
		return "error"
	default:
		return "unknown"
	}
}

// setState transitions to next, unless the Client has already entered the
// absorbing Error state. It reports whether the transition was applied.
func (c *Client) setState(next clientState) bool {
	if c.state == stateError {
		return false
	}
	c.state = next
	return true
}

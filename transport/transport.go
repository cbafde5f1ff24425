// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport provides the message-oriented connection used to exchange
// JSON-RPC frames with the server
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/blinklabs-io/gogmios/connection"
)

var ErrTransportClosed = errors.New("transport is closed")

// Frame is a single unit received from the transport. A Frame with Closed set
// indicates that the peer closed the connection and no more data will arrive
type Frame struct {
	Data   []byte
	Closed bool
}

// Transport is a bidirectional message-oriented connection
type Transport interface {
	// Send writes a single complete message
	Send(ctx context.Context, data []byte) error
	// Receive blocks until the next message arrives or the connection closes. It must only be
	// called from a single goroutine at a time
	Receive() (Frame, error)
	// Close tears down the connection. It is idempotent and may be called from any goroutine
	Close() error
	ConnectionId() connection.ConnectionId
}

// DialFunc establishes a new Transport for the given config
type DialFunc func(context.Context, connection.Config) (Transport, error)

// ConnectError is returned when a connection could not be established
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %s", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

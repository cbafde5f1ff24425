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

package protocol

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/gogmios/jsonrpc"
)

var (
	ErrClosed         = errors.New("interaction context is closed")
	ErrShutdown       = errors.New("interaction context is shutting down")
	ErrConnectionLost = errors.New("connection lost")
	ErrRemoteClosed   = errors.New("connection closed by server")
	ErrTimeout        = errors.New("request timed out")
	ErrCancelled      = errors.New("request cancelled")
)

var (
	ErrUnexpectedResponse     = errors.New("unexpected response")
	ErrRequiresLongRunning    = errors.New("operation requires a long-running interaction context")
	ErrInvalidInteractionType = errors.New("invalid interaction type")
)

// ErrDuplicateId indicates a broken id generator. It should never be seen in practice
var ErrDuplicateId = errors.New("duplicate request id")

// RemoteError wraps a fault returned by the server for a specific call
type RemoteError struct {
	Method string
	Fault  *jsonrpc.Fault
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Fault.Error())
}

func (e *RemoteError) Unwrap() error {
	return e.Fault
}

// AsFault returns the server fault carried by err, if any
func AsFault(err error) (*jsonrpc.Fault, bool) {
	var fault *jsonrpc.Fault
	if errors.As(err, &fault) {
		return fault, true
	}
	return nil, false
}

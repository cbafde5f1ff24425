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

package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerErrorMin = -32099
	CodeServerErrorMax = -32000
)

var (
	ErrEmptyMethod         = errors.New("empty method name")
	ErrNotAnObject         = errors.New("message is not a JSON object")
	ErrMissingId           = errors.New("missing id")
	ErrInvalidId           = errors.New("invalid id")
	ErrResultAndError      = errors.New("message has both result and error")
	ErrUnrecognizedMessage = errors.New("unrecognized message shape")
	ErrUnsupportedVersion  = errors.New("unsupported jsonrpc version")
)

// Fault is the structured error object returned by the server
type Fault struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (f *Fault) Error() string {
	if len(f.Data) > 0 {
		return fmt.Sprintf("fault %d: %s: %s", f.Code, f.Message, string(f.Data))
	}
	return fmt.Sprintf("fault %d: %s", f.Code, f.Message)
}

// DecodeData decodes the optional fault data into dest
func (f *Fault) DecodeData(dest any) error {
	if len(f.Data) == 0 {
		return errors.New("fault has no data")
	}
	return json.Unmarshal(f.Data, dest)
}

// IsServerError returns true if the code is in the implementation-defined server error range
func (f *Fault) IsServerError() bool {
	return f.Code >= CodeServerErrorMin && f.Code <= CodeServerErrorMax
}

// EncodeError is returned when an outgoing payload cannot be serialized
type EncodeError struct {
	Method string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode request %q: %s", e.Method, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when an incoming frame cannot be parsed
type DecodeError struct {
	Data []byte
	Err  error
}

const decodeErrorDataLimit = 128

func newDecodeError(data []byte, err error) *DecodeError {
	if len(data) > decodeErrorDataLimit {
		data = data[:decodeErrorDataLimit]
	}
	return &DecodeError{
		Data: append([]byte(nil), data...),
		Err:  err,
	}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode message: %s: %q", e.Err, e.Data)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

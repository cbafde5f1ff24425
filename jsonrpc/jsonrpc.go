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

// Package jsonrpc implements the JSON-RPC 2.0 envelope codec used by Ogmios
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const Version = "2.0"

// Message is the result of decoding an incoming frame. It is either a *Response or a *Notification
type Message interface {
	isMessage()
}

// Response is the reply to a request, matched by Id
type Response struct {
	Id     uint64
	Result json.RawMessage
	Error  *Fault
}

func (*Response) isMessage() {}

// Notification is a server message that carries no correlation id
type Notification struct {
	Method string
	Params json.RawMessage
}

func (*Notification) isMessage() {}

// Request is a decoded outgoing call. It is mostly useful on the server side and in tests
type Request struct {
	Method string
	Params json.RawMessage
	Id     uint64
}

type requestEnvelope struct {
	JsonRpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	Id      uint64 `json:"id"`
}

// wireEnvelope covers every shape we might receive
type wireEnvelope struct {
	JsonRpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *Fault          `json:"error"`
	Id      json.RawMessage `json:"id"`
}

// Encode produces a single complete request frame
func Encode(method string, params any, id uint64) ([]byte, error) {
	if method == "" {
		return nil, &EncodeError{Method: method, Err: ErrEmptyMethod}
	}
	data, err := json.Marshal(requestEnvelope{
		JsonRpc: Version,
		Method:  method,
		Params:  params,
		Id:      id,
	})
	if err != nil {
		return nil, &EncodeError{Method: method, Err: err}
	}
	return data, nil
}

// Decode parses an incoming frame into a Response or Notification
func Decode(data []byte) (Message, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	hasResult := len(env.Result) > 0
	if hasResult || env.Error != nil {
		if hasResult && env.Error != nil {
			return nil, newDecodeError(data, ErrResultAndError)
		}
		var id uint64
		// Faults for requests the server could not parse carry a null id. Those
		// are reported with id 0, which is never issued
		if env.Error == nil || !isNull(env.Id) {
			id, err = parseId(env.Id)
			if err != nil {
				return nil, newDecodeError(data, err)
			}
		}
		resp := &Response{
			Id:    id,
			Error: env.Error,
		}
		if hasResult {
			resp.Result = env.Result
		}
		return resp, nil
	}
	if env.Method != "" && isNull(env.Id) {
		return &Notification{
			Method: env.Method,
			Params: env.Params,
		}, nil
	}
	return nil, newDecodeError(data, ErrUnrecognizedMessage)
}

// DecodeRequest parses a request frame as produced by Encode
func DecodeRequest(data []byte) (*Request, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Method == "" {
		return nil, newDecodeError(data, ErrEmptyMethod)
	}
	id, err := parseId(env.Id)
	if err != nil {
		return nil, newDecodeError(data, err)
	}
	return &Request{
		Method: env.Method,
		Params: env.Params,
		Id:     id,
	}, nil
}

// EncodeResult produces a successful response frame
func EncodeResult(id uint64, method string, result any) ([]byte, error) {
	type resultEnvelope struct {
		JsonRpc string `json:"jsonrpc"`
		Method  string `json:"method,omitempty"`
		Result  any    `json:"result"`
		Id      uint64 `json:"id"`
	}
	data, err := json.Marshal(resultEnvelope{
		JsonRpc: Version,
		Method:  method,
		Result:  result,
		Id:      id,
	})
	if err != nil {
		return nil, &EncodeError{Method: method, Err: err}
	}
	return data, nil
}

// EncodeFault produces an error response frame
func EncodeFault(id uint64, method string, fault *Fault) ([]byte, error) {
	type faultEnvelope struct {
		JsonRpc string `json:"jsonrpc"`
		Method  string `json:"method,omitempty"`
		Error   *Fault `json:"error"`
		Id      uint64 `json:"id"`
	}
	data, err := json.Marshal(faultEnvelope{
		JsonRpc: Version,
		Method:  method,
		Error:   fault,
		Id:      id,
	})
	if err != nil {
		return nil, &EncodeError{Method: method, Err: err}
	}
	return data, nil
}

// EncodeNotification produces a frame without a correlation id
func EncodeNotification(method string, params any) ([]byte, error) {
	type notificationEnvelope struct {
		JsonRpc string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}
	data, err := json.Marshal(notificationEnvelope{
		JsonRpc: Version,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, &EncodeError{Method: method, Err: err}
	}
	return data, nil
}

func decodeEnvelope(data []byte) (*wireEnvelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, newDecodeError(data, ErrNotAnObject)
	}
	var env wireEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, newDecodeError(data, err)
	}
	if env.JsonRpc != "" && env.JsonRpc != Version {
		return nil, newDecodeError(
			data,
			fmt.Errorf("%w: %q", ErrUnsupportedVersion, env.JsonRpc),
		)
	}
	return &env, nil
}

func parseId(raw json.RawMessage) (uint64, error) {
	if isNull(raw) {
		return 0, ErrMissingId
	}
	// Some servers echo the id back as a string
	text := string(raw)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	id, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidId, string(raw))
	}
	return id, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

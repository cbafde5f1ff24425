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

package ogmiosmock

import (
	"encoding/json"
	"time"

	"github.com/blinklabs-io/gogmios/jsonrpc"
)

// ConversationEntry is a single scripted step of a mock conversation
type ConversationEntry interface {
	isConversationEntry()
}

// ConversationEntryInput waits for the next request from the client and checks its method
type ConversationEntryInput struct {
	Method string
	// ParamsFunc optionally validates the request params
	ParamsFunc func(json.RawMessage) error
}

// ConversationEntryOutput sends a response to a previously received request
type ConversationEntryOutput struct {
	// Request is the 1-based index of the received request being answered on this connection.
	// Zero means the most recently received request
	Request int
	// Exactly one of these is used, checked in this order
	Raw        []byte
	Fault      *jsonrpc.Fault
	ResultFunc func(*jsonrpc.Request) (any, error)
	Result     any
	// Delay is waited before sending
	Delay time.Duration
}

// ConversationEntryClose closes the connection from the server side
type ConversationEntryClose struct{}

// ConversationEntrySleep pauses the conversation without reading or writing
type ConversationEntrySleep struct {
	Duration time.Duration
}

func (ConversationEntryInput) isConversationEntry()  {}
func (ConversationEntryOutput) isConversationEntry() {}
func (ConversationEntryClose) isConversationEntry()  {}
func (ConversationEntrySleep) isConversationEntry()  {}

// Frequently used tip and block payloads

// MockTip is the server tip reported by the pre-defined entries
var MockTip = map[string]any{
	"slot":   4492800,
	"id":     "f8084c61b6a238acec985b59310b6ecec49c0ab8352249afd7268da5cff2a457",
	"height": 2000000,
}

// ConversationEntryFindIntersectionOrigin is a pre-defined pair of conversation entries for a
// findIntersection request answered with origin
var ConversationEntryFindIntersectionOrigin = []ConversationEntry{
	ConversationEntryInput{Method: "findIntersection"},
	ConversationEntryOutput{
		Result: map[string]any{
			"intersection": "origin",
			"tip":          MockTip,
		},
	},
}

// ConversationEntryFindIntersectionNotFound is a pre-defined pair of conversation entries for a
// findIntersection request answered with the "no intersection found" fault
var ConversationEntryFindIntersectionNotFound = []ConversationEntry{
	ConversationEntryInput{Method: "findIntersection"},
	ConversationEntryOutput{
		Fault: &jsonrpc.Fault{
			Code:    1000,
			Message: "No intersection found.",
			Data:    mustMarshal(map[string]any{"tip": MockTip}),
		},
	},
}

// RollForward returns a nextBlock result moving forward to a block at the given slot/height
func RollForward(slot uint64, height uint64, id string, ancestor string) map[string]any {
	return map[string]any{
		"direction": "forward",
		"block": map[string]any{
			"type":         "praos",
			"era":          "babbage",
			"id":           id,
			"ancestor":     ancestor,
			"slot":         slot,
			"height":       height,
			"transactions": []any{},
		},
		"tip": MockTip,
	}
}

// RollBackward returns a nextBlock result rolling back to the given point. An empty id means origin
func RollBackward(slot uint64, id string) map[string]any {
	var point any = "origin"
	if id != "" {
		point = map[string]any{"slot": slot, "id": id}
	}
	return map[string]any{
		"direction": "backward",
		"point":     point,
		"tip":       MockTip,
	}
}

// Concat joins conversation entry slices
func Concat(entries ...[]ConversationEntry) []ConversationEntry {
	var ret []ConversationEntry
	for _, e := range entries {
		ret = append(ret, e...)
	}
	return ret
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

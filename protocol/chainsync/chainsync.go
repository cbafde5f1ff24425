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

// Package chainsync implements the Ogmios chain synchronization client
package chainsync

import (
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/protocol/common"
)

const ProtocolName = "chain-sync"

// Method names
const (
	MethodFindIntersection = "findIntersection"
	MethodNextBlock        = "nextBlock"
)

// Directions of a nextBlock result
const (
	DirectionForward  = "forward"
	DirectionBackward = "backward"
)

const (
	DefaultPipelineLimit    = 1
	DefaultIntersectTimeout = 5 * time.Second
	// At the tip the server holds nextBlock until a new block arrives, so there is no limit by
	// default
	DefaultBlockTimeout time.Duration = 0
)

// State is the lifecycle state of a chain sync client
type State uint8

const (
	StateIdle State = iota
	StateAwaitingIntersection
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingIntersection:
		return "AwaitingIntersection"
	case StateStreaming:
		return "Streaming"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

type Config struct {
	RollBackwardFunc RollBackwardFunc
	RollForwardFunc  RollForwardFunc
	IntersectTimeout time.Duration
	BlockTimeout     time.Duration
	PipelineLimit    int
}

// CallbackContext provides context to the callback functions
type CallbackContext struct {
	ConnectionId connection.ConnectionId
	Client       *Client
}

// Callback function types
type (
	RollBackwardFunc func(CallbackContext, common.Point, common.Tip) error
	RollForwardFunc  func(CallbackContext, common.Block, common.Tip) error
)

// ChainSyncOptionFunc represents a function used to modify the ChainSync protocol config
type ChainSyncOptionFunc func(*Config)

// NewConfig returns a new ChainSync config object with the provided options
func NewConfig(options ...ChainSyncOptionFunc) Config {
	c := Config{
		PipelineLimit:    DefaultPipelineLimit,
		IntersectTimeout: DefaultIntersectTimeout,
		BlockTimeout:     DefaultBlockTimeout,
	}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithRollBackwardFunc specifies the RollBackward callback function
func WithRollBackwardFunc(
	rollBackwardFunc RollBackwardFunc,
) ChainSyncOptionFunc {
	return func(c *Config) {
		c.RollBackwardFunc = rollBackwardFunc
	}
}

// WithRollForwardFunc specifies the RollForward callback function
func WithRollForwardFunc(rollForwardFunc RollForwardFunc) ChainSyncOptionFunc {
	return func(c *Config) {
		c.RollForwardFunc = rollForwardFunc
	}
}

// WithIntersectTimeout specifies the timeout for findIntersection requests
func WithIntersectTimeout(timeout time.Duration) ChainSyncOptionFunc {
	return func(c *Config) {
		c.IntersectTimeout = timeout
	}
}

// WithBlockTimeout specifies how long to wait for each nextBlock response. Zero waits until the
// sync is stopped
func WithBlockTimeout(timeout time.Duration) ChainSyncOptionFunc {
	return func(c *Config) {
		c.BlockTimeout = timeout
	}
}

// WithPipelineLimit specifies the maximum number of nextBlock requests in flight
func WithPipelineLimit(limit int) ChainSyncOptionFunc {
	return func(c *Config) {
		c.PipelineLimit = limit
	}
}

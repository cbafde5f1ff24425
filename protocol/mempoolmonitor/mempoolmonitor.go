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

// Package mempoolmonitor implements the Ogmios mempool monitoring methods
//
// All methods act on a mempool snapshot acquired on the server side, so the client needs a
// long-running interaction context. Queries made without a snapshot acquire one first.
package mempoolmonitor

import (
	"time"
)

const (
	ProtocolName = "mempool-monitor"
)

const (
	MethodAcquireMempool  = "acquireMempool"
	MethodHasTransaction  = "hasTransaction"
	MethodNextTransaction = "nextTransaction"
	MethodSizeOfMempool   = "sizeOfMempool"
	MethodReleaseMempool  = "releaseMempool"
)

// Default timeouts
const (
	DefaultAcquireTimeout = 5 * time.Second
	DefaultQueryTimeout   = 30 * time.Second
)

// Config is used to configure the MempoolMonitor client
type Config struct {
	AcquireTimeout time.Duration
	QueryTimeout   time.Duration
}

// MempoolMonitorOptionFunc represents a function used to modify the MempoolMonitor config
type MempoolMonitorOptionFunc func(*Config)

// NewConfig returns a new MempoolMonitor config object with the provided options
func NewConfig(options ...MempoolMonitorOptionFunc) Config {
	c := Config{
		AcquireTimeout: DefaultAcquireTimeout,
		QueryTimeout:   DefaultQueryTimeout,
	}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithAcquireTimeout specifies the timeout for acquire operations
func WithAcquireTimeout(timeout time.Duration) MempoolMonitorOptionFunc {
	return func(c *Config) {
		c.AcquireTimeout = timeout
	}
}

// WithQueryTimeout specifies the timeout for query operations
func WithQueryTimeout(timeout time.Duration) MempoolMonitorOptionFunc {
	return func(c *Config) {
		c.QueryTimeout = timeout
	}
}

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

// Package txsubmission implements the Ogmios transaction submission and evaluation methods
package txsubmission

import (
	"time"
)

const (
	ProtocolName = "tx-submission"
)

const (
	MethodSubmitTransaction   = "submitTransaction"
	MethodEvaluateTransaction = "evaluateTransaction"
)

// Default timeouts
const (
	DefaultSubmitTimeout   = 30 * time.Second
	DefaultEvaluateTimeout = 60 * time.Second
)

// Config is used to configure the TxSubmission client
type Config struct {
	SubmitTimeout   time.Duration
	EvaluateTimeout time.Duration
	// SkipIdCheck disables the comparison of the returned transaction ID with the locally
	// computed one
	SkipIdCheck bool
}

// TxSubmissionOptionFunc represents a function used to modify the TxSubmission config
type TxSubmissionOptionFunc func(*Config)

// NewConfig returns a new TxSubmission config object with the provided options
func NewConfig(options ...TxSubmissionOptionFunc) Config {
	c := Config{
		SubmitTimeout:   DefaultSubmitTimeout,
		EvaluateTimeout: DefaultEvaluateTimeout,
	}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithSubmitTimeout specifies the timeout for a submitTransaction call
func WithSubmitTimeout(timeout time.Duration) TxSubmissionOptionFunc {
	return func(c *Config) {
		c.SubmitTimeout = timeout
	}
}

// WithEvaluateTimeout specifies the timeout for an evaluateTransaction call
func WithEvaluateTimeout(timeout time.Duration) TxSubmissionOptionFunc {
	return func(c *Config) {
		c.EvaluateTimeout = timeout
	}
}

// WithSkipIdCheck disables the transaction ID comparison after submission
func WithSkipIdCheck(skip bool) TxSubmissionOptionFunc {
	return func(c *Config) {
		c.SkipIdCheck = skip
	}
}

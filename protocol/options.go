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
	"encoding/json"
	"log/slog"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/transport"
)

// InteractionType determines how an InteractionContext uses its connection
type InteractionType uint8

const (
	// InteractionTypeOneShot opens a connection per call and closes it after the response arrives
	InteractionTypeOneShot InteractionType = iota + 1
	// InteractionTypeLongRunning keeps one connection open with a background receive loop
	InteractionTypeLongRunning
)

func (t InteractionType) String() string {
	switch t {
	case InteractionTypeOneShot:
		return "OneShot"
	case InteractionTypeLongRunning:
		return "LongRunning"
	default:
		return "Unknown"
	}
}

// NotificationFunc receives server messages that carry no correlation id
type NotificationFunc func(method string, params json.RawMessage)

// ErrorFunc receives the error that terminated a long-running context. It is not called for an
// explicit Shutdown
type ErrorFunc func(error)

// CloseFunc is called once when the context reaches the closed state
type CloseFunc func()

// Config is used to configure an InteractionContext
type Config struct {
	Connection       connection.Config
	Type             InteractionType
	Logger           *slog.Logger
	RequestTimeout   time.Duration
	IdleTimeout      time.Duration
	PingInterval     time.Duration
	DialFunc         transport.DialFunc
	NotificationFunc NotificationFunc
	ErrorFunc        ErrorFunc
	CloseFunc        CloseFunc
	StopChan         <-chan struct{}
}

// InteractionOptionFunc represents a function used to modify the interaction context config
type InteractionOptionFunc func(*Config)

// NewConfig returns a new interaction context config object with the provided options
func NewConfig(options ...InteractionOptionFunc) Config {
	c := Config{
		Connection: connection.NewConfig(),
		Type:       InteractionTypeLongRunning,
	}
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithConnectionConfig specifies the server to connect to
func WithConnectionConfig(cfg connection.Config) InteractionOptionFunc {
	return func(c *Config) {
		c.Connection = cfg
	}
}

// WithInteractionType specifies the interaction type. The default is LongRunning
func WithInteractionType(interactionType InteractionType) InteractionOptionFunc {
	return func(c *Config) {
		c.Type = interactionType
	}
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) InteractionOptionFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRequestTimeout specifies the default timeout for calls whose context carries no deadline.
// A zero value means calls wait until their context is done
func WithRequestTimeout(timeout time.Duration) InteractionOptionFunc {
	return func(c *Config) {
		c.RequestTimeout = timeout
	}
}

// WithIdleTimeout specifies how long the connection may go without receiving anything before it
// is considered lost. This is disabled by default
func WithIdleTimeout(timeout time.Duration) InteractionOptionFunc {
	return func(c *Config) {
		c.IdleTimeout = timeout
	}
}

// WithPingInterval specifies how often to send WebSocket pings. This is disabled by default
func WithPingInterval(interval time.Duration) InteractionOptionFunc {
	return func(c *Config) {
		c.PingInterval = interval
	}
}

// WithDialFunc specifies a custom function for establishing the transport
func WithDialFunc(dialFunc transport.DialFunc) InteractionOptionFunc {
	return func(c *Config) {
		c.DialFunc = dialFunc
	}
}

// WithNotificationFunc specifies the consumer for unsolicited server messages
func WithNotificationFunc(notificationFunc NotificationFunc) InteractionOptionFunc {
	return func(c *Config) {
		c.NotificationFunc = notificationFunc
	}
}

// WithErrorFunc specifies a callback for the error that terminates a long-running context
func WithErrorFunc(errorFunc ErrorFunc) InteractionOptionFunc {
	return func(c *Config) {
		c.ErrorFunc = errorFunc
	}
}

// WithCloseFunc specifies a callback for when the context is closed
func WithCloseFunc(closeFunc CloseFunc) InteractionOptionFunc {
	return func(c *Config) {
		c.CloseFunc = closeFunc
	}
}

// WithStopChan specifies a channel that shuts down a one-shot context when closed. The context
// notices it at its next call, or aborts the call in progress
func WithStopChan(stopChan <-chan struct{}) InteractionOptionFunc {
	return func(c *Config) {
		c.StopChan = stopChan
	}
}

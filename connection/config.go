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

// Package connection holds the parameters used to reach an Ogmios server
package connection

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultHost       = "localhost"
	DefaultPort       = 1337
	DefaultMaxPayload = 128 * 1024 * 1024
)

var (
	ErrInvalidHost       = errors.New("invalid host")
	ErrInvalidPort       = errors.New("invalid port")
	ErrInvalidMaxPayload = errors.New("invalid maximum payload size")
)

// Config describes how to reach the server. It is passed around by value
type Config struct {
	Host       string `yaml:"host"`
	Port       uint16 `yaml:"port"`
	TLS        bool   `yaml:"tls"`
	MaxPayload int64  `yaml:"maxPayload"`
}

// Address holds the server URLs derived from a Config
type Address struct {
	HTTP      string
	WebSocket string
}

// ConfigOptionFunc represents a function used to modify the connection config
type ConfigOptionFunc func(*Config)

// NewConfig returns a new connection config with the provided options applied on top of the defaults
func NewConfig(options ...ConfigOptionFunc) Config {
	c := Config{
		Host:       DefaultHost,
		Port:       DefaultPort,
		MaxPayload: DefaultMaxPayload,
	}
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithHost specifies the server host name or IP address
func WithHost(host string) ConfigOptionFunc {
	return func(c *Config) {
		c.Host = host
	}
}

// WithPort specifies the server port
func WithPort(port uint16) ConfigOptionFunc {
	return func(c *Config) {
		c.Port = port
	}
}

// WithTLS specifies whether to use TLS (wss/https)
func WithTLS(tls bool) ConfigOptionFunc {
	return func(c *Config) {
		c.TLS = tls
	}
}

// WithMaxPayload specifies the maximum size in bytes of a single incoming message
func WithMaxPayload(maxPayload int64) ConfigOptionFunc {
	return func(c *Config) {
		c.MaxPayload = maxPayload
	}
}

// ApplyDefaults fills in zero values with defaults
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxPayload == 0 {
		c.MaxPayload = DefaultMaxPayload
	}
}

// Validate checks the config for values that can never produce a working connection
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrInvalidHost
	}
	if c.Port == 0 {
		return ErrInvalidPort
	}
	if c.MaxPayload <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxPayload, c.MaxPayload)
	}
	return nil
}

// HostPort returns the host and port joined for use with net.Dial
func (c Config) HostPort() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// Address returns the HTTP and WebSocket URLs for the server
func (c Config) Address() Address {
	httpScheme, wsScheme := "http", "ws"
	if c.TLS {
		httpScheme, wsScheme = "https", "wss"
	}
	hostPort := c.HostPort()
	return Address{
		HTTP:      httpScheme + "://" + hostPort,
		WebSocket: wsScheme + "://" + hostPort,
	}
}

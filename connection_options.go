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

package ogmios

import (
	"log/slog"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/protocol/chainsync"
	"github.com/blinklabs-io/gogmios/protocol/ledgerstatequery"
	"github.com/blinklabs-io/gogmios/protocol/mempoolmonitor"
	"github.com/blinklabs-io/gogmios/protocol/txsubmission"
	"github.com/blinklabs-io/gogmios/transport"
)

// ConnectionOptionFunc is a type that represents functions that modify the Connection config
type ConnectionOptionFunc func(*Connection)

// WithConnectionConfig specifies the full server connection config, replacing any host, port, TLS
// or max payload options given before it
func WithConnectionConfig(cfg connection.Config) ConnectionOptionFunc {
	return func(c *Connection) {
		c.connConfig = cfg
	}
}

// WithHost specifies the server host
func WithHost(host string) ConnectionOptionFunc {
	return func(c *Connection) {
		c.connConfig.Host = host
	}
}

// WithPort specifies the server port
func WithPort(port uint16) ConnectionOptionFunc {
	return func(c *Connection) {
		c.connConfig.Port = port
	}
}

// WithTLS specifies whether to use wss:// and https://
func WithTLS(tls bool) ConnectionOptionFunc {
	return func(c *Connection) {
		c.connConfig.TLS = tls
	}
}

// WithMaxPayload specifies the maximum size of a received message
func WithMaxPayload(maxPayload int64) ConnectionOptionFunc {
	return func(c *Connection) {
		c.connConfig.MaxPayload = maxPayload
	}
}

// WithLogger specifies the logger used by the connection and every client opened from it
func WithLogger(logger *slog.Logger) ConnectionOptionFunc {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithErrorChan specifies the error channel to use. If none is provided, one will be created
func WithErrorChan(errorChan chan error) ConnectionOptionFunc {
	return func(c *Connection) {
		c.errorChan = errorChan
	}
}

// WithRequestTimeout specifies the default timeout for requests without a deadline. It does not
// apply to chain sync, which may legitimately wait for minutes on the next block
func WithRequestTimeout(timeout time.Duration) ConnectionOptionFunc {
	return func(c *Connection) {
		c.requestTimeout = timeout
	}
}

// WithIdleTimeout specifies how long a long-running connection may go without receiving anything
func WithIdleTimeout(timeout time.Duration) ConnectionOptionFunc {
	return func(c *Connection) {
		c.idleTimeout = timeout
	}
}

// WithPingInterval specifies the interval for WebSocket pings on long-running connections
func WithPingInterval(interval time.Duration) ConnectionOptionFunc {
	return func(c *Connection) {
		c.pingInterval = interval
	}
}

// WithDialFunc specifies an alternate transport dialer
func WithDialFunc(dialFunc transport.DialFunc) ConnectionOptionFunc {
	return func(c *Connection) {
		c.dialFunc = dialFunc
	}
}

// WithChainSyncConfig specifies ChainSync config
func WithChainSyncConfig(cfg chainsync.Config) ConnectionOptionFunc {
	return func(c *Connection) {
		c.chainSyncConfig = &cfg
	}
}

// WithLedgerStateQueryConfig specifies LedgerStateQuery config
func WithLedgerStateQueryConfig(cfg ledgerstatequery.Config) ConnectionOptionFunc {
	return func(c *Connection) {
		c.ledgerStateQueryConfig = &cfg
	}
}

// WithTxSubmissionConfig specifies TxSubmission config
func WithTxSubmissionConfig(cfg txsubmission.Config) ConnectionOptionFunc {
	return func(c *Connection) {
		c.txSubmissionConfig = &cfg
	}
}

// WithMempoolMonitorConfig specifies MempoolMonitor config
func WithMempoolMonitorConfig(cfg mempoolmonitor.Config) ConnectionOptionFunc {
	return func(c *Connection) {
		c.mempoolMonitorConfig = &cfg
	}
}

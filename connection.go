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

// Package ogmios implements a client for the Ogmios JSON-RPC bridge to a Cardano node.
//
// A Connection holds the server address and shared settings. Each of its constructors opens a new
// interaction context for one client: chain sync and mempool monitoring keep a WebSocket open for
// their whole lifetime, while ledger state queries and transaction submission connect per call.
//
// This package is the main entry point into this library. The other packages can
// be used outside of this one, but it's not a primary design goal.
package ogmios

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/health"
	"github.com/blinklabs-io/gogmios/protocol"
	"github.com/blinklabs-io/gogmios/protocol/chainsync"
	"github.com/blinklabs-io/gogmios/protocol/ledgerstatequery"
	"github.com/blinklabs-io/gogmios/protocol/mempoolmonitor"
	"github.com/blinklabs-io/gogmios/protocol/txsubmission"
	"github.com/blinklabs-io/gogmios/transport"
)

// ErrConnectionClosed is returned when opening a client on a closed Connection
var ErrConnectionClosed = errors.New("connection is closed")

// The Connection type holds the settings for an Ogmios server and tracks every client opened
// through it
type Connection struct {
	connConfig             connection.Config
	logger                 *slog.Logger
	errorChan              chan error
	requestTimeout         time.Duration
	idleTimeout            time.Duration
	pingInterval           time.Duration
	dialFunc               transport.DialFunc
	chainSyncConfig        *chainsync.Config
	ledgerStateQueryConfig *ledgerstatequery.Config
	txSubmissionConfig     *txsubmission.Config
	mempoolMonitorConfig   *mempoolmonitor.Config
	doneChan               chan struct{}
	waitGroup              sync.WaitGroup
	onceClose              sync.Once
	mutex                  sync.Mutex
	// Only long-running contexts are tracked. One-shot contexts hold no socket between calls and
	// watch doneChan instead
	contexts         map[*protocol.InteractionContext]struct{}
	chainSyncClients map[*chainsync.Client]struct{}
}

// NewConnection returns a new Connection object with the specified options. No network activity
// happens until a client is opened. An error is returned if the resulting config is invalid
func NewConnection(options ...ConnectionOptionFunc) (*Connection, error) {
	c := &Connection{
		connConfig:       connection.NewConfig(),
		doneChan:         make(chan struct{}),
		contexts:         make(map[*protocol.InteractionContext]struct{}),
		chainSyncClients: make(map[*chainsync.Client]struct{}),
	}
	// Apply provided options functions
	for _, option := range options {
		option(c)
	}
	c.connConfig.ApplyDefaults()
	if err := c.connConfig.Validate(); err != nil {
		return nil, err
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.errorChan == nil {
		c.errorChan = make(chan error, 10)
	}
	return c, nil
}

// ErrorChan returns the channel for asynchronous errors, such as a lost connection or a failed
// chain sync handler
func (c *Connection) ErrorChan() chan error {
	return c.errorChan
}

// Config returns the server connection config
func (c *Connection) Config() connection.Config {
	return c.connConfig
}

// Close shuts down every client opened through the connection. It is safe to call more than once
func (c *Connection) Close() error {
	c.onceClose.Do(func() {
		c.mutex.Lock()
		close(c.doneChan)
		chainSyncClients := c.chainSyncClients
		contexts := c.contexts
		c.chainSyncClients = make(map[*chainsync.Client]struct{})
		c.contexts = make(map[*protocol.InteractionContext]struct{})
		c.mutex.Unlock()
		for client := range chainSyncClients {
			client.Shutdown()
		}
		for ictx := range contexts {
			ictx.Shutdown()
		}
		c.waitGroup.Wait()
	})
	return nil
}

// ChainSync opens a long-running interaction context and returns a ChainSync client on it
func (c *Connection) ChainSync(ctx context.Context) (*chainsync.Client, error) {
	// Chain sync failures are reported by the client watcher below
	ictx, err := c.openContext(ctx, protocol.InteractionTypeLongRunning, false)
	if err != nil {
		return nil, err
	}
	client := chainsync.NewClient(ictx, c.chainSyncConfig)
	c.mutex.Lock()
	select {
	case <-c.doneChan:
		c.mutex.Unlock()
		client.Shutdown()
		return nil, ErrConnectionClosed
	default:
	}
	c.chainSyncClients[client] = struct{}{}
	c.waitGroup.Add(1)
	c.mutex.Unlock()
	go func() {
		defer c.waitGroup.Done()
		<-client.Done()
		c.mutex.Lock()
		delete(c.chainSyncClients, client)
		c.mutex.Unlock()
		if err := client.Err(); err != nil {
			c.sendError(fmt.Errorf("%s: %w", chainsync.ProtocolName, err))
		}
	}()
	return client, nil
}

// LedgerStateQuery returns a LedgerStateQuery client on a one-shot interaction context
func (c *Connection) LedgerStateQuery(ctx context.Context) (*ledgerstatequery.Client, error) {
	ictx, err := c.openContext(ctx, protocol.InteractionTypeOneShot, true)
	if err != nil {
		return nil, err
	}
	return ledgerstatequery.NewClient(ictx, c.ledgerStateQueryConfig), nil
}

// TxSubmission returns a TxSubmission client on a one-shot interaction context
func (c *Connection) TxSubmission(ctx context.Context) (*txsubmission.Client, error) {
	ictx, err := c.openContext(ctx, protocol.InteractionTypeOneShot, true)
	if err != nil {
		return nil, err
	}
	return txsubmission.NewClient(ictx, c.txSubmissionConfig), nil
}

// MempoolMonitor opens a long-running interaction context and returns a MempoolMonitor client on it
func (c *Connection) MempoolMonitor(ctx context.Context) (*mempoolmonitor.Client, error) {
	ictx, err := c.openContext(ctx, protocol.InteractionTypeLongRunning, true)
	if err != nil {
		return nil, err
	}
	client, err := mempoolmonitor.NewClient(ictx, c.mempoolMonitorConfig)
	if err != nil {
		ictx.Shutdown()
		return nil, err
	}
	return client, nil
}

// ServerHealth fetches the health of the server
func (c *Connection) ServerHealth(ctx context.Context) (*health.ServerHealth, error) {
	return health.GetServerHealth(ctx, c.connConfig)
}

func (c *Connection) openContext(
	ctx context.Context,
	interactionType protocol.InteractionType,
	reportErrors bool,
) (*protocol.InteractionContext, error) {
	select {
	case <-c.doneChan:
		return nil, ErrConnectionClosed
	default:
	}
	opts := []protocol.InteractionOptionFunc{
		protocol.WithConnectionConfig(c.connConfig),
		protocol.WithInteractionType(interactionType),
		protocol.WithLogger(c.logger),
		protocol.WithIdleTimeout(c.idleTimeout),
		protocol.WithPingInterval(c.pingInterval),
	}
	if reportErrors {
		opts = append(
			opts,
			protocol.WithRequestTimeout(c.requestTimeout),
			protocol.WithErrorFunc(c.sendError),
		)
	}
	if c.dialFunc != nil {
		opts = append(opts, protocol.WithDialFunc(c.dialFunc))
	}
	if interactionType == protocol.InteractionTypeOneShot {
		opts = append(opts, protocol.WithStopChan(c.doneChan))
	}
	ictx, err := protocol.Connect(ctx, protocol.NewConfig(opts...))
	if err != nil {
		return nil, err
	}
	if interactionType == protocol.InteractionTypeOneShot {
		return ictx, nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	select {
	case <-c.doneChan:
		ictx.Shutdown()
		return nil, ErrConnectionClosed
	default:
	}
	c.contexts[ictx] = struct{}{}
	c.waitGroup.Add(1)
	go func() {
		defer c.waitGroup.Done()
		select {
		case <-ictx.Done():
		case <-c.doneChan:
			return
		}
		c.mutex.Lock()
		delete(c.contexts, ictx)
		c.mutex.Unlock()
	}()
	return ictx, nil
}

// sendError delivers an asynchronous error without blocking when nobody is reading
func (c *Connection) sendError(err error) {
	select {
	case c.errorChan <- err:
	default:
		c.logger.Warn(
			fmt.Sprintf("dropping connection error: %s", err),
			"component", "connection",
			"address", c.connConfig.HostPort(),
		)
	}
}

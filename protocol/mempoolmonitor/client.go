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

package mempoolmonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/protocol"
)

// callerInfo is implemented by interaction contexts
type callerInfo interface {
	Logger() *slog.Logger
	ConnectionId() connection.ConnectionId
}

// Client implements the MempoolMonitor client
type Client struct {
	caller       protocol.Caller
	config       *Config
	logger       *slog.Logger
	connectionId connection.ConnectionId
	busyMutex    sync.Mutex
	acquired     bool
	acquiredSlot uint64
}

// NewClient returns a new MempoolMonitor client object. The caller must be a long-running
// interaction context
func NewClient(caller protocol.Caller, cfg *Config) (*Client, error) {
	if caller.Type() != protocol.InteractionTypeLongRunning {
		return nil, protocol.ErrRequiresLongRunning
	}
	if cfg == nil {
		tmpCfg := NewConfig()
		cfg = &tmpCfg
	}
	// Apply defaults for zero values to handle Config{} created without NewConfig()
	config := *cfg
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = DefaultAcquireTimeout
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = DefaultQueryTimeout
	}
	c := &Client{
		caller: caller,
		config: &config,
		logger: slog.New(slog.DiscardHandler),
	}
	if info, ok := caller.(callerInfo); ok {
		c.logger = info.Logger()
		c.connectionId = info.ConnectionId()
	}
	return c, nil
}

// AcquireMempool acquires a new snapshot of the mempool and returns the slot it was taken at.
// Any previously acquired snapshot is replaced
func (c *Client) AcquireMempool(ctx context.Context) (uint64, error) {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	return c.acquire(ctx)
}

// ReleaseMempool releases the previously acquired mempool snapshot
func (c *Client) ReleaseMempool(ctx context.Context) error {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	if err := c.call(ctx, c.config.AcquireTimeout, MethodReleaseMempool, nil, nil); err != nil {
		return err
	}
	c.acquired = false
	return nil
}

// IsAcquired returns whether a snapshot is held and the slot it was acquired at
func (c *Client) IsAcquired() (bool, uint64) {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	return c.acquired, c.acquiredSlot
}

// HasTransaction returns whether or not the specified transaction ID exists in the mempool snapshot
func (c *Client) HasTransaction(ctx context.Context, txId string) (bool, error) {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	if err := c.ensureAcquired(ctx); err != nil {
		return false, err
	}
	var result hasTransactionResult
	if err := c.call(
		ctx,
		c.config.QueryTimeout,
		MethodHasTransaction,
		hasTransactionParams{Id: txId},
		&result,
	); err != nil {
		return false, err
	}
	return result.HasTransaction, nil
}

// NextTransactionId returns the ID of the next transaction in the mempool snapshot, or an empty
// string once every transaction has been returned
func (c *Client) NextTransactionId(ctx context.Context) (string, error) {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	if err := c.ensureAcquired(ctx); err != nil {
		return "", err
	}
	var result nextTransactionIdResult
	if err := c.call(ctx, c.config.QueryTimeout, MethodNextTransaction, nil, &result); err != nil {
		return "", err
	}
	if result.Transaction == nil {
		return "", nil
	}
	return result.Transaction.Id, nil
}

// NextTransaction returns the full JSON of the next transaction in the mempool snapshot, or nil
// once every transaction has been returned
func (c *Client) NextTransaction(ctx context.Context) (json.RawMessage, error) {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	if err := c.ensureAcquired(ctx); err != nil {
		return nil, err
	}
	var result nextTransactionResult
	if err := c.call(
		ctx,
		c.config.QueryTimeout,
		MethodNextTransaction,
		nextTransactionParams{Fields: "all"},
		&result,
	); err != nil {
		return nil, err
	}
	if result.isEnd() {
		return nil, nil
	}
	return result.Transaction, nil
}

// SizeOfMempool returns the size and capacity of the mempool snapshot
func (c *Client) SizeOfMempool(ctx context.Context) (MempoolSize, error) {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	if err := c.ensureAcquired(ctx); err != nil {
		return MempoolSize{}, err
	}
	var result MempoolSize
	if err := c.call(ctx, c.config.QueryTimeout, MethodSizeOfMempool, nil, &result); err != nil {
		return MempoolSize{}, err
	}
	return result, nil
}

// ForEachTransaction calls fn with every remaining transaction of the mempool snapshot. It stops
// at the end of the snapshot or at the first error returned by fn
func (c *Client) ForEachTransaction(
	ctx context.Context,
	fn func(json.RawMessage) error,
) error {
	for {
		tx, err := c.NextTransaction(ctx)
		if err != nil {
			return err
		}
		if tx == nil {
			return nil
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
}

func (c *Client) ensureAcquired(ctx context.Context) error {
	if c.acquired {
		return nil
	}
	_, err := c.acquire(ctx)
	return err
}

func (c *Client) acquire(ctx context.Context) (uint64, error) {
	var result acquireMempoolResult
	if err := c.call(ctx, c.config.AcquireTimeout, MethodAcquireMempool, nil, &result); err != nil {
		return 0, err
	}
	c.acquired = true
	c.acquiredSlot = result.Slot
	c.logger.Debug(
		fmt.Sprintf("%s: acquired mempool snapshot at slot %d", ProtocolName, result.Slot),
		"component", "network",
		"protocol", ProtocolName,
		"role", "client",
		"connection_id", c.connectionId.String(),
	)
	return result.Slot, nil
}

func (c *Client) call(
	ctx context.Context,
	timeout time.Duration,
	method string,
	params any,
	result any,
) error {
	c.logger.Debug(
		fmt.Sprintf("calling %s", method),
		"component", "network",
		"protocol", ProtocolName,
		"role", "client",
		"connection_id", c.connectionId.String(),
	)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.caller.Call(ctx, method, params, result)
}

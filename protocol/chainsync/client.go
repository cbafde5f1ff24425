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

package chainsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blinklabs-io/gogmios/protocol"
	"github.com/blinklabs-io/gogmios/protocol/common"
)

// Client implements the ChainSync client
type Client struct {
	ictx            *protocol.InteractionContext
	config          *Config
	logger          *slog.Logger
	callbackContext CallbackContext
	busyMutex       sync.Mutex
	stateMutex      sync.Mutex
	state           State
	tip             common.Tip
	currentPoint    common.Point
	syncCancel      context.CancelFunc
	syncDoneChan    chan struct{}
	inHandler       atomic.Bool
	onceClose       sync.Once
	doneChan        chan struct{}
	err             error
	waitGroup       sync.WaitGroup
}

type findIntersectionParams struct {
	Points []common.Point `json:"points"`
}

type intersectionNotFoundData struct {
	Tip common.Tip `json:"tip"`
}

type nextBlockResult struct {
	Direction string        `json:"direction"`
	Block     *common.Block `json:"block"`
	Point     *common.Point `json:"point"`
	Tip       common.Tip    `json:"tip"`
}

// NewClient returns a new ChainSync client object. The interaction context must be long-running
// for Resume to succeed
func NewClient(
	ictx *protocol.InteractionContext,
	cfg *Config,
) *Client {
	if cfg == nil {
		tmpCfg := NewConfig()
		cfg = &tmpCfg
	}
	// Apply defaults for zero values to handle Config{} created without NewConfig()
	config := *cfg
	if config.PipelineLimit <= 0 {
		config.PipelineLimit = DefaultPipelineLimit
	}
	if config.IntersectTimeout <= 0 {
		config.IntersectTimeout = DefaultIntersectTimeout
	}
	if config.BlockTimeout < 0 {
		config.BlockTimeout = DefaultBlockTimeout
	}
	c := &Client{
		ictx:     ictx,
		config:   &config,
		logger:   ictx.Logger(),
		state:    StateIdle,
		doneChan: make(chan struct{}),
	}
	c.callbackContext = CallbackContext{
		Client:       c,
		ConnectionId: ictx.ConnectionId(),
	}
	// Follow the interaction context into the closed state
	c.waitGroup.Add(1)
	go func() {
		defer c.waitGroup.Done()
		select {
		case <-ictx.Done():
			c.close(ictx.Err())
		case <-c.doneChan:
		}
	}()
	return c
}

// Resume negotiates an intersection with the server using the provided points and starts
// streaming blocks from it. Blocks are delivered via the RollForward and RollBackward callback
// functions specified in the config. An empty list of points means the origin of the chain
func (c *Client) Resume(
	ctx context.Context,
	points []common.Point,
) (common.Intersection, error) {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()

	// Use origin if no intersect points were specified
	if len(points) == 0 {
		points = []common.Point{common.NewPointOrigin()}
	}
	c.logger.Debug(
		fmt.Sprintf("calling Resume(points: %s)", formatPoints(points)),
		"component", "network",
		"protocol", ProtocolName,
		"role", "client",
		"connection_id", c.callbackContext.ConnectionId.String(),
	)
	if c.ictx.Type() != protocol.InteractionTypeLongRunning {
		return common.Intersection{}, protocol.ErrRequiresLongRunning
	}
	if err := c.transition(StateIdle, StateAwaitingIntersection); err != nil {
		return common.Intersection{}, err
	}
	intersection, err := c.findIntersection(ctx, points)
	if err != nil {
		_ = c.transition(StateAwaitingIntersection, StateIdle)
		return common.Intersection{}, err
	}

	c.stateMutex.Lock()
	if c.state != StateAwaitingIntersection {
		c.stateMutex.Unlock()
		return common.Intersection{}, protocol.ErrClosed
	}
	c.tip = intersection.Tip
	c.currentPoint = intersection.Point
	syncCtx, syncCancel := context.WithCancel(context.Background())
	syncDoneChan := make(chan struct{})
	c.syncCancel = syncCancel
	c.syncDoneChan = syncDoneChan
	c.setStateLocked(StateStreaming)
	c.stateMutex.Unlock()

	queue, err := c.fillPipeline(syncCtx, nil)
	if err != nil {
		for _, pc := range queue {
			pc.Cancel()
		}
		c.endSync(err, syncCancel, syncDoneChan)
		return common.Intersection{}, err
	}
	c.waitGroup.Add(1)
	go c.syncLoop(syncCtx, syncCancel, syncDoneChan, queue)
	return intersection, nil
}

// GetCurrentTip returns the current chain tip. It is only available while the client is idle
func (c *Client) GetCurrentTip(ctx context.Context) (common.Tip, error) {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	c.logger.Debug("calling GetCurrentTip()",
		"component", "network",
		"protocol", ProtocolName,
		"role", "client",
		"connection_id", c.callbackContext.ConnectionId.String(),
	)
	if err := c.transition(StateIdle, StateIdle); err != nil {
		return common.Tip{}, err
	}
	intersection, err := c.findIntersection(ctx, []common.Point{common.NewPointOrigin()})
	if err != nil {
		return common.Tip{}, err
	}
	c.stateMutex.Lock()
	c.tip = intersection.Tip
	c.stateMutex.Unlock()
	c.logger.Debug(
		fmt.Sprintf("received tip results %s", intersection.Tip.String()),
		"component", "network",
		"protocol", ProtocolName,
		"role", "client",
		"connection_id", c.callbackContext.ConnectionId.String(),
	)
	return intersection.Tip, nil
}

// Shutdown stops any active sync, abandons in-flight requests and closes the underlying
// interaction context. It is safe to call from inside a callback function
func (c *Client) Shutdown() {
	c.close(nil)
	if !c.inHandler.Load() {
		c.waitGroup.Wait()
	}
}

// Wait blocks until the active sync process ends and returns the error that ended it, if any.
// It returns immediately when no sync is running
func (c *Client) Wait(ctx context.Context) error {
	c.stateMutex.Lock()
	syncDoneChan := c.syncDoneChan
	c.stateMutex.Unlock()
	if syncDoneChan == nil {
		return c.Err()
	}
	select {
	case <-syncDoneChan:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed when the client is closed
func (c *Client) Done() <-chan struct{} {
	return c.doneChan
}

// Err returns the error that closed the client. It is nil while the client is open and after
// a clean Shutdown
func (c *Client) Err() error {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	return c.err
}

// State returns the current state of the client
func (c *Client) State() State {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	return c.state
}

// Tip returns the most recent server tip seen by the client
func (c *Client) Tip() common.Tip {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	return c.tip
}

// CurrentPoint returns the point of the last block delivered to a callback, or the intersection
// if none has been delivered yet. It can be used to resume after ErrStopSyncProcess
func (c *Client) CurrentPoint() common.Point {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	return c.currentPoint
}

func (c *Client) findIntersection(
	ctx context.Context,
	points []common.Point,
) (common.Intersection, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.IntersectTimeout)
	defer cancel()
	var result common.Intersection
	err := c.ictx.Call(
		ctx,
		MethodFindIntersection,
		findIntersectionParams{Points: points},
		&result,
	)
	if err != nil {
		fault, ok := protocol.AsFault(err)
		if ok && fault.Code == FaultCodeIntersectionNotFound {
			var data intersectionNotFoundData
			if err := fault.DecodeData(&data); err != nil {
				c.logger.Debug(
					fmt.Sprintf("failed to decode intersection fault data: %s", err),
					"component", "network",
					"protocol", ProtocolName,
					"role", "client",
					"connection_id", c.callbackContext.ConnectionId.String(),
				)
			}
			return common.Intersection{}, &IntersectionNotFoundError{Tip: data.Tip}
		}
		return common.Intersection{}, err
	}
	c.logger.Debug(
		fmt.Sprintf("found intersection at %s", result.Point.String()),
		"component", "network",
		"protocol", ProtocolName,
		"role", "client",
		"connection_id", c.callbackContext.ConnectionId.String(),
	)
	return result, nil
}

func (c *Client) fillPipeline(
	ctx context.Context,
	queue []*protocol.PendingCall,
) ([]*protocol.PendingCall, error) {
	for len(queue) < c.config.PipelineLimit {
		pc, err := c.ictx.Start(ctx, MethodNextBlock, nil)
		if err != nil {
			return queue, err
		}
		queue = append(queue, pc)
	}
	return queue, nil
}

// syncLoop delivers nextBlock responses to the callbacks in request order. Each callback returns
// before the pipeline is topped back up
func (c *Client) syncLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	doneChan chan struct{},
	queue []*protocol.PendingCall,
) {
	defer c.waitGroup.Done()
	var err error
	defer func() {
		for _, pc := range queue {
			pc.Cancel()
		}
		if ctx.Err() != nil {
			// Stopped by Shutdown
			err = nil
		}
		c.endSync(err, cancel, doneChan)
	}()
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		var result nextBlockResult
		waitCtx, waitCancel := ctx, context.CancelFunc(func() {})
		if c.config.BlockTimeout > 0 {
			waitCtx, waitCancel = context.WithTimeout(ctx, c.config.BlockTimeout)
		}
		err = head.Wait(waitCtx, &result)
		waitCancel()
		if err != nil || ctx.Err() != nil {
			return
		}
		if err = c.handleNextBlock(&result); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if queue, err = c.fillPipeline(ctx, queue); err != nil {
			return
		}
	}
}

func (c *Client) handleNextBlock(result *nextBlockResult) error {
	switch result.Direction {
	case DirectionForward:
		if result.Block == nil {
			return fmt.Errorf("%w: forward result without block", protocol.ErrUnexpectedResponse)
		}
		block := *result.Block
		c.stateMutex.Lock()
		c.tip = result.Tip
		c.currentPoint = block.Point()
		c.stateMutex.Unlock()
		c.logger.Debug(
			fmt.Sprintf("roll forward to %s", block.Point().String()),
			"component", "network",
			"protocol", ProtocolName,
			"role", "client",
			"connection_id", c.callbackContext.ConnectionId.String(),
		)
		if c.config.RollForwardFunc == nil {
			return nil
		}
		return c.callHandler(func() error {
			return c.config.RollForwardFunc(c.callbackContext, block, result.Tip)
		})
	case DirectionBackward:
		if result.Point == nil {
			return fmt.Errorf("%w: backward result without point", protocol.ErrUnexpectedResponse)
		}
		point := *result.Point
		c.stateMutex.Lock()
		c.tip = result.Tip
		c.currentPoint = point
		c.stateMutex.Unlock()
		c.logger.Debug(
			fmt.Sprintf("roll backward to %s", point.String()),
			"component", "network",
			"protocol", ProtocolName,
			"role", "client",
			"connection_id", c.callbackContext.ConnectionId.String(),
		)
		if c.config.RollBackwardFunc == nil {
			return nil
		}
		return c.callHandler(func() error {
			return c.config.RollBackwardFunc(c.callbackContext, point, result.Tip)
		})
	default:
		return fmt.Errorf(
			"%w: unknown direction %q",
			protocol.ErrUnexpectedResponse,
			result.Direction,
		)
	}
}

func (c *Client) callHandler(handlerFunc func() error) error {
	c.inHandler.Store(true)
	defer c.inHandler.Store(false)
	return handlerFunc()
}

// endSync runs once per sync process. A clean stop returns the client to idle and any other
// error closes it
func (c *Client) endSync(err error, cancel context.CancelFunc, doneChan chan struct{}) {
	if err == nil || errors.Is(err, ErrStopSyncProcess) {
		c.logger.Debug("sync process stopped",
			"component", "network",
			"protocol", ProtocolName,
			"role", "client",
			"connection_id", c.callbackContext.ConnectionId.String(),
		)
		_ = c.transition(StateStreaming, StateIdle)
	} else {
		c.close(err)
	}
	cancel()
	c.stateMutex.Lock()
	if c.state != StateClosed {
		c.syncCancel = nil
	}
	c.stateMutex.Unlock()
	close(doneChan)
}

func (c *Client) close(err error) {
	if errors.Is(err, protocol.ErrClosed) {
		// Report why the interaction context closed rather than the symptom
		err = c.ictx.Err()
	}
	if errors.Is(err, protocol.ErrShutdown) {
		err = nil
	}
	c.onceClose.Do(func() {
		c.stateMutex.Lock()
		c.err = err
		c.setStateLocked(StateClosed)
		syncCancel := c.syncCancel
		c.stateMutex.Unlock()
		if syncCancel != nil {
			syncCancel()
		}
		close(c.doneChan)
		if err != nil {
			c.logger.Error(
				fmt.Sprintf("chain sync failed: %s", err),
				"component", "network",
				"protocol", ProtocolName,
				"role", "client",
				"connection_id", c.callbackContext.ConnectionId.String(),
			)
		}
	})
	c.ictx.Shutdown()
}

func (c *Client) transition(from State, to State) error {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	if c.state != from {
		if c.state == StateClosed {
			return fmt.Errorf("%w: %w", ErrInvalidState, protocol.ErrClosed)
		}
		return fmt.Errorf("%w: %s", ErrInvalidState, c.state)
	}
	c.setStateLocked(to)
	return nil
}

func (c *Client) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.logger.Debug(
		fmt.Sprintf("state transition %s -> %s", c.state, state),
		"component", "network",
		"protocol", ProtocolName,
		"role", "client",
		"connection_id", c.callbackContext.ConnectionId.String(),
	)
	c.state = state
}

func formatPoints(points []common.Point) string {
	tmp := make([]string, 0, len(points))
	for _, point := range points {
		tmp = append(tmp, point.String())
	}
	return "[" + strings.Join(tmp, ", ") + "]"
}

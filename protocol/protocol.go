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

// Package protocol implements the interaction runtime shared by all Ogmios clients: request/response
// correlation and the connection lifecycle for one-shot and long-running sessions
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/jsonrpc"
	"github.com/blinklabs-io/gogmios/transport"
)

// Caller is implemented by anything that can issue a JSON-RPC call and decode its result
type Caller interface {
	Call(ctx context.Context, method string, params any, result any) error
	Type() InteractionType
}

// InteractionContext owns a transport and the table of requests awaiting a response on it
type InteractionContext struct {
	config            Config
	logger            *slog.Logger
	connectionId      connection.ConnectionId
	pending           *PendingTable
	nextId            atomic.Uint64
	closed            atomic.Bool
	inCallback        atomic.Bool
	transport         transport.Transport
	transportMutex    sync.Mutex
	callMutex         sync.Mutex
	notificationMutex sync.RWMutex
	notificationFunc  NotificationFunc
	onceClose         sync.Once
	doneChan          chan struct{}
	errMutex          sync.Mutex
	err               error
	waitGroup         sync.WaitGroup
}

// Connect creates a new InteractionContext. For a long-running context, the transport is established
// and the receive loop started before returning. A one-shot context connects lazily for each call
func Connect(ctx context.Context, cfg Config) (*InteractionContext, error) {
	// Apply defaults for zero values to handle Config{} created without NewConfig()
	if cfg.Type == 0 {
		cfg.Type = InteractionTypeLongRunning
	}
	if cfg.Type != InteractionTypeOneShot && cfg.Type != InteractionTypeLongRunning {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInteractionType, cfg.Type)
	}
	cfg.Connection.ApplyDefaults()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	c := &InteractionContext{
		config:           cfg,
		logger:           cfg.Logger,
		connectionId:     connection.NewConnectionId(cfg.Connection.HostPort()),
		notificationFunc: cfg.NotificationFunc,
		doneChan:         make(chan struct{}),
	}
	c.pending = NewPendingTable(c.logger)
	if cfg.Type == InteractionTypeLongRunning {
		t, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}
		c.transport = t
		c.waitGroup.Add(1)
		go c.recvLoop(t)
	}
	c.logger.Debug(
		"interaction context opened",
		"component", "network",
		"interaction", cfg.Type.String(),
		"connection_id", c.connectionId.String(),
	)
	return c, nil
}

// Type returns the interaction type
func (c *InteractionContext) Type() InteractionType {
	return c.config.Type
}

// ConnectionId returns the identifier used for this context in logs and callbacks
func (c *InteractionContext) ConnectionId() connection.ConnectionId {
	return c.connectionId
}

// Logger returns the logger used by the context
func (c *InteractionContext) Logger() *slog.Logger {
	return c.logger
}

// IsOpen returns true until the context is shut down or its connection is lost
func (c *InteractionContext) IsOpen() bool {
	return !c.closed.Load()
}

// Done returns a channel that is closed when the context reaches the closed state
func (c *InteractionContext) Done() <-chan struct{} {
	return c.doneChan
}

// Err returns the reason the context was closed, or nil while it is open
func (c *InteractionContext) Err() error {
	c.errMutex.Lock()
	defer c.errMutex.Unlock()
	return c.err
}

// PendingCount returns the number of requests awaiting a response
func (c *InteractionContext) PendingCount() int {
	return c.pending.Len()
}

// Transport returns the currently open transport, if any
func (c *InteractionContext) Transport() transport.Transport {
	c.transportMutex.Lock()
	defer c.transportMutex.Unlock()
	return c.transport
}

// SetNotificationHandler registers the consumer for unsolicited server messages, replacing any
// previously registered consumer
func (c *InteractionContext) SetNotificationHandler(notificationFunc NotificationFunc) {
	c.notificationMutex.Lock()
	defer c.notificationMutex.Unlock()
	c.notificationFunc = notificationFunc
}

// Call issues a request and decodes the result into result, which may be nil to discard it
func (c *InteractionContext) Call(
	ctx context.Context,
	method string,
	params any,
	result any,
) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	if c.config.Type == InteractionTypeOneShot {
		return c.callOneShot(ctx, method, params, result)
	}
	pc, err := c.Start(ctx, method, params)
	if err != nil {
		return err
	}
	return pc.Wait(ctx, result)
}

// Start sends a request on a long-running context without waiting for its response. This allows
// callers to keep several requests in flight
func (c *InteractionContext) Start(
	ctx context.Context,
	method string,
	params any,
) (*PendingCall, error) {
	if c.config.Type != InteractionTypeLongRunning {
		return nil, ErrRequiresLongRunning
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}
	id := c.nextId.Add(1)
	data, err := jsonrpc.Encode(method, params, id)
	if err != nil {
		return nil, err
	}
	resultChan, err := c.pending.Register(id)
	if err != nil {
		if errors.Is(err, ErrDuplicateId) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if err := ctx.Err(); err != nil {
		c.pending.Cancel(id)
		return nil, contextError(ctx, method)
	}
	c.logger.Debug(
		fmt.Sprintf("sending request %s (id %d)", method, id),
		"component", "network",
		"interaction", c.config.Type.String(),
		"connection_id", c.connectionId.String(),
	)
	if err := c.transport.Send(ctx, data); err != nil {
		c.pending.Cancel(id)
		if c.closed.Load() {
			return nil, ErrClosed
		}
		// A failed write leaves the socket in an unknown state
		lostErr := fmt.Errorf("%w: %w", ErrConnectionLost, err)
		c.terminate(lostErr, false)
		return nil, fmt.Errorf("%s: %w", method, lostErr)
	}
	return &PendingCall{
		Id:         id,
		Method:     method,
		ictx:       c,
		resultChan: resultChan,
	}, nil
}

// Shutdown stops the receive loop, closes the transport and fails all outstanding requests with
// ErrShutdown. It is safe to call more than once and from any goroutine
func (c *InteractionContext) Shutdown() {
	c.terminate(ErrShutdown, false)
	// The receive loop cannot be waited on from one of its own callbacks
	if !c.inCallback.Load() {
		c.waitGroup.Wait()
	}
}

func (c *InteractionContext) callOneShot(
	ctx context.Context,
	method string,
	params any,
	result any,
) error {
	c.callMutex.Lock()
	defer c.callMutex.Unlock()
	if c.stopRequested() {
		c.terminate(ErrShutdown, false)
	}
	if c.closed.Load() {
		return ErrClosed
	}
	id := c.nextId.Add(1)
	data, err := jsonrpc.Encode(method, params, id)
	if err != nil {
		return err
	}
	t, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.transportMutex.Lock()
	c.transport = t
	c.transportMutex.Unlock()
	// Shutdown may have raced with the dial
	if c.closed.Load() {
		c.closeTransport(t)
		return ErrClosed
	}
	defer c.closeTransport(t)
	c.logger.Debug(
		fmt.Sprintf("sending request %s (id %d)", method, id),
		"component", "network",
		"interaction", c.config.Type.String(),
		"connection_id", c.connectionId.String(),
	)
	if err := t.Send(ctx, data); err != nil {
		if c.closed.Load() {
			return fmt.Errorf("%s: %w", method, ErrShutdown)
		}
		if ctx.Err() != nil {
			return contextError(ctx, method)
		}
		return fmt.Errorf("%s: %w: %w", method, ErrConnectionLost, err)
	}
	type receiveResult struct {
		frame transport.Frame
		err   error
	}
	recvChan := make(chan receiveResult, 1)
	go func() {
		frame, err := t.Receive()
		recvChan <- receiveResult{frame: frame, err: err}
	}()
	var res receiveResult
	select {
	case res = <-recvChan:
	case <-c.config.StopChan:
		c.closeTransport(t)
		<-recvChan
		c.terminate(ErrShutdown, false)
		return fmt.Errorf("%s: %w", method, ErrShutdown)
	case <-ctx.Done():
		// Don't assume the server will still answer an abandoned call
		c.closeTransport(t)
		<-recvChan
		c.logger.Debug(
			fmt.Sprintf("request %s (id %d) abandoned: %s", method, id, ctx.Err()),
			"component", "network",
			"interaction", c.config.Type.String(),
			"connection_id", c.connectionId.String(),
		)
		return contextError(ctx, method)
	}
	if res.err != nil {
		return fmt.Errorf("%s: %w: %w", method, ErrConnectionLost, res.err)
	}
	if res.frame.Closed {
		if c.closed.Load() {
			return fmt.Errorf("%s: %w", method, ErrShutdown)
		}
		return fmt.Errorf("%s: %w: %w", method, ErrConnectionLost, ErrRemoteClosed)
	}
	msg, err := jsonrpc.Decode(res.frame.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		return fmt.Errorf("%s: %w: received notification", method, ErrUnexpectedResponse)
	}
	if resp.Id != id {
		return fmt.Errorf(
			"%s: %w: expected id %d, got %d",
			method,
			ErrUnexpectedResponse,
			id,
			resp.Id,
		)
	}
	return decodeOutcome(method, Outcome{Response: resp}, result)
}

func (c *InteractionContext) recvLoop(t transport.Transport) {
	defer c.waitGroup.Done()
	for {
		frame, err := t.Receive()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Error(
				fmt.Sprintf("receive failed: %s", err),
				"component", "network",
				"interaction", c.config.Type.String(),
				"connection_id", c.connectionId.String(),
			)
			c.terminate(fmt.Errorf("%w: %w", ErrConnectionLost, err), true)
			return
		}
		if frame.Closed {
			c.terminate(fmt.Errorf("%w: %w", ErrConnectionLost, ErrRemoteClosed), true)
			return
		}
		msg, err := jsonrpc.Decode(frame.Data)
		if err != nil {
			// Stream integrity can't be assumed after a malformed frame
			c.logger.Error(
				fmt.Sprintf("received malformed message: %s", err),
				"component", "network",
				"interaction", c.config.Type.String(),
				"connection_id", c.connectionId.String(),
			)
			c.terminate(fmt.Errorf("%w: %w", ErrConnectionLost, err), true)
			return
		}
		switch m := msg.(type) {
		case *jsonrpc.Response:
			c.pending.Fulfill(m.Id, Outcome{Response: m})
		case *jsonrpc.Notification:
			c.dispatchNotification(m)
		}
	}
}

func (c *InteractionContext) dispatchNotification(msg *jsonrpc.Notification) {
	c.notificationMutex.RLock()
	notificationFunc := c.notificationFunc
	c.notificationMutex.RUnlock()
	if notificationFunc == nil {
		c.logger.Debug(
			fmt.Sprintf("dropping notification %s with no registered consumer", msg.Method),
			"component", "network",
			"interaction", c.config.Type.String(),
			"connection_id", c.connectionId.String(),
		)
		return
	}
	c.inCallback.Store(true)
	defer c.inCallback.Store(false)
	notificationFunc(msg.Method, msg.Params)
}

// terminate moves the context to the closed state exactly once, recording cause
func (c *InteractionContext) terminate(cause error, fromLoop bool) {
	first := false
	c.onceClose.Do(func() {
		first = true
		c.errMutex.Lock()
		c.err = cause
		c.errMutex.Unlock()
		c.closed.Store(true)
		c.pending.DrainWithError(cause)
		c.transportMutex.Lock()
		t := c.transport
		c.transportMutex.Unlock()
		if t != nil {
			_ = t.Close()
		}
		close(c.doneChan)
	})
	if !first {
		return
	}
	c.logger.Debug(
		fmt.Sprintf("interaction context closed: %s", cause),
		"component", "network",
		"interaction", c.config.Type.String(),
		"connection_id", c.connectionId.String(),
	)
	if fromLoop {
		c.inCallback.Store(true)
		defer c.inCallback.Store(false)
	}
	if c.config.ErrorFunc != nil && !errors.Is(cause, ErrShutdown) {
		c.config.ErrorFunc(cause)
	}
	if c.config.CloseFunc != nil {
		c.config.CloseFunc()
	}
}

// stopRequested returns true once the configured stop channel, if any, is closed
func (c *InteractionContext) stopRequested() bool {
	if c.config.StopChan == nil {
		return false
	}
	select {
	case <-c.config.StopChan:
		return true
	default:
		return false
	}
}

func (c *InteractionContext) closeTransport(t transport.Transport) {
	_ = t.Close()
	c.transportMutex.Lock()
	defer c.transportMutex.Unlock()
	if c.transport == t {
		c.transport = nil
	}
}

func (c *InteractionContext) dial(ctx context.Context) (transport.Transport, error) {
	if c.config.DialFunc != nil {
		return c.config.DialFunc(ctx, c.config.Connection)
	}
	ws, err := transport.Dial(
		ctx,
		c.config.Connection,
		transport.WithLogger(c.logger),
		transport.WithConnectionId(c.connectionId),
		transport.WithIdleTimeout(c.config.IdleTimeout),
		transport.WithPingInterval(c.config.PingInterval),
	)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// requestContext applies the configured request timeout unless ctx already expires sooner
func (c *InteractionContext) requestContext(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	if c.config.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok &&
		time.Until(deadline) <= c.config.RequestTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.RequestTimeout)
}

// PendingCall is a request that has been sent on a long-running context and not yet resolved
type PendingCall struct {
	Id         uint64
	Method     string
	ictx       *InteractionContext
	resultChan <-chan Outcome
}

// Wait blocks until the response arrives and decodes it into result. It must be called at most once.
// If ctx is done first, the request is removed from the pending table
func (p *PendingCall) Wait(ctx context.Context, result any) error {
	ctx, cancel := p.ictx.requestContext(ctx)
	defer cancel()
	select {
	case outcome, ok := <-p.resultChan:
		if !ok {
			return fmt.Errorf("%s: %w", p.Method, ErrCancelled)
		}
		return decodeOutcome(p.Method, outcome, result)
	case <-ctx.Done():
		if !p.ictx.pending.Cancel(p.Id) {
			// The outcome may have landed at the same moment
			select {
			case outcome, ok := <-p.resultChan:
				if ok {
					return decodeOutcome(p.Method, outcome, result)
				}
			default:
			}
		}
		return contextError(ctx, p.Method)
	}
}

// Cancel abandons the request. A response that arrives later is dropped
func (p *PendingCall) Cancel() {
	p.ictx.pending.Cancel(p.Id)
}

func decodeOutcome(method string, outcome Outcome, result any) error {
	if outcome.Err != nil {
		return fmt.Errorf("%s: %w", method, outcome.Err)
	}
	resp := outcome.Response
	if resp.Error != nil {
		return &RemoteError{Method: method, Fault: resp.Error}
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: failed to decode result: %w", method, err)
	}
	return nil
}

func contextError(ctx context.Context, method string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", method, ErrTimeout)
	}
	return fmt.Errorf("%s: %w: %w", method, ErrCancelled, ctx.Err())
}

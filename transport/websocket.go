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

package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/gorilla/websocket"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	closeWriteTimeout       = 1 * time.Second
)

// WebSocket is a Transport backed by a gorilla WebSocket connection
type WebSocket struct {
	conn         *websocket.Conn
	connectionId connection.ConnectionId
	logger       *slog.Logger
	idleTimeout  time.Duration
	pingInterval time.Duration
	// Only used by Dial
	dialConnId connection.ConnectionId
	writeMutex sync.Mutex
	onceClose  sync.Once
	doneChan   chan struct{}
	waitGroup  sync.WaitGroup
	closed     atomic.Bool
	// Only touched by the (single) reader
	readErr    error
	peerClosed bool
}

// WebSocketOptionFunc represents a function used to modify a WebSocket transport
type WebSocketOptionFunc func(*WebSocket)

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) WebSocketOptionFunc {
	return func(w *WebSocket) {
		w.logger = logger
	}
}

// WithConnectionId specifies the ConnectionId that Dial assigns to the new connection instead of
// generating one
func WithConnectionId(connId connection.ConnectionId) WebSocketOptionFunc {
	return func(w *WebSocket) {
		w.dialConnId = connId
	}
}

// WithIdleTimeout specifies how long Receive waits for any traffic (including pongs) before
// failing. A zero value disables the idle timeout
func WithIdleTimeout(timeout time.Duration) WebSocketOptionFunc {
	return func(w *WebSocket) {
		w.idleTimeout = timeout
	}
}

// WithPingInterval specifies how often to send WebSocket pings. A zero value disables pings
func WithPingInterval(interval time.Duration) WebSocketOptionFunc {
	return func(w *WebSocket) {
		w.pingInterval = interval
	}
}

// Dial establishes a WebSocket connection to the server described by cfg
func Dial(
	ctx context.Context,
	cfg connection.Config,
	options ...WebSocketOptionFunc,
) (*WebSocket, error) {
	addr := cfg.Address().WebSocket
	if err := cfg.Validate(); err != nil {
		return nil, &ConnectError{Address: addr, Err: err}
	}
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
	if cfg.TLS {
		dialer.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.Host,
		}
	}
	conn, resp, err := dialer.DialContext(ctx, addr, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP status %d)", err, resp.StatusCode)
		}
		return nil, &ConnectError{Address: addr, Err: err}
	}
	conn.SetReadLimit(cfg.MaxPayload)
	var opts WebSocket
	for _, option := range options {
		option(&opts)
	}
	connId := opts.dialConnId
	if connId.IsZero() {
		connId = connection.NewConnectionId(cfg.HostPort())
	}
	return NewWebSocket(conn, connId, options...), nil
}

// NewWebSocket wraps an already established WebSocket connection
func NewWebSocket(
	conn *websocket.Conn,
	connId connection.ConnectionId,
	options ...WebSocketOptionFunc,
) *WebSocket {
	w := &WebSocket{
		conn:         conn,
		connectionId: connId,
		doneChan:     make(chan struct{}),
	}
	for _, option := range options {
		option(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	if w.idleTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(w.idleTimeout))
		})
	}
	if w.pingInterval > 0 {
		w.waitGroup.Add(1)
		go w.pingLoop()
	}
	return w
}

func (w *WebSocket) ConnectionId() connection.ConnectionId {
	return w.connectionId
}

// Send writes data as a single text message
func (w *WebSocket) Send(ctx context.Context, data []byte) error {
	if w.closed.Load() {
		return ErrTransportClosed
	}
	w.writeMutex.Lock()
	defer w.writeMutex.Unlock()
	deadline, _ := ctx.Deadline()
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return w.sendError(err)
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return w.sendError(err)
	}
	return nil
}

func (w *WebSocket) sendError(err error) error {
	if w.closed.Load() {
		return ErrTransportClosed
	}
	return fmt.Errorf("websocket send: %w", err)
}

// Receive returns the next data frame. A normal close by either side is reported as a Closed frame
// rather than an error
func (w *WebSocket) Receive() (Frame, error) {
	// gorilla panics on repeated reads after a failure
	if w.readErr != nil {
		if w.peerClosed || w.closed.Load() {
			return Frame{Closed: true}, nil
		}
		return Frame{}, w.readErr
	}
	if w.idleTimeout > 0 {
		if err := w.conn.SetReadDeadline(time.Now().Add(w.idleTimeout)); err != nil {
			w.readErr = fmt.Errorf("websocket receive: %w", err)
			return Frame{}, w.readErr
		}
	}
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		w.readErr = fmt.Errorf("websocket receive: %w", err)
		if w.closed.Load() ||
			errors.Is(err, net.ErrClosed) ||
			websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			w.peerClosed = true
			w.logger.Debug(
				"websocket closed",
				"component", "network",
				"connection_id", w.connectionId.String(),
			)
			return Frame{Closed: true}, nil
		}
		return Frame{}, w.readErr
	}
	return Frame{Data: data}, nil
}

// Close sends a close message to the peer and closes the underlying connection
func (w *WebSocket) Close() error {
	var err error
	w.onceClose.Do(func() {
		w.closed.Store(true)
		close(w.doneChan)
		// WriteControl is safe to call concurrently with other writers
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteTimeout),
		)
		err = w.conn.Close()
		w.waitGroup.Wait()
	})
	return err
}

// IsClosed returns true once Close has been called
func (w *WebSocket) IsClosed() bool {
	return w.closed.Load()
}

func (w *WebSocket) pingLoop() {
	defer w.waitGroup.Done()
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.doneChan:
			return
		case <-ticker.C:
			if err := w.conn.WriteControl(
				websocket.PingMessage,
				nil,
				time.Now().Add(w.pingInterval),
			); err != nil {
				w.logger.Debug(
					fmt.Sprintf("failed to send ping: %s", err),
					"component", "network",
					"connection_id", w.connectionId.String(),
				)
				return
			}
		}
	}
}

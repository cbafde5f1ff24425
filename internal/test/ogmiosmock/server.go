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

// Package ogmiosmock provides a scripted Ogmios WebSocket server for tests
package ogmiosmock

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/jsonrpc"
	"github.com/gorilla/websocket"
)

// HealthFunc returns the HTTP status and JSON body for the n-th (0-based) request to /health
type HealthFunc func(n int) (int, any)

// Server is a mock Ogmios server. The n-th WebSocket connection accepted plays the n-th conversation
type Server struct {
	httpServer     *httptest.Server
	upgrader       websocket.Upgrader
	conversations  [][]ConversationEntry
	mu             sync.Mutex
	conns          []*websocket.Conn
	requests       []*jsonrpc.Request
	outstanding    int
	maxOutstanding int
	healthFunc     HealthFunc
	healthCount    int
	errorChan      chan error
	doneChan       chan struct{}
	onceClose      sync.Once
	waitGroup      sync.WaitGroup
}

// NewServer starts a new mock server with the provided conversations
func NewServer(conversations ...[]ConversationEntry) *Server {
	s := &Server{
		conversations: conversations,
		errorChan:     make(chan error, 10),
		doneChan:      make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleWebSocket)
	s.httpServer = httptest.NewServer(mux)
	return s
}

// Config returns a connection config pointing at the mock server
func (s *Server) Config() connection.Config {
	host, portStr, _ := net.SplitHostPort(s.httpServer.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return connection.NewConfig(
		connection.WithHost(host),
		connection.WithPort(uint16(port)),
	)
}

// SetHealthFunc specifies the handler for /health requests
func (s *Server) SetHealthFunc(healthFunc HealthFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthFunc = healthFunc
}

// ErrorChan returns the channel on which conversation mismatches are reported
func (s *Server) ErrorChan() <-chan error {
	return s.errorChan
}

// Err returns a pending conversation error without blocking, if any
func (s *Server) Err() error {
	select {
	case err := <-s.errorChan:
		return err
	default:
		return nil
	}
}

// Requests returns every request received so far, across all connections
func (s *Server) Requests() []*jsonrpc.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]*jsonrpc.Request, len(s.requests))
	copy(ret, s.requests)
	return ret
}

// MaxOutstanding returns the largest number of received but unanswered requests seen at once
func (s *Server) MaxOutstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxOutstanding
}

// ConnectionCount returns the number of WebSocket connections accepted so far
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops the server and all of its connections
func (s *Server) Close() {
	s.onceClose.Do(func() {
		s.mu.Lock()
		close(s.doneChan)
		for _, conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		s.waitGroup.Wait()
		s.httpServer.Close()
		close(s.errorChan)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	healthFunc := s.healthFunc
	count := s.healthCount
	s.healthCount++
	s.mu.Unlock()
	status := http.StatusOK
	var body any = map[string]any{"networkSynchronization": 1.0}
	if healthFunc != nil {
		status, body = healthFunc(count)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.sendError(fmt.Errorf("upgrade failed: %w", err))
		return
	}
	s.mu.Lock()
	select {
	case <-s.doneChan:
		s.mu.Unlock()
		conn.Close()
		return
	default:
	}
	idx := len(s.conns)
	s.conns = append(s.conns, conn)
	s.waitGroup.Add(1)
	s.mu.Unlock()
	defer s.waitGroup.Done()
	defer conn.Close()
	if idx >= len(s.conversations) {
		s.sendError(fmt.Errorf("unexpected connection %d", idx+1))
		return
	}
	s.runConversation(conn, s.conversations[idx])
}

func (s *Server) runConversation(conn *websocket.Conn, entries []ConversationEntry) {
	var received []*jsonrpc.Request
	answered := make(map[int]bool)
	for i, entry := range entries {
		switch e := entry.(type) {
		case ConversationEntryInput:
			req, err := s.readRequest(conn)
			if err != nil {
				var decodeErr *jsonrpc.DecodeError
				if errors.As(err, &decodeErr) {
					s.sendError(fmt.Errorf("conversation entry %d: %w", i, err))
				}
				// Otherwise the client went away
				return
			}
			received = append(received, req)
			if e.Method != "" && req.Method != e.Method {
				s.sendError(
					fmt.Errorf(
						"conversation entry %d: expected method %q, got %q",
						i,
						e.Method,
						req.Method,
					),
				)
				return
			}
			if e.ParamsFunc != nil {
				if err := e.ParamsFunc(req.Params); err != nil {
					s.sendError(fmt.Errorf("conversation entry %d: params: %w", i, err))
					return
				}
			}
		case ConversationEntryOutput:
			reqIdx := e.Request
			if reqIdx == 0 {
				reqIdx = len(received)
			}
			if reqIdx < 1 || reqIdx > len(received) {
				s.sendError(
					fmt.Errorf("conversation entry %d: no request %d to answer", i, reqIdx),
				)
				return
			}
			if e.Delay > 0 {
				select {
				case <-s.doneChan:
					return
				case <-time.After(e.Delay):
				}
			}
			data, err := buildOutput(received[reqIdx-1], e)
			if err != nil {
				s.sendError(fmt.Errorf("conversation entry %d: %w", i, err))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if !answered[reqIdx] {
				answered[reqIdx] = true
				s.trackOutstanding(-1)
			}
		case ConversationEntryClose:
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		case ConversationEntrySleep:
			select {
			case <-s.doneChan:
				return
			case <-time.After(e.Duration):
			}
		default:
			s.sendError(fmt.Errorf("unknown conversation entry type: %#v", entry))
			return
		}
	}
	// Keep accepting (and ignoring) requests until the client goes away
	for {
		if _, err := s.readRequest(conn); err != nil {
			return
		}
	}
}

func (s *Server) readRequest(conn *websocket.Conn) (*jsonrpc.Request, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	req, err := jsonrpc.DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	s.trackOutstanding(1)
	return req, nil
}

func (s *Server) trackOutstanding(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding += delta
	if s.outstanding > s.maxOutstanding {
		s.maxOutstanding = s.outstanding
	}
}

func (s *Server) sendError(err error) {
	select {
	case s.errorChan <- err:
	default:
	}
}

func buildOutput(req *jsonrpc.Request, entry ConversationEntryOutput) ([]byte, error) {
	switch {
	case entry.Raw != nil:
		return entry.Raw, nil
	case entry.Fault != nil:
		return jsonrpc.EncodeFault(req.Id, req.Method, entry.Fault)
	case entry.ResultFunc != nil:
		result, err := entry.ResultFunc(req)
		if err != nil {
			return jsonrpc.EncodeFault(
				req.Id,
				req.Method,
				&jsonrpc.Fault{Code: jsonrpc.CodeInternalError, Message: err.Error()},
			)
		}
		return jsonrpc.EncodeResult(req.Id, req.Method, result)
	default:
		return jsonrpc.EncodeResult(req.Id, req.Method, entry.Result)
	}
}

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

package protocol_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/internal/test/ogmiosmock"
	"github.com/blinklabs-io/gogmios/jsonrpc"
	"github.com/blinklabs-io/gogmios/protocol"
	"github.com/blinklabs-io/gogmios/transport"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func connectMock(
	t *testing.T,
	server *ogmiosmock.Server,
	options ...protocol.InteractionOptionFunc,
) *protocol.InteractionContext {
	t.Helper()
	opts := []protocol.InteractionOptionFunc{
		protocol.WithConnectionConfig(server.Config()),
		protocol.WithLogger(slogt.New(t)),
	}
	opts = append(opts, options...)
	ictx, err := protocol.Connect(context.Background(), protocol.NewConfig(opts...))
	require.NoError(t, err)
	return ictx
}

func assertNoServerError(t *testing.T, server *ogmiosmock.Server) {
	t.Helper()
	if err := server.Err(); err != nil {
		t.Fatalf("mock server error: %s", err)
	}
}

func TestLongRunningCall(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "queryNetwork/blockHeight"},
			ogmiosmock.ConversationEntryOutput{Result: 123456},
		},
	)
	defer server.Close()
	ictx := connectMock(t, server)
	defer ictx.Shutdown()
	assert.Equal(t, protocol.InteractionTypeLongRunning, ictx.Type())
	var height uint64
	require.NoError(t, ictx.Call(context.Background(), "queryNetwork/blockHeight", nil, &height))
	assert.Equal(t, uint64(123456), height)
	assert.Equal(t, 0, ictx.PendingCount())
	assert.True(t, ictx.IsOpen())
	assertNoServerError(t, server)
}

func TestLongRunningTransportSharesConnectionId(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer([]ogmiosmock.ConversationEntry{})
	defer server.Close()
	ictx := connectMock(t, server)
	defer ictx.Shutdown()
	tr := ictx.Transport()
	require.NotNil(t, tr)
	assert.Equal(t, ictx.ConnectionId(), tr.ConnectionId())
}

func TestLongRunningConcurrentCallsOutOfOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	echo := func(req *jsonrpc.Request) (any, error) {
		var params map[string]int
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		return params["n"] * 10, nil
	}
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "echo"},
			ogmiosmock.ConversationEntryInput{Method: "echo"},
			ogmiosmock.ConversationEntryInput{Method: "echo"},
			ogmiosmock.ConversationEntryOutput{Request: 3, ResultFunc: echo},
			ogmiosmock.ConversationEntryOutput{Request: 1, ResultFunc: echo},
			ogmiosmock.ConversationEntryOutput{Request: 2, ResultFunc: echo},
		},
	)
	defer server.Close()
	ictx := connectMock(t, server)
	defer ictx.Shutdown()
	var wg sync.WaitGroup
	for n := 1; n <= 3; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var result int
			err := ictx.Call(
				context.Background(),
				"echo",
				map[string]int{"n": n},
				&result,
			)
			assert.NoError(t, err)
			assert.Equal(t, n*10, result)
		}(n)
	}
	wg.Wait()
	assert.Equal(t, 0, ictx.PendingCount())
	assertNoServerError(t, server)
}

func TestLongRunningRemoteFault(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "queryLedgerState/epoch"},
			ogmiosmock.ConversationEntryOutput{
				Fault: &jsonrpc.Fault{Code: 2001, Message: "Unavailable in current era."},
			},
		},
	)
	defer server.Close()
	ictx := connectMock(t, server)
	defer ictx.Shutdown()
	err := ictx.Call(context.Background(), "queryLedgerState/epoch", nil, nil)
	var remoteErr *protocol.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, "queryLedgerState/epoch", remoteErr.Method)
	assert.Equal(t, 2001, remoteErr.Fault.Code)
	fault, ok := protocol.AsFault(err)
	require.True(t, ok)
	assert.Equal(t, "Unavailable in current era.", fault.Message)
	// A fault does not affect the session
	assert.True(t, ictx.IsOpen())
}

func TestLongRunningTimeoutKeepsConnection(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "slow"},
			ogmiosmock.ConversationEntryInput{Method: "fast"},
			ogmiosmock.ConversationEntryOutput{Request: 2, Result: "fast"},
			// This arrives after the caller gave up and is dropped
			ogmiosmock.ConversationEntryOutput{Request: 1, Result: "slow"},
		},
	)
	defer server.Close()
	ictx := connectMock(t, server)
	defer ictx.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := ictx.Call(ctx, "slow", nil, nil)
	assert.ErrorIs(t, err, protocol.ErrTimeout)
	assert.Equal(t, 0, ictx.PendingCount())
	assert.True(t, ictx.IsOpen())
	var result string
	require.NoError(t, ictx.Call(context.Background(), "fast", nil, &result))
	assert.Equal(t, "fast", result)
	assert.True(t, ictx.IsOpen())
	assertNoServerError(t, server)
}

func TestLongRunningRequestTimeoutOption(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "never"},
		},
	)
	defer server.Close()
	ictx := connectMock(t, server, protocol.WithRequestTimeout(50*time.Millisecond))
	defer ictx.Shutdown()
	start := time.Now()
	err := ictx.Call(context.Background(), "never", nil, nil)
	assert.ErrorIs(t, err, protocol.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLongRunningCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "never"},
		},
	)
	defer server.Close()
	ictx := connectMock(t, server)
	defer ictx.Shutdown()
	ctx, cancel := context.WithCancel(context.Background())
	pc, err := ictx.Start(ctx, "never", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ictx.PendingCount())
	cancel()
	err = pc.Wait(ctx, nil)
	assert.ErrorIs(t, err, protocol.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, ictx.PendingCount())
}

func TestLongRunningConnectionLost(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "nextBlock"},
			ogmiosmock.ConversationEntryClose{},
		},
	)
	defer server.Close()
	errorChan := make(chan error, 1)
	closeChan := make(chan struct{}, 1)
	ictx := connectMock(
		t,
		server,
		protocol.WithErrorFunc(func(err error) { errorChan <- err }),
		protocol.WithCloseFunc(func() { closeChan <- struct{}{} }),
	)
	defer ictx.Shutdown()
	err := ictx.Call(context.Background(), "nextBlock", nil, nil)
	assert.ErrorIs(t, err, protocol.ErrConnectionLost)
	select {
	case <-ictx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context did not close")
	}
	assert.False(t, ictx.IsOpen())
	assert.ErrorIs(t, ictx.Err(), protocol.ErrConnectionLost)
	assert.ErrorIs(t, ictx.Err(), protocol.ErrRemoteClosed)
	assert.Equal(t, 0, ictx.PendingCount())
	err = ictx.Call(context.Background(), "nextBlock", nil, nil)
	assert.ErrorIs(t, err, protocol.ErrClosed)
	select {
	case err := <-errorChan:
		assert.ErrorIs(t, err, protocol.ErrConnectionLost)
	case <-time.After(2 * time.Second):
		t.Fatal("error callback was not called")
	}
	select {
	case <-closeChan:
	case <-time.After(2 * time.Second):
		t.Fatal("close callback was not called")
	}
}

func TestLongRunningMalformedFrameIsFatal(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "nextBlock"},
			ogmiosmock.ConversationEntryOutput{Raw: []byte(`{"jsonrpc":"2.0","resu`)},
		},
	)
	defer server.Close()
	ictx := connectMock(t, server)
	defer ictx.Shutdown()
	err := ictx.Call(context.Background(), "nextBlock", nil, nil)
	assert.ErrorIs(t, err, protocol.ErrConnectionLost)
	var decodeErr *jsonrpc.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	<-ictx.Done()
	assert.False(t, ictx.IsOpen())
}

func TestLongRunningShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "nextBlock"},
		},
	)
	defer server.Close()
	ictx := connectMock(t, server)
	pc, err := ictx.Start(context.Background(), "nextBlock", nil)
	require.NoError(t, err)
	shutdownDone := make(chan struct{})
	go func() {
		// Shutdown from a different goroutine than the one waiting
		ictx.Shutdown()
		close(shutdownDone)
	}()
	err = pc.Wait(context.Background(), nil)
	assert.ErrorIs(t, err, protocol.ErrShutdown)
	<-shutdownDone
	assert.Equal(t, 0, ictx.PendingCount())
	assert.ErrorIs(t, ictx.Err(), protocol.ErrShutdown)
	// Idempotent
	ictx.Shutdown()
	_, err = ictx.Start(context.Background(), "nextBlock", nil)
	assert.ErrorIs(t, err, protocol.ErrClosed)
	err = ictx.Call(context.Background(), "nextBlock", nil, nil)
	assert.ErrorIs(t, err, protocol.ErrClosed)
}

func TestLongRunningNotificationHandler(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "subscribe"},
			ogmiosmock.ConversationEntryOutput{
				Raw: []byte(`{"jsonrpc":"2.0","method":"tipChanged","params":{"slot":1}}`),
			},
			ogmiosmock.ConversationEntryOutput{
				Raw: []byte(`{"jsonrpc":"2.0","method":"tipChanged","params":{"slot":2}}`),
			},
			ogmiosmock.ConversationEntryOutput{Result: true},
		},
	)
	defer server.Close()
	firstCalled := false
	ictx := connectMock(
		t,
		server,
		protocol.WithNotificationFunc(func(string, json.RawMessage) {
			firstCalled = true
		}),
	)
	defer ictx.Shutdown()
	var slots []int
	ictx.SetNotificationHandler(func(method string, params json.RawMessage) {
		assert.Equal(t, "tipChanged", method)
		var p struct {
			Slot int `json:"slot"`
		}
		assert.NoError(t, json.Unmarshal(params, &p))
		slots = append(slots, p.Slot)
	})
	require.NoError(t, ictx.Call(context.Background(), "subscribe", nil, nil))
	// Notifications arrived before the response, so they have been delivered in order
	assert.Equal(t, []int{1, 2}, slots)
	assert.False(t, firstCalled, "replaced handler should not be called")
}

func TestStartRequiresLongRunning(t *testing.T) {
	ictx, err := protocol.Connect(
		context.Background(),
		protocol.NewConfig(
			protocol.WithInteractionType(protocol.InteractionTypeOneShot),
		),
	)
	require.NoError(t, err)
	defer ictx.Shutdown()
	_, err = ictx.Start(context.Background(), "nextBlock", nil)
	assert.ErrorIs(t, err, protocol.ErrRequiresLongRunning)
}

func TestConnectInvalidType(t *testing.T) {
	_, err := protocol.Connect(
		context.Background(),
		protocol.NewConfig(protocol.WithInteractionType(protocol.InteractionType(9))),
	)
	assert.ErrorIs(t, err, protocol.ErrInvalidInteractionType)
}

func TestConnectError(t *testing.T) {
	defer goleak.VerifyNone(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	_, err = protocol.Connect(
		context.Background(),
		protocol.NewConfig(
			protocol.WithConnectionConfig(
				connection.NewConfig(
					connection.WithHost("127.0.0.1"),
					connection.WithPort(uint16(port)),
				),
			),
		),
	)
	var connectErr *transport.ConnectError
	assert.True(t, errors.As(err, &connectErr))
}

func TestOneShotCall(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "queryNetwork/blockHeight"},
			ogmiosmock.ConversationEntryOutput{Result: 10},
		},
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "queryNetwork/blockHeight"},
			ogmiosmock.ConversationEntryOutput{Result: 11},
		},
	)
	defer server.Close()
	ictx := connectMock(
		t,
		server,
		protocol.WithInteractionType(protocol.InteractionTypeOneShot),
	)
	defer ictx.Shutdown()
	// Nothing is dialed until the first call
	assert.Nil(t, ictx.Transport())
	var height int
	require.NoError(t, ictx.Call(context.Background(), "queryNetwork/blockHeight", nil, &height))
	assert.Equal(t, 10, height)
	// The transport is closed after each exchange
	assert.Nil(t, ictx.Transport())
	require.NoError(t, ictx.Call(context.Background(), "queryNetwork/blockHeight", nil, &height))
	assert.Equal(t, 11, height)
	assert.Equal(t, 2, server.ConnectionCount())
	assert.True(t, ictx.IsOpen())
	assertNoServerError(t, server)
}

func TestOneShotTimeoutClosesTransport(t *testing.T) {
	defer goleak.VerifyNone(t)
	// The peer reads the request and never answers
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "queryLedgerState/epoch"},
		},
	)
	defer server.Close()
	var dialed *transport.WebSocket
	ictx := connectMock(
		t,
		server,
		protocol.WithInteractionType(protocol.InteractionTypeOneShot),
		protocol.WithDialFunc(
			func(ctx context.Context, cfg connection.Config) (transport.Transport, error) {
				ws, err := transport.Dial(ctx, cfg)
				if err != nil {
					return nil, err
				}
				dialed = ws
				return ws, nil
			},
		),
	)
	defer ictx.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	err := ictx.Call(ctx, "queryLedgerState/epoch", map[string]any{}, nil)
	assert.ErrorIs(t, err, protocol.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)
	require.NotNil(t, dialed)
	assert.True(t, dialed.IsClosed())
	assert.Nil(t, ictx.Transport())
}

func TestOneShotDecodeErrorFailsOnlyCall(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "queryNetwork/tip"},
			ogmiosmock.ConversationEntryOutput{Raw: []byte(`garbage`)},
		},
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "queryNetwork/tip"},
			ogmiosmock.ConversationEntryOutput{Result: "origin"},
		},
	)
	defer server.Close()
	ictx := connectMock(
		t,
		server,
		protocol.WithInteractionType(protocol.InteractionTypeOneShot),
	)
	defer ictx.Shutdown()
	err := ictx.Call(context.Background(), "queryNetwork/tip", nil, nil)
	var decodeErr *jsonrpc.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.True(t, ictx.IsOpen())
	var tip string
	require.NoError(t, ictx.Call(context.Background(), "queryNetwork/tip", nil, &tip))
	assert.Equal(t, "origin", tip)
}

func TestOneShotStopChan(t *testing.T) {
	defer goleak.VerifyNone(t)
	stopChan := make(chan struct{})
	ictx, err := protocol.Connect(
		context.Background(),
		protocol.NewConfig(
			protocol.WithInteractionType(protocol.InteractionTypeOneShot),
			protocol.WithStopChan(stopChan),
			protocol.WithLogger(slogt.New(t)),
		),
	)
	require.NoError(t, err)
	close(stopChan)
	err = ictx.Call(context.Background(), "queryNetwork/tip", nil, nil)
	assert.ErrorIs(t, err, protocol.ErrClosed)
	assert.False(t, ictx.IsOpen())
	assert.ErrorIs(t, ictx.Err(), protocol.ErrShutdown)
}

func TestOneShotStopChanAbortsCall(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: "queryNetwork/tip"},
		},
	)
	defer server.Close()
	stopChan := make(chan struct{})
	ictx := connectMock(
		t,
		server,
		protocol.WithInteractionType(protocol.InteractionTypeOneShot),
		protocol.WithStopChan(stopChan),
	)
	errChan := make(chan error, 1)
	go func() {
		errChan <- ictx.Call(context.Background(), "queryNetwork/tip", nil, nil)
	}()
	require.Eventually(
		t,
		func() bool { return len(server.Requests()) == 1 },
		2*time.Second,
		10*time.Millisecond,
	)
	close(stopChan)
	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, protocol.ErrShutdown)
	case <-time.After(2 * time.Second):
		t.Fatal("call was not aborted")
	}
	assert.False(t, ictx.IsOpen())
	assertNoServerError(t, server)
}

func TestOneShotShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	ictx, err := protocol.Connect(
		context.Background(),
		protocol.NewConfig(
			protocol.WithInteractionType(protocol.InteractionTypeOneShot),
		),
	)
	require.NoError(t, err)
	ictx.Shutdown()
	ictx.Shutdown()
	err = ictx.Call(context.Background(), "queryNetwork/tip", nil, nil)
	assert.ErrorIs(t, err, protocol.ErrClosed)
}

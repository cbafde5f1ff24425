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

package health_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/blinklabs-io/gogmios/health"
	"github.com/blinklabs-io/gogmios/internal/test/ogmiosmock"
	"github.com/blinklabs-io/gogmios/protocol/common"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func healthBody(sync float64) map[string]any {
	return map[string]any{
		"currentEra": "conway",
		"lastKnownTip": map[string]any{
			"slot":   4492800,
			"id":     "f8084c61b6a238acec985b59310b6ecec49c0ab8352249afd7268da5cff2a457",
			"height": 2000000,
		},
		"lastTipUpdate": "2024-01-02T03:04:05.678Z",
		"metrics": map[string]any{
			"runtimeStats": map[string]any{
				"cpuTime":         1234,
				"currentHeapSize": 4096,
			},
			"sessionDurations":  map[string]any{"max": 10, "mean": 5.5, "min": 1},
			"totalConnections":  12,
			"totalMessages":     345,
			"totalUnrouted":     1,
			"activeConnections": 2,
		},
		"startTime":              "2024-01-01T00:00:00Z",
		"network":                "preprod",
		"networkSynchronization": sync,
		"version":                "v6.11.0",
	}
}

func TestGetServerHealth(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer()
	defer server.Close()
	server.SetHealthFunc(func(n int) (int, any) {
		return http.StatusOK, healthBody(1.0)
	})
	serverHealth, err := health.GetServerHealth(context.Background(), server.Config())
	require.NoError(t, err)
	assert.Equal(t, "conway", serverHealth.CurrentEra)
	assert.Equal(t, uint64(2000000), serverHealth.LastKnownTip.Height)
	require.NotNil(t, serverHealth.LastTipUpdate)
	assert.Equal(t, 2024, serverHealth.LastTipUpdate.Year())
	assert.Equal(t, uint64(12), serverHealth.Metrics.TotalConnections)
	assert.InDelta(t, 5.5, serverHealth.Metrics.SessionDurations.Mean, 0.001)
	require.NotNil(t, serverHealth.Metrics.RuntimeStats)
	require.NotNil(t, serverHealth.Metrics.RuntimeStats.CurrentHeapSize)
	assert.Equal(t, uint64(4096), *serverHealth.Metrics.RuntimeStats.CurrentHeapSize)
	assert.Nil(t, serverHealth.Metrics.RuntimeStats.MaxHeapSize)
	assert.Equal(t, "v6.11.0", serverHealth.Version)
	assert.Equal(t, common.NetworkPreprod, serverHealth.NetworkInfo())
}

func TestGetServerHealthUnexpectedStatus(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer()
	defer server.Close()
	server.SetHealthFunc(func(n int) (int, any) {
		return http.StatusInternalServerError, map[string]any{}
	})
	_, err := health.GetServerHealth(context.Background(), server.Config())
	assert.ErrorIs(t, err, health.ErrUnexpectedStatus)
}

func TestEnsureServerHealth(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer()
	defer server.Close()
	server.SetHealthFunc(func(n int) (int, any) {
		return http.StatusServiceUnavailable, healthBody(0.5)
	})
	// Default minimum
	serverHealth, err := health.EnsureServerHealth(context.Background(), server.Config(), 0)
	var notReadyErr *health.ServerNotReadyError
	require.True(t, errors.As(err, &notReadyErr))
	assert.InDelta(t, 0.5, notReadyErr.Synchronization, 0.0001)
	assert.InDelta(t, health.DefaultMinSynchronization, notReadyErr.Minimum, 0.0001)
	assert.Contains(t, err.Error(), "50.00%")
	require.NotNil(t, serverHealth)
	// Explicit lower minimum
	serverHealth, err = health.EnsureServerHealth(context.Background(), server.Config(), 0.4)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, serverHealth.NetworkSynchronization, 0.0001)
}

func TestWaitForServerReady(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer()
	defer server.Close()
	server.SetHealthFunc(func(n int) (int, any) {
		switch n {
		case 0:
			return http.StatusInternalServerError, map[string]any{}
		case 1:
			return http.StatusServiceUnavailable, healthBody(0.9)
		default:
			return http.StatusOK, healthBody(1.0)
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	serverHealth, err := health.WaitForServerReady(
		ctx,
		server.Config(),
		health.WithPollInterval(10*time.Millisecond),
		health.WithLogger(slogt.New(t)),
	)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, serverHealth.NetworkSynchronization, 0.0001)
}

func TestWaitForServerReadyTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer()
	defer server.Close()
	server.SetHealthFunc(func(n int) (int, any) {
		return http.StatusServiceUnavailable, healthBody(0.1)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := health.WaitForServerReady(
		ctx,
		server.Config(),
		health.WithPollInterval(20*time.Millisecond),
		health.WithMinSynchronization(0.5),
	)
	require.Error(t, err)
	var notReadyErr *health.ServerNotReadyError
	require.True(t, errors.As(err, &notReadyErr))
	assert.InDelta(t, 0.5, notReadyErr.Minimum, 0.0001)
}

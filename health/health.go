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

// Package health queries the HTTP health endpoint of an Ogmios server
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/protocol/common"
	"golang.org/x/time/rate"
)

const (
	// DefaultMinSynchronization is the network synchronization a server must reach to be ready
	DefaultMinSynchronization = 0.999
	DefaultPollInterval       = 5 * time.Second
	healthPath                = "/health"
	maxHealthResponseSize     = 1 << 20
)

var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// ServerHealth is the body returned by the /health endpoint
type ServerHealth struct {
	CurrentEra             string     `json:"currentEra"`
	LastKnownTip           common.Tip `json:"lastKnownTip"`
	LastTipUpdate          *time.Time `json:"lastTipUpdate"`
	Metrics                Metrics    `json:"metrics"`
	StartTime              time.Time  `json:"startTime"`
	Network                string     `json:"network"`
	NetworkSynchronization float64    `json:"networkSynchronization"`
	Version                string     `json:"version"`
}

// NetworkInfo returns the known network matching the reported network name
func (h ServerHealth) NetworkInfo() common.Network {
	return common.NetworkByName(h.Network)
}

// Metrics are the server counters reported with the health
type Metrics struct {
	RuntimeStats      *RuntimeStats    `json:"runtimeStats,omitempty"`
	SessionDurations  SessionDurations `json:"sessionDurations"`
	TotalConnections  uint64           `json:"totalConnections"`
	TotalMessages     uint64           `json:"totalMessages"`
	TotalUnrouted     uint64           `json:"totalUnrouted"`
	ActiveConnections uint64           `json:"activeConnections"`
}

type RuntimeStats struct {
	GcCpuTime       *float64 `json:"gcCpuTime,omitempty"`
	CpuTime         *float64 `json:"cpuTime,omitempty"`
	MaxHeapSize     *uint64  `json:"maxHeapSize,omitempty"`
	CurrentHeapSize *uint64  `json:"currentHeapSize,omitempty"`
}

// SessionDurations are in milliseconds
type SessionDurations struct {
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
}

// ServerNotReadyError is returned when the server is reachable but not synchronized enough
type ServerNotReadyError struct {
	Synchronization float64
	Minimum         float64
	Health          *ServerHealth
}

func (e *ServerNotReadyError) Error() string {
	return fmt.Sprintf(
		"server not ready: network synchronization is %.2f%%, minimum required is %.2f%%",
		e.Synchronization*100,
		e.Minimum*100,
	)
}

// GetServerHealth fetches the health of the server described by cfg
func GetServerHealth(ctx context.Context, cfg connection.Config) (*ServerHealth, error) {
	return getServerHealth(ctx, http.DefaultClient, cfg)
}

func getServerHealth(
	ctx context.Context,
	client *http.Client,
	cfg connection.Config,
) (*ServerHealth, error) {
	cfg.ApplyDefaults()
	url := cfg.Address().HTTP + healthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read health response: %w", err)
	}
	// The server answers 503 while the node is still syncing, but still sends the health body
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	var health ServerHealth
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

// EnsureServerHealth fetches the server health and returns a ServerNotReadyError if the network
// synchronization is below minSync. A minSync of zero uses DefaultMinSynchronization
func EnsureServerHealth(
	ctx context.Context,
	cfg connection.Config,
	minSync float64,
) (*ServerHealth, error) {
	if minSync <= 0 {
		minSync = DefaultMinSynchronization
	}
	health, err := GetServerHealth(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return checkSynchronization(health, minSync)
}

func checkSynchronization(health *ServerHealth, minSync float64) (*ServerHealth, error) {
	if health.NetworkSynchronization < minSync {
		return health, &ServerNotReadyError{
			Synchronization: health.NetworkSynchronization,
			Minimum:         minSync,
			Health:          health,
		}
	}
	return health, nil
}

// WaitConfig controls WaitForServerReady
type WaitConfig struct {
	MinSynchronization float64
	PollInterval       time.Duration
	Logger             *slog.Logger
	HttpClient         *http.Client
}

// WaitOptionFunc represents a function used to modify the WaitConfig
type WaitOptionFunc func(*WaitConfig)

// WithMinSynchronization specifies the network synchronization the server must reach
func WithMinSynchronization(minSync float64) WaitOptionFunc {
	return func(c *WaitConfig) {
		c.MinSynchronization = minSync
	}
}

// WithPollInterval specifies the time between health requests
func WithPollInterval(interval time.Duration) WaitOptionFunc {
	return func(c *WaitConfig) {
		c.PollInterval = interval
	}
}

// WithLogger specifies the logger used to report progress
func WithLogger(logger *slog.Logger) WaitOptionFunc {
	return func(c *WaitConfig) {
		c.Logger = logger
	}
}

// WithHttpClient specifies the HTTP client used for health requests
func WithHttpClient(client *http.Client) WaitOptionFunc {
	return func(c *WaitConfig) {
		c.HttpClient = client
	}
}

// WaitForServerReady polls the server health until its synchronization reaches the minimum or ctx
// is done. Request errors and unready responses are retried
func WaitForServerReady(
	ctx context.Context,
	cfg connection.Config,
	opts ...WaitOptionFunc,
) (*ServerHealth, error) {
	waitCfg := WaitConfig{
		MinSynchronization: DefaultMinSynchronization,
		PollInterval:       DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&waitCfg)
	}
	if waitCfg.MinSynchronization <= 0 {
		waitCfg.MinSynchronization = DefaultMinSynchronization
	}
	if waitCfg.PollInterval <= 0 {
		waitCfg.PollInterval = DefaultPollInterval
	}
	if waitCfg.Logger == nil {
		waitCfg.Logger = slog.New(slog.DiscardHandler)
	}
	if waitCfg.HttpClient == nil {
		waitCfg.HttpClient = http.DefaultClient
	}
	limiter := rate.NewLimiter(rate.Every(waitCfg.PollInterval), 1)
	var lastErr error
	for {
		// Wait fails early when the next poll would fall after the ctx deadline
		if err := limiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("waiting for server: %w (last error: %w)", err, lastErr)
			}
			return nil, err
		}
		health, err := getServerHealth(ctx, waitCfg.HttpClient, cfg)
		if err == nil {
			health, err = checkSynchronization(health, waitCfg.MinSynchronization)
			if err == nil {
				return health, nil
			}
		}
		lastErr = err
		waitCfg.Logger.Debug(
			fmt.Sprintf("server not ready, retrying: %s", err),
			"component", "health",
			"address", cfg.HostPort(),
		)
	}
}

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

package main

import (
	"context"
	"time"

	"github.com/blinklabs-io/gogmios/health"
	"github.com/spf13/cobra"
)

type healthFlags struct {
	wait         bool
	minSync      float64
	timeout      time.Duration
	pollInterval time.Duration
}

func newHealthCommand(f *globalFlags) *cobra.Command {
	hFlags := &healthFlags{}
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show the server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd, f, hFlags)
		},
	}
	cmd.Flags().BoolVar(&hFlags.wait, "wait", false, "wait until the server is synchronized")
	cmd.Flags().Float64Var(
		&hFlags.minSync,
		"min-sync",
		health.DefaultMinSynchronization,
		"network synchronization required for the server to be ready",
	)
	cmd.Flags().DurationVar(&hFlags.timeout, "timeout", 0, "give up waiting after this long")
	cmd.Flags().DurationVar(
		&hFlags.pollInterval,
		"poll-interval",
		health.DefaultPollInterval,
		"time between health requests while waiting",
	)
	return cmd
}

func runHealth(cmd *cobra.Command, f *globalFlags, hFlags *healthFlags) error {
	s, err := newSession(cmd, f, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	if !hFlags.wait {
		serverHealth, err := s.conn.ServerHealth(s.ctx)
		if err != nil {
			return err
		}
		return printJSON(serverHealth)
	}
	ctx := s.ctx
	if hFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hFlags.timeout)
		defer cancel()
	}
	serverHealth, err := health.WaitForServerReady(
		ctx,
		s.conn.Config(),
		health.WithMinSynchronization(hFlags.minSync),
		health.WithPollInterval(hFlags.pollInterval),
		health.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}
	return printJSON(serverHealth)
}

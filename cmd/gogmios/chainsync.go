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
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	ogmios "github.com/blinklabs-io/gogmios"
	"github.com/blinklabs-io/gogmios/protocol/chainsync"
	"github.com/blinklabs-io/gogmios/protocol/common"
	"github.com/spf13/cobra"
)

type chainSyncFlags struct {
	startOrigin bool
	points      []string
	pipeline    int
	maxBlocks   uint64
}

func newChainSyncCommand(f *globalFlags) *cobra.Command {
	csFlags := &chainSyncFlags{}
	cmd := &cobra.Command{
		Use:   "chain-sync",
		Short: "Follow the chain and print each block",
		Long: "Follow the chain and print each block. By default the sync starts from the current " +
			"tip of the server",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChainSync(cmd, f, csFlags)
		},
	}
	cmd.Flags().BoolVar(&csFlags.startOrigin, "start-origin", false, "start the sync from origin")
	cmd.Flags().StringSliceVar(
		&csFlags.points,
		"point",
		nil,
		"intersection candidate in slot.id format (may be repeated)",
	)
	cmd.Flags().IntVar(
		&csFlags.pipeline,
		"pipeline",
		0,
		"number of nextBlock requests to keep in flight",
	)
	cmd.Flags().Uint64Var(
		&csFlags.maxBlocks,
		"max-blocks",
		0,
		"stop after this many blocks (0 means no limit)",
	)
	return cmd
}

func buildChainSyncConfig(
	logger *slog.Logger,
	pipelineLimit int,
	maxBlocks uint64,
) chainsync.Config {
	var blockCount atomic.Uint64
	return chainsync.NewConfig(
		chainsync.WithPipelineLimit(pipelineLimit),
		chainsync.WithRollForwardFunc(
			func(ctx chainsync.CallbackContext, block common.Block, tip common.Tip) error {
				logger.Info(
					fmt.Sprintf(
						"roll forward: era = %s, slot = %d, height = %d, id = %s",
						block.Era,
						block.Slot,
						block.Height,
						block.Id,
					),
					"tip", tip.String(),
				)
				if maxBlocks > 0 && blockCount.Add(1) >= maxBlocks {
					return chainsync.ErrStopSyncProcess
				}
				return nil
			},
		),
		chainsync.WithRollBackwardFunc(
			func(ctx chainsync.CallbackContext, point common.Point, tip common.Tip) error {
				logger.Info(
					fmt.Sprintf("roll backward: point = %s", point.String()),
					"tip", tip.String(),
				)
				return nil
			},
		),
	)
}

func runChainSync(cmd *cobra.Command, f *globalFlags, csFlags *chainSyncFlags) error {
	if csFlags.startOrigin && len(csFlags.points) > 0 {
		return errors.New("--start-origin and --point cannot be used together")
	}
	var points []common.Point
	for _, pointStr := range csFlags.points {
		point, err := common.ParsePoint(pointStr)
		if err != nil {
			return err
		}
		points = append(points, point)
	}
	s, err := newSession(
		cmd,
		f,
		func(cfg *cliConfig, logger *slog.Logger) []ogmios.ConnectionOptionFunc {
			// The pipeline depth comes from the flag, then the config file
			pipelineLimit := cfg.ChainSync.PipelineLimit
			if csFlags.pipeline > 0 {
				pipelineLimit = csFlags.pipeline
			}
			return []ogmios.ConnectionOptionFunc{
				ogmios.WithChainSyncConfig(
					buildChainSyncConfig(logger, pipelineLimit, csFlags.maxBlocks),
				),
			}
		},
	)
	if err != nil {
		return err
	}
	defer s.Close()
	client, err := s.conn.ChainSync(s.ctx)
	if err != nil {
		return err
	}
	switch {
	case csFlags.startOrigin:
		points = []common.Point{common.NewPointOrigin()}
	case len(points) == 0:
		tip, err := client.GetCurrentTip(s.ctx)
		if err != nil {
			return fmt.Errorf("failed to get current tip: %w", err)
		}
		points = []common.Point{tip.Point}
	}
	intersection, err := client.Resume(s.ctx, points)
	if err != nil {
		return err
	}
	s.logger.Info(
		fmt.Sprintf("found intersection at %s", intersection.Point.String()),
		"tip", intersection.Tip.String(),
	)
	err = client.Wait(s.ctx)
	if s.ctx.Err() != nil {
		// Interrupted
		return nil
	}
	return err
}

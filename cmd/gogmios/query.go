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
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	ogmios "github.com/blinklabs-io/gogmios"
	"github.com/blinklabs-io/gogmios/protocol/common"
	"github.com/blinklabs-io/gogmios/protocol/ledgerstatequery"
	"github.com/spf13/cobra"
)

type lsqClient = ledgerstatequery.Client

type queryFlags struct {
	addresses    []string
	outputRefs   []string
	pools        []string
	includeStake bool
}

type queryFunc func(context.Context, *lsqClient, []string, *queryFlags) (any, error)

type queryDef struct {
	args  int
	usage string
	run   queryFunc
}

var queries = map[string]queryDef{
	"network-tip": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.NetworkTip(ctx)
		},
	},
	"block-height": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.NetworkBlockHeight(ctx)
		},
	},
	"start-time": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.NetworkStartTime(ctx)
		},
	},
	"genesis": {
		args:  1,
		usage: "<era>",
		run: func(ctx context.Context, c *lsqClient, args []string, _ *queryFlags) (any, error) {
			return c.GenesisConfiguration(ctx, args[0])
		},
	},
	"epoch": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.Epoch(ctx)
		},
	},
	"era-start": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.EraStart(ctx)
		},
	},
	"era-summaries": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.EraSummaries(ctx)
		},
	},
	"ledger-tip": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.LedgerTip(ctx)
		},
	},
	"protocol-parameters": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.ProtocolParameters(ctx)
		},
	},
	"stake-pools": {
		run: func(ctx context.Context, c *lsqClient, _ []string, q *queryFlags) (any, error) {
			return c.StakePools(ctx, q.pools, q.includeStake)
		},
	},
	"live-stake-distribution": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.LiveStakeDistribution(ctx)
		},
	},
	"projected-rewards": {
		args:  -1,
		usage: "<stake address>...",
		run: func(ctx context.Context, c *lsqClient, args []string, _ *queryFlags) (any, error) {
			return c.ProjectedRewards(ctx, args)
		},
	},
	"stake-pools-performances": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.StakePoolsPerformances(ctx)
		},
	},
	"constitution": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.Constitution(ctx)
		},
	},
	"governance-proposals": {
		run: func(ctx context.Context, c *lsqClient, _ []string, _ *queryFlags) (any, error) {
			return c.GovernanceProposals(ctx, nil)
		},
	},
	"utxo": {
		run: func(ctx context.Context, c *lsqClient, _ []string, q *queryFlags) (any, error) {
			if len(q.outputRefs) > 0 {
				refs, err := parseOutputReferences(q.outputRefs)
				if err != nil {
					return nil, err
				}
				return c.UtxoByOutputReferences(ctx, refs)
			}
			return c.UtxoByAddresses(ctx, q.addresses)
		},
	},
	"reward-accounts": {
		args:  -1,
		usage: "<stake address>...",
		run: func(ctx context.Context, c *lsqClient, args []string, _ *queryFlags) (any, error) {
			return c.RewardAccountSummaries(ctx, args)
		},
	},
}

func queryNames() []string {
	ret := make([]string, 0, len(queries))
	for name, def := range queries {
		if def.usage != "" {
			name = name + " " + def.usage
		}
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func newQueryCommand(f *globalFlags) *cobra.Command {
	qFlags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query <name> [args]",
		Short: "Run a ledger state query",
		Long:  "Run a ledger state query. Available queries:\n  " + strings.Join(queryNames(), "\n  "),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, f, qFlags, args[0], args[1:])
		},
	}
	cmd.Flags().StringSliceVar(&qFlags.addresses, "address", nil, "address for the utxo query")
	cmd.Flags().StringSliceVar(
		&qFlags.outputRefs,
		"output-reference",
		nil,
		"output reference (txid#index) for the utxo query",
	)
	cmd.Flags().StringSliceVar(&qFlags.pools, "pool", nil, "pool ID for the stake-pools query")
	cmd.Flags().BoolVar(
		&qFlags.includeStake,
		"include-stake",
		false,
		"include the stake of each pool in the stake-pools query",
	)
	return cmd
}

func runQuery(
	cmd *cobra.Command,
	f *globalFlags,
	qFlags *queryFlags,
	name string,
	args []string,
) error {
	def, ok := queries[name]
	if !ok {
		return fmt.Errorf("unknown query %q", name)
	}
	switch {
	case def.args >= 0 && len(args) != def.args:
		return fmt.Errorf("query %s expects %d argument(s), got %d", name, def.args, len(args))
	case def.args < 0 && len(args) == 0:
		return fmt.Errorf("query %s expects at least one argument", name)
	}
	s, err := newSession(
		cmd,
		f,
		func(cfg *cliConfig, _ *slog.Logger) []ogmios.ConnectionOptionFunc {
			var lsqOpts []ledgerstatequery.LedgerStateQueryOptionFunc
			if cfg.Network != "" {
				lsqOpts = append(
					lsqOpts,
					ledgerstatequery.WithNetwork(ogmios.NetworkByName(cfg.Network)),
				)
			}
			return []ogmios.ConnectionOptionFunc{
				ogmios.WithLedgerStateQueryConfig(ledgerstatequery.NewConfig(lsqOpts...)),
			}
		},
	)
	if err != nil {
		return err
	}
	defer s.Close()
	client, err := s.conn.LedgerStateQuery(s.ctx)
	if err != nil {
		return err
	}
	result, err := def.run(s.ctx, client, args, qFlags)
	if err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	return printJSON(result)
}

// parseOutputReferences parses output references in the txid#index form
func parseOutputReferences(refs []string) ([]common.OutputReference, error) {
	ret := make([]common.OutputReference, 0, len(refs))
	for _, ref := range refs {
		txId, indexStr, ok := strings.Cut(ref, "#")
		if !ok || txId == "" {
			return nil, fmt.Errorf("invalid output reference %q", ref)
		}
		index, err := strconv.ParseUint(indexStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid output reference %q: %w", ref, err)
		}
		ret = append(ret, common.NewOutputReference(txId, uint32(index)))
	}
	return ret, nil
}

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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type mempoolFlags struct {
	full bool
}

func newMempoolCommand(f *globalFlags) *cobra.Command {
	mFlags := &mempoolFlags{}
	cmd := &cobra.Command{
		Use:   "mempool",
		Short: "Show the size and the transactions of a mempool snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMempool(cmd, f, mFlags)
		},
	}
	cmd.Flags().BoolVar(&mFlags.full, "full", false, "print full transactions instead of IDs")
	return cmd
}

func runMempool(cmd *cobra.Command, f *globalFlags, mFlags *mempoolFlags) error {
	s, err := newSession(cmd, f, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	client, err := s.conn.MempoolMonitor(s.ctx)
	if err != nil {
		return err
	}
	slot, err := client.AcquireMempool(s.ctx)
	if err != nil {
		return err
	}
	defer func() {
		// The session context may already be cancelled
		_ = client.ReleaseMempool(context.Background())
	}()
	size, err := client.SizeOfMempool(s.ctx)
	if err != nil {
		return err
	}
	fmt.Printf(
		"mempool at slot %d: %d transactions, %d/%d bytes\n",
		slot,
		size.Transactions,
		size.Bytes,
		size.MaxBytes,
	)
	if mFlags.full {
		return client.ForEachTransaction(s.ctx, func(tx json.RawMessage) error {
			fmt.Println(string(tx))
			return nil
		})
	}
	for {
		txId, err := client.NextTransactionId(s.ctx)
		if err != nil {
			return err
		}
		if txId == "" {
			return nil
		}
		fmt.Println(txId)
	}
}

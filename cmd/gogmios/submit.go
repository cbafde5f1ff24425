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
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <file.hex>",
		Short: "Submit a signed transaction read as hex-encoded CBOR from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txCbor, err := readTxFile(args[0])
			if err != nil {
				return err
			}
			s, err := newSession(cmd, f, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			client, err := s.conn.TxSubmission(s.ctx)
			if err != nil {
				return err
			}
			txId, err := client.SubmitTransaction(s.ctx, txCbor)
			if err != nil {
				return err
			}
			fmt.Printf("submitted transaction %s\n", txId)
			return nil
		},
	}
}

func newEvaluateCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <file.hex>",
		Short: "Evaluate the script budgets of a hex-encoded CBOR transaction read from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txCbor, err := readTxFile(args[0])
			if err != nil {
				return err
			}
			s, err := newSession(cmd, f, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			client, err := s.conn.TxSubmission(s.ctx)
			if err != nil {
				return err
			}
			evaluations, err := client.EvaluateTransaction(s.ctx, txCbor, nil)
			if err != nil {
				return err
			}
			return printJSON(evaluations)
		},
	}
}

// readTxFile reads a hex-encoded transaction. A cardano-cli text envelope is not supported
func readTxFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction file: %w", err)
	}
	txCbor, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction hex: %w", err)
	}
	return txCbor, nil
}

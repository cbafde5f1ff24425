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

package txsubmission_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blinklabs-io/gogmios/internal/test"
	"github.com/blinklabs-io/gogmios/internal/test/ogmiosmock"
	"github.com/blinklabs-io/gogmios/jsonrpc"
	"github.com/blinklabs-io/gogmios/protocol"
	"github.com/blinklabs-io/gogmios/protocol/common"
	"github.com/blinklabs-io/gogmios/protocol/txsubmission"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	// [{0: [[h'00..00', 0]]}, {}, true, null]
	testTxHex = "84a10081825820000000000000000000000000000000000000000000000000000000000000000000a0f5f6"
	testTxId  = "f03cc829ed103b36ea6abb9541cd2b37d3b6e552f359c5dd67026350cb95e8f0"
	// [{}, {}, true, null]
	testEmptyTxHex = "84a0a0f5f6"
	testEmptyTxId  = "d36a2619a672494604e11bb447cbcf5231e9f2ba25c2169177edc941bd50ad6c"
)

func testTx(t *testing.T) []byte {
	t.Helper()
	return test.DecodeHexString(testTxHex)
}

type testInnerFunc func(*testing.T, *txsubmission.Client)

func runTest(
	t *testing.T,
	conversation []ogmiosmock.ConversationEntry,
	cfg txsubmission.Config,
	innerFunc testInnerFunc,
) *ogmiosmock.Server {
	defer goleak.VerifyNone(t)
	server := ogmiosmock.NewServer(conversation)
	defer server.Close()
	ictx, err := protocol.Connect(
		context.Background(),
		protocol.NewConfig(
			protocol.WithConnectionConfig(server.Config()),
			protocol.WithInteractionType(protocol.InteractionTypeOneShot),
			protocol.WithLogger(slogt.New(t)),
		),
	)
	require.NoError(t, err)
	defer ictx.Shutdown()
	client := txsubmission.NewClient(ictx, &cfg)
	innerFunc(t, client)
	if err := server.Err(); err != nil {
		t.Fatalf("mock server error: %s", err)
	}
	return server
}

func TestComputeTransactionId(t *testing.T) {
	testDefs := map[string]string{
		testTxHex:      testTxId,
		testEmptyTxHex: testEmptyTxId,
	}
	for txHex, expectedId := range testDefs {
		txId, err := txsubmission.ComputeTransactionId(test.DecodeHexString(txHex))
		require.NoError(t, err)
		assert.Equal(t, expectedId, txId.String())
	}
}

func TestComputeTransactionIdInvalid(t *testing.T) {
	testDefs := []string{
		// Not CBOR
		"ff",
		// Truncated
		"84a0a0f5",
		// Three items
		"83a0a0f6",
		// Map instead of array
		"a10102",
		// Body is not a map
		"8401a0f5f6",
		// Trailing bytes
		"84a0a0f5f600",
	}
	for _, txHex := range testDefs {
		_, err := txsubmission.ComputeTransactionId(test.DecodeHexString(txHex))
		assert.ErrorIs(t, err, txsubmission.ErrInvalidTransaction, "tx %s", txHex)
	}
}

func TestSubmitTransaction(t *testing.T) {
	conversation := []ogmiosmock.ConversationEntry{
		ogmiosmock.ConversationEntryInput{
			Method: txsubmission.MethodSubmitTransaction,
			ParamsFunc: func(params json.RawMessage) error {
				expected := `{"transaction":{"cbor":"` + testTxHex + `"}}`
				if string(params) != expected {
					return fmt.Errorf("unexpected params: %s", string(params))
				}
				return nil
			},
		},
		ogmiosmock.ConversationEntryOutput{
			Result: map[string]any{"transaction": map[string]any{"id": testTxId}},
		},
	}
	runTest(
		t,
		conversation,
		txsubmission.NewConfig(),
		func(t *testing.T, client *txsubmission.Client) {
			txId, err := client.SubmitTransaction(context.Background(), testTx(t))
			require.NoError(t, err)
			assert.Equal(t, txsubmission.TransactionId(testTxId), txId)
		},
	)
}

func TestSubmitTransactionIdMismatch(t *testing.T) {
	// The server ID is returned even when it does not match the local one
	runTest(
		t,
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: txsubmission.MethodSubmitTransaction},
			ogmiosmock.ConversationEntryOutput{
				Result: map[string]any{"transaction": map[string]any{"id": testEmptyTxId}},
			},
		},
		txsubmission.NewConfig(),
		func(t *testing.T, client *txsubmission.Client) {
			txId, err := client.SubmitTransaction(context.Background(), testTx(t))
			require.NoError(t, err)
			assert.Equal(t, testEmptyTxId, txId.String())
		},
	)
}

func TestSubmitTransactionRejected(t *testing.T) {
	runTest(
		t,
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: txsubmission.MethodSubmitTransaction},
			ogmiosmock.ConversationEntryOutput{
				Fault: &jsonrpc.Fault{
					Code:    txsubmission.FaultCodeValueNotConserved,
					Message: "Value not conserved.",
					Data:    json.RawMessage(`{"consumedValue":{"ada":{"lovelace":1}}}`),
				},
			},
		},
		txsubmission.NewConfig(),
		func(t *testing.T, client *txsubmission.Client) {
			_, err := client.SubmitTransaction(context.Background(), testTx(t))
			require.Error(t, err)
			var submitErr *txsubmission.SubmitError
			require.True(t, errors.As(err, &submitErr))
			assert.Equal(t, txsubmission.FaultCodeValueNotConserved, submitErr.Fault.Code)
			var data map[string]any
			require.NoError(t, submitErr.Fault.DecodeData(&data))
			assert.Contains(t, data, "consumedValue")
		},
	)
}

func TestSubmitTransactionInvalidCbor(t *testing.T) {
	server := runTest(
		t,
		nil,
		txsubmission.NewConfig(),
		func(t *testing.T, client *txsubmission.Client) {
			_, err := client.SubmitTransaction(context.Background(), []byte{0x83, 0xa0})
			assert.ErrorIs(t, err, txsubmission.ErrInvalidTransaction)
			_, err = client.EvaluateTransaction(context.Background(), nil, nil)
			assert.ErrorIs(t, err, txsubmission.ErrInvalidTransaction)
		},
	)
	assert.Empty(t, server.Requests())
	assert.Equal(t, 0, server.ConnectionCount())
}

func TestEvaluateTransaction(t *testing.T) {
	utxo := common.Utxo{
		OutputReference: common.NewOutputReference("0000000000000000000000000000000000000000000000000000000000000000", 0),
		Address:         "addr_test1vqqsyqcyq5rqwzqfpg9scrgwpugpzysnzs23v9ccrydpk8qxyywge",
		Value:           common.Value{Lovelace: 5000000},
	}
	conversation := []ogmiosmock.ConversationEntry{
		ogmiosmock.ConversationEntryInput{
			Method: txsubmission.MethodEvaluateTransaction,
			ParamsFunc: func(params json.RawMessage) error {
				var tmp struct {
					Transaction struct {
						Cbor string `json:"cbor"`
					} `json:"transaction"`
					AdditionalUtxo []common.Utxo `json:"additionalUtxo"`
				}
				if err := json.Unmarshal(params, &tmp); err != nil {
					return err
				}
				if tmp.Transaction.Cbor != testTxHex {
					return fmt.Errorf("unexpected cbor: %s", tmp.Transaction.Cbor)
				}
				if len(tmp.AdditionalUtxo) != 1 || tmp.AdditionalUtxo[0].Value.Lovelace != 5000000 {
					return fmt.Errorf("unexpected additional UTxO: %s", string(params))
				}
				return nil
			},
		},
		ogmiosmock.ConversationEntryOutput{
			Result: []any{
				map[string]any{
					"validator": map[string]any{"purpose": "spend", "index": 0},
					"budget":    map[string]any{"memory": 5236222, "cpu": 1212353},
				},
				map[string]any{
					"validator": map[string]any{"purpose": "mint", "index": 1},
					"budget":    map[string]any{"memory": 5000, "cpu": 42},
				},
			},
		},
	}
	runTest(
		t,
		conversation,
		txsubmission.NewConfig(),
		func(t *testing.T, client *txsubmission.Client) {
			evaluations, err := client.EvaluateTransaction(
				context.Background(),
				testTx(t),
				[]common.Utxo{utxo},
			)
			require.NoError(t, err)
			require.Len(t, evaluations, 2)
			assert.Equal(t, "spend:0", evaluations[0].Validator.String())
			assert.Equal(t, uint64(5236222), evaluations[0].Budget.Memory)
			assert.Equal(t, uint64(42), evaluations[1].Budget.Cpu)
		},
	)
}

func TestEvaluateTransactionSingleResult(t *testing.T) {
	runTest(
		t,
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{
				Method: txsubmission.MethodEvaluateTransaction,
				ParamsFunc: func(params json.RawMessage) error {
					expected := `{"transaction":{"cbor":"` + testTxHex + `"}}`
					if string(params) != expected {
						return fmt.Errorf("unexpected params: %s", string(params))
					}
					return nil
				},
			},
			ogmiosmock.ConversationEntryOutput{
				Result: map[string]any{
					"validator": map[string]any{"purpose": "spend", "index": 3},
					"budget":    map[string]any{"memory": 1, "cpu": 2},
				},
			},
		},
		txsubmission.NewConfig(),
		func(t *testing.T, client *txsubmission.Client) {
			evaluations, err := client.EvaluateTransaction(context.Background(), testTx(t), nil)
			require.NoError(t, err)
			require.Len(t, evaluations, 1)
			assert.Equal(t, uint32(3), evaluations[0].Validator.Index)
		},
	)
}

func TestEvaluateTransactionFailure(t *testing.T) {
	runTest(
		t,
		[]ogmiosmock.ConversationEntry{
			ogmiosmock.ConversationEntryInput{Method: txsubmission.MethodEvaluateTransaction},
			ogmiosmock.ConversationEntryOutput{
				Fault: &jsonrpc.Fault{
					Code:    txsubmission.FaultCodeScriptExecutionFailure,
					Message: "Some scripts of the transactions terminated with error(s).",
				},
			},
		},
		txsubmission.NewConfig(),
		func(t *testing.T, client *txsubmission.Client) {
			_, err := client.EvaluateTransaction(context.Background(), testTx(t), nil)
			var evaluateErr *txsubmission.EvaluateError
			require.True(t, errors.As(err, &evaluateErr))
			fault, ok := protocol.AsFault(err)
			require.True(t, ok)
			assert.Equal(t, txsubmission.FaultCodeScriptExecutionFailure, fault.Code)
		},
	)
}

func TestConfigDefaults(t *testing.T) {
	cfg := txsubmission.NewConfig(
		txsubmission.WithSubmitTimeout(5*time.Second),
		txsubmission.WithSkipIdCheck(true),
	)
	assert.Equal(t, 5*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, txsubmission.DefaultEvaluateTimeout, cfg.EvaluateTimeout)
	assert.True(t, cfg.SkipIdCheck)
}

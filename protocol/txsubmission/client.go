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

package txsubmission

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/protocol"
	"github.com/blinklabs-io/gogmios/protocol/common"
)

// callerInfo is implemented by interaction contexts
type callerInfo interface {
	Logger() *slog.Logger
	ConnectionId() connection.ConnectionId
}

// Client implements the TxSubmission client
type Client struct {
	caller       protocol.Caller
	config       *Config
	logger       *slog.Logger
	connectionId connection.ConnectionId
}

type transactionCbor struct {
	Cbor string `json:"cbor"`
}

type submitTransactionParams struct {
	Transaction transactionCbor `json:"transaction"`
}

type submitTransactionResult struct {
	Transaction common.TransactionReference `json:"transaction"`
}

type evaluateTransactionParams struct {
	Transaction    transactionCbor `json:"transaction"`
	AdditionalUtxo []common.Utxo   `json:"additionalUtxo,omitempty"`
}

// Validator identifies a redeemer by its purpose and index
type Validator struct {
	Purpose string `json:"purpose"`
	Index   uint32 `json:"index"`
}

func (v Validator) String() string {
	return fmt.Sprintf("%s:%d", v.Purpose, v.Index)
}

// Evaluation is the execution budget required by a single validator
type Evaluation struct {
	Validator Validator             `json:"validator"`
	Budget    common.ExecutionUnits `json:"budget"`
}

// NewClient returns a new TxSubmission client object
func NewClient(caller protocol.Caller, cfg *Config) *Client {
	if cfg == nil {
		tmpCfg := NewConfig()
		cfg = &tmpCfg
	}
	// Apply defaults for zero values to handle Config{} created without NewConfig()
	config := *cfg
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = DefaultSubmitTimeout
	}
	if config.EvaluateTimeout <= 0 {
		config.EvaluateTimeout = DefaultEvaluateTimeout
	}
	c := &Client{
		caller: caller,
		config: &config,
		logger: slog.New(slog.DiscardHandler),
	}
	if info, ok := caller.(callerInfo); ok {
		c.logger = info.Logger()
		c.connectionId = info.ConnectionId()
	}
	return c
}

// SubmitTransaction submits a signed, CBOR-encoded transaction and returns its ID
func (c *Client) SubmitTransaction(ctx context.Context, txCbor []byte) (TransactionId, error) {
	expectedId, err := ComputeTransactionId(txCbor)
	if err != nil {
		return "", err
	}
	c.logger.Debug(
		fmt.Sprintf("calling %s (tx %s)", MethodSubmitTransaction, expectedId),
		"component", "network",
		"protocol", ProtocolName,
		"role", "client",
		"connection_id", c.connectionId.String(),
	)
	params := submitTransactionParams{
		Transaction: transactionCbor{Cbor: hex.EncodeToString(txCbor)},
	}
	var result submitTransactionResult
	if err := c.call(ctx, c.config.SubmitTimeout, MethodSubmitTransaction, params, &result); err != nil {
		if fault, ok := protocol.AsFault(err); ok {
			return "", &SubmitError{Fault: fault}
		}
		return "", err
	}
	txId := TransactionId(result.Transaction.Id)
	if !c.config.SkipIdCheck && !strings.EqualFold(string(txId), string(expectedId)) {
		c.logger.Warn(
			fmt.Sprintf(
				"%s: server returned transaction ID %s, expected %s",
				ProtocolName,
				txId,
				expectedId,
			),
			"component", "network",
			"protocol", ProtocolName,
			"role", "client",
			"connection_id", c.connectionId.String(),
		)
	}
	return txId, nil
}

// EvaluateTransaction returns the execution budget of each script in the transaction. The
// additional UTxOs are used to resolve inputs not yet on chain
func (c *Client) EvaluateTransaction(
	ctx context.Context,
	txCbor []byte,
	additionalUtxo []common.Utxo,
) ([]Evaluation, error) {
	if _, err := decodeTransaction(txCbor); err != nil {
		return nil, err
	}
	c.logger.Debug(
		fmt.Sprintf("calling %s", MethodEvaluateTransaction),
		"component", "network",
		"protocol", ProtocolName,
		"role", "client",
		"connection_id", c.connectionId.String(),
	)
	params := evaluateTransactionParams{
		Transaction:    transactionCbor{Cbor: hex.EncodeToString(txCbor)},
		AdditionalUtxo: additionalUtxo,
	}
	var result json.RawMessage
	if err := c.call(ctx, c.config.EvaluateTimeout, MethodEvaluateTransaction, params, &result); err != nil {
		if fault, ok := protocol.AsFault(err); ok {
			return nil, &EvaluateError{Fault: fault}
		}
		return nil, err
	}
	return decodeEvaluations(result)
}

func (c *Client) call(
	ctx context.Context,
	timeout time.Duration,
	method string,
	params any,
	result any,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.caller.Call(ctx, method, params, result)
}

// decodeEvaluations accepts either a list of evaluations or a single one
func decodeEvaluations(data json.RawMessage) ([]Evaluation, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var evaluation Evaluation
		if err := json.Unmarshal(data, &evaluation); err != nil {
			return nil, fmt.Errorf("%w: %w", protocol.ErrUnexpectedResponse, err)
		}
		return []Evaluation{evaluation}, nil
	}
	var evaluations []Evaluation
	if err := json.Unmarshal(data, &evaluations); err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrUnexpectedResponse, err)
	}
	return evaluations, nil
}

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
	"errors"
	"fmt"

	"github.com/blinklabs-io/gogmios/jsonrpc"
)

// Fault codes for evaluateTransaction
const (
	FaultCodeIncompatibleEra               = 3000
	FaultCodeUnsupportedEra                = 3001
	FaultCodeOverlappingAdditionalUtxo     = 3002
	FaultCodeNodeTipTooOld                 = 3003
	FaultCodeCannotCreateEvaluationContext = 3004
	FaultCodeScriptExecutionFailure        = 3010
)

// Fault codes for submitTransaction
const (
	FaultCodeEraMismatch          = 3005
	FaultCodeInvalidSignatories   = 3100
	FaultCodeMissingSignatories   = 3101
	FaultCodeUnknownUtxoReference = 3117
	FaultCodeValueNotConserved    = 3123
	FaultCodeInsufficientFee      = 3125
	FaultCodeDeserializationError = 3997
)

// ErrInvalidTransaction is returned when the transaction CBOR fails local validation
var ErrInvalidTransaction = errors.New("invalid transaction")

// SubmitError is returned when the server rejects a transaction
type SubmitError struct {
	Fault *jsonrpc.Fault
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("transaction rejected: %s", e.Fault.Error())
}

func (e *SubmitError) Unwrap() error {
	return e.Fault
}

// EvaluateError is returned when the server fails to evaluate a transaction
type EvaluateError struct {
	Fault *jsonrpc.Fault
}

func (e *EvaluateError) Error() string {
	return fmt.Sprintf("transaction evaluation failed: %s", e.Fault.Error())
}

func (e *EvaluateError) Unwrap() error {
	return e.Fault
}

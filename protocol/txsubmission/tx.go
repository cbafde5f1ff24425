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
	"encoding/hex"
	"fmt"

	"github.com/blinklabs-io/gogmios/cbor"
	"golang.org/x/crypto/blake2b"
)

// A transaction is [body, witnesses, isValid, auxiliaryData]
const transactionItemCount = 4

// TransactionId is the hex-encoded blake2b-256 hash of a transaction body
type TransactionId string

func (id TransactionId) String() string {
	return string(id)
}

// ComputeTransactionId returns the ID of a CBOR-encoded transaction. The hash is computed over
// the original body bytes, so the encoding is never normalized
func ComputeTransactionId(txCbor []byte) (TransactionId, error) {
	items, err := decodeTransaction(txCbor)
	if err != nil {
		return "", err
	}
	hash := blake2b.Sum256(items[0])
	return TransactionId(hex.EncodeToString(hash[:])), nil
}

func decodeTransaction(txCbor []byte) ([]cbor.RawMessage, error) {
	items, err := cbor.DecodeRawArray(txCbor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}
	if len(items) != transactionItemCount {
		return nil, fmt.Errorf(
			"%w: expected %d top-level items, found %d",
			ErrInvalidTransaction,
			transactionItemCount,
			len(items),
		)
	}
	bodyType, err := cbor.MajorType(items[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}
	if bodyType != cbor.CborTypeMap {
		return nil, fmt.Errorf("%w: transaction body is not a map", ErrInvalidTransaction)
	}
	return items, nil
}

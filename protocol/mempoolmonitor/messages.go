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

package mempoolmonitor

import (
	"bytes"
	"encoding/json"
)

type acquireMempoolResult struct {
	Slot uint64 `json:"slot"`
}

type hasTransactionParams struct {
	Id string `json:"id"`
}

type hasTransactionResult struct {
	HasTransaction bool `json:"hasTransaction"`
}

type nextTransactionParams struct {
	Fields string `json:"fields,omitempty"`
}

type nextTransactionResult struct {
	Transaction json.RawMessage `json:"transaction"`
}

func (r nextTransactionResult) isEnd() bool {
	return len(r.Transaction) == 0 || bytes.Equal(bytes.TrimSpace(r.Transaction), []byte("null"))
}

type nextTransactionIdResult struct {
	Transaction *struct {
		Id string `json:"id"`
	} `json:"transaction"`
}

// MempoolSize describes the current size and the capacity of the acquired mempool snapshot
type MempoolSize struct {
	Bytes           uint64
	Transactions    uint64
	MaxBytes        uint64
	MaxTransactions uint64
}

type numberOfBytes struct {
	Bytes uint64 `json:"bytes"`
}

type transactionCount struct {
	Count uint64 `json:"count"`
}

// UnmarshalJSON accepts both the {currentSize, maxCapacity, transactions: {count}} layout and the
// flat {bytes, transactions, maxBytes, maxTransactions} layout
func (m *MempoolSize) UnmarshalJSON(data []byte) error {
	var tmp struct {
		CurrentSize     *numberOfBytes  `json:"currentSize"`
		MaxCapacity     *numberOfBytes  `json:"maxCapacity"`
		Bytes           json.RawMessage `json:"bytes"`
		MaxBytes        json.RawMessage `json:"maxBytes"`
		Transactions    json.RawMessage `json:"transactions"`
		MaxTransactions uint64          `json:"maxTransactions"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*m = MempoolSize{MaxTransactions: tmp.MaxTransactions}
	if tmp.CurrentSize != nil {
		m.Bytes = tmp.CurrentSize.Bytes
	}
	if tmp.MaxCapacity != nil {
		m.MaxBytes = tmp.MaxCapacity.Bytes
	}
	var err error
	if tmp.Bytes != nil {
		if m.Bytes, err = decodeBytes(tmp.Bytes); err != nil {
			return err
		}
	}
	if tmp.MaxBytes != nil {
		if m.MaxBytes, err = decodeBytes(tmp.MaxBytes); err != nil {
			return err
		}
	}
	if tmp.Transactions != nil {
		var count transactionCount
		if err := json.Unmarshal(tmp.Transactions, &count); err != nil {
			// Plain number
			if err := json.Unmarshal(tmp.Transactions, &m.Transactions); err != nil {
				return err
			}
		} else {
			m.Transactions = count.Count
		}
	}
	return nil
}

// decodeBytes accepts either a plain number or {"bytes": N}
func decodeBytes(data json.RawMessage) (uint64, error) {
	var ret uint64
	if err := json.Unmarshal(data, &ret); err == nil {
		return ret, nil
	}
	var tmp numberOfBytes
	if err := json.Unmarshal(data, &tmp); err != nil {
		return 0, err
	}
	return tmp.Bytes, nil
}

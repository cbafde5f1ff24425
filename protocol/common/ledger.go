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

package common

import (
	"encoding/json"
	"fmt"
	"math/big"
)

const adaKey = "ada"

// Lovelace is an amount of lovelace as encoded by the server
type Lovelace struct {
	Lovelace uint64 `json:"lovelace"`
}

// AdaValue is an ADA-only amount, such as a deposit or a fee
type AdaValue struct {
	Ada Lovelace `json:"ada"`
}

// NewAdaValue returns an AdaValue for the given amount of lovelace
func NewAdaValue(lovelace uint64) AdaValue {
	return AdaValue{Ada: Lovelace{Lovelace: lovelace}}
}

// Value is an amount of ADA plus any native assets, keyed by policy ID and then asset name
type Value struct {
	Lovelace uint64
	Assets   map[string]map[string]*big.Int
}

func (v Value) MarshalJSON() ([]byte, error) {
	tmp := make(map[string]any, len(v.Assets)+1)
	tmp[adaKey] = Lovelace{Lovelace: v.Lovelace}
	for policyId, assets := range v.Assets {
		tmp[policyId] = assets
	}
	return json.Marshal(tmp)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var tmp map[string]json.RawMessage
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	ret := Value{}
	for key, raw := range tmp {
		if key == adaKey {
			var ada Lovelace
			if err := json.Unmarshal(raw, &ada); err != nil {
				return fmt.Errorf("invalid ada value: %w", err)
			}
			ret.Lovelace = ada.Lovelace
			continue
		}
		var assets map[string]*big.Int
		if err := json.Unmarshal(raw, &assets); err != nil {
			return fmt.Errorf("invalid assets for policy %s: %w", key, err)
		}
		if ret.Assets == nil {
			ret.Assets = make(map[string]map[string]*big.Int)
		}
		ret.Assets[key] = assets
	}
	*v = ret
	return nil
}

// TransactionReference identifies a transaction by its ID
type TransactionReference struct {
	Id string `json:"id"`
}

// OutputReference identifies a transaction output
type OutputReference struct {
	Transaction TransactionReference `json:"transaction"`
	Index       uint32               `json:"index"`
}

// NewOutputReference returns an OutputReference for the given transaction ID and output index
func NewOutputReference(txId string, index uint32) OutputReference {
	return OutputReference{
		Transaction: TransactionReference{Id: txId},
		Index:       index,
	}
}

func (o OutputReference) String() string {
	return fmt.Sprintf("%s#%d", o.Transaction.Id, o.Index)
}

// Utxo is an unspent transaction output together with its reference
type Utxo struct {
	OutputReference
	Address   string          `json:"address"`
	Value     Value           `json:"value"`
	DatumHash string          `json:"datumHash,omitempty"`
	Datum     string          `json:"datum,omitempty"`
	Script    json.RawMessage `json:"script,omitempty"`
}

// Anchor points to off-chain metadata
type Anchor struct {
	Url  string `json:"url"`
	Hash string `json:"hash"`
}

// ExecutionUnits is a Plutus execution budget
type ExecutionUnits struct {
	Memory uint64 `json:"memory"`
	Cpu    uint64 `json:"cpu"`
}

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
	"errors"
)

// AncestorGenesis is the ancestor reported for the first block of the chain
const AncestorGenesis = "genesis"

// Block types as reported by the server
const (
	BlockTypeEBB   = "ebb"
	BlockTypeBFT   = "bft"
	BlockTypePraos = "praos"
)

// Block is a block as delivered by chain sync. Only the header fields are decoded, and the
// full JSON is retained for callers that want to decode the rest with Decode
type Block struct {
	Type     string `json:"type"`
	Era      string `json:"era"`
	Id       string `json:"id"`
	Ancestor string `json:"ancestor"`
	Slot     uint64 `json:"slot"`
	Height   uint64 `json:"height"`
	raw      json.RawMessage
}

type blockHeader Block

func (b *Block) UnmarshalJSON(data []byte) error {
	var tmp blockHeader
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if tmp.Id == "" {
		return errors.New("block is missing id")
	}
	*b = Block(tmp)
	b.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (b Block) MarshalJSON() ([]byte, error) {
	if b.raw != nil {
		return b.raw, nil
	}
	return json.Marshal(blockHeader(b))
}

// Point returns the chain point of the block
func (b *Block) Point() Point {
	return NewPoint(b.Slot, b.Id)
}

// AncestorIsGenesis returns true if the block has no predecessor block
func (b *Block) AncestorIsGenesis() bool {
	return b.Ancestor == AncestorGenesis || b.Ancestor == ""
}

// Raw returns the original JSON of the block
func (b *Block) Raw() json.RawMessage {
	return b.raw
}

// Decode decodes the full block JSON into dest
func (b *Block) Decode(dest any) error {
	if b.raw == nil {
		return errors.New("block has no raw data")
	}
	return json.Unmarshal(b.raw, dest)
}

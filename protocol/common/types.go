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

// The common package contains types used by multiple clients
package common

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const originLiteral = "origin"

var ErrInvalidPoint = errors.New("invalid point")

// The Point type represents a point on the blockchain. It is either the origin or a slot number and
// block id (hash)
type Point struct {
	Slot uint64
	Id   string
}

// NewPoint returns a Point object with the specified slot number and block id
func NewPoint(slot uint64, id string) Point {
	return Point{
		Slot: slot,
		Id:   id,
	}
}

// NewPointOrigin returns an "empty" Point object which represents the origin of the blockchain
func NewPointOrigin() Point {
	return Point{}
}

// ParsePoint parses a point in the form "origin" or "<slot>.<id>"
func ParsePoint(s string) (Point, error) {
	if s == originLiteral {
		return NewPointOrigin(), nil
	}
	slotStr, id, ok := strings.Cut(s, ".")
	if !ok || id == "" {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidPoint, s)
	}
	slot, err := strconv.ParseUint(slotStr, 10, 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q: %w", ErrInvalidPoint, s, err)
	}
	if _, err := hex.DecodeString(id); err != nil {
		return Point{}, fmt.Errorf("%w: %q: %w", ErrInvalidPoint, s, err)
	}
	return NewPoint(slot, id), nil
}

// IsOrigin returns true if the point is the origin of the chain
func (p Point) IsOrigin() bool {
	return p.Id == ""
}

// Equal returns true if both points refer to the same position on the same chain
func (p Point) Equal(other Point) bool {
	if p.IsOrigin() || other.IsOrigin() {
		return p.IsOrigin() && other.IsOrigin()
	}
	return p.Slot == other.Slot && strings.EqualFold(p.Id, other.Id)
}

func (p Point) String() string {
	if p.IsOrigin() {
		return originLiteral
	}
	return fmt.Sprintf("%d.%s", p.Slot, p.Id)
}

type pointJson struct {
	Slot uint64 `json:"slot"`
	Id   string `json:"id"`
}

func (p Point) MarshalJSON() ([]byte, error) {
	if p.IsOrigin() {
		return json.Marshal(originLiteral)
	}
	return json.Marshal(pointJson{Slot: p.Slot, Id: p.Id})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	if isOriginJson(data) {
		*p = NewPointOrigin()
		return nil
	}
	var tmp pointJson
	if err := json.Unmarshal(data, &tmp); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, err)
	}
	if tmp.Id == "" {
		return fmt.Errorf("%w: missing id: %s", ErrInvalidPoint, string(data))
	}
	*p = NewPoint(tmp.Slot, tmp.Id)
	return nil
}

// Tip represents the server's current chain head: a Point combined with a block height
type Tip struct {
	Point  Point
	Height uint64
}

// NewTip returns a Tip object
func NewTip(point Point, height uint64) Tip {
	return Tip{
		Point:  point,
		Height: height,
	}
}

func (t Tip) String() string {
	if t.Point.IsOrigin() {
		return originLiteral
	}
	return fmt.Sprintf("%s (height %d)", t.Point.String(), t.Height)
}

type tipJson struct {
	Slot   uint64 `json:"slot"`
	Id     string `json:"id"`
	Height uint64 `json:"height"`
}

func (t Tip) MarshalJSON() ([]byte, error) {
	if t.Point.IsOrigin() {
		return json.Marshal(originLiteral)
	}
	return json.Marshal(tipJson{Slot: t.Point.Slot, Id: t.Point.Id, Height: t.Height})
}

func (t *Tip) UnmarshalJSON(data []byte) error {
	if isOriginJson(data) {
		*t = Tip{}
		return nil
	}
	var tmp tipJson
	if err := json.Unmarshal(data, &tmp); err != nil {
		return fmt.Errorf("invalid tip: %w", err)
	}
	*t = NewTip(NewPoint(tmp.Slot, tmp.Id), tmp.Height)
	return nil
}

// Intersection is the result of a successful intersection negotiation
type Intersection struct {
	Point Point `json:"intersection"`
	Tip   Tip   `json:"tip"`
}

func isOriginJson(data []byte) bool {
	data = bytes.TrimSpace(data)
	return bytes.Equal(data, []byte(`"origin"`)) || bytes.Equal(data, []byte(`null`))
}

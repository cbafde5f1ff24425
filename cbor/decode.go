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

package cbor

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	_cbor "github.com/fxamacker/cbor/v2"
)

var (
	cachedDecMode     _cbor.DecMode
	cachedDecModeErr  error
	cachedDecModeOnce sync.Once
)

// getDecMode returns a cached DecMode, initializing it on first use
func getDecMode() (_cbor.DecMode, error) {
	cachedDecModeOnce.Do(func() {
		decOptions := _cbor.DecOptions{
			// This defaults to 32, but there are transactions in the wild using >64 nested levels
			MaxNestedLevels: 256,
		}
		cachedDecMode, cachedDecModeErr = decOptions.DecMode()
	})
	return cachedDecMode, cachedDecModeErr
}

// Decode decodes the first CBOR item in dataBytes into dest and returns the number of bytes read
func Decode(dataBytes []byte, dest any) (int, error) {
	data := bytes.NewReader(dataBytes)
	decMode, err := getDecMode()
	if err != nil {
		return 0, err
	}
	if decMode == nil {
		return 0, errors.New("CBOR decoder mode not initialized")
	}
	dec := decMode.NewDecoder(data)
	err = dec.Decode(dest)
	return dec.NumBytesRead(), err
}

// Wellformed checks that data holds exactly one well-formed CBOR item
func Wellformed(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyInput
	}
	decMode, err := getDecMode()
	if err != nil {
		return err
	}
	if err := decMode.Wellformed(data); err != nil {
		var extraneous *_cbor.ExtraneousDataError
		if errors.As(err, &extraneous) {
			return fmt.Errorf("%w: %w", ErrTrailingData, err)
		}
		return err
	}
	return nil
}

// DecodeRawArray decodes a single top-level CBOR array and returns the raw bytes of each of its
// items
func DecodeRawArray(data []byte) ([]RawMessage, error) {
	if err := Wellformed(data); err != nil {
		return nil, err
	}
	majorType, err := MajorType(data)
	if err != nil {
		return nil, err
	}
	if majorType != CborTypeArray {
		return nil, fmt.Errorf("%w: major type 0x%02x", ErrNotArray, majorType)
	}
	var items []RawMessage
	if _, err := Decode(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

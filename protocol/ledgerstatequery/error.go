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

package ledgerstatequery

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/gogmios/jsonrpc"
)

// Fault codes returned by acquireLedgerState
const (
	FaultCodeAcquireFailure          = 2000
	FaultCodeEraMismatch             = 2001
	FaultCodeUnavailableInCurrentEra = 2002
	FaultCodeAcquiredExpired         = 2003
)

// ErrInvalidAddress is returned when an address fails local validation
var ErrInvalidAddress = errors.New("invalid address")

// ErrEmptyFilter is returned when a query that needs a filter is given none
var ErrEmptyFilter = errors.New("empty query filter")

// QueryError is returned when the server rejects a query
type QueryError struct {
	Query string
	Fault *jsonrpc.Fault
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed: %s", e.Query, e.Fault.Error())
}

func (e *QueryError) Unwrap() error {
	return e.Fault
}

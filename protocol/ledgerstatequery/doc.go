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

// Package ledgerstatequery implements the Ogmios ledger state query client.
//
// Key files in this package:
//   - ledgerstatequery.go: config, options, method names
//   - queries.go: result types
//   - client.go: query methods
//
// Queries run against the server's current ledger state unless a state has been acquired with
// AcquireLedgerState. Acquiring only makes sense on a long-running interaction context, since
// one-shot contexts open a new connection for every request.
package ledgerstatequery

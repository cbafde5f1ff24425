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

package connection

import (
	"github.com/lithammer/shortuuid/v4"
)

// ConnectionId uniquely identifies a single physical connection to the server
type ConnectionId struct {
	id     string
	Remote string
}

// NewConnectionId returns a new random ConnectionId for the specified remote address
func NewConnectionId(remote string) ConnectionId {
	return ConnectionId{
		id:     shortuuid.New(),
		Remote: remote,
	}
}

func (c ConnectionId) String() string {
	if c.Remote == "" {
		return c.id
	}
	return c.id + "@" + c.Remote
}

// IsZero returns true if the ConnectionId was never assigned
func (c ConnectionId) IsZero() bool {
	return c.id == ""
}

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

package protocol

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/gogmios/jsonrpc"
)

// Outcome is what a waiter receives for its request: either a response (which may itself carry a
// fault) or a local error such as a lost connection
type Outcome struct {
	Response *jsonrpc.Response
	Err      error
}

// PendingTable maps outstanding request ids to the channel their waiter is blocked on. Every
// registered entry is completed exactly once: fulfilled, drained with an error, or cancelled
type PendingTable struct {
	mu       sync.Mutex
	entries  map[uint64]chan Outcome
	drainErr error
	logger   *slog.Logger
}

// NewPendingTable returns an empty PendingTable
func NewPendingTable(logger *slog.Logger) *PendingTable {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PendingTable{
		entries: make(map[uint64]chan Outcome),
		logger:  logger,
	}
}

// Register adds a new pending request. The returned channel receives exactly one Outcome, or is
// closed without a value if the request is cancelled
func (p *PendingTable) Register(id uint64) (<-chan Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drainErr != nil {
		return nil, p.drainErr
	}
	if _, ok := p.entries[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateId, id)
	}
	// Buffered so that the receive loop never blocks on a slow waiter
	ch := make(chan Outcome, 1)
	p.entries[id] = ch
	return ch, nil
}

// Fulfill completes the pending request with the given id. It returns false if no such request
// exists, in which case the outcome is dropped
func (p *PendingTable) Fulfill(id uint64, outcome Outcome) bool {
	p.mu.Lock()
	ch, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	p.mu.Unlock()
	if !ok {
		// Usually the late response to a call that already timed out
		p.logger.Debug(
			fmt.Sprintf("dropping response for unknown request id %d", id),
			"component", "network",
		)
		return false
	}
	ch <- outcome
	return true
}

// Cancel removes the pending request without completing it. The waiter observes a closed channel
func (p *PendingTable) Cancel(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.entries[id]
	if !ok {
		return false
	}
	delete(p.entries, id)
	close(ch)
	return true
}

// DrainWithError completes every pending request with err and rejects any further registrations.
// Only the first drain error is retained
func (p *PendingTable) DrainWithError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drainErr == nil {
		p.drainErr = err
	}
	for id, ch := range p.entries {
		ch <- Outcome{Err: err}
		delete(p.entries, id)
	}
}

// Len returns the number of outstanding requests
func (p *PendingTable) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

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
	"time"

	"github.com/blinklabs-io/gogmios/protocol/common"
)

const ProtocolName = "ledger-state-query"

// Method names
const (
	MethodAcquireLedgerState = "acquireLedgerState"
	MethodReleaseLedgerState = "releaseLedgerState"

	MethodNetworkTip                  = "queryNetwork/tip"
	MethodNetworkBlockHeight          = "queryNetwork/blockHeight"
	MethodNetworkStartTime            = "queryNetwork/startTime"
	MethodNetworkGenesisConfiguration = "queryNetwork/genesisConfiguration"

	MethodLedgerEpoch                  = "queryLedgerState/epoch"
	MethodLedgerEraStart               = "queryLedgerState/eraStart"
	MethodLedgerEraSummaries           = "queryLedgerState/eraSummaries"
	MethodLedgerTip                    = "queryLedgerState/tip"
	MethodLedgerProtocolParameters     = "queryLedgerState/protocolParameters"
	MethodLedgerStakePools             = "queryLedgerState/stakePools"
	MethodLedgerUtxo                   = "queryLedgerState/utxo"
	MethodLedgerLiveStakeDistribution  = "queryLedgerState/liveStakeDistribution"
	MethodLedgerProjectedRewards       = "queryLedgerState/projectedRewards"
	MethodLedgerStakePoolsPerformance  = "queryLedgerState/stakePoolsPerformance"
	MethodLedgerRewardAccountSummaries = "queryLedgerState/rewardAccountSummaries"
	MethodLedgerConstitution           = "queryLedgerState/constitution"
	MethodLedgerGovernanceProposals    = "queryLedgerState/governanceProposals"
)

// Eras with a genesis configuration
const (
	GenesisEraByron   = "byron"
	GenesisEraShelley = "shelley"
	GenesisEraAlonzo  = "alonzo"
	GenesisEraConway  = "conway"
)

const (
	DefaultQueryTimeout   = 180 * time.Second
	DefaultAcquireTimeout = 5 * time.Second
)

type Config struct {
	QueryTimeout   time.Duration
	AcquireTimeout time.Duration
	// Network restricts the accepted bech32 address prefixes when set
	Network common.Network
}

// LedgerStateQueryOptionFunc represents a function used to modify the LedgerStateQuery config
type LedgerStateQueryOptionFunc func(*Config)

// NewConfig returns a new LedgerStateQuery config object with the provided options
func NewConfig(options ...LedgerStateQueryOptionFunc) Config {
	c := Config{
		QueryTimeout:   DefaultQueryTimeout,
		AcquireTimeout: DefaultAcquireTimeout,
	}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithQueryTimeout specifies the timeout for each query
func WithQueryTimeout(timeout time.Duration) LedgerStateQueryOptionFunc {
	return func(c *Config) {
		c.QueryTimeout = timeout
	}
}

// WithAcquireTimeout specifies the timeout for acquiring a ledger state
func WithAcquireTimeout(timeout time.Duration) LedgerStateQueryOptionFunc {
	return func(c *Config) {
		c.AcquireTimeout = timeout
	}
}

// WithNetwork specifies the network used when validating addresses
func WithNetwork(network common.Network) LedgerStateQueryOptionFunc {
	return func(c *Config) {
		c.Network = network
	}
}

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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/blinklabs-io/gogmios/protocol"
	"github.com/blinklabs-io/gogmios/protocol/common"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	stakePrefixMainnet = "stake"
	stakePrefixTestnet = "stake_test"
)

// callerInfo is implemented by interaction contexts
type callerInfo interface {
	Logger() *slog.Logger
	ConnectionId() connection.ConnectionId
}

// Client implements the LedgerStateQuery client
type Client struct {
	caller       protocol.Caller
	config       *Config
	logger       *slog.Logger
	connectionId connection.ConnectionId
	busyMutex    sync.Mutex
	acquired     bool
}

// NewClient returns a new LedgerStateQuery client object
func NewClient(caller protocol.Caller, cfg *Config) *Client {
	if cfg == nil {
		tmpCfg := NewConfig()
		cfg = &tmpCfg
	}
	// Apply defaults for zero values to handle Config{} created without NewConfig()
	config := *cfg
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = DefaultQueryTimeout
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = DefaultAcquireTimeout
	}
	c := &Client{
		caller: caller,
		config: &config,
		logger: slog.New(slog.DiscardHandler),
	}
	if info, ok := caller.(callerInfo); ok {
		c.logger = info.Logger()
		c.connectionId = info.ConnectionId()
	}
	return c
}

// AcquireLedgerState pins subsequent queries to the ledger state at the given point and returns
// its slot. It requires a long-running interaction context
func (c *Client) AcquireLedgerState(ctx context.Context, point common.Point) (uint64, error) {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	if c.caller.Type() != protocol.InteractionTypeLongRunning {
		return 0, protocol.ErrRequiresLongRunning
	}
	var result acquireLedgerStateResult
	if err := c.run(
		ctx,
		c.config.AcquireTimeout,
		MethodAcquireLedgerState,
		acquireLedgerStateParams{Point: point},
		&result,
	); err != nil {
		return 0, err
	}
	c.acquired = true
	return result.Slot, nil
}

// ReleaseLedgerState releases a previously acquired ledger state
func (c *Client) ReleaseLedgerState(ctx context.Context) error {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	if c.caller.Type() != protocol.InteractionTypeLongRunning {
		return protocol.ErrRequiresLongRunning
	}
	if err := c.run(ctx, c.config.AcquireTimeout, MethodReleaseLedgerState, nil, nil); err != nil {
		return err
	}
	c.acquired = false
	return nil
}

// IsAcquired returns true if a ledger state is currently acquired
func (c *Client) IsAcquired() bool {
	c.busyMutex.Lock()
	defer c.busyMutex.Unlock()
	return c.acquired
}

// NetworkTip returns the tip of the node's chain
func (c *Client) NetworkTip(ctx context.Context) (common.Tip, error) {
	var result common.Tip
	if err := c.query(ctx, MethodNetworkTip, nil, &result); err != nil {
		return common.Tip{}, err
	}
	return result, nil
}

// NetworkBlockHeight returns the height of the node's chain. It is zero at the origin
func (c *Client) NetworkBlockHeight(ctx context.Context) (uint64, error) {
	var result json.RawMessage
	if err := c.query(ctx, MethodNetworkBlockHeight, nil, &result); err != nil {
		return 0, err
	}
	if bytes.Equal(bytes.TrimSpace(result), []byte(`"origin"`)) {
		return 0, nil
	}
	var height uint64
	if err := json.Unmarshal(result, &height); err != nil {
		return 0, fmt.Errorf("%s: failed to decode result: %w", MethodNetworkBlockHeight, err)
	}
	return height, nil
}

// NetworkStartTime returns the system start of the network
func (c *Client) NetworkStartTime(ctx context.Context) (time.Time, error) {
	var result time.Time
	if err := c.query(ctx, MethodNetworkStartTime, nil, &result); err != nil {
		return time.Time{}, err
	}
	return result, nil
}

// GenesisConfiguration returns the genesis configuration of the given era
func (c *Client) GenesisConfiguration(ctx context.Context, era string) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.query(
		ctx,
		MethodNetworkGenesisConfiguration,
		genesisConfigurationParams{Era: era},
		&result,
	); err != nil {
		return nil, err
	}
	return result, nil
}

// Epoch returns the current epoch number
func (c *Client) Epoch(ctx context.Context) (uint64, error) {
	var result uint64
	if err := c.query(ctx, MethodLedgerEpoch, nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// EraStart returns the start of the current era
func (c *Client) EraStart(ctx context.Context) (EraStart, error) {
	var result EraStart
	if err := c.query(ctx, MethodLedgerEraStart, nil, &result); err != nil {
		return EraStart{}, err
	}
	return result, nil
}

// EraSummaries returns the bounds and parameters of every known era
func (c *Client) EraSummaries(ctx context.Context) ([]EraSummary, error) {
	var result []EraSummary
	if err := c.query(ctx, MethodLedgerEraSummaries, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// LedgerTip returns the point of the most recent block applied to the ledger
func (c *Client) LedgerTip(ctx context.Context) (common.Point, error) {
	var result common.Point
	if err := c.query(ctx, MethodLedgerTip, nil, &result); err != nil {
		return common.Point{}, err
	}
	return result, nil
}

// ProtocolParameters returns the current protocol parameters
func (c *Client) ProtocolParameters(ctx context.Context) (*ProtocolParameters, error) {
	var result ProtocolParameters
	if err := c.query(ctx, MethodLedgerProtocolParameters, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StakePools returns the registered stake pools, keyed by pool ID. If poolIds is empty, all
// pools are returned
func (c *Client) StakePools(
	ctx context.Context,
	poolIds []string,
	includeStake bool,
) (map[string]StakePoolView, error) {
	params := stakePoolsParams{IncludeStake: includeStake}
	for _, poolId := range poolIds {
		params.StakePools = append(params.StakePools, stakePoolFilter{Id: poolId})
	}
	var result map[string]StakePoolView
	if err := c.query(ctx, MethodLedgerStakePools, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Utxo returns the UTxOs matching the filter. A nil filter returns the whole UTxO set, which is
// only permitted by the server on test networks
func (c *Client) Utxo(ctx context.Context, filter *UtxoFilter) ([]common.Utxo, error) {
	var params any
	if filter != nil {
		if len(filter.Addresses) > 0 && len(filter.OutputReferences) > 0 {
			return nil, fmt.Errorf(
				"%s: filter by addresses or output references, not both",
				MethodLedgerUtxo,
			)
		}
		for _, address := range filter.Addresses {
			if err := c.validateAddress(address); err != nil {
				return nil, err
			}
		}
		params = filter
	}
	var result []common.Utxo
	if err := c.query(ctx, MethodLedgerUtxo, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UtxoByAddresses returns the UTxOs at the given addresses
func (c *Client) UtxoByAddresses(ctx context.Context, addresses []string) ([]common.Utxo, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%s: %w", MethodLedgerUtxo, ErrEmptyFilter)
	}
	return c.Utxo(ctx, &UtxoFilter{Addresses: addresses})
}

// UtxoByOutputReferences returns the UTxOs for the given output references
func (c *Client) UtxoByOutputReferences(
	ctx context.Context,
	outputReferences []common.OutputReference,
) ([]common.Utxo, error) {
	if len(outputReferences) == 0 {
		return nil, fmt.Errorf("%s: %w", MethodLedgerUtxo, ErrEmptyFilter)
	}
	return c.Utxo(ctx, &UtxoFilter{OutputReferences: outputReferences})
}

// LiveStakeDistribution returns the stake distribution, keyed by pool ID
func (c *Client) LiveStakeDistribution(
	ctx context.Context,
) (map[string]LiveStakeDistributionEntry, error) {
	var result map[string]LiveStakeDistributionEntry
	if err := c.query(ctx, MethodLedgerLiveStakeDistribution, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ProjectedRewards returns the rewards projected for the given stake addresses
func (c *Client) ProjectedRewards(
	ctx context.Context,
	stakeAddresses []string,
) ([]ProjectedRewards, error) {
	if len(stakeAddresses) == 0 {
		return nil, fmt.Errorf("%s: %w", MethodLedgerProjectedRewards, ErrEmptyFilter)
	}
	for _, address := range stakeAddresses {
		if err := c.validateStakeAddress(address); err != nil {
			return nil, err
		}
	}
	var result []ProjectedRewards
	if err := c.query(
		ctx,
		MethodLedgerProjectedRewards,
		projectedRewardsParams{StakeAddresses: stakeAddresses},
		&result,
	); err != nil {
		return nil, err
	}
	return result, nil
}

// StakePoolsPerformances returns the performance of every stake pool, keyed by pool ID
func (c *Client) StakePoolsPerformances(
	ctx context.Context,
) (map[string]StakePoolPerformance, error) {
	var result map[string]StakePoolPerformance
	if err := c.query(ctx, MethodLedgerStakePoolsPerformance, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// RewardAccountSummaries returns the reward account state for the given stake addresses or
// stake key hashes
func (c *Client) RewardAccountSummaries(
	ctx context.Context,
	keys []string,
) (map[string]RewardAccountSummary, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: %w", MethodLedgerRewardAccountSummaries, ErrEmptyFilter)
	}
	for _, key := range keys {
		if err := c.validateStakeAddress(key); err != nil {
			return nil, err
		}
	}
	var result map[string]RewardAccountSummary
	if err := c.query(
		ctx,
		MethodLedgerRewardAccountSummaries,
		rewardAccountSummariesParams{Keys: keys},
		&result,
	); err != nil {
		return nil, err
	}
	return result, nil
}

// Constitution returns the current constitution. It is only available from the Conway era
func (c *Client) Constitution(ctx context.Context) (*Constitution, error) {
	var result Constitution
	if err := c.query(ctx, MethodLedgerConstitution, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GovernanceProposals returns the active governance proposals, optionally filtered
func (c *Client) GovernanceProposals(
	ctx context.Context,
	filter *GovernanceProposalFilter,
) ([]GovernanceProposalState, error) {
	var params any
	if filter != nil && len(filter.Proposals) > 0 {
		params = filter
	}
	var result []GovernanceProposalState
	if err := c.query(ctx, MethodLedgerGovernanceProposals, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Query runs an arbitrary query method and returns the raw result
func (c *Client) Query(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.query(ctx, method, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) query(ctx context.Context, method string, params any, result any) error {
	return c.run(ctx, c.config.QueryTimeout, method, params, result)
}

func (c *Client) run(
	ctx context.Context,
	timeout time.Duration,
	method string,
	params any,
	result any,
) error {
	c.logger.Debug(
		fmt.Sprintf("calling %s", method),
		"component", "network",
		"protocol", ProtocolName,
		"role", "client",
		"connection_id", c.connectionId.String(),
	)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.caller.Call(ctx, method, params, result); err != nil {
		if fault, ok := protocol.AsFault(err); ok {
			return &QueryError{Query: method, Fault: fault}
		}
		return err
	}
	return nil
}

// validateAddress checks Shelley addresses locally. Byron addresses are base58 and are passed
// through to the server
func (c *Client) validateAddress(address string) error {
	if !strings.HasPrefix(address, common.AddressPrefixMainnet) {
		return nil
	}
	expected := []string{common.AddressPrefixMainnet, common.AddressPrefixTestnet}
	if c.config.Network.IsValid() {
		expected = []string{c.config.Network.AddressPrefix}
	}
	return validateBech32(address, expected)
}

func (c *Client) validateStakeAddress(address string) error {
	if !strings.HasPrefix(address, stakePrefixMainnet) {
		// Stake key hash
		return nil
	}
	expected := []string{stakePrefixMainnet, stakePrefixTestnet}
	if c.config.Network.IsValid() {
		if c.config.Network.Id == common.AddressNetworkMainnet {
			expected = []string{stakePrefixMainnet}
		} else {
			expected = []string{stakePrefixTestnet}
		}
	}
	return validateBech32(address, expected)
}

func validateBech32(address string, expectedPrefixes []string) error {
	// Cardano addresses are longer than the 90 character limit of BIP-173
	hrp, _, err := bech32.DecodeNoLimit(address)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidAddress, address, err)
	}
	for _, prefix := range expectedPrefixes {
		if hrp == prefix {
			return nil
		}
	}
	return fmt.Errorf(
		"%w: %s: unexpected prefix %q (expected one of %s)",
		ErrInvalidAddress,
		address,
		hrp,
		strings.Join(expectedPrefixes, ", "),
	)
}

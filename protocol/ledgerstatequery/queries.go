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
	"encoding/json"

	"github.com/blinklabs-io/gogmios/protocol/common"
)

// Query parameter types

type acquireLedgerStateParams struct {
	Point common.Point `json:"point"`
}

type acquireLedgerStateResult struct {
	Acquired string `json:"acquired"`
	Slot     uint64 `json:"slot"`
}

type genesisConfigurationParams struct {
	Era string `json:"era"`
}

type stakePoolFilter struct {
	Id string `json:"id"`
}

type stakePoolsParams struct {
	StakePools   []stakePoolFilter `json:"stakePools,omitempty"`
	IncludeStake bool              `json:"includeStake,omitempty"`
}

// UtxoFilter selects the UTxOs returned by Utxo. At most one of the fields may be set
type UtxoFilter struct {
	Addresses        []string                 `json:"addresses,omitempty"`
	OutputReferences []common.OutputReference `json:"outputReferences,omitempty"`
}

type projectedRewardsParams struct {
	StakeAddresses []string `json:"stakeAddresses"`
}

type rewardAccountSummariesParams struct {
	Keys []string `json:"keys"`
}

// GovernanceProposalFilter restricts the governance proposals returned
type GovernanceProposalFilter struct {
	Proposals []common.OutputReference `json:"proposals,omitempty"`
}

// Query result types

// EraBound is the start or end of an era
type EraBound struct {
	Time  RelativeTime `json:"time"`
	Slot  uint64       `json:"slot"`
	Epoch uint64       `json:"epoch"`
}

// RelativeTime is a duration since the system start, in seconds
type RelativeTime struct {
	Seconds uint64 `json:"seconds"`
}

// EraStart is the start of the current era
type EraStart = EraBound

// EraParameters describes the time parameters of an era
type EraParameters struct {
	EpochLength uint64     `json:"epochLength"`
	SlotLength  SlotLength `json:"slotLength"`
	SafeZone    *uint64    `json:"safeZone"`
}

// SlotLength is the length of a slot
type SlotLength struct {
	Milliseconds uint64 `json:"milliseconds"`
}

// EraSummary describes the bounds and parameters of one era
type EraSummary struct {
	Start      EraBound      `json:"start"`
	End        *EraBound     `json:"end"`
	Parameters EraParameters `json:"parameters"`
}

// BlockSize is a size in bytes
type BlockSize struct {
	Bytes uint64 `json:"bytes"`
}

// ProtocolVersion is the major/minor protocol version
type ProtocolVersion struct {
	Major uint64 `json:"major"`
	Minor uint64 `json:"minor"`
	Patch uint64 `json:"patch,omitempty"`
}

// ProtocolParameters holds the most commonly used protocol parameters. The full server response
// is available from Raw
type ProtocolParameters struct {
	MinFeeCoefficient               uint64                 `json:"minFeeCoefficient"`
	MinFeeConstant                  common.AdaValue        `json:"minFeeConstant"`
	MaxBlockBodySize                BlockSize              `json:"maxBlockBodySize"`
	MaxBlockHeaderSize              BlockSize              `json:"maxBlockHeaderSize"`
	MaxTransactionSize              BlockSize              `json:"maxTransactionSize"`
	MaxValueSize                    *BlockSize             `json:"maxValueSize"`
	StakeCredentialDeposit          common.AdaValue        `json:"stakeCredentialDeposit"`
	StakePoolDeposit                common.AdaValue        `json:"stakePoolDeposit"`
	StakePoolRetirementEpochBound   uint64                 `json:"stakePoolRetirementEpochBound"`
	DesiredNumberOfStakePools       uint64                 `json:"desiredNumberOfStakePools"`
	StakePoolPledgeInfluence        string                 `json:"stakePoolPledgeInfluence"`
	MonetaryExpansion               string                 `json:"monetaryExpansion"`
	TreasuryExpansion               string                 `json:"treasuryExpansion"`
	MinStakePoolCost                common.AdaValue        `json:"minStakePoolCost"`
	MinUtxoDepositCoefficient       uint64                 `json:"minUtxoDepositCoefficient"`
	MinUtxoDepositConstant          common.AdaValue        `json:"minUtxoDepositConstant"`
	MaxExecutionUnitsPerTransaction *common.ExecutionUnits `json:"maxExecutionUnitsPerTransaction"`
	MaxExecutionUnitsPerBlock       *common.ExecutionUnits `json:"maxExecutionUnitsPerBlock"`
	MaxCollateralInputs             uint64                 `json:"maxCollateralInputs"`
	CollateralPercentage            uint64                 `json:"collateralPercentage"`
	Version                         ProtocolVersion        `json:"version"`
	GovernanceActionDeposit         *common.AdaValue       `json:"governanceActionDeposit"`
	DelegateRepresentativeDeposit   *common.AdaValue       `json:"delegateRepresentativeDeposit"`
	Raw                             json.RawMessage        `json:"-"`
}

func (p *ProtocolParameters) UnmarshalJSON(data []byte) error {
	type tmpProtocolParameters ProtocolParameters
	var tmp tmpProtocolParameters
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*p = ProtocolParameters(tmp)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// PoolMetadata is the off-chain metadata reference of a stake pool
type PoolMetadata struct {
	Url  string `json:"url"`
	Hash string `json:"hash"`
}

// StakePoolView is a registered stake pool as reported by the stakePools query
type StakePoolView struct {
	Id                     string           `json:"id"`
	VrfVerificationKeyHash string           `json:"vrfVerificationKeyHash"`
	Pledge                 common.AdaValue  `json:"pledge"`
	Cost                   common.AdaValue  `json:"cost"`
	Margin                 string           `json:"margin"`
	RewardAccount          string           `json:"rewardAccount"`
	Owners                 []string         `json:"owners"`
	Relays                 json.RawMessage  `json:"relays"`
	Metadata               *PoolMetadata    `json:"metadata"`
	Stake                  *common.AdaValue `json:"stake"`
}

// LiveStakeDistributionEntry is the share of the total stake delegated to a pool
type LiveStakeDistributionEntry struct {
	Stake string `json:"stake"`
	Vrf   string `json:"vrf"`
}

// ProjectedRewards is the reward expected for a stake address at the end of the epoch
type ProjectedRewards struct {
	Address string          `json:"address"`
	Rewards common.AdaValue `json:"rewards"`
}

// StakePoolPerformance is the ratio of blocks produced by a pool over the blocks it was expected
// to produce
type StakePoolPerformance struct {
	Id          string  `json:"id"`
	Performance float64 `json:"performance"`
}

// RewardAccountSummary is the delegation and reward state of a stake credential
type RewardAccountSummary struct {
	Delegate struct {
		Id string `json:"id"`
	} `json:"delegate"`
	Rewards common.AdaValue `json:"rewards"`
	Deposit common.AdaValue `json:"deposit"`
}

// Constitution is the current Conway constitution
type Constitution struct {
	Metadata       common.Anchor `json:"metadata"`
	GuardrailsHash string        `json:"-"`
}

func (c *Constitution) UnmarshalJSON(data []byte) error {
	var tmp struct {
		Metadata   common.Anchor `json:"metadata"`
		Guardrails *struct {
			Hash string `json:"hash"`
		} `json:"guardrails"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	c.Metadata = tmp.Metadata
	c.GuardrailsHash = ""
	if tmp.Guardrails != nil {
		c.GuardrailsHash = tmp.Guardrails.Hash
	}
	return nil
}

// EpochBound wraps an epoch number
type EpochBound struct {
	Epoch uint64 `json:"epoch"`
}

// GovernanceProposalState is a governance action under consideration
type GovernanceProposalState struct {
	Proposal      common.OutputReference `json:"proposal"`
	Deposit       common.AdaValue        `json:"deposit"`
	ReturnAccount string                 `json:"returnAccount"`
	Metadata      *common.Anchor         `json:"metadata"`
	Action        json.RawMessage        `json:"action"`
	Since         EpochBound             `json:"since"`
	Until         EpochBound             `json:"until"`
	Votes         json.RawMessage        `json:"votes"`
}

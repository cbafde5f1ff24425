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

// Address network IDs
const (
	AddressNetworkTestnet uint8 = 0
	AddressNetworkMainnet uint8 = 1
)

// Bech32 human readable prefixes for Shelley addresses
const (
	AddressPrefixMainnet = "addr"
	AddressPrefixTestnet = "addr_test"
)

// Network definitions
var (
	NetworkMainnet = Network{
		Id:            AddressNetworkMainnet,
		Name:          "mainnet",
		NetworkMagic:  764824073,
		AddressPrefix: AddressPrefixMainnet,
	}
	NetworkPreprod = Network{
		Id:            AddressNetworkTestnet,
		Name:          "preprod",
		NetworkMagic:  1,
		AddressPrefix: AddressPrefixTestnet,
	}
	NetworkPreview = Network{
		Id:            AddressNetworkTestnet,
		Name:          "preview",
		NetworkMagic:  2,
		AddressPrefix: AddressPrefixTestnet,
	}
	NetworkSancho = Network{
		Id:            AddressNetworkTestnet,
		Name:          "sanchonet",
		NetworkMagic:  4,
		AddressPrefix: AddressPrefixTestnet,
	}

	NetworkInvalid = Network{
		Name: "invalid",
	} // NetworkInvalid is used as a return value for lookup functions when a network isn't found
)

// List of valid networks for use in lookup functions
var networks = []Network{
	NetworkMainnet,
	NetworkPreprod,
	NetworkPreview,
	NetworkSancho,
}

// NetworkByName returns a predefined network by name
func NetworkByName(name string) Network {
	for _, network := range networks {
		if network.Name == name {
			return network
		}
	}
	return NetworkInvalid
}

// NetworkByNetworkMagic returns a predefined network by network magic
func NetworkByNetworkMagic(networkMagic uint32) Network {
	for _, network := range networks {
		if network.NetworkMagic == networkMagic {
			return network
		}
	}
	return NetworkInvalid
}

// Network represents a Cardano network as reported by the server
type Network struct {
	Id            uint8 // network ID used for addresses
	Name          string
	NetworkMagic  uint32
	AddressPrefix string
}

// IsValid returns false for NetworkInvalid
func (n Network) IsValid() bool {
	return n.NetworkMagic != 0
}

func (n Network) String() string {
	return n.Name
}

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

package ogmios

import "github.com/blinklabs-io/gogmios/protocol/common"

// Network describes a Cardano network an Ogmios server can be attached to
type Network = common.Network

// Network definitions
var (
	NetworkMainnet = common.NetworkMainnet
	NetworkPreprod = common.NetworkPreprod
	NetworkPreview = common.NetworkPreview
	NetworkSancho  = common.NetworkSancho
	NetworkInvalid = common.NetworkInvalid
)

// NetworkByName returns a predefined network by name
func NetworkByName(name string) Network {
	return common.NetworkByName(name)
}

// NetworkByNetworkMagic returns a predefined network by network magic
func NetworkByNetworkMagic(networkMagic uint32) Network {
	return common.NetworkByNetworkMagic(networkMagic)
}

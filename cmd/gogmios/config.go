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

package main

import (
	"fmt"
	"os"
	"time"

	ogmios "github.com/blinklabs-io/gogmios"
	"github.com/blinklabs-io/gogmios/connection"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

type cliConfig struct {
	Connection     connection.Config `yaml:"connection"`
	Network        string            `yaml:"network"`
	Debug          bool              `yaml:"debug"`
	RequestTimeout time.Duration     `yaml:"requestTimeout"`
	IdleTimeout    time.Duration     `yaml:"idleTimeout"`
	PingInterval   time.Duration     `yaml:"pingInterval"`
	ChainSync      chainSyncConfig   `yaml:"chainSync"`
}

type chainSyncConfig struct {
	PipelineLimit int `yaml:"pipelineLimit"`
}

// loadConfig reads the config file, if any, applies defaults and then the flags that were set
// explicitly on the command line
func loadConfig(cmd *cobra.Command, f *globalFlags) (*cliConfig, error) {
	cfg := &cliConfig{}
	if f.configFile != "" {
		data, err := os.ReadFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", f.configFile, err)
		}
	}
	applyDefaults(cfg)
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Connection.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Connection.Port = f.port
	}
	if flags.Changed("tls") {
		cfg.Connection.TLS = f.tls
	}
	if flags.Changed("max-payload") {
		cfg.Connection.MaxPayload = f.maxPayload
	}
	if flags.Changed("network") {
		cfg.Network = f.network
	}
	if flags.Changed("debug") {
		cfg.Debug = f.debug
	}
	if err := cfg.Connection.Validate(); err != nil {
		return nil, err
	}
	if cfg.Network != "" && !ogmios.NetworkByName(cfg.Network).IsValid() {
		return nil, fmt.Errorf("unknown network: %s", cfg.Network)
	}
	return cfg, nil
}

func applyDefaults(cfg *cliConfig) {
	cfg.Connection.ApplyDefaults()
	if cfg.ChainSync.PipelineLimit == 0 {
		cfg.ChainSync.PipelineLimit = 1
	}
}

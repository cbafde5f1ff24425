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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/gogmios/connection"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYaml = `
connection:
  host: ogmios.example.com
  port: 443
  tls: true
network: preprod
requestTimeout: 10s
chainSync:
  pipelineLimit: 50
`

func loadTestConfig(t *testing.T, args ...string) (*cliConfig, error) {
	t.Helper()
	f := &globalFlags{}
	cmd := &cobra.Command{Use: "test"}
	bindGlobalFlags(cmd, f)
	require.NoError(t, cmd.ParseFlags(args))
	return loadConfig(cmd, f)
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadTestConfig(t)
	require.NoError(t, err)
	assert.Equal(t, connection.NewConfig(), cfg.Connection)
	assert.Equal(t, 1, cfg.ChainSync.PipelineLimit)
	assert.Empty(t, cfg.Network)
	assert.False(t, cfg.Debug)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeTestConfig(t, testConfigYaml)
	cfg, err := loadTestConfig(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "ogmios.example.com", cfg.Connection.Host)
	assert.Equal(t, uint16(443), cfg.Connection.Port)
	assert.True(t, cfg.Connection.TLS)
	assert.Equal(t, int64(connection.DefaultMaxPayload), cfg.Connection.MaxPayload)
	assert.Equal(t, "preprod", cfg.Network)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 50, cfg.ChainSync.PipelineLimit)
	assert.Equal(t, "wss://ogmios.example.com:443", cfg.Connection.Address().WebSocket)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := writeTestConfig(t, testConfigYaml)
	cfg, err := loadTestConfig(
		t,
		"--config", path,
		"--host", "127.0.0.1",
		"--port", "1338",
		"--tls=false",
		"--debug",
	)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Connection.Host)
	assert.Equal(t, uint16(1338), cfg.Connection.Port)
	assert.False(t, cfg.Connection.TLS)
	assert.True(t, cfg.Debug)
	// Untouched flags keep the file values
	assert.Equal(t, "preprod", cfg.Network)
}

func TestLoadConfigErrors(t *testing.T) {
	testDefs := []struct {
		name string
		yaml string
		args []string
	}{
		{
			name: "MissingFile",
			args: []string{"--config", filepath.Join(os.TempDir(), "gogmios-does-not-exist.yaml")},
		},
		{
			name: "MalformedYaml",
			yaml: "connection: [",
		},
		{
			name: "UnknownNetwork",
			args: []string{"--network", "not-a-network"},
		},
		{
			name: "NegativeMaxPayload",
			args: []string{"--max-payload", "-1"},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			args := testDef.args
			if testDef.yaml != "" {
				args = append(args, "--config", writeTestConfig(t, testDef.yaml))
			}
			_, err := loadTestConfig(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestParseOutputReferences(t *testing.T) {
	refs, err := parseOutputReferences([]string{"aabbcc#0", "ddeeff#12"})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "aabbcc", refs[0].Transaction.Id)
	assert.Equal(t, uint32(0), refs[0].Index)
	assert.Equal(t, uint32(12), refs[1].Index)
	for _, bad := range []string{"aabbcc", "#1", "aabbcc#x", "aabbcc#-1"} {
		_, err := parseOutputReferences([]string{bad})
		assert.Error(t, err, bad)
	}
}

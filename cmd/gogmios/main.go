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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	ogmios "github.com/blinklabs-io/gogmios"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configFile string
	host       string
	port       uint16
	tls        bool
	maxPayload int64
	network    string
	debug      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "gogmios",
		Short:         "Command line client for the Ogmios JSON-RPC bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate early so that config errors are not reported as connection errors
			_, err := loadConfig(cmd, f)
			return err
		},
	}
	bindGlobalFlags(rootCmd, f)
	rootCmd.AddCommand(
		newChainSyncCommand(f),
		newHealthCommand(f),
		newQueryCommand(f),
		newMempoolCommand(f),
		newSubmitCommand(f),
		newEvaluateCommand(f),
	)
	return rootCmd
}

func bindGlobalFlags(cmd *cobra.Command, f *globalFlags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "path to a YAML config file")
	pf.StringVar(&f.host, "host", "", "Ogmios server host (default \"localhost\")")
	pf.Uint16Var(&f.port, "port", 0, "Ogmios server port (default 1337)")
	pf.BoolVar(&f.tls, "tls", false, "use wss:// and https:// to connect")
	pf.Int64Var(&f.maxPayload, "max-payload", 0, "maximum size in bytes of a received message")
	pf.StringVar(
		&f.network,
		"network",
		"",
		"network the server is attached to, used to validate addresses",
	)
	pf.BoolVar(&f.debug, "debug", false, "enable debug logging")
}

func newLogger(cfg *cliConfig) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}),
	)
}

// session holds what a subcommand needs to talk to the server
type session struct {
	cfg    *cliConfig
	logger *slog.Logger
	conn   *ogmios.Connection
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *session) Close() {
	s.cancel()
	_ = s.conn.Close()
}

// sessionOptionsFunc returns extra connection options built from the loaded config
type sessionOptionsFunc func(*cliConfig, *slog.Logger) []ogmios.ConnectionOptionFunc

// newSession loads the config and opens a connection. The session context is cancelled on
// SIGINT or SIGTERM
func newSession(
	cmd *cobra.Command,
	f *globalFlags,
	optsFunc sessionOptionsFunc,
) (*session, error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	opts := []ogmios.ConnectionOptionFunc{
		ogmios.WithConnectionConfig(cfg.Connection),
		ogmios.WithLogger(logger),
		ogmios.WithRequestTimeout(cfg.RequestTimeout),
		ogmios.WithIdleTimeout(cfg.IdleTimeout),
		ogmios.WithPingInterval(cfg.PingInterval),
	}
	if optsFunc != nil {
		opts = append(opts, optsFunc(cfg, logger)...)
	}
	conn, err := ogmios.NewConnection(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return &session{
		cfg:    cfg,
		logger: logger,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// printJSON writes v to stdout as indented JSON
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

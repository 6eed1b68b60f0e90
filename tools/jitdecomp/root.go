// Copyright 2025 Google LLC
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
	"log/slog"

	"github.com/gx-org/jit/decomp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	viper      *viper.Viper
	configFile string
}

func newRootCommand() *cobra.Command {
	a := &app{viper: newViper()}
	root := &cobra.Command{
		Use:   "jitdecomp",
		Short: "Rewrite functions with operator decompositions",
		Long: `jitdecomp compiles functions written in the decomposition language,
replaces the operators with a registered decomposition by their
decomposition and prints the resulting graph.

Configuration is read from the file given by --config and from
environment variables prefixed with JITDECOMP_ (for example
JITDECOMP_LOG_LEVEL=debug). Flags take precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "configuration file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.Int("cleanup-rounds", decomp.DefaultCleanupRounds, "number of cleanup rounds after inlining decompositions")
	flags.String("bundle", "", "bundle of decompositions replacing the builtin one")
	for key, flag := range map[string]string{
		keyLogLevel:      "log-level",
		keyLogFormat:     "log-format",
		keyCleanupRounds: "cleanup-rounds",
		keyBundlePath:    "bundle",
	} {
		if err := a.viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	root.AddCommand(a.newRunCommand(), a.newListCommand())
	return root
}

// setup resolves the configuration and returns a logger and a loaded registry.
func (a *app) setup(cmd *cobra.Command) (*slog.Logger, *decomp.Registry, error) {
	cfg, err := loadConfig(a.viper, a.configFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	reg, err := cfg.registry(logger)
	if err != nil {
		return nil, nil, err
	}
	return logger, reg, nil
}

func (a *app) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the operators with a decomposition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := a.setup(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, sig := range reg.Signatures() {
				s, ok := reg.Schema(sig)
				if !ok {
					return errors.Errorf("no schema for signature %s", sig)
				}
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}
}

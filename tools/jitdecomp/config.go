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
	"io"
	"log/slog"
	"strings"

	"github.com/gx-org/jit/base/jitlog"
	"github.com/gx-org/jit/decomp"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	keyLogLevel      = "log.level"
	keyLogFormat     = "log.format"
	keyCleanupRounds = "rewrite.cleanup_rounds"
	keyBundlePath    = "bundle.path"

	envPrefix = "JITDECOMP"
)

type config struct {
	LogLevel      string
	LogFormat     string
	CleanupRounds int
	BundlePath    string
}

// newViper returns a viper instance reading JITDECOMP_* environment variables,
// for example JITDECOMP_LOG_LEVEL for log.level.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, jitlog.FormatText)
	v.SetDefault(keyCleanupRounds, decomp.DefaultCleanupRounds)
	v.SetDefault(keyBundlePath, "")
	return v
}

// loadConfig reads the configuration file, if any, and returns the resolved configuration.
func loadConfig(v *viper.Viper, file string) (*config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "cannot read configuration file %s", file)
		}
	}
	cfg := &config{
		LogLevel:      v.GetString(keyLogLevel),
		LogFormat:     v.GetString(keyLogFormat),
		CleanupRounds: v.GetInt(keyCleanupRounds),
		BundlePath:    v.GetString(keyBundlePath),
	}
	if cfg.CleanupRounds < 0 {
		return nil, errors.Errorf("invalid %s: %d is negative", keyCleanupRounds, cfg.CleanupRounds)
	}
	return cfg, nil
}

func (cfg *config) logger(w io.Writer) (*slog.Logger, error) {
	return jitlog.New(w, cfg.LogLevel, cfg.LogFormat)
}

// registry returns a decomposition registry configured from cfg.
// The registry is loaded before being returned.
func (cfg *config) registry(logger *slog.Logger) (*decomp.Registry, error) {
	opts := []decomp.Option{
		decomp.WithLogger(logger),
		decomp.WithCleanupRounds(cfg.CleanupRounds),
	}
	if cfg.BundlePath != "" {
		opts = append(opts, decomp.WithLoader(decomp.FileLoader(cfg.BundlePath)))
	}
	reg := decomp.NewRegistry(opts...)
	if err := reg.Load(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Copyright 2021 Matrix Origin
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
	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
	"github.com/matrixorigin/hashrelation/pkg/logutil"
)

// Config drives one build/probe run.
type Config struct {
	Log      logutil.LogConfig `toml:"log"`
	Build    BuildConfig       `toml:"build"`
	Probe    ProbeConfig       `toml:"probe"`
	Snapshot SnapshotConfig    `toml:"snapshot"`
}

type BuildConfig struct {
	// KeyKind is int64, varchar, or composite (int64 + varchar).
	KeyKind      string `toml:"key-kind"`
	Batches      int    `toml:"batches"`
	RowsPerBatch int    `toml:"rows-per-batch"`
	DistinctKeys int    `toml:"distinct-keys"`
	NullEvery    int    `toml:"null-every"`
	MaxBytes     uint64 `toml:"max-bytes"`
	// CSV, when set, replaces synthetic generation: column 0 is the
	// key, the remaining columns become payload columns.
	CSV string `toml:"csv"`
}

type ProbeConfig struct {
	Rows    int `toml:"rows"`
	Workers int `toml:"workers"`
}

type SnapshotConfig struct {
	// Path of the lz4-compressed snapshot to write after the build
	// phase; empty disables it.
	Path string `toml:"path"`
}

func defaultConfig() Config {
	return Config{
		Log: logutil.LogConfig{Level: "info"},
		Build: BuildConfig{
			KeyKind:      "int64",
			Batches:      16,
			RowsPerBatch: 8192,
			DistinctKeys: 1 << 16,
			NullEvery:    0,
			MaxBytes:     256 << 20,
		},
		Probe: ProbeConfig{Rows: 1 << 20, Workers: 4},
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, moerr.NewBadConfigNoCtx("parse %s: %v", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Build.KeyKind {
	case "int64", "varchar", "composite":
	default:
		return moerr.NewBadConfigNoCtx("unknown key kind %q", c.Build.KeyKind)
	}
	if c.Build.Batches <= 0 || c.Build.RowsPerBatch <= 0 {
		return moerr.NewBadConfigNoCtx("build needs positive batches and rows-per-batch")
	}
	if c.Build.DistinctKeys <= 0 {
		return moerr.NewBadConfigNoCtx("build needs positive distinct-keys")
	}
	if c.Probe.Workers <= 0 {
		c.Probe.Workers = 1
	}
	return nil
}

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

// relbench builds a hash relation from synthetic or CSV data, probes it
// with a pool of concurrent workers, and optionally dumps a compressed
// snapshot. It doubles as a smoke test of the build/probe lifecycle
// under realistic volumes.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"

	"github.com/matrixorigin/hashrelation/pkg/common/hashmap"
	"github.com/matrixorigin/hashrelation/pkg/container/types"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
	"github.com/matrixorigin/hashrelation/pkg/logutil"
)

var configPath = flag.String("config", "", "path of the TOML config file")

func main() {
	flag.Parse()
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logutil.SetupLogger(&cfg.Log)

	if err := run(context.Background(), cfg); err != nil {
		logutil.Error("relbench failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) error {
	start := time.Now()
	rel, err := build(ctx, cfg.Build)
	if err != nil {
		return err
	}
	defer rel.Free()
	logutil.Infof("build done: %d batches, %d distinct keys, %d null rows in %s",
		rel.BatchCount(), rel.Cardinality(), len(rel.NullRows()), time.Since(start))

	if cfg.Snapshot.Path != "" {
		if err := writeSnapshot(rel, cfg.Snapshot.Path); err != nil {
			return err
		}
	}

	return probe(rel, cfg.Build, cfg.Probe)
}

func build(ctx context.Context, cfg BuildConfig) (*hashmap.HashRelation, error) {
	if cfg.CSV != "" {
		return buildFromCSV(ctx, cfg.CSV, cfg.MaxBytes)
	}

	rel, err := hashmap.NewHashRelationSized(
		keyTypesOf(cfg.KeyKind), nil, uint64(cfg.DistinctKeys), cfg.MaxBytes, nil)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(1))
	for b := 0; b < cfg.Batches; b++ {
		keyVecs, err := genKeys(rng, cfg, cfg.RowsPerBatch)
		if err != nil {
			rel.Free()
			return nil, err
		}
		if err := rel.AppendKeyColumn(keyVecs, nil); err != nil {
			rel.Free()
			return nil, err
		}
	}
	return rel, nil
}

func keyTypesOf(kind string) []types.Type {
	switch kind {
	case "varchar":
		return []types.Type{types.New(types.T_varchar, 0, 0)}
	case "composite":
		return []types.Type{types.New(types.T_int64, 0, 0), types.New(types.T_varchar, 0, 0)}
	default:
		return []types.Type{types.New(types.T_int64, 0, 0)}
	}
}

func genKeys(rng *rand.Rand, cfg BuildConfig, rows int) ([]*vector.Vector, error) {
	ints := make([]int64, rows)
	strs := make([]string, rows)
	var nulls []bool
	if cfg.NullEvery > 0 {
		nulls = make([]bool, rows)
	}
	for i := 0; i < rows; i++ {
		k := rng.Intn(cfg.DistinctKeys)
		ints[i] = int64(k)
		strs[i] = fmt.Sprintf("key-%d", k)
		if nulls != nil && (i+1)%cfg.NullEvery == 0 {
			nulls[i] = true
		}
	}
	switch cfg.KeyKind {
	case "varchar":
		v := vector.New(types.New(types.T_varchar, 0, 0))
		if err := vector.AppendStringList(v, strs, nulls); err != nil {
			return nil, err
		}
		return []*vector.Vector{v}, nil
	case "composite":
		iv := vector.New(types.New(types.T_int64, 0, 0))
		if err := vector.AppendList(iv, ints, nulls); err != nil {
			return nil, err
		}
		sv := vector.New(types.New(types.T_varchar, 0, 0))
		if err := vector.AppendStringList(sv, strs, nil); err != nil {
			return nil, err
		}
		return []*vector.Vector{iv, sv}, nil
	default:
		v := vector.New(types.New(types.T_int64, 0, 0))
		if err := vector.AppendList(v, ints, nulls); err != nil {
			return nil, err
		}
		return []*vector.Vector{v}, nil
	}
}

// probe runs cfg.Rows lookups split over a worker pool, every worker
// with its own iterator over the frozen relation.
func probe(rel *hashmap.HashRelation, buildCfg BuildConfig, cfg ProbeConfig) error {
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var hits, misses atomic.Int64
	var firstErr atomic.Value
	perWorker := (cfg.Rows + cfg.Workers - 1) / cfg.Workers

	start := time.Now()
	for w := 0; w < cfg.Workers; w++ {
		seed := int64(w + 100)
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			h, m, err := probeWorker(rel, buildCfg, rng, perWorker)
			if err != nil {
				firstErr.CompareAndSwap(nil, err)
				return
			}
			hits.Add(h)
			misses.Add(m)
		}); err != nil {
			wg.Done()
			return err
		}
	}
	wg.Wait()
	if err, ok := firstErr.Load().(error); ok {
		return err
	}
	logutil.Infof("probe done: %d hits, %d misses in %s",
		hits.Load(), misses.Load(), time.Since(start))
	return nil
}

func probeWorker(rel *hashmap.HashRelation, buildCfg BuildConfig, rng *rand.Rand, rows int) (hits, misses int64, err error) {
	// probe space twice the build space, so about half the keys miss
	probeCfg := buildCfg
	probeCfg.DistinctKeys = buildCfg.DistinctKeys * 2
	probeCfg.NullEvery = 0

	itr := rel.NewProbeIterator()
	for done := 0; done < rows; {
		n := rows - done
		if n > hashmap.UnitLimit {
			n = hashmap.UnitLimit
		}
		keyVecs, err := genKeys(rng, probeCfg, n)
		if err != nil {
			return 0, 0, err
		}
		buckets, _, err := itr.Probe(keyVecs, 0, n)
		if err != nil {
			return 0, 0, err
		}
		for i := range buckets {
			if buckets[i].IsEmpty() {
				misses++
			} else {
				hits += int64(buckets[i].Count())
			}
		}
		done += n
	}
	return hits, misses, nil
}

func writeSnapshot(rel *hashmap.HashRelation, path string) error {
	data, err := rel.MarshalBinary()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := lz4.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logutil.Infof("snapshot written: %s (%d bytes raw)", path, len(data))
	return nil
}

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
	"context"
	"os"

	"github.com/matrixorigin/simdcsv"

	"github.com/matrixorigin/hashrelation/pkg/common/hashmap"
	"github.com/matrixorigin/hashrelation/pkg/common/moerr"
	"github.com/matrixorigin/hashrelation/pkg/container/types"
	"github.com/matrixorigin/hashrelation/pkg/container/vector"
	"github.com/matrixorigin/hashrelation/pkg/logutil"
)

const csvBatchRows = 4096

// buildFromCSV streams a CSV file into a relation: column 0 is the key,
// every other column one varchar payload column. An empty key field is
// treated as a null key.
func buildFromCSV(ctx context.Context, path string, maxBytes uint64) (*hashmap.HashRelation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := simdcsv.NewReaderWithOptions(f, ',', '#', true, true)

	var rel *hashmap.HashRelation
	records := make([][]string, csvBatchRows)
	rows := 0
	for {
		content, cnt, err := reader.Read(csvBatchRows, ctx, records)
		if err != nil {
			if rel != nil {
				rel.Free()
			}
			return nil, err
		}
		if cnt == 0 {
			break
		}
		if rel == nil {
			payloadTypes := make([]types.Type, len(content[0])-1)
			for i := range payloadTypes {
				payloadTypes[i] = types.New(types.T_varchar, 0, 0)
			}
			rel, err = hashmap.NewHashRelationSized(
				[]types.Type{types.New(types.T_varchar, 0, 0)}, payloadTypes, 0, maxBytes, nil)
			if err != nil {
				return nil, err
			}
		}
		if err := appendCSVBatch(rel, content[:cnt]); err != nil {
			rel.Free()
			return nil, err
		}
		rows += cnt
		if cnt < csvBatchRows {
			break
		}
	}
	if rel == nil {
		return nil, moerr.NewInvalidInputNoCtx("csv file %s is empty", path)
	}
	logutil.Infof("ingested %d csv rows from %s (%d batches)", rows, path, rel.BatchCount())
	return rel, nil
}

func appendCSVBatch(rel *hashmap.HashRelation, records [][]string) error {
	cols := rel.ColumnCount() + 1
	keyVals := make([]string, len(records))
	keyNulls := make([]bool, len(records))
	payloadVals := make([][]string, cols-1)
	for i := range payloadVals {
		payloadVals[i] = make([]string, len(records))
	}
	for i, rec := range records {
		if len(rec) != cols {
			return moerr.NewInvalidInputNoCtx(
				"csv row %d has %d fields, want %d", i, len(rec), cols)
		}
		keyVals[i] = rec[0]
		keyNulls[i] = rec[0] == ""
		for j := 1; j < cols; j++ {
			payloadVals[j-1][i] = rec[j]
		}
	}
	keyVec := vector.New(types.New(types.T_varchar, 0, 0))
	if err := vector.AppendStringList(keyVec, keyVals, keyNulls); err != nil {
		return err
	}
	payloadVecs := make([]*vector.Vector, cols-1)
	for i := range payloadVecs {
		payloadVecs[i] = vector.New(types.New(types.T_varchar, 0, 0))
		if err := vector.AppendStringList(payloadVecs[i], payloadVals[i], nil); err != nil {
			return err
		}
	}
	return rel.AppendKeyColumn([]*vector.Vector{keyVec}, payloadVecs)
}

package pipeline

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/config"
	"github.com/tablecast/tablecast/pkg/connector/registry"
	"github.com/tablecast/tablecast/pkg/pool"
	"github.com/tablecast/tablecast/pkg/testutil"
	"github.com/tablecast/tablecast/pkg/widecolumn"
	"github.com/tablecast/tablecast/pkg/widecolumn/memstore"

	_ "github.com/tablecast/tablecast/pkg/connector/destinations/widecolumn"
	_ "github.com/tablecast/tablecast/pkg/connector/sources/widecolumn"
)

func seedInput(t *testing.T, ctx context.Context, store *memstore.Store, rows int) {
	t.Helper()
	require.NoError(t, store.CreateTable(ctx, "input", []string{"f"}, nil))
	for i := 0; i < rows; i++ {
		key := string(rune('a' + i))
		require.NoError(t, store.Put(ctx, "input", []widecolumn.Mutation{{
			RowKey: key,
			Cells: []widecolumn.Cell{{
				Column:    widecolumn.Column{Family: "f", Qualifier: "v"},
				Timestamp: 100,
				Value:     []byte(key),
			}},
		}}))
	}
}

func TestPipelineSourceToDestination(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	store := memstore.Shared("pipeline-e2e")
	seedInput(t, ctx, store, 3)

	srcCfg := config.NewBaseConfig("e2e-source", "widecolumn")
	srcCfg.WideColumn.Store = "memory://pipeline-e2e"
	srcCfg.WideColumn.InputTable = "input"

	dstCfg := config.NewBaseConfig("e2e-dest", "widecolumn")
	dstCfg.WideColumn.Store = "memory://pipeline-e2e"
	dstCfg.WideColumn.OutputTable = "output"
	dstCfg.WideColumn.TimestampSuffix = "_ts"

	source, err := registry.CreateSource("widecolumn", srcCfg)
	require.NoError(t, err)
	require.NoError(t, source.Initialize(ctx, srcCfg))
	defer source.Close(ctx)

	dest, err := registry.CreateDestination("widecolumn", dstCfg)
	require.NoError(t, err)
	require.NoError(t, dest.Initialize(ctx, dstCfg))
	defer dest.Close(ctx)

	p := New(source, dest, &Config{BatchSize: 2, WorkerCount: 2, FailFast: true}, testutil.TestLogger(t))
	// The source emits timestamps under the family-qualified name while
	// the write path overlays on the bare qualifier, so carry the value
	// across with a rename.
	p.AddTransform(func(ctx context.Context, r *pool.Record) (*pool.Record, error) {
		if ts, ok := r.GetData("f:v_ts"); ok {
			r.SetData("v_ts", ts)
			delete(r.Data, "f:v_ts")
		}
		return r, nil
	})
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, int64(3), p.RecordsProcessed())

	// Each input row comes back with its family-qualified column and its
	// timestamp overlay applied on the write side.
	scanner, err := store.Scan(ctx, "output", nil)
	require.NoError(t, err)
	defer scanner.Close()

	rows := 0
	for {
		row, err := scanner.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows++

		var value widecolumn.Cell
		for _, c := range row.Cells {
			if c.Qualifier == "v" {
				value = c
			}
		}
		require.Equal(t, "f", value.Family)
		assert.Equal(t, row.RowKey, string(value.Value))
		assert.Equal(t, int64(100), value.Timestamp)
	}
	assert.Equal(t, 3, rows)
}

func TestPipelineTransformFilters(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	store := memstore.Shared("pipeline-filter")
	seedInput(t, ctx, store, 4)

	srcCfg := config.NewBaseConfig("filter-source", "widecolumn")
	srcCfg.WideColumn.Store = "memory://pipeline-filter"
	srcCfg.WideColumn.InputTable = "input"

	dstCfg := config.NewBaseConfig("filter-dest", "widecolumn")
	dstCfg.WideColumn.Store = "memory://pipeline-filter"
	dstCfg.WideColumn.OutputTable = "output"

	source, err := registry.CreateSource("widecolumn", srcCfg)
	require.NoError(t, err)
	require.NoError(t, source.Initialize(ctx, srcCfg))
	defer source.Close(ctx)

	dest, err := registry.CreateDestination("widecolumn", dstCfg)
	require.NoError(t, err)
	require.NoError(t, dest.Initialize(ctx, dstCfg))
	defer dest.Close(ctx)

	p := New(source, dest, DefaultConfig(), testutil.TestLogger(t))
	p.AddTransform(func(ctx context.Context, r *pool.Record) (*pool.Record, error) {
		key, _ := r.GetData("rowkey")
		if key == "a" {
			return nil, nil
		}
		return r, nil
	})

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, int64(3), p.RecordsProcessed())
}

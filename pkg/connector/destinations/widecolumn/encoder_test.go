package widecolumn

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/pool"
	"github.com/tablecast/tablecast/pkg/schema"
	"github.com/tablecast/tablecast/pkg/widecolumn"
)

func record(data map[string]interface{}) *pool.Record {
	return pool.NewRecord("test", data)
}

func cellByColumn(t *testing.T, m *widecolumn.Mutation, family, qualifier string) widecolumn.Cell {
	t.Helper()
	for _, c := range m.Cells {
		if c.Family == family && c.Qualifier == qualifier {
			return c
		}
	}
	t.Fatalf("no cell %s:%s in mutation", family, qualifier)
	return widecolumn.Cell{}
}

func TestEncodeRecordBasic(t *testing.T) {
	enc := NewEncoder("rowkey", "f", "")
	r := record(map[string]interface{}{
		"rowkey": "r1",
		"col0":   "hello",
		"col1":   int64(7),
	})
	defer r.Release()

	m, err := enc.EncodeRecord(r)
	require.NoError(t, err)
	assert.Equal(t, "r1", m.RowKey)
	assert.Len(t, m.Cells, 2)

	c := cellByColumn(t, m, "f", "col0")
	assert.Equal(t, "hello", string(c.Value))
	assert.Equal(t, int64(0), c.Timestamp)

	c = cellByColumn(t, m, "f", "col1")
	assert.Equal(t, int64(7), int64(binary.BigEndian.Uint64(c.Value)))
}

func TestEncodeRecordExplicitFamily(t *testing.T) {
	enc := NewEncoder("rowkey", "f", "")
	r := record(map[string]interface{}{
		"rowkey": "r1",
		"g:col0": "x",
		"col1":   "y",
	})
	defer r.Release()

	m, err := enc.EncodeRecord(r)
	require.NoError(t, err)

	assert.Equal(t, "x", string(cellByColumn(t, m, "g", "col0").Value))
	assert.Equal(t, "y", string(cellByColumn(t, m, "f", "col1").Value))
}

func TestEncodeRecordMissingRowKey(t *testing.T) {
	enc := NewEncoder("rowkey", "f", "")

	r := record(map[string]interface{}{"col0": "x"})
	defer r.Release()
	_, err := enc.EncodeRecord(r)
	require.Error(t, err)
	assert.True(t, widecolumn.IsMissingRowKey(err))

	// A nil row key is as missing as an absent one.
	r2 := record(map[string]interface{}{"rowkey": nil, "col0": "x"})
	defer r2.Release()
	_, err = enc.EncodeRecord(r2)
	require.Error(t, err)
	assert.True(t, widecolumn.IsMissingRowKey(err))
}

func TestEncodeRecordInvalidFieldName(t *testing.T) {
	enc := NewEncoder("rowkey", "f", "")
	r := record(map[string]interface{}{
		"rowkey":  "r1",
		"a:b:col": "x",
	})
	defer r.Release()

	_, err := enc.EncodeRecord(r)
	require.Error(t, err)
	assert.True(t, widecolumn.IsInvalidFieldName(err))
}

func TestEncodeRecordTimestampOverlay(t *testing.T) {
	enc := NewEncoder("rowkey", "f", "_ts")
	r := record(map[string]interface{}{
		"rowkey":  "r1",
		"col0":    "hello",
		"col0_ts": int64(1000),
		"col1":    "other",
	})
	defer r.Release()

	m, err := enc.EncodeRecord(r)
	require.NoError(t, err)

	// The overlay field sets col0's cell timestamp and is not itself
	// written as a cell.
	assert.Len(t, m.Cells, 2)
	assert.Equal(t, int64(1000), cellByColumn(t, m, "f", "col0").Timestamp)
	assert.Equal(t, int64(0), cellByColumn(t, m, "f", "col1").Timestamp)
}

func TestEncodeRecordOverlayQualifiedField(t *testing.T) {
	enc := NewEncoder("rowkey", "f", "_ts")
	r := record(map[string]interface{}{
		"rowkey":  "r1",
		"g:col0":  "x",
		"col0_ts": int64(500),
	})
	defer r.Release()

	m, err := enc.EncodeRecord(r)
	require.NoError(t, err)
	// Overlays match on the bare qualifier, regardless of family.
	assert.Equal(t, int64(500), cellByColumn(t, m, "g", "col0").Timestamp)
}

func TestEncodeRecordNoOverlayWithoutSuffix(t *testing.T) {
	enc := NewEncoder("rowkey", "f", "")
	r := record(map[string]interface{}{
		"rowkey":  "r1",
		"col0":    "x",
		"col0_ts": int64(1000),
	})
	defer r.Release()

	m, err := enc.EncodeRecord(r)
	require.NoError(t, err)

	// With no suffix configured, col0_ts is an ordinary column.
	assert.Len(t, m.Cells, 2)
	assert.Equal(t, int64(0), cellByColumn(t, m, "f", "col0").Timestamp)
	cellByColumn(t, m, "f", "col0_ts")
}

func TestEncodeRecordSkipsNilValues(t *testing.T) {
	enc := NewEncoder("rowkey", "f", "")
	r := record(map[string]interface{}{
		"rowkey": "r1",
		"col0":   nil,
		"col1":   "x",
	})
	defer r.Release()

	m, err := enc.EncodeRecord(r)
	require.NoError(t, err)
	assert.Len(t, m.Cells, 1)
}

func TestEncodeRecordDeclaredSchema(t *testing.T) {
	enc := NewEncoder("rowkey", "f", "")
	enc.DeclareSchema(&schema.Schema{Fields: []schema.Field{
		{Name: "col0", Type: schema.TypeInt32},
	}})

	r := record(map[string]interface{}{
		"rowkey": "r1",
		"col0":   int64(9),
	})
	defer r.Release()

	m, err := enc.EncodeRecord(r)
	require.NoError(t, err)
	// Declared integer type wins over the runtime int64, so the cell is
	// 4 bytes wide.
	assert.Len(t, cellByColumn(t, m, "f", "col0").Value, 4)
}

func TestEncodeRecordNumericRowKey(t *testing.T) {
	enc := NewEncoder("id", "f", "")
	r := record(map[string]interface{}{
		"id":   int64(42),
		"col0": "x",
	})
	defer r.Release()

	m, err := enc.EncodeRecord(r)
	require.NoError(t, err)
	assert.Equal(t, "42", m.RowKey)
}

func TestFamilySet(t *testing.T) {
	enc := NewEncoder("rowkey", "f", "")
	r1 := record(map[string]interface{}{"rowkey": "a", "col0": "x", "g:col1": "y"})
	r2 := record(map[string]interface{}{"rowkey": "b", "h:col2": "z"})
	defer r1.Release()
	defer r2.Release()

	m1, err := enc.EncodeRecord(r1)
	require.NoError(t, err)
	m2, err := enc.EncodeRecord(r2)
	require.NoError(t, err)

	families := FamilySet([]*widecolumn.Mutation{m1, m2})
	assert.Len(t, families, 3)
	assert.Contains(t, families, "f")
	assert.Contains(t, families, "g")
	assert.Contains(t, families, "h")
}

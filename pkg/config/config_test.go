package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/schema"
)

func TestNewBaseConfigDefaults(t *testing.T) {
	cfg := NewBaseConfig("events", "widecolumn")

	assert.Equal(t, "rowkey", cfg.WideColumn.RowKeyField)
	assert.Equal(t, "f", cfg.WideColumn.DefaultFamily)
	assert.Equal(t, 3, cfg.WideColumn.NumRegions)
	assert.Equal(t, "aaaaaaa", cfg.WideColumn.SplitBounds.Start)
	assert.Equal(t, "zzzzzzz", cfg.WideColumn.SplitBounds.End)
	assert.Equal(t, time.Second, cfg.WideColumn.RegionPollInterval)
	require.NoError(t, cfg.Validate())
}

func TestSuffixDefaults(t *testing.T) {
	cfg := NewBaseConfig("events", "widecolumn")

	// Write path defaults to no overlay; read path defaults to "_ts".
	assert.Equal(t, "", cfg.WideColumn.WriteSuffix())
	assert.Equal(t, "_ts", cfg.WideColumn.ReadSuffix())

	cfg.WideColumn.TimestampSuffix = "_at"
	assert.Equal(t, "_at", cfg.WideColumn.WriteSuffix())
	assert.Equal(t, "_at", cfg.WideColumn.ReadSuffix())
}

func TestValidateRejectsUnevenBounds(t *testing.T) {
	cfg := NewBaseConfig("events", "widecolumn")
	cfg.WideColumn.SplitBounds = SplitBounds{Start: "aa", End: "zzz"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroRegions(t *testing.T) {
	cfg := NewBaseConfig("events", "widecolumn")
	cfg.WideColumn.NumRegions = 0
	assert.Error(t, cfg.Validate())
}

func TestDecodeHintsMergesProperties(t *testing.T) {
	cfg := NewBaseConfig("events", "widecolumn")
	cfg.WideColumn.TypeHints = map[string]string{
		"col1": "LongType",
		"col2": "DoubleType",
	}
	cfg.Properties["field.type.col2"] = "BooleanType"
	cfg.Properties["field.type.col3"] = "TimestampType"

	hints := cfg.DecodeHints()
	assert.Equal(t, schema.TypeInt64, hints["col1"])
	// Flat properties win over the structured map.
	assert.Equal(t, schema.TypeBool, hints["col2"])
	assert.Equal(t, schema.TypeTimestamp, hints["col3"])
}

func TestLoadBaseAppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("TEST_STORE_DSN", "memory://from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "dest.yaml")
	content := `name: events
type: widecolumn
widecolumn:
  store: ${TEST_STORE_DSN}
  output_table: events
  num_regions: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadBase(path)
	require.NoError(t, err)

	assert.Equal(t, "memory://from-env", cfg.WideColumn.Store)
	assert.Equal(t, 10, cfg.WideColumn.NumRegions)
	// Unset options pick up defaults.
	assert.Equal(t, "rowkey", cfg.WideColumn.RowKeyField)
	assert.Equal(t, "f", cfg.WideColumn.DefaultFamily)
	assert.Equal(t, DefaultWriteBatch, cfg.Performance.BatchSize)
}

func TestLoadBaseRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("type: widecolumn\n"), 0o644))

	_, err := LoadBase(path)
	assert.Error(t, err)
}

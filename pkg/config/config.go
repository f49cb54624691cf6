// Package config provides the unified configuration system for tablecast.
// All connectors consume a single BaseConfig structure; the wide-column
// options the store mapping depends on live in the WideColumn section.
//
// Example usage:
//
//	cfg := config.NewBaseConfig("events", "widecolumn")
//	cfg.WideColumn.OutputTable = "events"
//	cfg.WideColumn.NumRegions = 10
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/tablecast/tablecast/pkg/schema"
)

// Default wide-column option values. These match the option surface the
// host framework exposes: rowkey field "rowkey", family "f", three initial
// regions, "_ts" overlay suffix on the read path and none on the write path.
const (
	DefaultRowKeyField   = "rowkey"
	DefaultFamily        = "f"
	DefaultNumRegions    = 3
	DefaultReadSuffix    = "_ts"
	DefaultSplitStart    = "aaaaaaa"
	DefaultSplitEnd      = "zzzzzzz"
	DefaultRegionPoll    = time.Second
	DefaultScanBuffer    = 1024
	DefaultWriteBatch    = 1000
)

// BaseConfig is the single configuration structure all connectors use.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name"`
	// Type specifies the connector type (e.g., "widecolumn")
	Type string `yaml:"type" json:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Performance settings control throughput and resource usage
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Timeouts define operation timeout durations
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for error handling
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Observability settings for logging and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// WideColumn carries the record-to-cell mapping options
	WideColumn WideColumnConfig `yaml:"widecolumn" json:"widecolumn"`

	// Properties holds flat key-value options in the host framework's
	// spelling, e.g. "field.type.col1: LongType". Structured sections win
	// over properties when both set the same option.
	Properties map[string]string `yaml:"properties" json:"properties"`
}

// PerformanceConfig contains performance-related settings.
type PerformanceConfig struct {
	// BatchSize controls the number of records written per provisioning round
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// BufferSize sets the size of stream channel buffers
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
	// Workers defines the number of concurrent encode workers
	Workers int `yaml:"workers" json:"workers"`
	// FlushInterval triggers periodic batch flushes
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
}

// TimeoutConfig contains timeout settings.
type TimeoutConfig struct {
	// Request timeout for individual store operations
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing store connections
	Connection time.Duration `yaml:"connection" json:"connection"`
}

// ReliabilityConfig contains reliability and error handling settings.
// Store-connectivity errors are never retried by the connectors themselves;
// the retry knobs govern the pipeline driver only.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum retry attempts for pipeline-level restarts
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// FailFast stops on first record error instead of continuing
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// EnableMetrics activates prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// SplitBounds are the lexicographic endpoints of the key space used to
// generate pre-split boundaries. The historical "aaaaaaa".."zzzzzzz" range
// is a placeholder specific to printable row keys; deployments with binary
// keys should set their own bounds.
type SplitBounds struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// WideColumnConfig carries every option of the record/cell mapping.
type WideColumnConfig struct {
	// Store is the store client DSN, e.g. "memory://local". The scheme
	// selects a registered client driver.
	Store string `yaml:"store" json:"store"`

	// RowKeyField names the record field holding the row identifier
	RowKeyField string `yaml:"rowkey_field" json:"rowkey_field"`
	// DefaultFamily receives unqualified columns
	DefaultFamily string `yaml:"default_family" json:"default_family"`
	// OutputTable is the table written by the destination
	OutputTable string `yaml:"output_table" json:"output_table"`
	// InputTable is the table scanned by the source
	InputTable string `yaml:"input_table" json:"input_table"`

	// TimestampSuffix marks overlay fields ("col_ts" supplies col's cell
	// timestamp). Empty means no overlay handling on the write path; the
	// read path defaults to "_ts" when unset.
	TimestampSuffix string `yaml:"timestamp_suffix" json:"timestamp_suffix"`

	// NumRegions is the desired region count at table creation. Values
	// above 3 pre-split the table across evenly spaced boundaries.
	NumRegions int `yaml:"num_regions" json:"num_regions"`
	// SplitBounds bound the generated split keys
	SplitBounds SplitBounds `yaml:"split_bounds" json:"split_bounds"`
	// RegionPollInterval is the delay between region-allocation polls
	RegionPollInterval time.Duration `yaml:"region_poll_interval" json:"region_poll_interval"`
	// RegionWaitTimeout caps the region-allocation wait; zero waits
	// until the context is done, matching the store's asynchronous
	// allocation model.
	RegionWaitTimeout time.Duration `yaml:"region_wait_timeout" json:"region_wait_timeout"`

	// FamilyFilter restricts the read path to one family; empty passes all
	FamilyFilter string `yaml:"family_filter" json:"family_filter"`

	// TypeHints maps bare qualifiers to decode type names
	// (LongType, DoubleType, ...). Merged with "field.type.*" properties.
	TypeHints map[string]string `yaml:"type_hints" json:"type_hints"`
}

// NewBaseConfig creates a BaseConfig with production defaults.
func NewBaseConfig(name, connectorType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Performance: PerformanceConfig{
			BatchSize:     DefaultWriteBatch,
			BufferSize:    DefaultScanBuffer,
			Workers:       runtime.NumCPU(),
			FlushInterval: 10 * time.Second,
		},
		Timeouts: TimeoutConfig{
			Request:    30 * time.Second,
			Connection: 10 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts: 3,
			RetryDelay:    time.Second,
			FailFast:      true,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			LogLevel:      "info",
		},
		WideColumn: WideColumnConfig{
			RowKeyField:        DefaultRowKeyField,
			DefaultFamily:      DefaultFamily,
			NumRegions:         DefaultNumRegions,
			SplitBounds:        SplitBounds{Start: DefaultSplitStart, End: DefaultSplitEnd},
			RegionPollInterval: DefaultRegionPoll,
		},
		Properties: make(map[string]string),
	}
}

// Validate checks required fields and value ranges.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Type == "" {
		return fmt.Errorf("type is required")
	}
	if bc.Performance.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if bc.Performance.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive")
	}
	if bc.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}
	if bc.WideColumn.NumRegions < 1 {
		return fmt.Errorf("num_regions must be at least 1")
	}
	wb := bc.WideColumn.SplitBounds
	if len(wb.Start) != len(wb.End) {
		return fmt.Errorf("split bounds must have equal length, got %q and %q", wb.Start, wb.End)
	}
	return nil
}

// ApplyDefaults fills zero-valued wide-column options with the defaults.
// Loading a config from YAML bypasses NewBaseConfig, so loaders call this
// before Validate.
func (bc *BaseConfig) ApplyDefaults() {
	wc := &bc.WideColumn
	if wc.RowKeyField == "" {
		wc.RowKeyField = DefaultRowKeyField
	}
	if wc.DefaultFamily == "" {
		wc.DefaultFamily = DefaultFamily
	}
	if wc.NumRegions == 0 {
		wc.NumRegions = DefaultNumRegions
	}
	if wc.SplitBounds.Start == "" {
		wc.SplitBounds.Start = DefaultSplitStart
	}
	if wc.SplitBounds.End == "" {
		wc.SplitBounds.End = DefaultSplitEnd
	}
	if wc.RegionPollInterval == 0 {
		wc.RegionPollInterval = DefaultRegionPoll
	}
	if bc.Performance.BatchSize == 0 {
		bc.Performance.BatchSize = DefaultWriteBatch
	}
	if bc.Performance.BufferSize == 0 {
		bc.Performance.BufferSize = DefaultScanBuffer
	}
	if bc.Observability.LogLevel == "" {
		bc.Observability.LogLevel = "info"
	}
}

// ReadSuffix returns the timestamp overlay suffix for the read path,
// defaulting to "_ts" when unset.
func (wc *WideColumnConfig) ReadSuffix() string {
	if wc.TimestampSuffix == "" {
		return DefaultReadSuffix
	}
	return wc.TimestampSuffix
}

// WriteSuffix returns the overlay suffix for the write path. An empty value
// disables overlay handling, which is the write-path default.
func (wc *WideColumnConfig) WriteSuffix() string {
	return wc.TimestampSuffix
}

// DecodeHints builds the qualifier hint table from the structured map and
// any flat "field.type.*" properties; properties win on conflict.
func (bc *BaseConfig) DecodeHints() schema.Hints {
	structured := make(schema.Hints, len(bc.WideColumn.TypeHints))
	for qualifier, name := range bc.WideColumn.TypeHints {
		if tag, ok := schema.ParseTypeTag(name); ok {
			structured[qualifier] = tag
		}
	}
	return schema.MergeHints(structured, schema.HintsFromProperties(bc.Properties))
}

// GetWorkers returns the worker count, never less than 1.
func (p *PerformanceConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}

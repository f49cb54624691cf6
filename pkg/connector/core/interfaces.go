// Package core defines the connector contracts. Sources read rows out of a
// backing system as records, destinations write records into one. Concrete
// connectors register factories with the registry package and are looked up
// by name at pipeline build time.
package core

import (
	"context"

	"github.com/tablecast/tablecast/pkg/config"
	"github.com/tablecast/tablecast/pkg/pool"
	"github.com/tablecast/tablecast/pkg/schema"
)

// ConnectorType distinguishes sources from destinations in the registry.
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// Source reads records from an external system.
type Source interface {
	// Initialize prepares the source with its configuration. It must be
	// called before any other method.
	Initialize(ctx context.Context, cfg *config.BaseConfig) error

	// Discover returns the schema of the data the source will produce.
	Discover(ctx context.Context) (*schema.Schema, error)

	// Read streams records until the source is exhausted or ctx is
	// cancelled. The source closes the stream's channels.
	Read(ctx context.Context) (*RecordStream, error)

	// ReadBatch streams records grouped into batches of at most batchSize.
	ReadBatch(ctx context.Context, batchSize int) (*BatchStream, error)

	// Close releases the source's resources.
	Close(ctx context.Context) error

	Health(ctx context.Context) *HealthStatus
	Metrics() map[string]interface{}
}

// Destination writes records to an external system.
type Destination interface {
	// Initialize prepares the destination with its configuration. It must
	// be called before any other method.
	Initialize(ctx context.Context, cfg *config.BaseConfig) error

	// CreateSchema provisions the target to accept records of the given
	// schema. Repeated calls with the same schema are no-ops.
	CreateSchema(ctx context.Context, s *schema.Schema) error

	// Write consumes the stream until its record channel closes or ctx is
	// cancelled.
	Write(ctx context.Context, stream *RecordStream) error

	// WriteBatch consumes the stream batch by batch.
	WriteBatch(ctx context.Context, stream *BatchStream) error

	// Close flushes pending writes and releases resources.
	Close(ctx context.Context) error

	SupportsBatch() bool
	SupportsStreaming() bool

	Health(ctx context.Context) *HealthStatus
	Metrics() map[string]interface{}
}

// RecordStream carries records and errors from a producer to a consumer.
// The producer closes both channels when done.
type RecordStream struct {
	Records <-chan *pool.Record
	Errors  <-chan error
}

// BatchStream carries batches of records and errors from a producer to a
// consumer. The producer closes both channels when done.
type BatchStream struct {
	Batches <-chan []*pool.Record
	Errors  <-chan error
}

// HealthStatus reports a connector's liveness.
type HealthStatus struct {
	Healthy bool                   `json:"healthy"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

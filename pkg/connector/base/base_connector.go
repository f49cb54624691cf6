// Package base provides the BaseConnector every concrete connector embeds.
// It carries the pieces all connectors share: configuration, structured
// logging, metrics collection, retry policy and health checking, so the
// concrete types only implement the data path.
//
// Connectors embed it and call its Initialize from their own:
//
//	type MyDestination struct {
//	    *base.BaseConnector
//	    // destination fields
//	}
//
//	func New() *MyDestination {
//	    return &MyDestination{
//	        BaseConnector: base.NewBaseConnector("my-dest", core.ConnectorTypeDestination, "1.0.0"),
//	    }
//	}
package base

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tablecast/tablecast/pkg/config"
	"github.com/tablecast/tablecast/pkg/connector/core"
	"github.com/tablecast/tablecast/pkg/logger"
	"github.com/tablecast/tablecast/pkg/metrics"
)

// BaseConnector implements the parts of core.Source and core.Destination
// that do not touch data.
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string

	config *config.BaseConfig
	logger *zap.Logger

	healthChecker    *HealthChecker
	metricsCollector *metrics.Collector
	retryPolicy      *RetryPolicy

	closed     bool
	closeMutex sync.Mutex
}

// NewBaseConnector creates the embedded base. Concrete connectors call it
// from their constructors.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		logger:        logger.Get().With(zap.String("connector", name)),
	}
}

// Initialize wires configuration, metrics, health checking and the retry
// policy. Concrete connectors call it first from their own Initialize.
func (bc *BaseConnector) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	bc.config = cfg

	bc.healthChecker = NewHealthChecker(bc.name)
	bc.metricsCollector = metrics.NewCollector(bc.name)

	if cfg.Reliability.RetryAttempts > 1 {
		bc.retryPolicy = NewRetryPolicy(
			cfg.Reliability.RetryAttempts,
			cfg.Reliability.RetryDelay,
		)
	} else {
		bc.retryPolicy = NoRetryPolicy()
	}

	bc.logger.Info("connector initialized",
		zap.String("type", string(bc.connectorType)),
		zap.String("version", bc.version))

	return nil
}

// Name returns the connector name.
func (bc *BaseConnector) Name() string { return bc.name }

// Type returns whether this is a source or a destination.
func (bc *BaseConnector) Type() core.ConnectorType { return bc.connectorType }

// Version returns the connector version.
func (bc *BaseConnector) Version() string { return bc.version }

// Config returns the configuration passed to Initialize.
func (bc *BaseConnector) Config() *config.BaseConfig { return bc.config }

// Logger returns the connector-scoped logger.
func (bc *BaseConnector) Logger() *zap.Logger { return bc.logger }

// Collector returns the metrics collector.
func (bc *BaseConnector) Collector() *metrics.Collector { return bc.metricsCollector }

// HealthChecker exposes the checker so connectors can install their probe.
func (bc *BaseConnector) HealthChecker() *HealthChecker { return bc.healthChecker }

// Health runs the health probe and reports the result.
func (bc *BaseConnector) Health(ctx context.Context) *core.HealthStatus {
	bc.closeMutex.Lock()
	closed := bc.closed
	bc.closeMutex.Unlock()
	if closed {
		return &core.HealthStatus{Healthy: false, Message: "connector is closed"}
	}
	return bc.healthChecker.Check(ctx)
}

// Metrics returns the collector's counters plus identity fields.
func (bc *BaseConnector) Metrics() map[string]interface{} {
	m := bc.metricsCollector.GetAll()
	m["name"] = bc.name
	m["type"] = string(bc.connectorType)
	m["version"] = bc.version
	m["uptime_seconds"] = time.Since(bc.metricsCollector.StartTime()).Seconds()
	return m
}

// Close marks the connector closed. Idempotent. Concrete connectors release
// their own resources before delegating here.
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return nil
	}
	bc.closed = true
	bc.logger.Info("connector closed")
	return nil
}

// ExecuteWithRetry runs fn under the configured retry policy.
func (bc *BaseConnector) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	return bc.retryPolicy.Execute(ctx, fn)
}

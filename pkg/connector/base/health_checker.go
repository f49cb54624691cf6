package base

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tablecast/tablecast/pkg/connector/core"
	"github.com/tablecast/tablecast/pkg/logger"
)

// HealthChecker runs an optional check function on demand and caches the
// result. A connector typically wires its store client's liveness probe as
// the check function.
type HealthChecker struct {
	name      string
	checkFunc func(ctx context.Context) error
	logger    *zap.Logger

	mu           sync.RWMutex
	status       core.HealthStatus
	checkCount   int64
	failureCount int64
}

// NewHealthChecker creates a checker that reports healthy until a check
// function is set and fails.
func NewHealthChecker(name string) *HealthChecker {
	return &HealthChecker{
		name:   name,
		status: core.HealthStatus{Healthy: true},
		logger: logger.Get().With(
			zap.String("component", "health_checker"),
			zap.String("connector", name)),
	}
}

// SetCheckFunc installs the probe run by Check.
func (hc *HealthChecker) SetCheckFunc(fn func(ctx context.Context) error) {
	hc.checkFunc = fn
}

// Check runs the probe with a bounded timeout and returns the resulting
// status.
func (hc *HealthChecker) Check(ctx context.Context) *core.HealthStatus {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	if hc.checkFunc != nil {
		err = hc.checkFunc(checkCtx)
	}

	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.checkCount++
	if err != nil {
		hc.failureCount++
		hc.status = core.HealthStatus{
			Healthy: false,
			Message: err.Error(),
		}
		hc.logger.Warn("health check failed", zap.Error(err))
	} else {
		hc.status = core.HealthStatus{Healthy: true}
	}
	hc.status.Details = map[string]interface{}{
		"check_count":   hc.checkCount,
		"failure_count": hc.failureCount,
	}

	st := hc.status
	return &st
}

// Status returns the most recent check result without running the probe.
func (hc *HealthChecker) Status() *core.HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	st := hc.status
	return &st
}

// SetUnhealthy records a failure observed outside the probe, such as a
// write error.
func (hc *HealthChecker) SetUnhealthy(message string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.status = core.HealthStatus{Healthy: false, Message: message}
}

// Package pipeline drives records from a source connector into a
// destination connector: the source reader streams records, parallel
// workers apply transforms, a collector groups records into batches, and
// the writer hands batches to the destination.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tablecast/tablecast/pkg/connector/core"
	"github.com/tablecast/tablecast/pkg/errors"
	"github.com/tablecast/tablecast/pkg/pool"
)

// Transform modifies a record in flight. Returning nil, nil filters the
// record out. Transforms run in the order they were added.
type Transform func(ctx context.Context, record *pool.Record) (*pool.Record, error)

// Config controls pipeline throughput characteristics.
type Config struct {
	// BatchSize is the number of records handed to the destination at once
	BatchSize int
	// WorkerCount is the number of parallel transform workers
	WorkerCount int
	// FlushInterval caps how long a partial batch waits before flushing
	FlushInterval time.Duration
	// FailFast aborts the run on the first record error instead of
	// counting it and continuing
	FailFast bool
}

// DefaultConfig suits moderate record sizes and local stores.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:     1000,
		WorkerCount:   4,
		FlushInterval: time.Second,
		FailFast:      true,
	}
}

// Pipeline streams records from one source into one destination.
type Pipeline struct {
	source      core.Source
	destination core.Destination
	transforms  []Transform
	cfg         *Config
	logger      *zap.Logger

	recordsProcessed int64
	recordsFailed    int64
}

// New builds a pipeline. A nil cfg uses DefaultConfig.
func New(source core.Source, destination core.Destination, cfg *Config, logger *zap.Logger) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Pipeline{
		source:      source,
		destination: destination,
		cfg:         cfg,
		logger:      logger,
	}
}

// AddTransform appends a transform to the chain.
func (p *Pipeline) AddTransform(t Transform) {
	p.transforms = append(p.transforms, t)
}

// RecordsProcessed reports records successfully handed to the destination.
func (p *Pipeline) RecordsProcessed() int64 {
	return atomic.LoadInt64(&p.recordsProcessed)
}

// RecordsFailed reports records dropped by transform errors.
func (p *Pipeline) RecordsFailed() int64 {
	return atomic.LoadInt64(&p.recordsFailed)
}

// Run streams until the source is exhausted or a fatal error occurs. It
// blocks for the duration of the run.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.logger.Info("starting pipeline",
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Int("workers", p.cfg.WorkerCount),
		zap.Int("transforms", len(p.transforms)))

	stream, err := p.source.Read(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "starting source read")
	}

	transformed := make(chan *pool.Record, p.cfg.BatchSize*2)
	batches := make(chan []*pool.Record, 8)

	// fatalErr carries the first fatal error from any stage.
	var fatalOnce sync.Once
	var fatalErr error
	fatal := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancel()
		})
	}

	// Transform workers drain the source stream.
	var workerWg sync.WaitGroup
	workers := p.cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			p.transformWorker(ctx, stream.Records, transformed, fatal)
		}()
	}

	// Source errors are fatal for the whole run.
	go func() {
		for err := range stream.Errors {
			if err != nil {
				fatal(errors.Wrap(err, errors.ErrorTypeConnection, "source error"))
			}
		}
	}()

	go func() {
		workerWg.Wait()
		close(transformed)
	}()

	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		p.collectBatches(ctx, transformed, batches)
	}()

	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		p.writeBatches(ctx, batches, fatal)
	}()

	collectorWg.Wait()
	close(batches)
	writerWg.Wait()

	if fatalErr != nil {
		return fatalErr
	}

	elapsed := time.Since(start)
	processed := p.RecordsProcessed()
	p.logger.Info("pipeline completed",
		zap.Int64("records_processed", processed),
		zap.Int64("records_failed", p.RecordsFailed()),
		zap.Duration("elapsed", elapsed),
		zap.Float64("records_per_second", float64(processed)/elapsed.Seconds()))
	return nil
}

func (p *Pipeline) transformWorker(ctx context.Context, in <-chan *pool.Record, out chan<- *pool.Record, fatal func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case record, ok := <-in:
			if !ok {
				return
			}

			result := record
			var err error
			for _, t := range p.transforms {
				result, err = t(ctx, result)
				if err != nil || result == nil {
					break
				}
			}
			if err != nil {
				atomic.AddInt64(&p.recordsFailed, 1)
				if p.cfg.FailFast {
					fatal(err)
					return
				}
				p.logger.Warn("transform failed, record dropped",
					zap.String("record_id", record.ID),
					zap.Error(err))
				record.Release()
				continue
			}
			if result == nil {
				record.Release()
				continue
			}

			select {
			case out <- result:
			case <-ctx.Done():
				result.Release()
				return
			}
		}
	}
}

// collectBatches groups records into destination-sized batches, flushing
// partial batches on the configured interval so slow sources do not stall
// the writer indefinitely.
func (p *Pipeline) collectBatches(ctx context.Context, in <-chan *pool.Record, out chan<- []*pool.Record) {
	flushInterval := p.cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*pool.Record, 0, p.cfg.BatchSize)
	emit := func() {
		if len(batch) == 0 {
			return
		}
		outBatch := batch
		batch = make([]*pool.Record, 0, p.cfg.BatchSize)
		select {
		case out <- outBatch:
		case <-ctx.Done():
			for _, r := range outBatch {
				r.Release()
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			for _, r := range batch {
				r.Release()
			}
			return
		case <-ticker.C:
			emit()
		case record, ok := <-in:
			if !ok {
				emit()
				return
			}
			batch = append(batch, record)
			if len(batch) >= p.cfg.BatchSize {
				emit()
			}
		}
	}
}

func (p *Pipeline) writeBatches(ctx context.Context, in <-chan []*pool.Record, fatal func(error)) {
	for batch := range in {
		n := len(batch)
		batchCh := make(chan []*pool.Record, 1)
		errCh := make(chan error)
		batchCh <- batch
		close(batchCh)
		close(errCh)

		err := p.destination.WriteBatch(ctx, &core.BatchStream{Batches: batchCh, Errors: errCh})
		if err != nil {
			atomic.AddInt64(&p.recordsFailed, int64(n))
			fatal(err)
			return
		}
		atomic.AddInt64(&p.recordsProcessed, int64(n))
	}
}

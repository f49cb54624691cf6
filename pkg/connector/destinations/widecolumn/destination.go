// Package widecolumn implements the wide-column destination connector. It
// encodes records into row mutations, provisions the output table and its
// column families on demand, and writes batches through a StoreClient.
package widecolumn

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tablecast/tablecast/pkg/config"
	"github.com/tablecast/tablecast/pkg/connector/base"
	"github.com/tablecast/tablecast/pkg/connector/core"
	"github.com/tablecast/tablecast/pkg/errors"
	"github.com/tablecast/tablecast/pkg/pool"
	"github.com/tablecast/tablecast/pkg/schema"
	"github.com/tablecast/tablecast/pkg/widecolumn"
)

// Destination writes records to a wide-column table.
type Destination struct {
	*base.BaseConnector

	client      widecolumn.StoreClient
	encoder     *Encoder
	provisioner *Provisioner
	table       string
	batchSize   int
}

// NewDestination creates an uninitialized destination.
func NewDestination(cfg *config.BaseConfig) (core.Destination, error) {
	return &Destination{
		BaseConnector: base.NewBaseConnector(cfg.Name, core.ConnectorTypeDestination, "1.0.0"),
	}, nil
}

// Initialize opens the store client and provisions the output table with
// the default family.
func (d *Destination) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := d.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}

	wc := &cfg.WideColumn
	if wc.OutputTable == "" {
		return errors.New(errors.ErrorTypeConfig, "widecolumn.output_table is required")
	}
	if wc.Store == "" {
		return errors.New(errors.ErrorTypeConfig, "widecolumn.store DSN is required")
	}

	client, err := widecolumn.Open(wc.Store)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "opening store client")
	}
	d.client = client
	d.table = wc.OutputTable
	d.batchSize = cfg.Performance.BatchSize

	d.encoder = NewEncoder(wc.RowKeyField, wc.DefaultFamily, wc.WriteSuffix())
	d.provisioner = NewProvisioner(client, d.Logger(), d.Collector(),
		wc.RegionPollInterval, wc.RegionWaitTimeout,
		wc.SplitBounds.Start, wc.SplitBounds.End)

	d.HealthChecker().SetCheckFunc(func(ctx context.Context) error {
		_, err := d.client.TableExists(ctx, d.table)
		return err
	})

	if err := d.provisioner.EnsureTable(ctx, d.table, []string{wc.DefaultFamily}, wc.NumRegions); err != nil {
		return err
	}

	d.Logger().Info("destination ready",
		zap.String("table", d.table),
		zap.String("default_family", wc.DefaultFamily))
	return nil
}

// CreateSchema declares field types so values encode per their declared
// type instead of their runtime type.
func (d *Destination) CreateSchema(ctx context.Context, s *schema.Schema) error {
	if s == nil {
		return nil
	}
	d.encoder.DeclareSchema(s)
	return nil
}

// Write consumes the stream record by record, buffering up to the
// configured batch size between store round trips.
func (d *Destination) Write(ctx context.Context, stream *core.RecordStream) error {
	batch := pool.GetBatchSlice(d.batchSize)
	defer pool.PutBatchSlice(batch)

	// Records still buffered when an error or cancellation exits the loop
	// must go back to the pool; flush resets the slice after releasing.
	defer func() {
		for _, r := range batch {
			r.Release()
		}
	}()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := d.writeBatch(ctx, batch)
		for _, r := range batch {
			r.Release()
		}
		batch = batch[:0]
		return err
	}

	errs := stream.Errors
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}
		case record, ok := <-stream.Records:
			if !ok {
				return flush()
			}
			batch = append(batch, record)
			if len(batch) >= d.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

// WriteBatch consumes the stream batch by batch.
func (d *Destination) WriteBatch(ctx context.Context, stream *core.BatchStream) error {
	errs := stream.Errors
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}
		case batch, ok := <-stream.Batches:
			if !ok {
				return nil
			}
			err := d.writeBatch(ctx, batch)
			for _, r := range batch {
				r.Release()
			}
			if err != nil {
				return err
			}
		}
	}
}

// writeBatch encodes a batch, provisions the families it touches and puts
// the mutations in one store call. Encode failures carry the record ID so
// the offending input is identifiable from logs.
func (d *Destination) writeBatch(ctx context.Context, batch []*pool.Record) error {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()

	mutations := make([]*widecolumn.Mutation, 0, len(batch))
	cells := 0
	for _, record := range batch {
		mutation, err := d.encoder.EncodeRecord(record)
		if err != nil {
			d.Collector().AddRecords("failed", 1)
			d.Logger().Error("record encode failed",
				zap.String("record_id", record.ID),
				zap.Error(err))
			return err
		}
		mutations = append(mutations, mutation)
		cells += len(mutation.Cells)
	}

	if err := d.provisioner.EnsureFamilies(ctx, d.table, FamilySet(mutations)); err != nil {
		return err
	}

	puts := make([]widecolumn.Mutation, len(mutations))
	for i, m := range mutations {
		puts[i] = *m
	}
	if err := d.client.Put(ctx, d.table, puts); err != nil {
		d.Collector().AddRecords("failed", len(batch))
		return errors.Wrap(err, errors.ErrorTypeConnection, "writing batch")
	}

	d.Collector().AddRecords("written", len(batch))
	d.Collector().AddCellsWritten(cells)
	d.Collector().ObserveLatency("write_batch", time.Since(start))
	return nil
}

// Close closes the store client.
func (d *Destination) Close(ctx context.Context) error {
	if d.client != nil {
		if err := d.client.Close(); err != nil {
			d.Logger().Error("store client close failed", zap.Error(err))
		}
	}
	return d.BaseConnector.Close(ctx)
}

// SupportsBatch reports batch write support.
func (d *Destination) SupportsBatch() bool { return true }

// SupportsStreaming reports streaming write support.
func (d *Destination) SupportsStreaming() bool { return true }

// Package widecolumn implements the wide-column source connector. It scans
// a table through a StoreClient and decodes each row into a record, with
// per-qualifier type hints driving the value decoding.
package widecolumn

import (
	"context"
	"io"
	"sort"
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

// Source reads records out of a wide-column table.
type Source struct {
	*base.BaseConnector

	client     widecolumn.StoreClient
	decoder    *Decoder
	table      string
	bufferSize int
}

// NewSource creates an uninitialized source.
func NewSource(cfg *config.BaseConfig) (core.Source, error) {
	return &Source{
		BaseConnector: base.NewBaseConnector(cfg.Name, core.ConnectorTypeSource, "1.0.0"),
	}, nil
}

// Initialize opens the store client and verifies the input table exists.
func (s *Source) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}

	wc := &cfg.WideColumn
	if wc.InputTable == "" {
		return errors.New(errors.ErrorTypeConfig, "widecolumn.input_table is required")
	}
	if wc.Store == "" {
		return errors.New(errors.ErrorTypeConfig, "widecolumn.store DSN is required")
	}

	client, err := widecolumn.Open(wc.Store)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "opening store client")
	}
	s.client = client
	s.table = wc.InputTable
	s.bufferSize = cfg.Performance.BufferSize

	s.decoder = &Decoder{
		RowKeyField:     wc.RowKeyField,
		FamilyFilter:    wc.FamilyFilter,
		TimestampSuffix: wc.ReadSuffix(),
		Hints:           cfg.DecodeHints(),
	}

	s.HealthChecker().SetCheckFunc(func(ctx context.Context) error {
		exists, err := s.client.TableExists(ctx, s.table)
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.ErrorTypeNotFound, "input table does not exist")
		}
		return nil
	})

	exists, err := client.TableExists(ctx, s.table)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "checking input table")
	}
	if !exists {
		return errors.New(errors.ErrorTypeNotFound,
			"input table "+s.table+" does not exist")
	}

	s.Logger().Info("source ready",
		zap.String("table", s.table),
		zap.String("family_filter", wc.FamilyFilter),
		zap.Int("type_hints", len(s.decoder.Hints)))
	return nil
}

// Discover synthesizes the schema from the configured type hints.
func (s *Source) Discover(ctx context.Context) (*schema.Schema, error) {
	fields := s.decoder.FieldsForHints()
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return &schema.Schema{
		Name:    s.table,
		Fields:  fields,
		Version: 1,
	}, nil
}

// Read scans the table and streams one record per non-empty row. The scan
// runs in a goroutine; both channels close when it finishes.
func (s *Source) Read(ctx context.Context) (*core.RecordStream, error) {
	records := make(chan *pool.Record, s.bufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)
		if err := s.scan(ctx, func(r *pool.Record) bool {
			select {
			case records <- r:
				return true
			case <-ctx.Done():
				r.Release()
				return false
			}
		}); err != nil {
			errs <- err
		}
	}()

	return &core.RecordStream{Records: records, Errors: errs}, nil
}

// ReadBatch scans the table and streams records grouped into batches of at
// most batchSize.
func (s *Source) ReadBatch(ctx context.Context, batchSize int) (*core.BatchStream, error) {
	batches := make(chan []*pool.Record, 4)
	errs := make(chan error, 1)

	go func() {
		defer close(batches)
		defer close(errs)

		batch := make([]*pool.Record, 0, batchSize)
		emit := func() bool {
			if len(batch) == 0 {
				return true
			}
			out := batch
			batch = make([]*pool.Record, 0, batchSize)
			select {
			case batches <- out:
				return true
			case <-ctx.Done():
				for _, r := range out {
					r.Release()
				}
				return false
			}
		}

		err := s.scan(ctx, func(r *pool.Record) bool {
			batch = append(batch, r)
			if len(batch) >= batchSize {
				return emit()
			}
			return true
		})
		if err != nil {
			errs <- err
			return
		}
		emit()
	}()

	return &core.BatchStream{Batches: batches, Errors: errs}, nil
}

// scan walks the table and hands each decoded record to yield. Empty rows,
// including rows emptied by the family filter, are dropped. yield returns
// false to stop early.
func (s *Source) scan(ctx context.Context, yield func(*pool.Record) bool) error {
	start := time.Now()

	var families []string
	if s.decoder.FamilyFilter != "" {
		families = []string{s.decoder.FamilyFilter}
	}

	scanner, err := s.client.Scan(ctx, s.table, families)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "opening scan")
	}
	defer scanner.Close()

	decoded := 0
	for {
		row, err := scanner.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			s.Collector().AddRecords("failed", 1)
			return errors.Wrap(err, errors.ErrorTypeConnection, "scanning rows")
		}

		record := s.decoder.DecodeRow(row)
		if record == nil {
			continue
		}
		decoded++
		if !yield(record) {
			break
		}
	}

	s.Collector().AddRowsDecoded(decoded)
	s.Collector().AddRecords("read", decoded)
	s.Collector().ObserveLatency("scan", time.Since(start))
	s.Logger().Debug("scan complete",
		zap.Int("rows", decoded),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Close closes the store client.
func (s *Source) Close(ctx context.Context) error {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.Logger().Error("store client close failed", zap.Error(err))
		}
	}
	return s.BaseConnector.Close(ctx)
}

// Package widecolumn models the wide-column store the connectors talk to:
// tables of column families holding versioned, timestamped, untyped byte
// cells. The store itself is an external collaborator reached through the
// StoreClient interface; this package defines the data shapes, the client
// contract, and the qualified column name rules shared by both paths.
package widecolumn

import (
	"context"
	"net/url"
	"sort"
	"sync"

	"github.com/tablecast/tablecast/pkg/errors"
	stringpool "github.com/tablecast/tablecast/pkg/strings"
)

// Column names a cell position within a row: the family and the qualifier
// inside it.
type Column struct {
	Family    string
	Qualifier string
}

// Cell is the store's native unit: an untyped byte value at a column, with a
// millisecond-epoch timestamp. On the write path a zero Timestamp means the
// store assigns one (typically write time).
type Cell struct {
	Column
	Timestamp int64
	Value     []byte
}

// Mutation is one keyed write: every cell of one row produced from one
// record.
type Mutation struct {
	RowKey string
	Cells  []Cell
}

// RowResult is one scanned row: the row key and all cells the scan returned
// for it.
type RowResult struct {
	RowKey string
	Cells  []Cell
}

// RowScanner iterates scan results one row at a time. Next returns io.EOF
// when the scan is exhausted. Close releases the scan's resources and must
// be called on every exit path.
type RowScanner interface {
	Next(ctx context.Context) (*RowResult, error)
	Close() error
}

// StoreClient is the consumed surface of the wide-column store. All methods
// take a context; connections behind the client are scoped per operation and
// released on every exit path. Implementations live outside the core: the
// memstore package ships one for tests and local runs, real deployments
// register their own driver.
type StoreClient interface {
	// CreateTable creates a table with the given initial families,
	// optionally pre-split across the given boundaries.
	CreateTable(ctx context.Context, table string, families []string, splitKeys [][]byte) error
	// TableExists reports whether the table exists.
	TableExists(ctx context.Context, table string) (bool, error)
	// Families returns the table's current column families from live
	// metadata.
	Families(ctx context.Context, table string) ([]string, error)
	// AddFamily issues an online schema modification adding one family.
	// Implementations must treat "family already exists" as success.
	AddFamily(ctx context.Context, table, family string) error
	// RegionCount reports how many regions the store has allocated for
	// the table. Allocation is asynchronous after CreateTable.
	RegionCount(ctx context.Context, table string) (int, error)
	// Put applies a batch of row mutations.
	Put(ctx context.Context, table string, mutations []Mutation) error
	// Scan starts a full-table scan ordered by row key, restricted to the
	// given families when the list is non-empty.
	Scan(ctx context.Context, table string, families []string) (RowScanner, error)
	// Close releases the client.
	Close() error
}

// Driver opens a StoreClient from a parsed DSN.
type Driver func(dsn *url.URL) (StoreClient, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver makes a store client available under a DSN scheme, in the
// manner of database/sql drivers. Drivers register from init functions;
// duplicate registration panics.
func RegisterDriver(scheme string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[scheme]; dup {
		panic("widecolumn: driver registered twice for scheme " + scheme)
	}
	drivers[scheme] = driver
}

// Drivers lists the registered DSN schemes.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	schemes := make([]string, 0, len(drivers))
	for s := range drivers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Open creates a StoreClient for the DSN, dispatching on its scheme.
func Open(dsn string) (StoreClient, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid store DSN")
	}

	driversMu.RLock()
	driver, ok := drivers[u.Scheme]
	driversMu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig,
			stringpool.Sprintf("no store driver registered for scheme %q", u.Scheme)).
			WithDetail("dsn", dsn)
	}

	return driver(u)
}

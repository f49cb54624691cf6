// Package memstore provides an in-process wide-column store client. It
// backs local pipelines and tests where no external cluster is available,
// and registers itself under the "memory" DSN scheme.
//
// DSNs of the form memory://name share one store instance per name within
// the process, so a source and a destination opened with the same DSN see
// the same data.
package memstore

import (
	"context"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/tablecast/tablecast/pkg/errors"
	stringpool "github.com/tablecast/tablecast/pkg/strings"
	"github.com/tablecast/tablecast/pkg/widecolumn"
)

func init() {
	widecolumn.RegisterDriver("memory", func(u *url.URL) (widecolumn.StoreClient, error) {
		return Shared(u.Host), nil
	})
}

var (
	sharedMu sync.Mutex
	shared   = make(map[string]*Store)
)

// Shared returns the process-wide store instance for name, creating it on
// first use. The empty name is a valid instance of its own.
func Shared(name string) *Store {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	s, ok := shared[name]
	if !ok {
		s = New()
		shared[name] = s
	}
	return s
}

type version struct {
	value     []byte
	timestamp int64
}

type table struct {
	families  map[string]struct{}
	splitKeys [][]byte
	// rows[rowKey][family][qualifier] holds versions newest first.
	rows map[string]map[string]map[string][]version
}

// Stats counts administrative calls so tests can assert idempotency and
// that callers consult live metadata.
type Stats struct {
	CreatesIssued int
	FamilyAdds    int
	FamilyLists   int
	Puts          int
}

// Store is an in-memory StoreClient. All methods are safe for concurrent
// use.
type Store struct {
	mu        sync.RWMutex
	tables    map[string]*table
	stats     Stats
	regionLag int
	polls     int
}

// Option configures a Store.
type Option func(*Store)

// WithRegionLag makes the first n RegionCount calls per store report zero
// regions, simulating a cluster that is still assigning regions after
// table creation.
func WithRegionLag(n int) Option {
	return func(s *Store) { s.regionLag = n }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{tables: make(map[string]*table)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns a snapshot of the administrative call counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Store) CreateTable(ctx context.Context, name string, families []string, splitKeys [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.CreatesIssued++
	if _, ok := s.tables[name]; ok {
		return errors.New(errors.ErrorTypeConflict,
			stringpool.Sprintf("table %s already exists", name))
	}

	t := &table{
		families:  make(map[string]struct{}, len(families)),
		splitKeys: splitKeys,
		rows:      make(map[string]map[string]map[string][]version),
	}
	for _, f := range families {
		t.families[f] = struct{}{}
	}
	s.tables[name] = t
	return nil
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[name]
	return ok, nil
}

func (s *Store) Families(ctx context.Context, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.FamilyLists++
	t, ok := s.tables[name]
	if !ok {
		return nil, errors.New(errors.ErrorTypeNotFound,
			stringpool.Sprintf("table %s does not exist", name))
	}
	out := make([]string, 0, len(t.families))
	for f := range t.families {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

// AddFamily creates family on the table. Adding a family that already
// exists is a success, matching how callers retry provisioning.
func (s *Store) AddFamily(ctx context.Context, name, family string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return errors.New(errors.ErrorTypeNotFound,
			stringpool.Sprintf("table %s does not exist", name))
	}
	if _, ok := t.families[family]; ok {
		return nil
	}
	s.stats.FamilyAdds++
	t.families[family] = struct{}{}
	return nil
}

// DropFamily removes family and all of its cells from the table. Tests use
// it to simulate an external operator changing table metadata between
// batches.
func (s *Store) DropFamily(ctx context.Context, name, family string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return errors.New(errors.ErrorTypeNotFound,
			stringpool.Sprintf("table %s does not exist", name))
	}
	if _, ok := t.families[family]; !ok {
		return errors.New(errors.ErrorTypeNotFound,
			stringpool.Sprintf("family %s does not exist in table %s", family, name))
	}
	delete(t.families, family)
	for _, row := range t.rows {
		delete(row, family)
	}
	return nil
}

// RegionCount reports split count + 1 for existing tables, after the
// configured lag has elapsed.
func (s *Store) RegionCount(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return 0, errors.New(errors.ErrorTypeNotFound,
			stringpool.Sprintf("table %s does not exist", name))
	}
	if s.polls < s.regionLag {
		s.polls++
		return 0, nil
	}
	return len(t.splitKeys) + 1, nil
}

func (s *Store) Put(ctx context.Context, name string, mutations []widecolumn.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return errors.New(errors.ErrorTypeNotFound,
			stringpool.Sprintf("table %s does not exist", name))
	}

	now := time.Now().UnixMilli()
	for _, m := range mutations {
		row, ok := t.rows[m.RowKey]
		if !ok {
			row = make(map[string]map[string][]version)
			t.rows[m.RowKey] = row
		}
		for _, c := range m.Cells {
			if _, ok := t.families[c.Family]; !ok {
				return errors.New(errors.ErrorTypeNotFound,
					stringpool.Sprintf("family %s does not exist in table %s", c.Family, name))
			}
			fam, ok := row[c.Family]
			if !ok {
				fam = make(map[string][]version)
				row[c.Family] = fam
			}
			ts := c.Timestamp
			if ts == 0 {
				ts = now
			}
			val := make([]byte, len(c.Value))
			copy(val, c.Value)
			fam[c.Qualifier] = append([]version{{value: val, timestamp: ts}}, fam[c.Qualifier]...)
			s.stats.Puts++
		}
	}
	return nil
}

// Scan returns a scanner over all rows of the table in row-key order,
// restricted to families when the list is non-empty. Only the newest
// version of each qualifier is returned.
func (s *Store) Scan(ctx context.Context, name string, families []string) (widecolumn.RowScanner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, errors.New(errors.ErrorTypeNotFound,
			stringpool.Sprintf("table %s does not exist", name))
	}

	var filter map[string]struct{}
	if len(families) > 0 {
		filter = make(map[string]struct{}, len(families))
		for _, f := range families {
			filter[f] = struct{}{}
		}
	}

	keys := make([]string, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]widecolumn.RowResult, 0, len(keys))
	for _, key := range keys {
		var cells []widecolumn.Cell
		famNames := make([]string, 0, len(t.rows[key]))
		for f := range t.rows[key] {
			famNames = append(famNames, f)
		}
		sort.Strings(famNames)
		for _, f := range famNames {
			if filter != nil {
				if _, ok := filter[f]; !ok {
					continue
				}
			}
			quals := make([]string, 0, len(t.rows[key][f]))
			for q := range t.rows[key][f] {
				quals = append(quals, q)
			}
			sort.Strings(quals)
			for _, q := range quals {
				latest := t.rows[key][f][q][0]
				val := make([]byte, len(latest.value))
				copy(val, latest.value)
				cells = append(cells, widecolumn.Cell{
					Column:    widecolumn.Column{Family: f, Qualifier: q},
					Timestamp: latest.timestamp,
					Value:     val,
				})
			}
		}
		if len(cells) == 0 {
			continue
		}
		results = append(results, widecolumn.RowResult{RowKey: key, Cells: cells})
	}

	return &scanner{rows: results}, nil
}

func (s *Store) Close() error {
	return nil
}

type scanner struct {
	rows []widecolumn.RowResult
	next int
}

func (sc *scanner) Next(ctx context.Context) (*widecolumn.RowResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if sc.next >= len(sc.rows) {
		return nil, io.EOF
	}
	row := sc.rows[sc.next]
	sc.next++
	return &row, nil
}

func (sc *scanner) Close() error {
	sc.rows = nil
	return nil
}

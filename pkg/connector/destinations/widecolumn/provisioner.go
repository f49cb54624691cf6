package widecolumn

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tablecast/tablecast/pkg/errors"
	"github.com/tablecast/tablecast/pkg/metrics"
	stringpool "github.com/tablecast/tablecast/pkg/strings"
	"github.com/tablecast/tablecast/pkg/widecolumn"
)

// Provisioner creates tables and column families ahead of writes. It is
// safe for concurrent use; administrative calls are serialized so parallel
// batches do not race on family creation.
type Provisioner struct {
	client       widecolumn.StoreClient
	logger       *zap.Logger
	collector    *metrics.Collector
	pollInterval time.Duration
	maxWait      time.Duration
	boundStart   string
	boundEnd     string

	mu sync.Mutex
}

// NewProvisioner builds a provisioner on client. pollInterval governs the
// region-allocation wait; maxWait of zero waits until ctx is done.
func NewProvisioner(client widecolumn.StoreClient, logger *zap.Logger, collector *metrics.Collector,
	pollInterval, maxWait time.Duration, boundStart, boundEnd string) *Provisioner {
	return &Provisioner{
		client:       client,
		logger:       logger,
		collector:    collector,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		boundStart:   boundStart,
		boundEnd:     boundEnd,
	}
}

// SplitKeys generates n evenly spaced pre-split boundaries between start
// and end exclusive. The bounds are interpreted as equal-length strings
// forming a numeric key space; "aaaaaaa".."zzzzzzz" spans base-26 words.
func SplitKeys(start, end string, n int) ([][]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	if len(start) != len(end) || start >= end {
		return nil, errors.New(errors.ErrorTypeConfig,
			stringpool.Sprintf("invalid split bounds %q..%q", start, end))
	}

	lo, err := keyToUint(start)
	if err != nil {
		return nil, err
	}
	hi, err := keyToUint(end)
	if err != nil {
		return nil, err
	}

	keys := make([][]byte, 0, n)
	span := hi - lo
	for i := 1; i <= n; i++ {
		v := lo + span/uint64(n+1)*uint64(i)
		keys = append(keys, uintToKey(v, len(start)))
	}
	return keys, nil
}

// keyToUint folds a lowercase key into base-26. Seven characters fit well
// inside uint64 range.
func keyToUint(key string) (uint64, error) {
	var v uint64
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c < 'a' || c > 'z' {
			return 0, errors.New(errors.ErrorTypeConfig,
				stringpool.Sprintf("split bound %q must be lowercase a-z", key))
		}
		v = v*26 + uint64(c-'a')
	}
	return v, nil
}

func uintToKey(v uint64, width int) []byte {
	key := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		key[i] = byte('a' + v%26)
		v /= 26
	}
	return key
}

// EnsureTable creates the table with the given initial families if it does
// not exist, pre-splitting it when numRegions exceeds the store's default
// of three, then waits for region allocation to settle. Existing tables are
// left untouched regardless of numRegions.
func (p *Provisioner) EnsureTable(ctx context.Context, table string, families []string, numRegions int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	exists, err := p.client.TableExists(ctx, table)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection,
			stringpool.Sprintf("checking table %s", table))
	}
	if exists {
		return nil
	}

	var splitKeys [][]byte
	if numRegions > 3 {
		splitKeys, err = SplitKeys(p.boundStart, p.boundEnd, numRegions-3)
		if err != nil {
			return err
		}
	}

	p.logger.Info("creating table",
		zap.String("table", table),
		zap.Strings("families", families),
		zap.Int("split_keys", len(splitKeys)))

	if err := p.client.CreateTable(ctx, table, families, splitKeys); err != nil {
		// A concurrent writer may have created it first.
		if !errors.IsType(err, errors.ErrorTypeConflict) {
			return errors.Wrap(err, errors.ErrorTypeConnection,
				stringpool.Sprintf("creating table %s", table))
		}
	}

	return p.waitForRegions(ctx, table, len(splitKeys)+1)
}

// waitForRegions polls region allocation until the table reports at least
// want regions. Stores allocate regions asynchronously after creation, so
// the first writes would otherwise land on a half-assigned table.
func (p *Provisioner) waitForRegions(ctx context.Context, table string, want int) error {
	if p.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.maxWait)
		defer cancel()
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		n, err := p.client.RegionCount(ctx, table)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection,
				stringpool.Sprintf("polling regions of table %s", table))
		}
		if n >= want {
			return nil
		}

		p.collector.AddRegionWaitPoll()
		p.logger.Warn("waiting for region allocation",
			zap.String("table", table),
			zap.Int("allocated", n),
			zap.Int("want", want))

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout,
				stringpool.Sprintf("region allocation wait for table %s", table))
		case <-ticker.C:
		}
	}
}

// EnsureFamilies adds any of families the table does not yet have. Presence
// is decided from live table metadata on every call, never from a local
// cache, so a family dropped by an external operator between batches is
// restored by the next one. A family that already exists, including one
// created by a concurrent writer between the metadata read and the add, is
// a success.
func (p *Provisioner) EnsureFamilies(ctx context.Context, table string, families map[string]struct{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	present, err := p.liveFamilies(ctx, table)
	if err != nil {
		return err
	}

	for f := range families {
		if _, ok := present[f]; ok {
			continue
		}
		err := p.client.AddFamily(ctx, table, f)
		if err != nil && !errors.IsType(err, errors.ErrorTypeConflict) {
			return errors.Wrap(err, errors.ErrorTypeConnection,
				stringpool.Sprintf("adding family %s to table %s", f, table))
		}
		if err == nil {
			p.collector.AddFamiliesCreated(1)
			p.logger.Info("column family created",
				zap.String("table", table),
				zap.String("family", f))
		}
	}
	return nil
}

func (p *Provisioner) liveFamilies(ctx context.Context, table string) (map[string]struct{}, error) {
	current, err := p.client.Families(ctx, table)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection,
			stringpool.Sprintf("listing families of table %s", table))
	}
	present := make(map[string]struct{}, len(current))
	for _, f := range current {
		present[f] = struct{}{}
	}
	return present, nil
}

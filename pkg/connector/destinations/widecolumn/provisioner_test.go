package widecolumn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/config"
	"github.com/tablecast/tablecast/pkg/metrics"
	"github.com/tablecast/tablecast/pkg/testutil"
	"github.com/tablecast/tablecast/pkg/widecolumn/memstore"
)

func newProvisioner(t *testing.T, store *memstore.Store) *Provisioner {
	return NewProvisioner(store, testutil.TestLogger(t), metrics.NewCollector("test"),
		time.Millisecond, 5*time.Second,
		config.DefaultSplitStart, config.DefaultSplitEnd)
}

func TestSplitKeysCount(t *testing.T) {
	keys, err := SplitKeys("aaaaaaa", "zzzzzzz", 7)
	require.NoError(t, err)
	assert.Len(t, keys, 7)

	// Keys are strictly increasing and inside the bounds.
	prev := "aaaaaaa"
	for _, k := range keys {
		assert.Greater(t, string(k), prev)
		prev = string(k)
	}
	assert.Less(t, prev, "zzzzzzz")
}

func TestSplitKeysZero(t *testing.T) {
	keys, err := SplitKeys("aaaaaaa", "zzzzzzz", 0)
	require.NoError(t, err)
	assert.Nil(t, keys)
}

func TestSplitKeysEvenSpacing(t *testing.T) {
	keys, err := SplitKeys("aaa", "zzz", 1)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	// One split lands at the midpoint of the key space: "aaa" is 0 and
	// "zzz" is 17575 in base-26, so the split is 8787, which is "mzz".
	assert.Equal(t, "mzz", string(keys[0]))
}

func TestSplitKeysInvalidBounds(t *testing.T) {
	_, err := SplitKeys("zzz", "aaa", 2)
	assert.Error(t, err)

	_, err = SplitKeys("aa", "zzz", 2)
	assert.Error(t, err)

	_, err = SplitKeys("AAA", "zzz", 2)
	assert.Error(t, err)
}

func TestEnsureTableCreatesWithSplits(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	store := memstore.New()
	p := newProvisioner(t, store)

	require.NoError(t, p.EnsureTable(ctx, "events", []string{"f"}, 10))

	// numRegions 10 means 7 splits, so 8 regions.
	n, err := store.RegionCount(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestEnsureTableNoSplitsAtDefault(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	store := memstore.New()
	p := newProvisioner(t, store)

	require.NoError(t, p.EnsureTable(ctx, "events", []string{"f"}, 3))

	n, err := store.RegionCount(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnsureTableIdempotent(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	store := memstore.New()
	p := newProvisioner(t, store)

	require.NoError(t, p.EnsureTable(ctx, "events", []string{"f"}, 3))
	require.NoError(t, p.EnsureTable(ctx, "events", []string{"f"}, 3))
	assert.Equal(t, 1, store.Stats().CreatesIssued)
}

func TestEnsureTableWaitsForRegions(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	store := memstore.New(memstore.WithRegionLag(3))
	p := newProvisioner(t, store)

	require.NoError(t, p.EnsureTable(ctx, "events", []string{"f"}, 10))

	n, err := store.RegionCount(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestEnsureTableRegionWaitTimeout(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	store := memstore.New(memstore.WithRegionLag(1 << 30))
	p := NewProvisioner(store, testutil.TestLogger(t), metrics.NewCollector("test"),
		time.Millisecond, 20*time.Millisecond,
		config.DefaultSplitStart, config.DefaultSplitEnd)

	err := p.EnsureTable(ctx, "events", []string{"f"}, 10)
	require.Error(t, err)
}

func TestEnsureFamiliesAddsMissing(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	store := memstore.New()
	p := newProvisioner(t, store)
	require.NoError(t, p.EnsureTable(ctx, "events", []string{"f"}, 3))

	want := map[string]struct{}{"f": {}, "g": {}, "h": {}}
	require.NoError(t, p.EnsureFamilies(ctx, "events", want))

	families, err := store.Families(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "g", "h"}, families)
}

func TestEnsureFamiliesIdempotent(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	store := memstore.New()
	p := newProvisioner(t, store)
	require.NoError(t, p.EnsureTable(ctx, "events", []string{"f"}, 3))

	want := map[string]struct{}{"g": {}}
	require.NoError(t, p.EnsureFamilies(ctx, "events", want))
	require.NoError(t, p.EnsureFamilies(ctx, "events", want))
	require.NoError(t, p.EnsureFamilies(ctx, "events", want))

	assert.Equal(t, 1, store.Stats().FamilyAdds)
}

func TestEnsureFamiliesChecksLiveMetadata(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	store := memstore.New()
	p := newProvisioner(t, store)
	require.NoError(t, p.EnsureTable(ctx, "events", []string{"f"}, 3))

	want := map[string]struct{}{"g": {}}
	require.NoError(t, p.EnsureFamilies(ctx, "events", want))
	listsBefore := store.Stats().FamilyLists

	// An external operator drops the family between batches. The next
	// ensure must notice via live table metadata and restore it rather
	// than trusting any earlier observation.
	require.NoError(t, store.DropFamily(ctx, "events", "g"))
	require.NoError(t, p.EnsureFamilies(ctx, "events", want))

	assert.Greater(t, store.Stats().FamilyLists, listsBefore)
	assert.Equal(t, 2, store.Stats().FamilyAdds)

	families, err := store.Families(ctx, "events")
	require.NoError(t, err)
	assert.Contains(t, families, "g")
}

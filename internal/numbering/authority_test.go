package numbering

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
)

// fakeCounters is durable counter state in memory; it survives across
// Authority instances within a test to simulate restarts.
type fakeCounters struct {
	mu     sync.Mutex
	values map[constants.Series]int64
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{values: make(map[constants.Series]int64)}
}

func (f *fakeCounters) Seed(_ context.Context, series constants.Series, lastIssued int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[series]; !ok {
		f.values[series] = lastIssued
	}
	return nil
}

func (f *fakeCounters) Next(_ context.Context, series constants.Series) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[series]++
	return f.values[series], nil
}

func (f *fakeCounters) Get(_ context.Context, series constants.Series) (*entity.SeriesCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[series]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &entity.SeriesCounter{Series: series, LastIssued: value, UpdatedAt: time.Now()}, nil
}

func (f *fakeCounters) List(_ context.Context) ([]*entity.SeriesCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.SeriesCounter
	for _, series := range constants.AllSeries() {
		if value, ok := f.values[series]; ok {
			out = append(out, &entity.SeriesCounter{Series: series, LastIssued: value, UpdatedAt: time.Now()})
		}
	}
	return out, nil
}

func (f *fakeCounters) Set(_ context.Context, series constants.Series, value int64) (*entity.SeriesCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[series] = value
	return &entity.SeriesCounter{Series: series, LastIssued: value, UpdatedAt: time.Now()}, nil
}

type fakeLedgerIndex struct {
	max map[constants.Series]int64
}

func (f *fakeLedgerIndex) MaxSeq(_ context.Context, series constants.Series) (int64, error) {
	return f.max[series], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func TestAuthority_SeedsFromInitialState(t *testing.T) {
	ctx := context.Background()
	counters := newFakeCounters()
	authority := NewAuthority(counters, &fakeLedgerIndex{max: map[constants.Series]int64{}}, discardLogger())

	require.NoError(t, authority.Bootstrap(ctx, map[string]int64{"HM": 39, "HG": 15}))

	hm, err := authority.Next(ctx, constants.SeriesHM)
	require.NoError(t, err)
	assert.Equal(t, int64(40), hm)

	hg, err := authority.Next(ctx, constants.SeriesHG)
	require.NoError(t, err)
	assert.Equal(t, int64(16), hg)
}

func TestAuthority_MissingSeedsDefaultToZero(t *testing.T) {
	ctx := context.Background()
	authority := NewAuthority(newFakeCounters(), &fakeLedgerIndex{max: map[constants.Series]int64{}}, discardLogger())

	require.NoError(t, authority.Bootstrap(ctx, nil))

	first, err := authority.Next(ctx, constants.SeriesHM)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
}

func TestAuthority_ContiguousAcrossRestart(t *testing.T) {
	ctx := context.Background()
	counters := newFakeCounters()
	ledger := &fakeLedgerIndex{max: map[constants.Series]int64{}}
	seeds := map[string]int64{"HM": 10}

	authority := NewAuthority(counters, ledger, discardLogger())
	require.NoError(t, authority.Bootstrap(ctx, seeds))

	var issued []int64
	for i := 0; i < 5; i++ {
		n, err := authority.Next(ctx, constants.SeriesHM)
		require.NoError(t, err)
		issued = append(issued, n)
	}

	// Restart: a fresh authority over the same durable state must not
	// re-apply the seed or repeat a number.
	restarted := NewAuthority(counters, ledger, discardLogger())
	require.NoError(t, restarted.Bootstrap(ctx, seeds))
	for i := 0; i < 5; i++ {
		n, err := restarted.Next(ctx, constants.SeriesHM)
		require.NoError(t, err)
		issued = append(issued, n)
	}

	for i, n := range issued {
		assert.Equal(t, int64(11+i), n, "numbers must stay contiguous")
	}
}

func TestAuthority_SeriesAreIndependent(t *testing.T) {
	ctx := context.Background()
	authority := NewAuthority(newFakeCounters(), &fakeLedgerIndex{max: map[constants.Series]int64{}}, discardLogger())
	require.NoError(t, authority.Bootstrap(ctx, map[string]int64{"HM": 100, "HG": 5}))

	hm1, err := authority.Next(ctx, constants.SeriesHM)
	require.NoError(t, err)
	hg1, err := authority.Next(ctx, constants.SeriesHG)
	require.NoError(t, err)
	hm2, err := authority.Next(ctx, constants.SeriesHM)
	require.NoError(t, err)

	assert.Equal(t, int64(101), hm1)
	assert.Equal(t, int64(6), hg1)
	assert.Equal(t, int64(102), hm2)
}

func TestAuthority_CrossCheckWarnsOnLedgerDrift(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	counters := newFakeCounters()
	ledger := &fakeLedgerIndex{max: map[constants.Series]int64{constants.SeriesHM: 50}}
	authority := NewAuthority(counters, ledger, logger)

	require.NoError(t, authority.Bootstrap(ctx, map[string]int64{"HM": 39, "HG": 0}))
	assert.Contains(t, buf.String(), "ledger holds numbers beyond the counter")

	// The counter is never silently corrected.
	counter, err := counters.Get(ctx, constants.SeriesHM)
	require.NoError(t, err)
	assert.Equal(t, int64(39), counter.LastIssued)
}

func TestAuthority_Override(t *testing.T) {
	ctx := context.Background()
	counters := newFakeCounters()
	authority := NewAuthority(counters, &fakeLedgerIndex{max: map[constants.Series]int64{}}, discardLogger())
	require.NoError(t, authority.Bootstrap(ctx, map[string]int64{"HM": 10}))

	counter, err := authority.Override(ctx, constants.SeriesHM, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(99), counter.LastIssued)

	next, err := authority.Next(ctx, constants.SeriesHM)
	require.NoError(t, err)
	assert.Equal(t, int64(100), next)
}

func TestAuthority_OverrideRejectsNegative(t *testing.T) {
	authority := NewAuthority(newFakeCounters(), &fakeLedgerIndex{max: map[constants.Series]int64{}}, discardLogger())

	_, err := authority.Override(context.Background(), constants.SeriesHM, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
}

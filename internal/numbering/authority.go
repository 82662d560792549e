// Package numbering owns the two invoice number series. All numbers come
// out of the durable counters; the ledger is only consulted to detect
// drift, never to decide the next number.
package numbering

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
	"github.com/schiavigomme/hertz-invoicer/internal/repository"
)

// LedgerIndex reports the highest number the ledger has recorded for a
// series. The invoice repository satisfies it.
type LedgerIndex interface {
	MaxSeq(ctx context.Context, series constants.Series) (int64, error)
}

// Authority issues sequence numbers and guards the counters' relation to
// the ledger.
type Authority struct {
	counters repository.CounterRepository
	ledger   LedgerIndex
	logger   *slog.Logger
}

func NewAuthority(counters repository.CounterRepository, ledger LedgerIndex, logger *slog.Logger) *Authority {
	return &Authority{
		counters: counters,
		ledger:   ledger,
		logger:   logger,
	}
}

// Bootstrap seeds every series from the initial-state file and runs the
// ledger cross-check. Seeding never overwrites durable counters: once a
// series has issued numbers, the file value is ignored.
func (a *Authority) Bootstrap(ctx context.Context, seeds map[string]int64) error {
	for _, series := range constants.AllSeries() {
		if err := a.counters.Seed(ctx, series, seeds[string(series)]); err != nil {
			return fmt.Errorf("seed series %s: %w", series, err)
		}
	}
	return a.CrossCheck(ctx)
}

// CrossCheck compares each counter with the ledger maximum and logs a
// warning on disagreement. It never corrects the counter.
func (a *Authority) CrossCheck(ctx context.Context) error {
	for _, series := range constants.AllSeries() {
		counter, err := a.counters.Get(ctx, series)
		if err != nil {
			return fmt.Errorf("read counter %s: %w", series, err)
		}
		maxSeq, err := a.ledger.MaxSeq(ctx, series)
		if err != nil {
			return fmt.Errorf("read ledger maximum %s: %w", series, err)
		}
		if maxSeq > counter.LastIssued {
			a.logger.Warn("ledger holds numbers beyond the counter",
				"series", series, "counter", counter.LastIssued, "ledger_max", maxSeq)
		}
	}
	return nil
}

// Next issues the following number for the series, exactly once per call.
func (a *Authority) Next(ctx context.Context, series constants.Series) (int64, error) {
	return a.counters.Next(ctx, series)
}

// Counters returns the current state of every series.
func (a *Authority) Counters(ctx context.Context) ([]*entity.SeriesCounter, error) {
	return a.counters.List(ctx)
}

// Override sets a counter to an operator-chosen value. Values below the
// ledger maximum are accepted but flagged: the next issuance would collide
// with a recorded invoice.
func (a *Authority) Override(ctx context.Context, series constants.Series, value int64) (*entity.SeriesCounter, error) {
	v := common.NewValidator()
	v.Field("last_issued", value, common.NonNegative)
	if v.HasErrors() {
		return nil, v.Error()
	}

	maxSeq, err := a.ledger.MaxSeq(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("read ledger maximum %s: %w", series, err)
	}
	if value < maxSeq {
		a.logger.Warn("counter override below ledger maximum",
			"series", series, "value", value, "ledger_max", maxSeq)
	}
	return a.counters.Set(ctx, series, value)
}

package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
)

// CounterRepository is the durable numbering state. Increment and persist
// happen in a single statement so a crash can never split them.
type CounterRepository interface {
	// Seed writes the initial counter value once; existing durable state wins.
	Seed(ctx context.Context, series constants.Series, lastIssued int64) error
	// Next issues the following number for the series.
	Next(ctx context.Context, series constants.Series) (int64, error)
	Get(ctx context.Context, series constants.Series) (*entity.SeriesCounter, error)
	List(ctx context.Context) ([]*entity.SeriesCounter, error)
	// Set overwrites the counter on operator request.
	Set(ctx context.Context, series constants.Series, value int64) (*entity.SeriesCounter, error)
}

type counterRepository struct {
	db     DB
	logger *slog.Logger
}

func NewCounterRepository(db DB, logger *slog.Logger) CounterRepository {
	return &counterRepository{
		db:     db,
		logger: logger,
	}
}

// nextCounterSQL increments and persists atomically; the first call on an
// unseeded series issues 1.
const nextCounterSQL = `
	INSERT INTO series_counters (series, last_issued, updated_at)
	VALUES ($1, 1, now())
	ON CONFLICT (series) DO UPDATE
	SET last_issued = series_counters.last_issued + 1, updated_at = now()
	RETURNING last_issued`

func (r *counterRepository) Seed(ctx context.Context, series constants.Series, lastIssued int64) error {
	query := `
		INSERT INTO series_counters (series, last_issued, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (series) DO NOTHING`
	tag, err := r.db.Exec(ctx, query, string(series), lastIssued)
	if err != nil {
		r.logger.Error("failed to seed counter", "series", series, "error", err)
		return common.WrapError(err, "seed counter")
	}
	if tag.RowsAffected() > 0 {
		r.logger.Info("numbering.seeded", "series", series, "last_issued", lastIssued)
	}
	return nil
}

func (r *counterRepository) Next(ctx context.Context, series constants.Series) (int64, error) {
	var issued int64
	if err := r.db.QueryRow(ctx, nextCounterSQL, string(series)).Scan(&issued); err != nil {
		r.logger.Error("failed to issue number", "series", series, "error", err)
		return 0, common.WrapError(err, "issue number")
	}
	return issued, nil
}

func (r *counterRepository) Get(ctx context.Context, series constants.Series) (*entity.SeriesCounter, error) {
	query := `SELECT series, last_issued, updated_at FROM series_counters WHERE series = $1`
	counter, err := scanCounter(r.db.QueryRow(ctx, query, string(series)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "get counter")
	}
	return counter, nil
}

func (r *counterRepository) List(ctx context.Context) ([]*entity.SeriesCounter, error) {
	query := `SELECT series, last_issued, updated_at FROM series_counters ORDER BY series`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, common.WrapError(err, "list counters")
	}
	defer rows.Close()

	var counters []*entity.SeriesCounter
	for rows.Next() {
		counter, err := scanCounter(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan counter")
		}
		counters = append(counters, counter)
	}
	return counters, rows.Err()
}

func (r *counterRepository) Set(ctx context.Context, series constants.Series, value int64) (*entity.SeriesCounter, error) {
	query := `
		INSERT INTO series_counters (series, last_issued, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (series) DO UPDATE
		SET last_issued = EXCLUDED.last_issued, updated_at = now()
		RETURNING series, last_issued, updated_at`
	counter, err := scanCounter(r.db.QueryRow(ctx, query, string(series), value))
	if err != nil {
		r.logger.Error("failed to set counter", "series", series, "error", err)
		return nil, common.WrapError(err, "set counter")
	}
	r.logger.Info("numbering.overridden", "series", series, "last_issued", value)
	return counter, nil
}

func scanCounter(row rowScanner) (*entity.SeriesCounter, error) {
	var (
		counter entity.SeriesCounter
		series  string
	)
	if err := row.Scan(&series, &counter.LastIssued, &counter.UpdatedAt); err != nil {
		return nil, err
	}
	counter.Series = constants.Series(series)
	return &counter, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
)

// ComposeFunc builds the invoice record and its XML artifact once the
// sequence number is known. It runs inside the issuing transaction and
// must be pure.
type ComposeFunc func(seq int64) (*entity.Invoice, []byte, error)

// RecordPairedRequest wraps parameters for issuing an invoice from a
// matched quote/purchase-order pair.
type RecordPairedRequest struct {
	Series     constants.Series
	QuoteDocID uuid.UUID
	PODocID    uuid.UUID
	Compose    ComposeFunc
}

// InvoiceRepository is the append-only invoice ledger.
type InvoiceRepository interface {
	// RecordPaired issues the next number for the series, stores the
	// composed invoice and consumes both pool candidates, atomically.
	// A failure after increment rolls the counter back with the rest.
	RecordPaired(ctx context.Context, req *RecordPairedRequest) (*entity.Invoice, error)
	GetBySeriesNumber(ctx context.Context, series constants.Series, seq int64) (*entity.Invoice, error)
	GetXML(ctx context.Context, series constants.Series, seq int64) (string, []byte, error)
	List(ctx context.Context, filter ListInvoicesFilter) ([]*entity.Invoice, error)
	// Void flips the status flag; the row and its number stay in the ledger.
	Void(ctx context.Context, series constants.Series, seq int64) (*entity.Invoice, error)
	HasActiveForPratica(ctx context.Context, pratica string) (bool, error)
	// MaxSeq reports the highest recorded number for the startup
	// counter cross-check.
	MaxSeq(ctx context.Context, series constants.Series) (int64, error)
	StatsBySeries(ctx context.Context) (map[constants.Series]entity.SeriesStats, error)
}

// ListInvoicesFilter narrows List output; nil fields match everything.
type ListInvoicesFilter struct {
	Series *constants.Series
	Status *constants.InvoiceStatus
}

type invoiceRepository struct {
	db     DB
	logger *slog.Logger
}

func NewInvoiceRepository(db DB, logger *slog.Logger) InvoiceRepository {
	return &invoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `id, series, seq_number, numbering, pratica, plate, po_number,
	quote_doc_id, po_doc_id, filename, total_without_tax::text, vat_amount::text,
	total::text, status, issued_at, voided_at`

func (r *invoiceRepository) RecordPaired(ctx context.Context, req *RecordPairedRequest) (*entity.Invoice, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, common.WrapError(err, "begin issue")
	}
	defer tx.Rollback(ctx)

	var seq int64
	if err := tx.QueryRow(ctx, nextCounterSQL, string(req.Series)).Scan(&seq); err != nil {
		r.logger.Error("failed to issue number", "series", req.Series, "error", err)
		return nil, common.WrapError(err, "issue number")
	}

	inv, xml, err := req.Compose(seq)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO invoices (
			series, seq_number, numbering, pratica, plate, po_number,
			quote_doc_id, po_doc_id, filename, total_without_tax, vat_amount,
			total, xml, status, issued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + invoiceColumns
	stored, err := scanInvoice(tx.QueryRow(ctx, query,
		string(inv.Series), inv.SeqNumber, inv.Numbering, inv.Pratica, inv.Plate,
		inv.PONumber, req.QuoteDocID, req.PODocID, inv.Filename,
		inv.TotalWithoutTax.StringFixed(2), inv.VatAmount.StringFixed(2),
		inv.Total.StringFixed(2), xml, string(constants.InvoiceStatusIssued),
		inv.IssuedAt,
	))
	if err != nil {
		r.logger.Error("failed to record invoice", "series", req.Series, "seq_number", seq, "error", err)
		return nil, common.WrapError(err, "record invoice")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE documents SET status = 'CONSUMED' WHERE id = ANY($1) AND status = 'PENDING'`,
		[]uuid.UUID{req.QuoteDocID, req.PODocID})
	if err != nil {
		return nil, common.WrapError(err, "consume documents")
	}
	if tag.RowsAffected() != 2 {
		return nil, fmt.Errorf("consume documents: expected 2 pending candidates, updated %d", tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, common.WrapError(err, "commit issue")
	}
	r.logger.Info("ledger.recorded",
		"series", stored.Series, "seq_number", stored.SeqNumber,
		"pratica", stored.Pratica, "filename", stored.Filename)
	return stored, nil
}

func (r *invoiceRepository) GetBySeriesNumber(ctx context.Context, series constants.Series, seq int64) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE series = $1 AND seq_number = $2`
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, string(series), seq))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "get invoice")
	}
	return inv, nil
}

func (r *invoiceRepository) GetXML(ctx context.Context, series constants.Series, seq int64) (string, []byte, error) {
	query := `SELECT filename, xml FROM invoices WHERE series = $1 AND seq_number = $2`
	var (
		filename string
		xml      []byte
	)
	err := r.db.QueryRow(ctx, query, string(series), seq).Scan(&filename, &xml)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, common.ErrNotFound
	}
	if err != nil {
		return "", nil, common.WrapError(err, "get invoice xml")
	}
	return filename, xml, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter ListInvoicesFilter) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	var args []any
	if filter.Series != nil {
		args = append(args, string(*filter.Series))
		query += fmt.Sprintf(" AND series = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY series, seq_number"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "list invoices")
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan invoice")
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *invoiceRepository) Void(ctx context.Context, series constants.Series, seq int64) (*entity.Invoice, error) {
	query := `
		UPDATE invoices SET status = 'VOIDED', voided_at = now()
		WHERE series = $1 AND seq_number = $2 AND status = 'ISSUED'
		RETURNING ` + invoiceColumns
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, string(series), seq))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to void invoice", "series", series, "seq_number", seq, "error", err)
		return nil, common.WrapError(err, "void invoice")
	}
	r.logger.Info("ledger.voided", "series", series, "seq_number", seq)
	return inv, nil
}

func (r *invoiceRepository) HasActiveForPratica(ctx context.Context, pratica string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM invoices WHERE pratica = $1 AND status = 'ISSUED')`
	var exists bool
	if err := r.db.QueryRow(ctx, query, pratica).Scan(&exists); err != nil {
		return false, common.WrapError(err, "check invoiced pratica")
	}
	return exists, nil
}

func (r *invoiceRepository) MaxSeq(ctx context.Context, series constants.Series) (int64, error) {
	query := `SELECT COALESCE(MAX(seq_number), 0) FROM invoices WHERE series = $1`
	var max int64
	if err := r.db.QueryRow(ctx, query, string(series)).Scan(&max); err != nil {
		return 0, common.WrapError(err, "max invoice number")
	}
	return max, nil
}

func (r *invoiceRepository) StatsBySeries(ctx context.Context) (map[constants.Series]entity.SeriesStats, error) {
	query := `
		SELECT series,
		       count(*) FILTER (WHERE status = 'ISSUED'),
		       count(*) FILTER (WHERE status = 'VOIDED'),
		       COALESCE(MAX(seq_number), 0),
		       MAX(issued_at)
		FROM invoices GROUP BY series`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, common.WrapError(err, "invoice stats")
	}
	defer rows.Close()

	stats := make(map[constants.Series]entity.SeriesStats)
	for rows.Next() {
		var (
			series string
			s      entity.SeriesStats
		)
		if err := rows.Scan(&series, &s.IssuedCount, &s.VoidedCount, &s.LastIssued, &s.LastIssuedAt); err != nil {
			return nil, common.WrapError(err, "scan invoice stats")
		}
		stats[constants.Series(series)] = s
	}
	return stats, rows.Err()
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		inv             entity.Invoice
		series          string
		status          string
		totalWithoutTax string
		vatAmount       string
		total           string
	)
	err := row.Scan(
		&inv.ID, &series, &inv.SeqNumber, &inv.Numbering, &inv.Pratica, &inv.Plate,
		&inv.PONumber, &inv.QuoteDocID, &inv.PODocID, &inv.Filename,
		&totalWithoutTax, &vatAmount, &total, &status, &inv.IssuedAt, &inv.VoidedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Series = constants.Series(series)
	inv.Status = constants.InvoiceStatus(status)

	if inv.TotalWithoutTax, err = decimal.NewFromString(totalWithoutTax); err != nil {
		return nil, fmt.Errorf("parse total_without_tax %q: %w", totalWithoutTax, err)
	}
	if inv.VatAmount, err = decimal.NewFromString(vatAmount); err != nil {
		return nil, fmt.Errorf("parse vat_amount %q: %w", vatAmount, err)
	}
	if inv.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total %q: %w", total, err)
	}
	return &inv, nil
}

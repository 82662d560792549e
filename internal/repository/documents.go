package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
)

// DocumentRepository is the durable pending pool plus the audit trail of
// superseded and consumed candidates.
type DocumentRepository interface {
	Insert(ctx context.Context, doc *entity.Document) (*entity.Document, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	// FindPending returns the active candidate for one side of a pratica,
	// or nil when the pool has none.
	FindPending(ctx context.Context, matchKey string, docType constants.DocType) (*entity.Document, error)
	ListByStatus(ctx context.Context, status constants.DocumentStatus) ([]*entity.Document, error)
	// Replace supersedes the active candidate and stores doc in its place,
	// atomically.
	Replace(ctx context.Context, supersededID uuid.UUID, doc *entity.Document) (*entity.Document, error)
	// Purge removes a pending candidate on operator request. Only PENDING
	// rows can be purged.
	Purge(ctx context.Context, id uuid.UUID) error
	CountPendingByType(ctx context.Context) (map[constants.DocType]int64, error)
	// ListPairable finds keys where both sides are still pending, which
	// only happens when a crash interrupted pairing.
	ListPairable(ctx context.Context) ([]PendingPair, error)
}

// PendingPair is a complete quote/purchase-order pair left unpaired in
// the pool.
type PendingPair struct {
	MatchKey string
	QuoteID  uuid.UUID
	POID     uuid.UUID
}

type documentRepository struct {
	db     DB
	logger *slog.Logger
}

func NewDocumentRepository(db DB, logger *slog.Logger) DocumentRepository {
	return &documentRepository{
		db:     db,
		logger: logger,
	}
}

const documentColumns = `id, doc_type, pratica, plate, match_key, status, source_filename,
	source_label, mail_message_id, content_hash, supplier_ref, vehicle, vin, mileage_km,
	line_items, total::text, po_number, unit_number, model, po_date, po_total::text,
	series, extracted_at, created_at`

const insertDocumentSQL = `
	INSERT INTO documents (
		doc_type, pratica, plate, match_key, status, source_filename, source_label,
		mail_message_id, content_hash, supplier_ref, vehicle, vin, mileage_km,
		line_items, total, po_number, unit_number, model, po_date, po_total,
		series, extracted_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	RETURNING ` + documentColumns

func (r *documentRepository) Insert(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	args, err := documentInsertArgs(doc)
	if err != nil {
		return nil, err
	}
	stored, err := scanDocument(r.db.QueryRow(ctx, insertDocumentSQL, args...))
	if err != nil {
		r.logger.Error("failed to insert document", "match_key", doc.MatchKey, "error", err)
		return nil, common.WrapError(err, "insert document")
	}
	return stored, nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "get document")
	}
	return doc, nil
}

func (r *documentRepository) FindPending(ctx context.Context, matchKey string, docType constants.DocType) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE match_key = $1 AND doc_type = $2 AND status = 'PENDING'`
	doc, err := scanDocument(r.db.QueryRow(ctx, query, matchKey, string(docType)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, common.WrapError(err, "find pending document")
	}
	return doc, nil
}

func (r *documentRepository) ListByStatus(ctx context.Context, status constants.DocumentStatus) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE status = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, common.WrapError(err, "list documents")
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan document")
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *documentRepository) Replace(ctx context.Context, supersededID uuid.UUID, doc *entity.Document) (*entity.Document, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, common.WrapError(err, "begin replace")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE documents SET status = 'SUPERSEDED' WHERE id = $1 AND status = 'PENDING'`,
		supersededID)
	if err != nil {
		return nil, common.WrapError(err, "supersede document")
	}
	if tag.RowsAffected() == 0 {
		return nil, common.ErrNotFound
	}

	args, err := documentInsertArgs(doc)
	if err != nil {
		return nil, err
	}
	stored, err := scanDocument(tx.QueryRow(ctx, insertDocumentSQL, args...))
	if err != nil {
		return nil, common.WrapError(err, "insert replacement document")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, common.WrapError(err, "commit replace")
	}
	r.logger.Info("document replaced", "match_key", doc.MatchKey, "superseded_id", supersededID, "document_id", stored.ID)
	return stored, nil
}

func (r *documentRepository) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = 'PURGED' WHERE id = $1 AND status = 'PENDING'`,
		id)
	if err != nil {
		r.logger.Error("failed to purge document", "document_id", id, "error", err)
		return common.WrapError(err, "purge document")
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	r.logger.Info("document purged", "document_id", id)
	return nil
}

func (r *documentRepository) CountPendingByType(ctx context.Context) (map[constants.DocType]int64, error) {
	query := `SELECT doc_type, count(*) FROM documents WHERE status = 'PENDING' GROUP BY doc_type`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, common.WrapError(err, "count pending documents")
	}
	defer rows.Close()

	counts := make(map[constants.DocType]int64)
	for rows.Next() {
		var docType string
		var n int64
		if err := rows.Scan(&docType, &n); err != nil {
			return nil, common.WrapError(err, "scan pending count")
		}
		counts[constants.DocType(docType)] = n
	}
	return counts, rows.Err()
}

func (r *documentRepository) ListPairable(ctx context.Context) ([]PendingPair, error) {
	query := `SELECT q.match_key, q.id, p.id
		FROM documents q
		JOIN documents p ON p.match_key = q.match_key
		WHERE q.doc_type = 'QUOTE' AND q.status = 'PENDING'
		  AND p.doc_type = 'PURCHASE_ORDER' AND p.status = 'PENDING'
		ORDER BY q.created_at`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, common.WrapError(err, "list pairable documents")
	}
	defer rows.Close()

	var pairs []PendingPair
	for rows.Next() {
		var pair PendingPair
		if err := rows.Scan(&pair.MatchKey, &pair.QuoteID, &pair.POID); err != nil {
			return nil, common.WrapError(err, "scan pairable documents")
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}

func documentInsertArgs(doc *entity.Document) ([]any, error) {
	rec := doc.Record

	var lineItems []byte
	if len(rec.LineItems) > 0 {
		b, err := json.Marshal(rec.LineItems)
		if err != nil {
			return nil, common.WrapError(err, "encode line items")
		}
		lineItems = b
	}

	return []any{
		string(rec.DocType),
		rec.Pratica,
		rec.Plate,
		doc.MatchKey,
		string(doc.Status),
		doc.SourceFilename,
		doc.SourceLabel,
		doc.MailMessageID,
		doc.ContentHash,
		rec.SupplierRef,
		rec.Vehicle,
		rec.VIN,
		rec.MileageKm,
		lineItems,
		decimalArg(rec.Total),
		rec.PONumber,
		rec.UnitNumber,
		rec.Model,
		rec.PODate,
		decimalArg(rec.POTotal),
		seriesArg(rec.Series),
		doc.ExtractedAt,
	}, nil
}

// decimalArg passes amounts as text so Postgres parses them into NUMERIC;
// pgx has no native shopspring codec.
func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func seriesArg(s constants.Series) *string {
	if s == "" {
		return nil
	}
	v := string(s)
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc       entity.Document
		docType   string
		status    string
		lineItems []byte
		total     *string
		poTotal   *string
		series    *string
		poDate    *time.Time
	)
	err := row.Scan(
		&doc.ID, &docType, &doc.Record.Pratica, &doc.Record.Plate, &doc.MatchKey,
		&status, &doc.SourceFilename, &doc.SourceLabel, &doc.MailMessageID,
		&doc.ContentHash, &doc.Record.SupplierRef, &doc.Record.Vehicle,
		&doc.Record.VIN, &doc.Record.MileageKm, &lineItems, &total,
		&doc.Record.PONumber, &doc.Record.UnitNumber, &doc.Record.Model,
		&poDate, &poTotal, &series, &doc.ExtractedAt, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Record.DocType = constants.DocType(docType)
	doc.Status = constants.DocumentStatus(status)
	doc.Record.PODate = poDate
	if series != nil {
		doc.Record.Series = constants.Series(*series)
	}
	if len(lineItems) > 0 {
		if err := json.Unmarshal(lineItems, &doc.Record.LineItems); err != nil {
			return nil, fmt.Errorf("decode line items: %w", err)
		}
	}
	if doc.Record.Total, err = parseDecimal(total); err != nil {
		return nil, err
	}
	if doc.Record.POTotal, err = parseDecimal(poTotal); err != nil {
		return nil, err
	}
	return &doc, nil
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", *s, err)
	}
	return &d, nil
}

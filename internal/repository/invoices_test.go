package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
)

var invoiceRowColumns = []string{
	"id", "series", "seq_number", "numbering", "pratica", "plate", "po_number",
	"quote_doc_id", "po_doc_id", "filename", "total_without_tax", "vat_amount",
	"total", "status", "issued_at", "voided_at",
}

func issuedInvoice(seq int64) *entity.Invoice {
	return &entity.Invoice{
		ID:              uuid.New(),
		Series:          constants.SeriesHM,
		SeqNumber:       seq,
		Numbering:       "/HM",
		Pratica:         "6440115",
		Plate:           "GZ605WM",
		PONumber:        "98021",
		QuoteDocID:      uuid.New(),
		PODocID:         uuid.New(),
		Filename:        "Fatt_007_PO_98021_GZ605WM.xml",
		TotalWithoutTax: decimal.RequireFromString("120.00"),
		VatAmount:       decimal.RequireFromString("26.40"),
		Total:           decimal.RequireFromString("146.40"),
		Status:          constants.InvoiceStatusIssued,
		IssuedAt:        time.Date(2026, 2, 10, 9, 31, 0, 0, time.UTC),
	}
}

// invoiceRow echoes inv the way the database would return it.
func invoiceRow(inv *entity.Invoice) *pgxmock.Rows {
	return pgxmock.NewRows(invoiceRowColumns).AddRow(
		inv.ID, string(inv.Series), inv.SeqNumber, inv.Numbering, inv.Pratica,
		inv.Plate, inv.PONumber, inv.QuoteDocID, inv.PODocID, inv.Filename,
		inv.TotalWithoutTax.StringFixed(2), inv.VatAmount.StringFixed(2),
		inv.Total.StringFixed(2), string(inv.Status), inv.IssuedAt, inv.VoidedAt,
	)
}

func TestRecordPairedIssuesInsideOneTransaction(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())
	inv := issuedInvoice(7)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SET last_issued = series_counters.last_issued + 1")).
		WithArgs("HM").
		WillReturnRows(pgxmock.NewRows([]string{"last_issued"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnRows(invoiceRow(inv))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'CONSUMED' WHERE id = ANY($1) AND status = 'PENDING'")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	var composedSeq int64
	stored, err := repo.RecordPaired(context.Background(), &RecordPairedRequest{
		Series:     constants.SeriesHM,
		QuoteDocID: inv.QuoteDocID,
		PODocID:    inv.PODocID,
		Compose: func(seq int64) (*entity.Invoice, []byte, error) {
			composedSeq = seq
			return inv, []byte("<EasyfattDocuments/>"), nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), composedSeq, "composer sees the drawn number")
	assert.Equal(t, int64(7), stored.SeqNumber)
	assert.Equal(t, "Fatt_007_PO_98021_GZ605WM.xml", stored.Filename)
	assert.Equal(t, "146.40", stored.Total.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPairedComposeFailureReclaimsTheNumber(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())

	// The counter increment runs inside the same transaction, so a
	// compose failure rolls it back and the sequence stays gap-free.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SET last_issued = series_counters.last_issued + 1")).
		WithArgs("HM").
		WillReturnRows(pgxmock.NewRows([]string{"last_issued"}).AddRow(int64(7)))
	mock.ExpectRollback()

	_, err := repo.RecordPaired(context.Background(), &RecordPairedRequest{
		Series:     constants.SeriesHM,
		QuoteDocID: uuid.New(),
		PODocID:    uuid.New(),
		Compose: func(int64) (*entity.Invoice, []byte, error) {
			return nil, nil, errors.New("template mismatch")
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template mismatch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPairedNeedsBothCandidatesPending(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())
	inv := issuedInvoice(7)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("last_issued + 1")).
		WillReturnRows(pgxmock.NewRows([]string{"last_issued"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnRows(invoiceRow(inv))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'CONSUMED'")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	_, err := repo.RecordPaired(context.Background(), &RecordPairedRequest{
		Series:     constants.SeriesHM,
		QuoteDocID: inv.QuoteDocID,
		PODocID:    inv.PODocID,
		Compose: func(seq int64) (*entity.Invoice, []byte, error) {
			return inv, []byte("<EasyfattDocuments/>"), nil
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 pending candidates")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBySeriesNumberMapsMissingRow(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())

	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE series = $1 AND seq_number = $2")).
		WithArgs("HM", int64(9)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetBySeriesNumber(context.Background(), constants.SeriesHM, 9)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetXMLReturnsFilenameAndArtifact(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT filename, xml FROM invoices")).
		WithArgs("HM", int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"filename", "xml"}).
			AddRow("Fatt_007_PO_98021_GZ605WM.xml", []byte("<EasyfattDocuments/>")))

	filename, xml, err := repo.GetXML(context.Background(), constants.SeriesHM, 7)
	require.NoError(t, err)
	assert.Equal(t, "Fatt_007_PO_98021_GZ605WM.xml", filename)
	assert.Equal(t, []byte("<EasyfattDocuments/>"), xml)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppliesFiltersInArgumentOrder(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())
	inv := issuedInvoice(7)

	mock.ExpectQuery(regexp.QuoteMeta("AND series = $1 AND status = $2")).
		WithArgs("HM", "ISSUED").
		WillReturnRows(invoiceRow(inv))

	series := constants.SeriesHM
	status := constants.InvoiceStatusIssued
	invoices, err := repo.List(context.Background(), ListInvoicesFilter{Series: &series, Status: &status})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(7), invoices[0].SeqNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoidFlipsStatusAndKeepsTheRow(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())
	voided := issuedInvoice(7)
	voided.Status = constants.InvoiceStatusVoided
	voidedAt := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)
	voided.VoidedAt = &voidedAt

	mock.ExpectQuery(regexp.QuoteMeta("SET status = 'VOIDED', voided_at = now()")).
		WithArgs("HM", int64(7)).
		WillReturnRows(invoiceRow(voided))

	inv, err := repo.Void(context.Background(), constants.SeriesHM, 7)
	require.NoError(t, err)
	assert.Equal(t, constants.InvoiceStatusVoided, inv.Status)
	require.NotNil(t, inv.VoidedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoidOnAlreadyVoidedRowIsNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())

	// The WHERE status = 'ISSUED' guard makes a second void match nothing.
	mock.ExpectQuery(regexp.QuoteMeta("AND status = 'ISSUED'")).
		WithArgs("HM", int64(7)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Void(context.Background(), constants.SeriesHM, 7)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasActiveForPratica(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())

	mock.ExpectQuery(regexp.QuoteMeta("WHERE pratica = $1 AND status = 'ISSUED'")).
		WithArgs("6440115").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	active, err := repo.HasActiveForPratica(context.Background(), "6440115")
	require.NoError(t, err)
	assert.True(t, active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxSeqDefaultsToZero(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(seq_number), 0) FROM invoices")).
		WithArgs("HG").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(int64(0)))

	max, err := repo.MaxSeq(context.Background(), constants.SeriesHG)
	require.NoError(t, err)
	assert.Zero(t, max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsBySeriesAggregatesCounts(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepository(mock, discardLogger())
	lastAt := time.Date(2026, 2, 10, 9, 31, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("count(*) FILTER (WHERE status = 'ISSUED')")).
		WillReturnRows(pgxmock.NewRows([]string{"series", "issued", "voided", "last_issued", "last_issued_at"}).
			AddRow("HM", int64(5), int64(1), int64(6), &lastAt))

	stats, err := repo.StatsBySeries(context.Background())
	require.NoError(t, err)
	require.Contains(t, stats, constants.SeriesHM)
	assert.Equal(t, int64(5), stats[constants.SeriesHM].IssuedCount)
	assert.Equal(t, int64(1), stats[constants.SeriesHM].VoidedCount)
	assert.Equal(t, int64(6), stats[constants.SeriesHM].LastIssued)
	require.NotNil(t, stats[constants.SeriesHM].LastIssuedAt)
	assert.True(t, lastAt.Equal(*stats[constants.SeriesHM].LastIssuedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

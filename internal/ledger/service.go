// Package ledger fronts the durable invoice record: listing, voiding,
// XML retrieval, dashboard stats and the XLSX export.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
	"github.com/schiavigomme/hertz-invoicer/internal/repository"
)

type Service struct {
	invoices  repository.InvoiceRepository
	documents repository.DocumentRepository
	counters  repository.CounterRepository
	logger    *slog.Logger
}

func NewService(invoices repository.InvoiceRepository, documents repository.DocumentRepository, counters repository.CounterRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		invoices:  invoices,
		documents: documents,
		counters:  counters,
		logger:    logger,
	}
}

func (s *Service) List(ctx context.Context, filter repository.ListInvoicesFilter) ([]*entity.Invoice, error) {
	return s.invoices.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, series constants.Series, number int64) (*entity.Invoice, error) {
	return s.invoices.GetBySeriesNumber(ctx, series, number)
}

func (s *Service) GetXML(ctx context.Context, series constants.Series, number int64) (string, []byte, error) {
	return s.invoices.GetXML(ctx, series, number)
}

// Void flags the invoice without freeing its number. Voiding twice is a
// conflict, not a no-op, so the operator sees the earlier action.
func (s *Service) Void(ctx context.Context, series constants.Series, number int64) (*entity.Invoice, error) {
	voided, err := s.invoices.Void(ctx, series, number)
	if err == nil {
		return voided, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	existing, getErr := s.invoices.GetBySeriesNumber(ctx, series, number)
	if getErr != nil {
		return nil, err
	}
	if existing.Status == constants.InvoiceStatusVoided {
		return nil, common.NewAppError("ALREADY_VOIDED",
			fmt.Sprintf("invoice %d%s is already voided", number, series.Numbering()), common.ErrConflict)
	}
	return nil, err
}

// Stats merges pool counts, ledger aggregates and the authoritative
// counter values into one dashboard snapshot.
func (s *Service) Stats(ctx context.Context) (*entity.Stats, error) {
	pending, err := s.documents.CountPendingByType(ctx)
	if err != nil {
		return nil, err
	}
	bySeries, err := s.invoices.StatsBySeries(ctx)
	if err != nil {
		return nil, err
	}
	counters, err := s.counters.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &entity.Stats{
		PendingQuotes:         pending[constants.DocTypeQuote],
		PendingPurchaseOrders: pending[constants.DocTypePurchaseOrder],
		Series:                make(map[string]entity.SeriesStats, len(constants.AllSeries())),
	}
	for _, series := range constants.AllSeries() {
		stats.Series[string(series)] = bySeries[series]
	}
	// The counter, not the ledger maximum, is the number the next invoice
	// will follow.
	for _, counter := range counters {
		entry := stats.Series[string(counter.Series)]
		entry.LastIssued = counter.LastIssued
		stats.Series[string(counter.Series)] = entry
	}
	return stats, nil
}

// ExportXLSX returns the ledger as an XLSX workbook.
func (s *Service) ExportXLSX(ctx context.Context, filter repository.ListInvoicesFilter) ([]byte, error) {
	start := time.Now()

	invoices, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Invoices"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Number",
		"Series",
		"Issue Date",
		"PO Number",
		"Plate",
		"Pratica",
		"Total Without Tax",
		"VAT Amount",
		"Total",
		"Status",
		"Filename",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, inv := range invoices {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, fmt.Sprintf("%d%s", inv.SeqNumber, inv.Numbering))
		write(2, string(inv.Series))
		write(3, inv.IssuedAt.Format("2006-01-02"))
		write(4, inv.PONumber)
		write(5, inv.Plate)
		write(6, inv.Pratica)
		write(7, inv.TotalWithoutTax.StringFixed(2))
		write(8, inv.VatAmount.StringFixed(2))
		write(9, inv.Total.StringFixed(2))
		write(10, string(inv.Status))
		write(11, inv.Filename)

		row++
	}

	_ = f.SetColWidth(sheet, "A", "B", 10)
	_ = f.SetColWidth(sheet, "C", "C", 14)
	_ = f.SetColWidth(sheet, "D", "F", 16)
	_ = f.SetColWidth(sheet, "G", "I", 16)
	_ = f.SetColWidth(sheet, "J", "J", 10)
	_ = f.SetColWidth(sheet, "K", "K", 44)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(invoices),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

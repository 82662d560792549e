package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/compose"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
	"github.com/schiavigomme/hertz-invoicer/internal/repository"
)

// ArtifactStore receives generated artifacts after the issuing
// transaction commits. Implementations are best-effort and must not
// fail the caller.
type ArtifactStore interface {
	Store(ctx context.Context, relPath string, data []byte)
}

// Issuer turns a completed quote/purchase-order pair into a recorded
// invoice: next number for the series, composed XML and consumed pool
// candidates, all in one transaction.
type Issuer struct {
	Logger   *slog.Logger
	Composer *compose.Composer
	Invoices repository.InvoiceRepository
	Store    ArtifactStore

	now func() time.Time
}

func NewIssuer(logger *slog.Logger, composer *compose.Composer, invoices repository.InvoiceRepository, store ArtifactStore) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		Logger:   logger,
		Composer: composer,
		Invoices: invoices,
		Store:    store,
		now:      time.Now,
	}
}

// IssuePair issues the invoice for a matched pair. The series comes
// from the purchase order; quotes never carry one.
func (i *Issuer) IssuePair(ctx context.Context, quote, po *entity.Document) (*entity.Invoice, error) {
	series := po.Record.Series
	if series == "" {
		series = constants.SeriesHM
	}
	issuedAt := i.now().UTC()

	var artifactXML []byte
	inv, err := i.Invoices.RecordPaired(ctx, &repository.RecordPairedRequest{
		Series:     series,
		QuoteDocID: quote.ID,
		PODocID:    po.ID,
		Compose: func(seq int64) (*entity.Invoice, []byte, error) {
			artifact, err := i.Composer.Compose(&compose.Request{
				Quote:     quote,
				PO:        po,
				Series:    series,
				Number:    seq,
				IssueDate: issuedAt,
			})
			if err != nil {
				return nil, nil, err
			}
			artifactXML = artifact.XML
			return invoiceFromArtifact(quote, po, series, seq, issuedAt, artifact), artifact.XML, nil
		},
	})
	if err != nil {
		i.Logger.Error("processor.issue.failed", "series", series, "err", err)
		return nil, err
	}

	// The invoice is committed; mirroring the XML is best-effort.
	if i.Store != nil {
		i.Store.Store(ctx, fmt.Sprintf("invoices/%d/%s", issuedAt.Year(), inv.Filename), artifactXML)
	}

	i.Logger.Info("processor.issue.ok",
		"series", inv.Series,
		"seq_number", inv.SeqNumber,
		"po_number", inv.PONumber,
		"plate", inv.Plate,
		"filename", inv.Filename,
	)
	return inv, nil
}

func invoiceFromArtifact(quote, po *entity.Document, series constants.Series, seq int64, issuedAt time.Time, artifact *compose.Artifact) *entity.Invoice {
	plate := quote.Record.Plate
	if plate == "" {
		plate = po.Record.Plate
	}
	var poNumber string
	if po.Record.PONumber != nil {
		poNumber = *po.Record.PONumber
	}
	return &entity.Invoice{
		Series:          series,
		SeqNumber:       seq,
		Numbering:       series.Numbering(),
		Pratica:         quote.Record.Pratica,
		Plate:           plate,
		PONumber:        poNumber,
		QuoteDocID:      quote.ID,
		PODocID:         po.ID,
		Filename:        artifact.Filename,
		TotalWithoutTax: artifact.TotalWithoutTax,
		VatAmount:       artifact.VatAmount,
		Total:           artifact.Total,
		Status:          constants.InvoiceStatusIssued,
		IssuedAt:        issuedAt,
	}
}

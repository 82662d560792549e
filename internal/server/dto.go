package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
	"github.com/schiavigomme/hertz-invoicer/internal/match"
)

// Submission outcomes as they appear on the wire.
const (
	outcomePending         = "pending"
	outcomeInvoiced        = "invoiced"
	outcomeDuplicate       = "duplicate"
	outcomeConflict        = "conflict"
	outcomeAlreadyInvoiced = "already_invoiced"
	outcomeRejected        = "rejected"
)

func outcomeLabel(o match.Outcome) string {
	switch o {
	case match.OutcomePaired:
		return outcomeInvoiced
	case match.OutcomePending:
		return outcomePending
	case match.OutcomeDuplicateRejected:
		return outcomeDuplicate
	case match.OutcomeConflictRejected:
		return outcomeConflict
	case match.OutcomeAlreadyInvoiced:
		return outcomeAlreadyInvoiced
	}
	return strings.ToLower(string(o))
}

// SubmissionResult is the per-file outcome of an upload. Pratica and
// plate are filled as soon as extraction succeeded, whatever the match
// decided afterwards.
type SubmissionResult struct {
	Filename   string            `json:"filename"`
	Outcome    string            `json:"outcome"`
	Code       string            `json:"code,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	DocType    constants.DocType `json:"doc_type,omitempty"`
	Pratica    string            `json:"pratica,omitempty"`
	Plate      string            `json:"plate,omitempty"`
	DocumentID *uuid.UUID        `json:"document_id,omitempty"`
	Invoice    *InvoiceResponse  `json:"invoice,omitempty"`
}

// UploadResponse reports one SubmissionResult per uploaded file, in
// upload order.
type UploadResponse struct {
	Results []SubmissionResult `json:"results"`
}

func submissionResult(filename string, res *match.Result) SubmissionResult {
	out := SubmissionResult{
		Filename: filename,
		Outcome:  outcomeLabel(res.Outcome),
		Reason:   res.Reason,
	}
	if res.Document != nil {
		out.DocumentID = &res.Document.ID
		out.DocType = res.Document.Record.DocType
		out.Pratica = res.Document.Record.Pratica
		out.Plate = res.Document.Record.Plate
	} else if pratica, plate, ok := strings.Cut(res.MatchKey, "|"); ok {
		// Already-invoiced refusals carry no pool row; recover the pair key.
		out.Pratica = pratica
		out.Plate = plate
	}
	if res.Invoice != nil {
		inv := ToInvoiceResponse(res.Invoice)
		out.Invoice = &inv
	}
	return out
}

// DocumentResponse is the pool view of a stored candidate. Total is the
// quote total or the purchase order total depending on the side.
type DocumentResponse struct {
	ID             uuid.UUID                `json:"id"`
	DocType        constants.DocType        `json:"doc_type"`
	Status         constants.DocumentStatus `json:"status"`
	Pratica        string                   `json:"pratica"`
	Plate          string                   `json:"plate"`
	PONumber       *string                  `json:"po_number,omitempty"`
	Total          *decimal.Decimal         `json:"total,omitempty"`
	SourceFilename string                   `json:"source_filename"`
	SourceLabel    string                   `json:"source_label"`
	ExtractedAt    time.Time                `json:"extracted_at"`
}

func ToDocumentResponse(doc *entity.Document) DocumentResponse {
	resp := DocumentResponse{
		ID:             doc.ID,
		DocType:        doc.Record.DocType,
		Status:         doc.Status,
		Pratica:        doc.Record.Pratica,
		Plate:          doc.Record.Plate,
		PONumber:       doc.Record.PONumber,
		SourceFilename: doc.SourceFilename,
		SourceLabel:    doc.SourceLabel,
		ExtractedAt:    doc.ExtractedAt,
	}
	switch doc.Record.DocType {
	case constants.DocTypeQuote:
		resp.Total = doc.Record.Total
	case constants.DocTypePurchaseOrder:
		resp.Total = doc.Record.POTotal
	}
	return resp
}

type ListDocumentsResponse struct {
	Items []DocumentResponse `json:"items"`
	Count int                `json:"count"`
}

func ToListDocumentsResponse(docs []*entity.Document) ListDocumentsResponse {
	items := lo.Map(docs, func(doc *entity.Document, _ int) DocumentResponse {
		return ToDocumentResponse(doc)
	})
	return ListDocumentsResponse{Items: items, Count: len(items)}
}

// InvoiceResponse mirrors the ledger row. Number is the display form,
// sequence plus series suffix, as it appears on the invoice itself.
type InvoiceResponse struct {
	ID              uuid.UUID               `json:"id"`
	Series          constants.Series        `json:"series"`
	SeqNumber       int64                   `json:"seq_number"`
	Number          string                  `json:"number"`
	Pratica         string                  `json:"pratica"`
	Plate           string                  `json:"plate"`
	PONumber        string                  `json:"po_number"`
	Filename        string                  `json:"filename"`
	TotalWithoutTax decimal.Decimal         `json:"total_without_tax"`
	VatAmount       decimal.Decimal         `json:"vat_amount"`
	Total           decimal.Decimal         `json:"total"`
	Status          constants.InvoiceStatus `json:"status"`
	IssuedAt        time.Time               `json:"issued_at"`
	VoidedAt        *time.Time              `json:"voided_at,omitempty"`
}

func ToInvoiceResponse(inv *entity.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:              inv.ID,
		Series:          inv.Series,
		SeqNumber:       inv.SeqNumber,
		Number:          fmt.Sprintf("%d%s", inv.SeqNumber, inv.Numbering),
		Pratica:         inv.Pratica,
		Plate:           inv.Plate,
		PONumber:        inv.PONumber,
		Filename:        inv.Filename,
		TotalWithoutTax: inv.TotalWithoutTax,
		VatAmount:       inv.VatAmount,
		Total:           inv.Total,
		Status:          inv.Status,
		IssuedAt:        inv.IssuedAt,
		VoidedAt:        inv.VoidedAt,
	}
}

type ListInvoicesResponse struct {
	Items []InvoiceResponse `json:"items"`
	Count int               `json:"count"`
}

func ToListInvoicesResponse(invoices []*entity.Invoice) ListInvoicesResponse {
	items := lo.Map(invoices, func(inv *entity.Invoice, _ int) InvoiceResponse {
		return ToInvoiceResponse(inv)
	})
	return ListInvoicesResponse{Items: items, Count: len(items)}
}

// CounterResponse is one series counter with its next number spelled out.
type CounterResponse struct {
	Series     constants.Series `json:"series"`
	Numbering  string           `json:"numbering"`
	LastIssued int64            `json:"last_issued"`
	NextNumber int64            `json:"next_number"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func ToCounterResponse(counter *entity.SeriesCounter) CounterResponse {
	return CounterResponse{
		Series:     counter.Series,
		Numbering:  counter.Series.Numbering(),
		LastIssued: counter.LastIssued,
		NextNumber: counter.LastIssued + 1,
		UpdatedAt:  counter.UpdatedAt,
	}
}

type NumberingResponse struct {
	Counters []CounterResponse `json:"counters"`
}

func ToNumberingResponse(counters []*entity.SeriesCounter) NumberingResponse {
	return NumberingResponse{
		Counters: lo.Map(counters, func(counter *entity.SeriesCounter, _ int) CounterResponse {
			return ToCounterResponse(counter)
		}),
	}
}

// OverrideCounterRequest resets a series counter. LastIssued is a pointer
// so an explicit zero passes the required check.
type OverrideCounterRequest struct {
	Series     string `json:"series" binding:"required"`
	LastIssued *int64 `json:"last_issued" binding:"required"`
}

func parseDocumentStatus(raw string) (constants.DocumentStatus, bool) {
	status := constants.DocumentStatus(strings.ToUpper(raw))
	switch status {
	case constants.DocStatusPending, constants.DocStatusConsumed,
		constants.DocStatusSuperseded, constants.DocStatusPurged:
		return status, true
	}
	return "", false
}

func parseInvoiceStatus(raw string) (constants.InvoiceStatus, bool) {
	status := constants.InvoiceStatus(strings.ToUpper(raw))
	switch status {
	case constants.InvoiceStatusIssued, constants.InvoiceStatusVoided:
		return status, true
	}
	return "", false
}

package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schiavigomme/hertz-invoicer/constants"
)

// Invoice represents a generated invoice for data transfer between layers.
// Rows are append-only; voiding flips Status and keeps the number burned.
type Invoice struct {
	ID              uuid.UUID               `json:"id"`
	Series          constants.Series        `json:"series"`
	SeqNumber       int64                   `json:"seq_number"`
	Numbering       string                  `json:"numbering"`
	Pratica         string                  `json:"pratica"`
	Plate           string                  `json:"plate"`
	PONumber        string                  `json:"po_number"`
	QuoteDocID      uuid.UUID               `json:"quote_doc_id"`
	PODocID         uuid.UUID               `json:"po_doc_id"`
	Filename        string                  `json:"filename"`
	TotalWithoutTax decimal.Decimal         `json:"total_without_tax"`
	VatAmount       decimal.Decimal         `json:"vat_amount"`
	Total           decimal.Decimal         `json:"total"`
	Status          constants.InvoiceStatus `json:"status"`
	IssuedAt        time.Time               `json:"issued_at"`
	VoidedAt        *time.Time              `json:"voided_at,omitempty"`
}

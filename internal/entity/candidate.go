package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/schiavigomme/hertz-invoicer/constants"
)

// CandidateRecord is the typed output of field extraction, before matching.
// Optional fields stay nil when the source document does not carry them;
// a missing value is never replaced with a zero or a guess.
type CandidateRecord struct {
	DocType constants.DocType `json:"doc_type"`
	Pratica string            `json:"pratica"`
	Plate   string            `json:"plate"`

	// Quote fields.
	SupplierRef *string          `json:"supplier_ref,omitempty"`
	Vehicle     *string          `json:"vehicle,omitempty"`
	LineItems   []LineItem       `json:"line_items,omitempty"`
	Total       *decimal.Decimal `json:"total,omitempty"`

	// Purchase order fields.
	PONumber   *string          `json:"po_number,omitempty"`
	UnitNumber *string          `json:"unit_number,omitempty"`
	Model      *string          `json:"model,omitempty"`
	PODate     *time.Time       `json:"po_date,omitempty"`
	POTotal    *decimal.Decimal `json:"po_total,omitempty"`
	Series     constants.Series `json:"series,omitempty"`

	// Shared optionals.
	VIN       *string `json:"vin,omitempty"`
	MileageKm *int64  `json:"mileage_km,omitempty"`
}

// LineItem is a single billable row extracted from a quote.
type LineItem struct {
	Code        *string          `json:"code,omitempty"`
	Description string           `json:"description"`
	Qty         decimal.Decimal  `json:"qty"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty"`
	Total       decimal.Decimal  `json:"total"`
}

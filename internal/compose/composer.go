// Package compose renders a matched pair plus an issued number into the
// Easyfatt invoice document. Composition is pure: identical inputs yield
// byte-identical XML, so re-running it for audit or export never perturbs
// the artifact.
package compose

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
	"github.com/schiavigomme/hertz-invoicer/internal/match"
)

// ErrInvalidRecordState means the pair handed in cannot form a legal
// invoice (wrong document types, missing purchase-order number).
var ErrInvalidRecordState = errors.New("invalid record state for composition")

// Composer holds the invariant parts of every invoice: seller, buyer,
// payment terms and VAT rate, loaded once from the initial state.
type Composer struct {
	seller  entity.SellerProfile
	buyer   entity.BuyerProfile
	payment string
	vatRate decimal.Decimal
}

func NewComposer(state *common.InitialState) *Composer {
	return &Composer{
		seller:  state.Seller,
		buyer:   state.Buyer,
		payment: state.PaymentName,
		vatRate: state.VatRatePct,
	}
}

// Request is one invoice to render.
type Request struct {
	Quote     *entity.Document
	PO        *entity.Document
	Series    constants.Series
	Number    int64
	IssueDate time.Time
}

// Artifact is the rendered invoice plus the derived amounts the ledger
// records.
type Artifact struct {
	Filename        string
	XML             []byte
	TotalWithoutTax decimal.Decimal
	VatAmount       decimal.Decimal
	Total           decimal.Decimal
}

// Compose renders the invoice document and derives its canonical
// filename.
func (c *Composer) Compose(req *Request) (*Artifact, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	quote := &req.Quote.Record
	po := &req.PO.Record

	totalWithoutTax := decimal.Zero
	for _, item := range quote.LineItems {
		totalWithoutTax = totalWithoutTax.Add(item.Total)
	}
	vatAmount := totalWithoutTax.Mul(c.vatRate).Div(decimal.NewFromInt(100))
	total := totalWithoutTax.Add(vatAmount)

	plate := quote.Plate
	if plate == "" {
		plate = po.Plate
	}

	doc := documentXML{
		CustomerCode:       c.buyer.Code,
		CustomerName:       c.buyer.Name,
		CustomerAddress:    c.buyer.Address,
		CustomerPostcode:   c.buyer.Postcode,
		CustomerCity:       c.buyer.City,
		CustomerProvince:   c.buyer.Province,
		CustomerCountry:    c.buyer.Country,
		CustomerFiscalCode: c.buyer.FiscalCode,
		CustomerVatCode:    c.buyer.VatCode,
		DocumentType:       "I",
		Date:               req.IssueDate.Format("2006-01-02"),
		Number:             strconv.FormatInt(req.Number, 10),
		Numbering:          req.Series.Numbering(),
		TotalWithoutTax:    totalWithoutTax.StringFixed(2),
		VatAmount:          vatAmount.StringFixed(2),
		Total:              total.StringFixed(2),
		PricesIncludeVat:   "false",
		PaymentName:        c.payment,
		InternalComment:    fmt.Sprintf("PO: %s - Targa: %s", *po.PONumber, plate),
		Rows:               c.buildRows(quote, po),
	}

	root := easyfattDocuments{
		Company: companyXML{
			Name:       c.seller.Name,
			Address:    c.seller.Address,
			Postcode:   c.seller.Postcode,
			City:       c.seller.City,
			Province:   c.seller.Province,
			FiscalCode: c.seller.FiscalCode,
			VatCode:    c.seller.VatCode,
			Tel:        c.seller.Tel,
			Email:      c.seller.Email,
		},
		Documents: documentsXML{Document: doc},
	}

	body, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal invoice document: %w", err)
	}

	return &Artifact{
		Filename:        Filename(req.Number, *po.PONumber, plate),
		XML:             append([]byte(xml.Header), append(body, '\n')...),
		TotalWithoutTax: totalWithoutTax,
		VatAmount:       vatAmount,
		Total:           total,
	}, nil
}

// Filename derives the contractual artifact name: number zero-padded to
// three digits, the purchase order's own reference, and the plate with
// separators stripped.
func Filename(number int64, poNumber, plate string) string {
	normalized := match.NormalizePlate(plate)
	if normalized == "" {
		normalized = "NOTARGA"
	}
	return fmt.Sprintf("Fatt_%03d_PO_%s_%s.xml", number, poNumber, normalized)
}

// buildRows emits the vehicle header row followed by one row per quote
// line item.
func (c *Composer) buildRows(quote, po *entity.CandidateRecord) rowsXML {
	rows := rowsXML{Rows: make([]rowXML, 0, len(quote.LineItems)+1)}

	vehicle := fmt.Sprintf(`PO Number: %s
Plate Number: %s
Serial Number (VIN): %s
Unit Number: %s
Model: %s
Country: IT
Type: L
Mileage: %s
Car/Van: V
Pratica Hertz: %s`,
		stringValue(po.PONumber),
		po.Plate,
		stringValue(po.VIN),
		stringValue(po.UnitNumber),
		stringValue(po.Model),
		mileageValue(po.MileageKm),
		quote.Pratica,
	)
	rows.Rows = append(rows.Rows, rowXML{Description: vehicle})

	percAttr := c.vatRate.StringFixed(1)
	for _, item := range quote.LineItems {
		row := rowXML{
			Description: item.Description,
			Qty:         item.Qty.String(),
			Price:       item.UnitPrice.StringFixed(2),
			VatCode:     &vatCodeXML{Perc: percAttr, Class: "Imponibile"},
			Total:       item.Total.StringFixed(2),
		}
		if item.Code != nil {
			row.Code = *item.Code
		}
		if item.DiscountPct != nil && item.DiscountPct.IsPositive() {
			row.Discounts = item.DiscountPct.StringFixed(2) + "%"
		}
		rows.Rows = append(rows.Rows, row)
	}
	return rows
}

func validateRequest(req *Request) error {
	switch {
	case req.Quote == nil || req.Quote.Record.DocType != constants.DocTypeQuote:
		return fmt.Errorf("%w: quote side is not a quote", ErrInvalidRecordState)
	case req.PO == nil || req.PO.Record.DocType != constants.DocTypePurchaseOrder:
		return fmt.Errorf("%w: purchase-order side is not a purchase order", ErrInvalidRecordState)
	case req.PO.Record.PONumber == nil || *req.PO.Record.PONumber == "":
		return fmt.Errorf("%w: purchase order has no order number", ErrInvalidRecordState)
	case req.Number <= 0:
		return fmt.Errorf("%w: sequence number %d", ErrInvalidRecordState, req.Number)
	}
	return nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func mileageValue(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

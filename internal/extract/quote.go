package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
)

// Quote ("preventivo") layout anchors. Each anchor is an ordered chain:
// the first spelling is the canonical layout, the rest cover drift seen
// in older vintages.
var (
	reQuoteSupplierRef = []*regexp.Regexp{
		regexp.MustCompile(`Pratica Fornitore:\s*(\d+)`),
		regexp.MustCompile(`(?i)pratica\s+fornitore\s*:?\s*(\d+)`),
	}
	reQuotePratica = []*regexp.Regexp{
		regexp.MustCompile(`Pratica Hertz:\s*(\d+)`),
		regexp.MustCompile(`(?i)pratica\s+hertz\s*:?\s*(\d+)`),
	}
	reQuotePlate = []*regexp.Regexp{
		regexp.MustCompile(`Targa:\s*([A-Z0-9]+)`),
		regexp.MustCompile(`(?i)targa\s*:?\s*([A-Z0-9]+)`),
	}
	reQuoteVIN = []*regexp.Regexp{
		regexp.MustCompile(`Telaio:\s*([A-Z0-9]+)`),
		regexp.MustCompile(`(?i)telaio\s*:?\s*([A-Z0-9]+)`),
	}
	reQuoteKm = []*regexp.Regexp{
		regexp.MustCompile(`Km:\s*(\d+)`),
		regexp.MustCompile(`(?i)\bkm\s*:?\s*(\d+)`),
	}
	reQuoteVehicle = []*regexp.Regexp{
		regexp.MustCompile(`Veicolo \(Marca - Modello - Versione\):\s*([^\n]+)`),
		regexp.MustCompile(`(?i)veicolo[^:\n]*:\s*([^\n]+)`),
	}

	reQuoteWaste = regexp.MustCompile(`Smaltimento Rifiuti[^\d]*(€?[\d.,]+)`)
	reQuoteLabor = regexp.MustCompile(`ore\s+([\d.,]+)\s*x\s*([\d.,]+)`)

	// A billable row ends with qty, unit price, optional discount and a
	// line total, all Italian-formatted.
	reQuoteItemTail = regexp.MustCompile(`\s+(\d+(?:[.,]\d{1,2})?)\s+((?:\d{1,3}(?:\.\d{3})*|\d+),\d{2})(?:\s+(\d{1,2}(?:[.,]\d{1,2})?)\s*%)?\s+((?:\d{1,3}(?:\.\d{3})*|\d+),\d{2})\s*€?\s*$`)
	reQuoteItemCode = regexp.MustCompile(`^([A-Z0-9][A-Z0-9./-]{1,11})\s+(.+)$`)
	reHasDigit      = regexp.MustCompile(`\d`)
)

// laborKinds are the labor sections a quote can carry, one synthesized
// line item each.
var laborKinds = []string{"meccanica", "carrozzeria", "verniciatura"}

// quoteSkipMarkers appear on header, subtotal and note rows of the work
// table, never on billable rows.
var quoteSkipMarkers = []string{
	"C.R.", "Voci di Danno", "IMPONIBILE", "Totale tempi",
	"Ricambi", "Materiale", "Smaltimento", "Manodopera", "TOTALI", "Note:",
}

// QuoteExtractor parses the body-shop quote layout.
type QuoteExtractor struct {
	logger *slog.Logger
}

func NewQuoteExtractor(logger *slog.Logger) *QuoteExtractor {
	return &QuoteExtractor{logger: logger}
}

func (e *QuoteExtractor) ExtractFields(_ context.Context, text string) (*entity.CandidateRecord, error) {
	record := &entity.CandidateRecord{
		DocType: constants.DocTypeQuote,
	}

	record.Pratica = firstMatch(text, reQuotePratica)
	// The plate column carries a trailing T marker in this layout.
	record.Plate = strings.TrimRight(firstMatch(text, reQuotePlate), "T")

	var missing []string
	if record.Pratica == "" {
		missing = append(missing, "pratica")
	}
	if record.Plate == "" {
		missing = append(missing, "plate")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: quote %s", ErrMissingRequiredField, strings.Join(missing, ", "))
	}

	record.SupplierRef = optional(firstMatch(text, reQuoteSupplierRef))
	record.VIN = optional(firstMatch(text, reQuoteVIN))
	record.Vehicle = optional(firstMatch(text, reQuoteVehicle))
	if km := firstMatch(text, reQuoteKm); km != "" {
		if v, err := strconv.ParseInt(km, 10, 64); err == nil {
			record.MileageKm = &v
		}
	}

	record.LineItems = e.extractItems(text)
	e.appendWasteItem(text, record)
	e.appendLaborItems(text, record)

	total := decimal.Zero
	for _, item := range record.LineItems {
		total = total.Add(item.Total)
	}
	record.Total = &total

	e.logger.Debug("extract.quote.ok",
		"pratica", record.Pratica, "plate", record.Plate,
		"items", len(record.LineItems), "total", total)
	return record, nil
}

// extractItems walks the text line by line and keeps rows shaped like
// billable work-table entries.
func (e *QuoteExtractor) extractItems(text string) []entity.LineItem {
	var items []entity.LineItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || skipQuoteLine(line) {
			continue
		}

		tail := reQuoteItemTail.FindStringSubmatchIndex(line)
		if tail == nil {
			continue
		}

		qty, err := ParseAmount(line[tail[2]:tail[3]])
		if err != nil {
			continue
		}
		price, err := ParseAmount(line[tail[4]:tail[5]])
		if err != nil {
			continue
		}
		total, err := ParseAmount(line[tail[8]:tail[9]])
		if err != nil || !total.IsPositive() {
			continue
		}

		var discount *decimal.Decimal
		if tail[6] >= 0 {
			if d, err := ParseAmount(line[tail[6]:tail[7]]); err == nil && d.IsPositive() {
				discount = &d
			}
		}

		head := strings.TrimSpace(line[:tail[0]])
		if head == "" {
			continue
		}
		code, desc := splitItemCode(head)
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}

		item := entity.LineItem{
			Description: desc,
			Qty:         qty,
			UnitPrice:   price,
			DiscountPct: discount,
			Total:       total,
		}
		if code != "" {
			item.Code = &code
			item.Description = fmt.Sprintf("%s - C.R: %s", desc, code)
		}
		items = append(items, item)
	}
	return items
}

// appendWasteItem synthesizes the waste-disposal fee row when the quote
// charges one and the table did not already carry it.
func (e *QuoteExtractor) appendWasteItem(text string, record *entity.CandidateRecord) {
	match := reQuoteWaste.FindStringSubmatch(text)
	if match == nil {
		return
	}
	amount, err := ParseAmount(match[1])
	if err != nil || !amount.IsPositive() {
		return
	}
	for _, item := range record.LineItems {
		if strings.Contains(item.Description, "Smaltimento") {
			return
		}
	}
	record.LineItems = append(record.LineItems, entity.LineItem{
		Description: "Smaltimento Rifiuti",
		Qty:         decimal.NewFromInt(1),
		UnitPrice:   amount,
		Total:       amount,
	})
}

// appendLaborItems synthesizes one row per labor kind from the
// "Manodopera <kind> ... ore H x R" sections.
func (e *QuoteExtractor) appendLaborItems(text string, record *entity.CandidateRecord) {
	for _, line := range strings.Split(text, "\n") {
		for _, kind := range laborKinds {
			if !strings.Contains(line, "Manodopera "+kind) {
				continue
			}
			match := reQuoteLabor.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			hours, err := ParseAmount(match[1])
			if err != nil {
				continue
			}
			rate, err := ParseAmount(match[2])
			if err != nil {
				continue
			}
			total := hours.Mul(rate)
			if !total.IsPositive() || hasLaborItem(record.LineItems, kind) {
				continue
			}
			record.LineItems = append(record.LineItems, entity.LineItem{
				Description: fmt.Sprintf("Manodopera %s (%sh x %s€/h)", kind, hours.String(), rate.String()),
				Qty:         decimal.NewFromInt(1),
				UnitPrice:   total,
				Total:       total,
			})
		}
	}
}

func hasLaborItem(items []entity.LineItem, kind string) bool {
	for _, item := range items {
		if strings.Contains(item.Description, "Manodopera "+kind) {
			return true
		}
	}
	return false
}

func skipQuoteLine(line string) bool {
	for _, marker := range quoteSkipMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// splitItemCode peels a leading part code off a billable row. Codes are
// short alphanumeric tokens with at least one digit; everything else is
// description.
func splitItemCode(head string) (code, desc string) {
	match := reQuoteItemCode.FindStringSubmatch(head)
	if match == nil || !reHasDigit.MatchString(match[1]) {
		return "", head
	}
	return match[1], strings.TrimSpace(match[2])
}

package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
)

// Purchase-order layout anchors.
var (
	rePONumber = []*regexp.Regexp{
		regexp.MustCompile(`(?s)PURCHASE ORDER #.*?(\d+)`),
		regexp.MustCompile(`(?i)purchase\s+order\s*(?:#|no\.?|number)?\s*:?\s*(\d+)`),
	}
	rePOPratica = []*regexp.Regexp{
		regexp.MustCompile(`WD:\s*(\d+)`),
		regexp.MustCompile(`(?i)\bwd\s*:?\s*(\d+)`),
	}
	rePOPlate = []*regexp.Regexp{
		regexp.MustCompile(`Plate Number:\s*([A-Z0-9]+)`),
		regexp.MustCompile(`(?i)plate\s+number\s*:?\s*([A-Z0-9]+)`),
	}
	rePOVIN = []*regexp.Regexp{
		regexp.MustCompile(`Serial Number \(VIN\):\s*([A-Z0-9]+)`),
		regexp.MustCompile(`(?i)serial\s+number[^:]*:\s*([A-Z0-9]+)`),
	}
	rePOUnit = []*regexp.Regexp{
		regexp.MustCompile(`Unit Number:\s*(\d+)`),
		regexp.MustCompile(`(?i)unit\s+number\s*:?\s*(\d+)`),
	}
	rePOModel = []*regexp.Regexp{
		regexp.MustCompile(`Model:\s*([^\n]+)`),
		regexp.MustCompile(`(?i)model\s*:?\s*([^\n]+)`),
	}
	rePOMileage = []*regexp.Regexp{
		regexp.MustCompile(`Mileage:\s*(\d+)`),
		regexp.MustCompile(`(?i)mileage\s*:?\s*(\d+)`),
	}
	rePOTotal = []*regexp.Regexp{
		regexp.MustCompile(`TOTAL\s+€\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)\btotal\s*€?\s*([\d.,]+)`),
	}
	rePODate = []*regexp.Regexp{
		regexp.MustCompile(`Date:\s*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{4})\b`),
	}
)

// poDateLayouts run in order: day-first is the issuer's house format,
// month-first shows up on orders cut from the US system.
var poDateLayouts = []string{"02/01/2006", "02-01-2006", "01/02/2006", "01-02-2006"}

// PurchaseOrderExtractor parses the fleet purchase-order layout.
type PurchaseOrderExtractor struct {
	logger *slog.Logger
}

func NewPurchaseOrderExtractor(logger *slog.Logger) *PurchaseOrderExtractor {
	return &PurchaseOrderExtractor{logger: logger}
}

func (e *PurchaseOrderExtractor) ExtractFields(_ context.Context, text string) (*entity.CandidateRecord, error) {
	record := &entity.CandidateRecord{
		DocType: constants.DocTypePurchaseOrder,
		Series:  classifySeries(text),
	}

	record.Pratica = firstMatch(text, rePOPratica)
	record.Plate = firstMatch(text, rePOPlate)
	poNumber := firstMatch(text, rePONumber)

	var missing []string
	if record.Pratica == "" {
		missing = append(missing, "WD")
	}
	if record.Plate == "" {
		missing = append(missing, "plate")
	}
	if poNumber == "" {
		missing = append(missing, "PO number")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: purchase order %s", ErrMissingRequiredField, strings.Join(missing, ", "))
	}
	record.PONumber = &poNumber

	record.VIN = optional(firstMatch(text, rePOVIN))
	record.UnitNumber = optional(firstMatch(text, rePOUnit))
	record.Model = optional(firstMatch(text, rePOModel))
	if mileage := firstMatch(text, rePOMileage); mileage != "" {
		if v, err := strconv.ParseInt(mileage, 10, 64); err == nil {
			record.MileageKm = &v
		}
	}
	if raw := firstMatch(text, rePOTotal); raw != "" {
		if total, err := ParseAmount(raw); err == nil {
			record.POTotal = &total
		}
	}
	if raw := firstMatch(text, rePODate); raw != "" {
		if date, ok := parsePODate(raw); ok {
			record.PODate = &date
		}
	}

	e.logger.Debug("extract.po.ok",
		"pratica", record.Pratica, "plate", record.Plate,
		"po_number", poNumber, "series", record.Series)
	return record, nil
}

// classifySeries routes tyre orders to the HG series; everything else
// is bodywork and bills under HM.
func classifySeries(text string) constants.Series {
	if strings.Contains(strings.ToUpper(text), "TYRES") {
		return constants.SeriesHG
	}
	return constants.SeriesHM
}

func parsePODate(raw string) (time.Time, bool) {
	for _, layout := range poDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

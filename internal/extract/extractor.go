package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
)

// Service turns a raw PDF into a typed candidate record: text layer
// first, then the field extractor for whichever layout the text
// announces.
type Service struct {
	text   TextExtractor
	quote  FieldExtractor
	po     FieldExtractor
	logger *slog.Logger
}

func NewService(text TextExtractor, logger *slog.Logger) *Service {
	return &Service{
		text:   text,
		quote:  NewQuoteExtractor(logger),
		po:     NewPurchaseOrderExtractor(logger),
		logger: logger,
	}
}

// Extract runs the full extraction for one document. The returned
// record is never partially trusted: a missing required field fails the
// whole document.
func (s *Service) Extract(ctx context.Context, raw []byte) (*entity.CandidateRecord, error) {
	result, err := s.text.Extract(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	for _, warning := range result.Warnings {
		s.logger.Warn("extract.text.warning", "warning", warning)
	}

	docType, ok := DetectDocType(result.Text)
	if !ok {
		return nil, ErrUnrecognizedLayout
	}

	var fields FieldExtractor
	switch docType {
	case constants.DocTypeQuote:
		fields = s.quote
	case constants.DocTypePurchaseOrder:
		fields = s.po
	}

	record, err := fields.ExtractFields(ctx, result.Text)
	if err != nil {
		return nil, err
	}

	s.logger.Info("extract.done",
		"doc_type", record.DocType,
		"pratica", record.Pratica,
		"plate", record.Plate,
		"pages", result.Pages,
		"duration_ms", result.Duration.Milliseconds())
	return record, nil
}

// DetectDocType classifies the text layer by its title markers.
func DetectDocType(text string) (constants.DocType, bool) {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "PREVENTIVO"):
		return constants.DocTypeQuote, true
	case strings.Contains(upper, "PURCHASE ORDER"):
		return constants.DocTypePurchaseOrder, true
	default:
		return "", false
	}
}

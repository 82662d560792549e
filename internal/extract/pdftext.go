package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// PDFTextExtractor reads the embedded text layer of a PDF. Scanned
// documents have none and come back empty; OCR is out of scope.
type PDFTextExtractor struct {
	logger *slog.Logger
}

func NewPDFTextExtractor(logger *slog.Logger) *PDFTextExtractor {
	return &PDFTextExtractor{logger: logger}
}

func (e *PDFTextExtractor) Extract(ctx context.Context, raw []byte) (result TextExtractionResult, err error) {
	start := time.Now()

	// The reader panics on some malformed xref tables instead of
	// returning an error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return TextExtractionResult{}, fmt.Errorf("open pdf: %w", err)
	}

	var textBuilder strings.Builder
	numPages := reader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return TextExtractionResult{}, err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d: %v", pageNum, err))
			continue
		}
		for _, row := range rows {
			for i, word := range row.Content {
				if i > 0 {
					textBuilder.WriteString(" ")
				}
				textBuilder.WriteString(word.S)
			}
			textBuilder.WriteString("\n")
		}
	}

	result.Text = textBuilder.String()
	result.Pages = numPages
	result.Duration = time.Since(start)
	if strings.TrimSpace(result.Text) == "" {
		result.Warnings = append(result.Warnings, "no text layer found")
	}
	e.logger.Debug("pdftext.extracted", "pages", result.Pages, "chars", len(result.Text), "duration", result.Duration)
	return result, nil
}

package extract

import (
	"context"
	"time"

	"github.com/schiavigomme/hertz-invoicer/internal/entity"
)

// TextExtractor is Stage 1: raw PDF bytes -> text.
type TextExtractor interface {
	Extract(ctx context.Context, raw []byte) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text     string
	Pages    int
	Duration time.Duration
	Warnings []string
}

// FieldExtractor is Stage 2: text -> typed candidate record.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (*entity.CandidateRecord, error)
}

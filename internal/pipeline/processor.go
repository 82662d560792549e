package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/extract"
	"github.com/schiavigomme/hertz-invoicer/internal/match"
)

// Intake is one PDF entering the pipeline, from an upload, the mail
// feed, the drop folder or a batch run.
type Intake struct {
	Filename      string
	Source        constants.DocumentSource
	MailMessageID *string
	Data          []byte
}

// Processor coordinates extraction (text + fields) then matching.
type Processor struct {
	Logger    *slog.Logger
	Extractor *extract.Service
	Matcher   *match.Matcher
	Store     ArtifactStore

	now func() time.Time
}

func NewProcessor(logger *slog.Logger, extractor *extract.Service, matcher *match.Matcher, store ArtifactStore) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Logger:    logger,
		Extractor: extractor,
		Matcher:   matcher,
		Store:     store,
		now:       time.Now,
	}
}

// Process runs extraction and matching for one document. A document
// that fails extraction leaves no trace in the pending pool.
func (p *Processor) Process(ctx context.Context, in *Intake) (*match.Result, error) {
	record, err := p.Extractor.Extract(ctx, in.Data)
	if err != nil {
		p.Logger.Error("processor.extract.failed",
			"filename", in.Filename, "source", in.Source, "err", err)
		return nil, err
	}

	now := p.now().UTC()
	hash := sha256.Sum256(in.Data)
	result, err := p.Matcher.Submit(ctx, &match.Submission{
		Record:         record,
		SourceFilename: in.Filename,
		SourceLabel:    string(in.Source),
		MailMessageID:  in.MailMessageID,
		ContentHash:    hash[:],
		ExtractedAt:    now,
	})
	if err != nil {
		p.Logger.Error("processor.match.failed", "filename", in.Filename, "err", err)
		return nil, err
	}

	if p.Store != nil && keepsDocument(result.Outcome) {
		relPath := fmt.Sprintf("documents/%d/%s", now.Year(), archiveName(in.Filename, hash[:]))
		p.Store.Store(ctx, relPath, in.Data)
	}

	p.Logger.Info("processor.match.ok",
		"filename", in.Filename,
		"source", in.Source,
		"doc_type", record.DocType,
		"outcome", result.Outcome,
		"match_key", result.MatchKey,
	)
	return result, nil
}

// keepsDocument reports whether the outcome left a new document in the
// pool; only those are worth archiving.
func keepsDocument(outcome match.Outcome) bool {
	switch outcome {
	case match.OutcomePaired, match.OutcomePending, match.OutcomeConflictRejected:
		return true
	default:
		return false
	}
}

func archiveName(filename string, hash []byte) string {
	base := sanitizeFilename(filepath.Base(filename))
	if base == "" || base == "." {
		base = hex.EncodeToString(hash[:6]) + ".pdf"
	}
	return base
}

// sanitizeFilename strips path separators and shell-unfriendly
// characters from client-supplied names.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

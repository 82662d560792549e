package match

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/entity"
	"github.com/schiavigomme/hertz-invoicer/internal/repository"
)

// Outcome is the verdict for one submitted candidate record.
type Outcome string

const (
	// OutcomePaired means both sides arrived and an invoice was issued.
	OutcomePaired Outcome = "PAIRED"
	// OutcomePending means the candidate is parked until its counterpart
	// shows up.
	OutcomePending Outcome = "PENDING"
	// OutcomeDuplicateRejected means the exact same document was already
	// pending; the resubmission is absorbed without any state change.
	OutcomeDuplicateRejected Outcome = "DUPLICATE_REJECTED"
	// OutcomeConflictRejected means a different document of the same type
	// was already pending for the key. The newest candidate wins the slot
	// but the condition is surfaced for operator review.
	OutcomeConflictRejected Outcome = "CONFLICT_REJECTED"
	// OutcomeAlreadyInvoiced means an issued invoice already covers this
	// pratica; re-sent documents after invoicing are not re-pooled.
	OutcomeAlreadyInvoiced Outcome = "ALREADY_INVOICED"
)

// Submission carries one extracted candidate plus its source identity
// into the matcher.
type Submission struct {
	Record         *entity.CandidateRecord
	SourceFilename string
	SourceLabel    string
	MailMessageID  *string
	ContentHash    []byte
	ExtractedAt    time.Time
}

// Result reports what happened to a submission. Document is the pool row
// the outcome refers to; Invoice is set only for OutcomePaired.
type Result struct {
	Outcome  Outcome
	MatchKey string
	Document *entity.Document
	Invoice  *entity.Invoice
	Reason   string
}

// Pairer issues an invoice from a completed quote/purchase-order pair.
// Implementations must consume both documents with the issued number in
// one atomic step.
type Pairer interface {
	IssuePair(ctx context.Context, quote, po *entity.Document) (*entity.Invoice, error)
}

// InvoiceIndex answers whether a pratica is already covered by an issued
// invoice. The invoice repository satisfies it.
type InvoiceIndex interface {
	HasActiveForPratica(ctx context.Context, pratica string) (bool, error)
}

// Matcher owns the pending pool. Submissions are serialized through a
// single critical section; the pool is small enough that per-key locking
// buys nothing.
type Matcher struct {
	mu        sync.Mutex
	documents repository.DocumentRepository
	invoices  InvoiceIndex
	pairer    Pairer
	logger    *slog.Logger
}

func NewMatcher(documents repository.DocumentRepository, invoices InvoiceIndex, pairer Pairer, logger *slog.Logger) *Matcher {
	return &Matcher{
		documents: documents,
		invoices:  invoices,
		pairer:    pairer,
		logger:    logger,
	}
}

// Submit runs one candidate through duplicate, conflict and pairing
// resolution. An error means the submission could not be decided and can
// be retried; every non-error Result is final.
func (m *Matcher) Submit(ctx context.Context, sub *Submission) (*Result, error) {
	key := NormalizeKey(sub.Record.Pratica, sub.Record.Plate)

	m.mu.Lock()
	defer m.mu.Unlock()

	invoiced, err := m.invoices.HasActiveForPratica(ctx, sub.Record.Pratica)
	if err != nil {
		return nil, fmt.Errorf("check invoiced state: %w", err)
	}
	if invoiced {
		m.logger.Info("submission refused, pratica already invoiced",
			"match_key", key, "source", sub.SourceFilename)
		return &Result{
			Outcome:  OutcomeAlreadyInvoiced,
			MatchKey: key,
			Reason:   fmt.Sprintf("an issued invoice already exists for pratica %s", sub.Record.Pratica),
		}, nil
	}

	existing, err := m.documents.FindPending(ctx, key, sub.Record.DocType)
	if err != nil {
		return nil, fmt.Errorf("look up pending candidate: %w", err)
	}
	if existing != nil {
		if bytes.Equal(existing.ContentHash, sub.ContentHash) {
			m.logger.Info("duplicate submission absorbed",
				"match_key", key, "doc_type", sub.Record.DocType, "source", sub.SourceFilename)
			return &Result{
				Outcome:  OutcomeDuplicateRejected,
				MatchKey: key,
				Document: existing,
				Reason:   fmt.Sprintf("identical %s already pending (source %s)", sub.Record.DocType, existing.SourceFilename),
			}, nil
		}

		stored, err := m.documents.Replace(ctx, existing.ID, m.newDocument(key, sub))
		if err != nil {
			return nil, fmt.Errorf("supersede conflicting candidate: %w", err)
		}
		m.logger.Warn("conflicting submission superseded previous candidate",
			"match_key", key, "doc_type", sub.Record.DocType,
			"superseded_source", existing.SourceFilename, "source", sub.SourceFilename)
		return &Result{
			Outcome:  OutcomeConflictRejected,
			MatchKey: key,
			Document: stored,
			Reason: fmt.Sprintf("a different %s was already pending (source %s); the new document replaced it and needs review",
				sub.Record.DocType, existing.SourceFilename),
		}, nil
	}

	stored, err := m.documents.Insert(ctx, m.newDocument(key, sub))
	if err != nil {
		return nil, fmt.Errorf("store candidate: %w", err)
	}

	counterpart, err := m.documents.FindPending(ctx, key, sub.Record.DocType.Counterpart())
	if err != nil {
		return nil, fmt.Errorf("look up counterpart: %w", err)
	}
	if counterpart == nil {
		m.logger.Info("candidate parked until counterpart arrives",
			"match_key", key, "doc_type", sub.Record.DocType, "source", sub.SourceFilename)
		return &Result{Outcome: OutcomePending, MatchKey: key, Document: stored}, nil
	}

	quote, po := orientPair(stored, counterpart)
	invoice, err := m.pairer.IssuePair(ctx, quote, po)
	if err != nil {
		// Both sides stay pending; the next submission or the startup
		// sweep retries the pair.
		return nil, fmt.Errorf("issue invoice for %s: %w", key, err)
	}
	m.logger.Info("pair completed",
		"match_key", key, "series", invoice.Series, "number", invoice.SeqNumber, "filename", invoice.Filename)
	return &Result{Outcome: OutcomePaired, MatchKey: key, Document: stored, Invoice: invoice}, nil
}

// ResumePairs issues invoices for pairs that were complete in the pool
// when the process stopped. Called once at startup.
func (m *Matcher) ResumePairs(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs, err := m.documents.ListPairable(ctx)
	if err != nil {
		return fmt.Errorf("list resumable pairs: %w", err)
	}
	for _, pair := range pairs {
		quote, err := m.documents.GetByID(ctx, pair.QuoteID)
		if err != nil {
			return fmt.Errorf("load quote %s: %w", pair.QuoteID, err)
		}
		po, err := m.documents.GetByID(ctx, pair.POID)
		if err != nil {
			return fmt.Errorf("load purchase order %s: %w", pair.POID, err)
		}
		invoice, err := m.pairer.IssuePair(ctx, quote, po)
		if err != nil {
			m.logger.Error("resuming interrupted pair failed",
				"match_key", pair.MatchKey, "error", err)
			continue
		}
		m.logger.Info("interrupted pair resumed",
			"match_key", pair.MatchKey, "series", invoice.Series, "number", invoice.SeqNumber)
	}
	return nil
}

// Purge removes a parked candidate on operator request. It holds the
// same critical section as Submit so a purge cannot race a pairing
// decision on the key.
func (m *Matcher) Purge(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.documents.Purge(ctx, id); err != nil {
		return err
	}
	m.logger.Info("pending candidate purged", "id", id)
	return nil
}

func (m *Matcher) newDocument(key string, sub *Submission) *entity.Document {
	return &entity.Document{
		ID:             uuid.New(),
		MatchKey:       key,
		Status:         constants.DocStatusPending,
		SourceFilename: sub.SourceFilename,
		SourceLabel:    sub.SourceLabel,
		MailMessageID:  sub.MailMessageID,
		ContentHash:    sub.ContentHash,
		Record:         *sub.Record,
		ExtractedAt:    sub.ExtractedAt,
	}
}

func orientPair(a, b *entity.Document) (quote, po *entity.Document) {
	if a.Record.DocType == constants.DocTypeQuote {
		return a, b
	}
	return b, a
}

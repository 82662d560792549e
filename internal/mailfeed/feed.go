// Package mailfeed polls an IMAP mailbox for purchase-order mails and
// hands their PDF attachments to the processing queue.
package mailfeed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/async"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	processor "github.com/schiavigomme/hertz-invoicer/internal/pipeline"
	"github.com/schiavigomme/hertz-invoicer/internal/repository"
)

// PollResult summarizes one mailbox pass.
type PollResult struct {
	Checked    int
	Enqueued   int
	Duplicates int
	Skipped    int
	Errors     []string
}

// Feed reads the configured mailbox and enqueues every new PDF
// attachment. Messages are deduplicated by Message-ID; anything that
// slips through is absorbed downstream by the content-hash check.
type Feed struct {
	cfg    common.MailConfig
	queue  async.Queue
	seen   repository.MailRepository
	logger *slog.Logger
}

func NewFeed(cfg common.MailConfig, queue async.Queue, seen repository.MailRepository, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		cfg:    cfg,
		queue:  queue,
		seen:   seen,
		logger: logger,
	}
}

// Poll runs one mailbox pass. Per-message failures are collected in the
// result rather than aborting the pass; the next tick retries them.
func (f *Feed) Poll(ctx context.Context) (*PollResult, error) {
	res := &PollResult{}

	client, err := imapclient.DialTLS(f.cfg.IMAPAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial imap: %w", err)
	}
	defer client.Close()

	if err := client.Login(f.cfg.Username, f.cfg.Password).Wait(); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	defer func() {
		if err := client.Logout().Wait(); err != nil {
			f.logger.Debug("imap logout failed", "error", err)
		}
	}()

	if _, err := client.Select(f.cfg.Mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select mailbox %s: %w", f.cfg.Mailbox, err)
	}

	criteria := &imap.SearchCriteria{}
	if f.cfg.SubjectFilter != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key: "Subject", Value: f.cfg.SubjectFilter,
		})
	}
	if f.cfg.Lookback > 0 {
		criteria.Since = time.Now().Add(-f.cfg.Lookback)
	}

	search, err := client.Search(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	seqNums := search.AllSeqNums()
	res.Checked = len(seqNums)
	if len(seqNums) == 0 {
		return res, nil
	}

	section := &imap.FetchItemBodySection{}
	fetched, err := client.Fetch(imap.SeqSetNum(seqNums...), &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	for _, msg := range fetched {
		raw := msg.FindBodySection(section)
		if raw == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("message %d: empty body", msg.SeqNum))
			continue
		}
		if err := f.ingestMessage(ctx, raw, res); err != nil {
			res.Errors = append(res.Errors, err.Error())
		}
	}
	return res, nil
}

func (f *Feed) ingestMessage(ctx context.Context, raw []byte, res *PollResult) error {
	parsed, err := parseMessage(raw)
	if err != nil {
		return fmt.Errorf("parse mail: %w", err)
	}

	if f.cfg.SenderFilter != "" &&
		!strings.Contains(strings.ToLower(parsed.From), strings.ToLower(f.cfg.SenderFilter)) {
		res.Skipped++
		return nil
	}
	if len(parsed.Attachments) == 0 {
		res.Skipped++
		return nil
	}

	if parsed.MessageID != "" {
		done, err := f.seen.IsProcessed(ctx, parsed.MessageID)
		if err != nil {
			return fmt.Errorf("mail dedup %s: %w", parsed.MessageID, err)
		}
		if done {
			res.Duplicates++
			return nil
		}
	}

	for _, att := range parsed.Attachments {
		intake := &processor.Intake{
			Filename: att.Filename,
			Source:   constants.SourceMail,
			Data:     att.Data,
		}
		if parsed.MessageID != "" {
			messageID := parsed.MessageID
			intake.MailMessageID = &messageID
		}
		if err := f.queue.Enqueue(ctx, async.Job{Intake: intake, SubmittedAt: time.Now()}); err != nil {
			return fmt.Errorf("enqueue %s: %w", att.Filename, err)
		}
		res.Enqueued++
	}

	if parsed.MessageID != "" {
		if err := f.seen.MarkProcessed(ctx, parsed.MessageID); err != nil {
			f.logger.Warn("failed to record mail message",
				"message_id", parsed.MessageID, "error", err)
		}
	}

	f.logger.Info("mail ingested",
		"message_id", parsed.MessageID,
		"subject", parsed.Subject,
		"from", parsed.From,
		"attachments", len(parsed.Attachments))
	return nil
}

type attachment struct {
	Filename string
	Data     []byte
}

type parsedMail struct {
	MessageID   string
	Subject     string
	From        string
	Attachments []attachment
}

// parseMessage walks the MIME tree and keeps PDF attachments. Encoded
// filenames and transfer encodings are resolved by the reader.
func parseMessage(raw []byte) (*parsedMail, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	out := &parsedMail{}
	out.MessageID, _ = mr.Header.MessageID()
	out.Subject, _ = mr.Header.Subject()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		out.From = from[0].Address
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, err := header.Filename()
		if err != nil || filename == "" {
			continue
		}
		if _, ok := constants.AllowedExtensions[constants.NormalizeExt(path.Ext(filename))]; !ok {
			continue
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, err
		}
		out.Attachments = append(out.Attachments, attachment{Filename: filename, Data: data})
	}
	return out, nil
}

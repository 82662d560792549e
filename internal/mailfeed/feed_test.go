package mailfeed

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schiavigomme/hertz-invoicer/internal/async"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
)

// buildMail assembles a multipart message with one text part and the
// given attachments (filename -> content).
func buildMail(messageID, from, subject string, attachments map[string][]byte) []byte {
	var b []byte
	add := func(s string) { b = append(b, s...) }

	add("Message-ID: <" + messageID + ">\r\n")
	add("From: " + from + "\r\n")
	add("Subject: " + subject + "\r\n")
	add("MIME-Version: 1.0\r\n")
	add("Content-Type: multipart/mixed; boundary=\"frontier\"\r\n")
	add("\r\n")
	add("--frontier\r\n")
	add("Content-Type: text/plain\r\n")
	add("\r\n")
	add("In allegato il purchase order.\r\n")
	for name, content := range attachments {
		add("--frontier\r\n")
		add(fmt.Sprintf("Content-Type: application/octet-stream; name=%q\r\n", name))
		add(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n", name))
		add("Content-Transfer-Encoding: base64\r\n")
		add("\r\n")
		add(base64.StdEncoding.EncodeToString(content) + "\r\n")
	}
	add("--frontier--\r\n")
	return b
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) {}

type fakeSeen struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (s *fakeSeen) IsProcessed(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[messageID], nil
}

func (s *fakeSeen) MarkProcessed(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		s.ids = make(map[string]bool)
	}
	s.ids[messageID] = true
	return nil
}

func newTestFeed(cfg common.MailConfig) (*Feed, *fakeQueue, *fakeSeen) {
	queue := &fakeQueue{}
	seen := &fakeSeen{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFeed(cfg, queue, seen, logger), queue, seen
}

func TestParseMessageCollectsPDFAttachments(t *testing.T) {
	raw := buildMail("po-98021@hertz.example", "Hertz Italiana <po@hertz.example>", "PO 98021",
		map[string][]byte{"po_98021.pdf": []byte("%PDF-1.4 fake")})

	parsed, err := parseMessage(raw)
	require.NoError(t, err)

	assert.Equal(t, "po-98021@hertz.example", parsed.MessageID)
	assert.Equal(t, "PO 98021", parsed.Subject)
	assert.Equal(t, "po@hertz.example", parsed.From)
	require.Len(t, parsed.Attachments, 1)
	assert.Equal(t, "po_98021.pdf", parsed.Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF-1.4 fake"), parsed.Attachments[0].Data)
}

func TestParseMessageIgnoresNonPDFAttachments(t *testing.T) {
	raw := buildMail("weekly@hertz.example", "po@hertz.example", "PO weekly report",
		map[string][]byte{"report.xlsx": []byte("not a pdf")})

	parsed, err := parseMessage(raw)
	require.NoError(t, err)
	assert.Empty(t, parsed.Attachments)
}

func TestIngestEnqueuesAndMarksProcessed(t *testing.T) {
	feed, queue, seen := newTestFeed(common.MailConfig{})
	raw := buildMail("po-98021@hertz.example", "po@hertz.example", "PO 98021",
		map[string][]byte{"po_98021.pdf": []byte("%PDF-1.4 fake")})

	res := &PollResult{}
	require.NoError(t, feed.ingestMessage(context.Background(), raw, res))

	assert.Equal(t, 1, res.Enqueued)
	require.Len(t, queue.jobs, 1)
	intake := queue.jobs[0].Intake
	assert.Equal(t, "po_98021.pdf", intake.Filename)
	require.NotNil(t, intake.MailMessageID)
	assert.Equal(t, "po-98021@hertz.example", *intake.MailMessageID)
	assert.Equal(t, []byte("%PDF-1.4 fake"), intake.Data)

	done, err := seen.IsProcessed(context.Background(), "po-98021@hertz.example")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestIngestSkipsAlreadyProcessedMessage(t *testing.T) {
	feed, queue, seen := newTestFeed(common.MailConfig{})
	require.NoError(t, seen.MarkProcessed(context.Background(), "po-98021@hertz.example"))

	raw := buildMail("po-98021@hertz.example", "po@hertz.example", "PO 98021",
		map[string][]byte{"po_98021.pdf": []byte("%PDF-1.4 fake")})

	res := &PollResult{}
	require.NoError(t, feed.ingestMessage(context.Background(), raw, res))

	assert.Equal(t, 1, res.Duplicates)
	assert.Zero(t, res.Enqueued)
	assert.Empty(t, queue.jobs)
}

func TestIngestAppliesSenderFilter(t *testing.T) {
	feed, queue, _ := newTestFeed(common.MailConfig{SenderFilter: "hertz.example"})

	matching := buildMail("a@hertz.example", "Ordini <po@HERTZ.example>", "PO 1",
		map[string][]byte{"a.pdf": []byte("%PDF")})
	other := buildMail("b@spam.example", "noreply@spam.example", "PO 2",
		map[string][]byte{"b.pdf": []byte("%PDF")})

	res := &PollResult{}
	require.NoError(t, feed.ingestMessage(context.Background(), matching, res))
	require.NoError(t, feed.ingestMessage(context.Background(), other, res))

	assert.Equal(t, 1, res.Enqueued)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "a.pdf", queue.jobs[0].Intake.Filename)
}

func TestIngestSkipsMailWithoutAttachments(t *testing.T) {
	feed, queue, seen := newTestFeed(common.MailConfig{})
	raw := buildMail("note@hertz.example", "po@hertz.example", "PO info", nil)

	res := &PollResult{}
	require.NoError(t, feed.ingestMessage(context.Background(), raw, res))

	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, queue.jobs)

	// A mail with no usable attachment is not burned: a corrected resend
	// with the PDF attached must still come through.
	done, err := seen.IsProcessed(context.Background(), "note@hertz.example")
	require.NoError(t, err)
	assert.False(t, done)
}

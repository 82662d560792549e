package repository

import (
	"context"
	"log/slog"

	"github.com/schiavigomme/hertz-invoicer/internal/common"
)

// MailRepository remembers which feed messages were already ingested, so a
// poll never re-downloads an attachment.
type MailRepository interface {
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
}

type mailRepository struct {
	db     DB
	logger *slog.Logger
}

func NewMailRepository(db DB, logger *slog.Logger) MailRepository {
	return &mailRepository{
		db:     db,
		logger: logger,
	}
}

func (r *mailRepository) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM mail_messages WHERE message_id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, messageID).Scan(&exists); err != nil {
		return false, common.WrapError(err, "check mail message")
	}
	return exists, nil
}

func (r *mailRepository) MarkProcessed(ctx context.Context, messageID string) error {
	query := `
		INSERT INTO mail_messages (message_id, processed_at)
		VALUES ($1, now())
		ON CONFLICT (message_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, query, messageID); err != nil {
		r.logger.Error("failed to mark mail message", "message_id", messageID, "error", err)
		return common.WrapError(err, "mark mail message")
	}
	return nil
}

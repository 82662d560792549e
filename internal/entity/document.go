package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/schiavigomme/hertz-invoicer/constants"
)

// Document represents a stored candidate document for data transfer between layers.
type Document struct {
	ID             uuid.UUID                `json:"id"`
	MatchKey       string                   `json:"match_key"`
	Status         constants.DocumentStatus `json:"status"`
	SourceFilename string                   `json:"source_filename"`
	SourceLabel    string                   `json:"source_label"`
	MailMessageID  *string                  `json:"mail_message_id,omitempty"`
	ContentHash    []byte                   `json:"content_hash"`
	Record         CandidateRecord          `json:"record"`
	ExtractedAt    time.Time                `json:"extracted_at"`
	CreatedAt      time.Time                `json:"created_at"`
}

package entity

import (
	"time"

	"github.com/schiavigomme/hertz-invoicer/constants"
)

// SeriesCounter represents the durable numbering state of one series.
type SeriesCounter struct {
	Series     constants.Series `json:"series"`
	LastIssued int64            `json:"last_issued"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

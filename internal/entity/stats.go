package entity

import "time"

// SeriesStats aggregates issuance for one series.
type SeriesStats struct {
	LastIssued   int64      `json:"last_issued"`
	IssuedCount  int64      `json:"issued_count"`
	VoidedCount  int64      `json:"voided_count"`
	LastIssuedAt *time.Time `json:"last_issued_at,omitempty"`
}

// Stats is the dashboard aggregate snapshot.
type Stats struct {
	PendingQuotes         int64                  `json:"pending_quotes"`
	PendingPurchaseOrders int64                  `json:"pending_purchase_orders"`
	Series                map[string]SeriesStats `json:"series"`
}

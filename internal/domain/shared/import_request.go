package shared

import (
	"time"

	"github.com/google/uuid"
)

// RawRecord is one source-shaped record inside an import job. Field names are
// source specific; the normalizer is the only component that interprets them.
type RawRecord struct {
	Position int               `json:"position"`
	Fields   map[string]string `json:"fields"`
}

// LineFields carries the raw representation of one purchased item, for sources
// that deliver line-level detail (mobile receipts, Amazon order rows).
type LineFields struct {
	Name       string `json:"name"`
	Quantity   string `json:"quantity,omitempty"`
	UnitPrice  string `json:"unit_price,omitempty"`
	TotalPrice string `json:"total_price,omitempty"`
}

// ImportJobRequest defines a Kafka message asking the worker to run one batch
type ImportJobRequest struct {
	BatchID         uuid.UUID            `json:"batch_id"`
	Source          SourceKind           `json:"source"`
	DefaultCurrency string               `json:"default_currency,omitempty"`
	Records         []RawRecord          `json:"records"`
	LineItems       map[int][]LineFields `json:"line_items,omitempty"` // keyed by record position
	CorrelationID   string               `json:"correlation_id"`
	SubmittedAt     time.Time            `json:"submitted_at"`
}

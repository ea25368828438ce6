package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/pfm-ledger/internal/domain/shared"
)

// Summary holds the per-outcome counters reported back to the caller
type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
}

// Total returns the number of records accounted for
func (s Summary) Total() int {
	return s.Created + s.Updated + s.Skipped + s.Errored
}

// Add counts one record outcome
func (s *Summary) Add(outcome shared.RecordOutcome) {
	switch outcome {
	case shared.OutcomeCreated:
		s.Created++
	case shared.OutcomeUpdated:
		s.Updated++
	case shared.OutcomeSkipped:
		s.Skipped++
	case shared.OutcomeErrored:
		s.Errored++
	}
}

// ImportBatch is one invocation of the import pipeline over a bounded set of
// raw records from a single source.
type ImportBatch struct {
	ID          uuid.UUID          `json:"id"`
	Source      shared.SourceKind  `json:"source"`
	Status      shared.BatchStatus `json:"status"`
	RecordCount int                `json:"record_count"`
	Summary     Summary            `json:"summary"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// New creates a queued batch for the given source
func New(id uuid.UUID, source shared.SourceKind, recordCount int) *ImportBatch {
	return &ImportBatch{
		ID:          id,
		Source:      source,
		Status:      shared.BatchStatusQueued,
		RecordCount: recordCount,
		CreatedAt:   time.Now().UTC(),
	}
}

// MarkRunning stamps the batch as started
func (b *ImportBatch) MarkRunning() {
	now := time.Now().UTC()
	b.Status = shared.BatchStatusRunning
	b.StartedAt = &now
}

// MarkCompleted finalizes a successful batch with its summary
func (b *ImportBatch) MarkCompleted(summary Summary) {
	now := time.Now().UTC()
	b.Status = shared.BatchStatusCompleted
	b.Summary = summary
	b.CompletedAt = &now
}

// MarkFailed finalizes a failed batch, retaining partial statistics for
// records already committed before the failure.
func (b *ImportBatch) MarkFailed(summary Summary) {
	now := time.Now().UTC()
	b.Status = shared.BatchStatusFailed
	b.Summary = summary
	b.CompletedAt = &now
}

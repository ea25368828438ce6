package issue

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a reconciliation anomaly
type Kind string

const (
	KindDuplicateSuspected Kind = "DUPLICATE_SUSPECTED"
	KindMissingField       Kind = "MISSING_FIELD"
	KindAmountMismatch     Kind = "AMOUNT_MISMATCH"
	// KindUnmappedCategory exists in the taxonomy but current policy never
	// files it: an uncategorized item is a normal terminal state.
	KindUnmappedCategory Kind = "UNMAPPED_CATEGORY"
)

// Status defines the review lifecycle of an issue
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusResolved Status = "RESOLVED"
)

// TargetKind names the entity kind an issue points at
type TargetKind string

const (
	TargetTransaction  TargetKind = "TRANSACTION"
	TargetLineItem     TargetKind = "LINE_ITEM"
	TargetImportRecord TargetKind = "IMPORT_RECORD"
)

// Target is a tagged reference to the entity an issue is about. Each kind
// carries a typed id rather than an untyped pair, so a TRANSACTION target can
// only ever hold a transaction id.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

// TransactionTarget points an issue at a stored transaction
func TransactionTarget(id uuid.UUID) Target {
	return Target{Kind: TargetTransaction, ID: id}
}

// LineItemTarget points an issue at a stored line item
func LineItemTarget(id uuid.UUID) Target {
	return Target{Kind: TargetLineItem, ID: id}
}

// recordNamespace seeds deterministic ids for records that never reached the
// store. Reusing the same raw content on a later import yields the same id,
// which lets the reporter dedupe across re-imports.
var recordNamespace = uuid.MustParse("6f1c2a4e-9b0d-44c7-8a53-2f64c1d0b9ee")

// ImportRecordTarget derives a stable target for an unpersisted raw record
// from its source kind and content hash.
func ImportRecordTarget(source string, contentHash string) Target {
	return Target{
		Kind: TargetImportRecord,
		ID:   uuid.NewSHA1(recordNamespace, []byte(source+"|"+contentHash)),
	}
}

// Issue is a queued anomaly awaiting human review. Issues are append-only from
// the pipeline's point of view; only a reviewer resolves them.
type Issue struct {
	ID              uuid.UUID  `json:"id"`
	Target          Target     `json:"target"`
	Kind            Kind       `json:"kind"`
	Description     string     `json:"description"`
	Status          Status     `json:"status"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

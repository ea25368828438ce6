package shared

// SourceKind identifies the upstream producer of a raw record
type SourceKind string

const (
	SourceMobileReceipt SourceKind = "MOBILE_RECEIPT"
	SourceBank          SourceKind = "BANK"
	SourceAmazon        SourceKind = "AMAZON"
	SourceManual        SourceKind = "MANUAL"
)

// Valid reports whether the source kind is one of the known producers
func (s SourceKind) Valid() bool {
	switch s {
	case SourceMobileReceipt, SourceBank, SourceAmazon, SourceManual:
		return true
	}
	return false
}

// TransactionStatus defines transaction lifecycle states
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusVerified TransactionStatus = "VERIFIED"
	TransactionStatusArchived TransactionStatus = "ARCHIVED"
)

// BatchStatus defines import batch processing states
type BatchStatus string

const (
	BatchStatusQueued    BatchStatus = "QUEUED"
	BatchStatusRunning   BatchStatus = "RUNNING"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
)

// RecordOutcome defines the per-record result of the ledger writer decision
type RecordOutcome string

const (
	OutcomeCreated RecordOutcome = "CREATED"
	OutcomeUpdated RecordOutcome = "UPDATED"
	OutcomeSkipped RecordOutcome = "SKIPPED"
	OutcomeErrored RecordOutcome = "ERRORED"
)

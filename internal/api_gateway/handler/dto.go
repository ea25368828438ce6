package handler

// RawRecordPayload is one source-shaped record in a submit request. Field
// names are interpreted downstream by the import worker.
type RawRecordPayload struct {
	Fields    map[string]string `json:"fields" binding:"required"`
	LineItems []LineItemPayload `json:"line_items,omitempty"`
}

// LineItemPayload carries the raw representation of one purchased item
type LineItemPayload struct {
	Name       string `json:"name" binding:"required"`
	Quantity   string `json:"quantity,omitempty"`
	UnitPrice  string `json:"unit_price,omitempty"`
	TotalPrice string `json:"total_price,omitempty"`
}

// SubmitImportRequest represents a request to import a batch of raw records
type SubmitImportRequest struct {
	Source          string             `json:"source" binding:"required,oneof=MOBILE_RECEIPT BANK AMAZON MANUAL"`
	DefaultCurrency string             `json:"default_currency,omitempty" binding:"omitempty,len=3"`
	Records         []RawRecordPayload `json:"records" binding:"required,min=1,dive"`
}

// ImportBatchResponse represents an import batch in API responses
type ImportBatchResponse struct {
	ID          string               `json:"id"`
	Source      string               `json:"source"`
	Status      string               `json:"status"`
	RecordCount int                  `json:"record_count"`
	Summary     BatchSummaryResponse `json:"summary"`
	StartedAt   string               `json:"started_at,omitempty"`
	CompletedAt string               `json:"completed_at,omitempty"`
	CreatedAt   string               `json:"created_at"`
}

// BatchSummaryResponse represents per-outcome batch counters
type BatchSummaryResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
}

// ArchivedRecordResponse represents an archived raw record in API responses
type ArchivedRecordResponse struct {
	BatchID     string            `json:"batch_id"`
	Source      string            `json:"source"`
	Position    int               `json:"position"`
	ContentHash string            `json:"content_hash"`
	Fields      map[string]string `json:"fields"`
	ArchivedAt  string            `json:"archived_at"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID          string             `json:"id"`
	Source      string             `json:"source"`
	ExternalRef string             `json:"external_ref,omitempty"`
	OccurredAt  string             `json:"occurred_at"`
	Amount      string             `json:"amount"`
	Currency    string             `json:"currency"`
	Descriptor  string             `json:"descriptor"`
	Status      string             `json:"status"`
	CategoryID  string             `json:"category_id,omitempty"`
	ShopID      string             `json:"shop_id,omitempty"`
	LineItems   []LineItemResponse `json:"line_items,omitempty"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Quantity   string `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	TotalPrice string `json:"total_price"`
	CategoryID string `json:"category_id,omitempty"`
}

// IssueResponse represents a reconciliation issue in API responses
type IssueResponse struct {
	ID              string `json:"id"`
	TargetKind      string `json:"target_kind"`
	TargetID        string `json:"target_id"`
	Kind            string `json:"kind"`
	Description     string `json:"description"`
	Status          string `json:"status"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
	ResolvedAt      string `json:"resolved_at,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// ResolveIssueRequest represents a reviewer resolving an issue
type ResolveIssueRequest struct {
	Notes string `json:"notes" binding:"required"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID string `json:"parent_id,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

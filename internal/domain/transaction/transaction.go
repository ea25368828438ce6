package transaction

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pfm-ledger/internal/domain/shared"
)

// Common errors
var (
	ErrInvalidCurrencyFormat = errors.New("currency must be a 3-letter code")
	ErrEmptyDescriptor       = errors.New("descriptor cannot be empty")
	ErrMissingExternalRef    = errors.New("external ref is required for non-manual sources")
)

// Transaction is the canonical form of a receipt, bank-statement line or
// Amazon order. The pair (Source, ExternalRef) is the idempotency key for
// re-imports whenever ExternalRef is present.
type Transaction struct {
	ID          uuid.UUID                `json:"id"`
	Source      shared.SourceKind        `json:"source"`
	ExternalRef *string                  `json:"external_ref,omitempty"`
	Fingerprint string                   `json:"fingerprint"`
	OccurredAt  time.Time                `json:"occurred_at"` // always UTC
	Amount      decimal.Decimal          `json:"amount"`
	Currency    string                   `json:"currency"`
	Descriptor  string                   `json:"descriptor"`
	Status      shared.TransactionStatus `json:"status"`
	CategoryID  *uuid.UUID               `json:"category_id,omitempty"`
	ShopID      *uuid.UUID               `json:"shop_id,omitempty"`
	LineItems   []LineItem               `json:"line_items,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// LineItem is one purchased item belonging to a Transaction. Quantity may be
// fractional for weighted goods. Line items never exist without their parent.
type LineItem struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Name          string          `json:"name"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	CategoryID    *uuid.UUID      `json:"category_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MateriallyDiffers reports whether the incoming amount, descriptor or status
// would change this transaction beyond whitespace and letter case.
func (t *Transaction) MateriallyDiffers(amount decimal.Decimal, descriptor string, status shared.TransactionStatus) bool {
	if !t.Amount.Equal(amount) {
		return true
	}
	if canonicalText(t.Descriptor) != canonicalText(descriptor) {
		return true
	}
	return t.Status != status
}

// CosmeticallyDiffers reports whether the only difference between the stored
// descriptor and the incoming one is whitespace or letter case.
func (t *Transaction) CosmeticallyDiffers(descriptor string) bool {
	return t.Descriptor != descriptor && canonicalText(t.Descriptor) == canonicalText(descriptor)
}

// ApplyUpdate overwrites the mutable fields and bumps the updated-at stamp.
// Only amount, descriptor and status are mutable; identity fields never change.
func (t *Transaction) ApplyUpdate(amount decimal.Decimal, descriptor string, status shared.TransactionStatus) {
	t.Amount = amount
	t.Descriptor = descriptor
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
}

// LineItemTotal sums the total prices of all line items
func (t *Transaction) LineItemTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range t.LineItems {
		sum = sum.Add(li.TotalPrice)
	}
	return sum
}

// ReconcileLineItems checks the line-item sum against the transaction amount.
// The allowed drift is one currency minor unit per line item. Returns the
// absolute difference and whether it is within tolerance. Transactions without
// line items always reconcile.
func (t *Transaction) ReconcileLineItems() (decimal.Decimal, bool) {
	if len(t.LineItems) == 0 {
		return decimal.Zero, true
	}
	diff := t.LineItemTotal().Sub(t.Amount).Abs()
	tolerance := decimal.New(int64(len(t.LineItems)), -2)
	return diff, diff.LessThanOrEqual(tolerance)
}

func canonicalText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

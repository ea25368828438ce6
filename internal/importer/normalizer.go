// Package importer implements the transaction import core: normalization of
// heterogeneous raw records, natural-key identity resolution, master-data
// lookup, the create/update/skip ledger decision and anomaly reporting, all
// driven by a per-batch pipeline.
package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfm-ledger/internal/domain/shared"
)

// Canonical raw field names shared by all source adapters. Upstream producers
// (CSV readers, the receipt sync endpoint, the order-history parser) are
// responsible for mapping their own column names onto these.
const (
	FieldRef        = "ref"
	FieldDate       = "date"
	FieldAmount     = "amount"
	FieldCurrency   = "currency"
	FieldDescriptor = "descriptor"
	FieldShop       = "shop"
	FieldCategory   = "category"
	FieldStatus     = "status"
)

// NormalizedRecord is the canonical transaction shape produced by the
// normalizer. Match fields (descriptor, shop, category) are trimmed; the
// original casing is preserved for display.
type NormalizedRecord struct {
	Position     int
	Source       shared.SourceKind
	ExternalRef  *string
	OccurredAt   time.Time // UTC
	Amount       decimal.Decimal
	Currency     string
	Descriptor   string
	Status       shared.TransactionStatus
	ShopName     string
	CategoryName string
	LineItems    []NormalizedLineItem
	ContentHash  string
}

// NormalizedLineItem is the canonical shape of one purchased item
type NormalizedLineItem struct {
	Name       string
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Normalizer converts raw records into canonical transaction shapes. It is a
// pure component: no side effects, same input always yields the same output.
type Normalizer struct {
	defaultCurrency string
}

// NewNormalizer creates a normalizer with the batch default currency
func NewNormalizer(defaultCurrency string) *Normalizer {
	return &Normalizer{defaultCurrency: strings.ToUpper(defaultCurrency)}
}

// acceptedDateLayouts are the unambiguous formats the normalizer parses.
// Slash-separated day/month orderings are rejected rather than guessed.
var acceptedDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts one raw record into a NormalizedRecord or fails with
// MalformedRecordError. One bad record never aborts the batch; the caller
// counts the failure and continues.
func (n *Normalizer) Normalize(raw shared.RawRecord, lines []shared.LineFields, source shared.SourceKind) (*NormalizedRecord, error) {
	rec := &NormalizedRecord{
		Position:    raw.Position,
		Source:      source,
		ContentHash: HashRawRecord(source, raw),
	}

	if ref := strings.TrimSpace(raw.Fields[FieldRef]); ref != "" {
		rec.ExternalRef = &ref
	}

	occurredAt, err := parseTimestamp(raw.Fields[FieldDate])
	if err != nil {
		return nil, shared.MalformedRecordError{Position: raw.Position, Field: FieldDate, Reason: err.Error()}
	}
	rec.OccurredAt = occurredAt

	amount, err := ParseAmount(raw.Fields[FieldAmount])
	if err != nil {
		return nil, shared.MalformedRecordError{Position: raw.Position, Field: FieldAmount, Reason: err.Error()}
	}
	rec.Amount = amount

	currency := strings.ToUpper(strings.TrimSpace(raw.Fields[FieldCurrency]))
	if currency == "" {
		currency = n.defaultCurrency
	}
	if len(currency) != 3 {
		return nil, shared.MalformedRecordError{Position: raw.Position, Field: FieldCurrency, Reason: fmt.Sprintf("invalid currency code %q", currency)}
	}
	rec.Currency = currency

	rec.Descriptor = strings.TrimSpace(raw.Fields[FieldDescriptor])
	if rec.Descriptor == "" {
		return nil, shared.MalformedRecordError{Position: raw.Position, Field: FieldDescriptor, Reason: "descriptor is required"}
	}

	status, err := parseStatus(raw.Fields[FieldStatus])
	if err != nil {
		return nil, shared.MalformedRecordError{Position: raw.Position, Field: FieldStatus, Reason: err.Error()}
	}
	rec.Status = status

	rec.ShopName = strings.TrimSpace(raw.Fields[FieldShop])
	rec.CategoryName = strings.TrimSpace(raw.Fields[FieldCategory])

	for _, lf := range lines {
		li, err := normalizeLineItem(lf)
		if err != nil {
			return nil, shared.MalformedRecordError{Position: raw.Position, Field: "line_items", Reason: err.Error()}
		}
		rec.LineItems = append(rec.LineItems, li)
	}

	return rec, nil
}

func normalizeLineItem(lf shared.LineFields) (NormalizedLineItem, error) {
	name := strings.TrimSpace(lf.Name)
	if name == "" {
		return NormalizedLineItem{}, fmt.Errorf("line item name is required")
	}

	quantity := decimal.NewFromInt(1)
	if strings.TrimSpace(lf.Quantity) != "" {
		q, err := ParseAmount(lf.Quantity)
		if err != nil {
			return NormalizedLineItem{}, fmt.Errorf("line item %q: quantity: %v", name, err)
		}
		quantity = q
	}

	unitPrice := decimal.Zero
	if strings.TrimSpace(lf.UnitPrice) != "" {
		p, err := ParseAmount(lf.UnitPrice)
		if err != nil {
			return NormalizedLineItem{}, fmt.Errorf("line item %q: unit price: %v", name, err)
		}
		unitPrice = p
	}

	var totalPrice decimal.Decimal
	if strings.TrimSpace(lf.TotalPrice) != "" {
		p, err := ParseAmount(lf.TotalPrice)
		if err != nil {
			return NormalizedLineItem{}, fmt.Errorf("line item %q: total price: %v", name, err)
		}
		totalPrice = p
	} else {
		// Some sources carry per-unit prices only
		totalPrice = unitPrice.Mul(quantity)
	}

	return NormalizedLineItem{
		Name:       name,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: totalPrice,
	}, nil
}

// currencySymbols are stripped from monetary strings before parsing
var currencySymbols = []string{"$", "€", "£", "¥", "₩", "₺"}

// ParseAmount coerces a monetary string to a fixed-point decimal. Currency
// symbols and thousands separators are stripped; scientific notation and
// anything that is not a plain decimal number is rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}

	for _, sym := range currencySymbols {
		cleaned = strings.ReplaceAll(cleaned, sym, "")
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	// decimal.NewFromString accepts exponent notation, which we do not
	if strings.ContainsAny(cleaned, "eE") {
		return decimal.Zero, fmt.Errorf("scientific notation is not a valid amount: %q", s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", s)
	}

	return d, nil
}

// parseTimestamp coerces a date/time string to a UTC instant, rejecting
// ambiguous formats rather than guessing.
func parseTimestamp(s string) (time.Time, error) {
	value := strings.TrimSpace(s)
	if value == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if strings.Contains(value, "/") {
		return time.Time{}, fmt.Errorf("ambiguous date format %q", s)
	}

	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseStatus(s string) (shared.TransactionStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return shared.TransactionStatusPending, nil
	case string(shared.TransactionStatusPending):
		return shared.TransactionStatusPending, nil
	case string(shared.TransactionStatusVerified):
		return shared.TransactionStatusVerified, nil
	case string(shared.TransactionStatusArchived):
		return shared.TransactionStatusArchived, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// HashRawRecord computes a stable content hash over a raw record's fields.
// The hash identifies the same source content across re-imports, so it also
// anchors issue targets for records that never reach the store.
func HashRawRecord(source shared.SourceKind, raw shared.RawRecord) string {
	keys := make([]string, 0, len(raw.Fields))
	for k := range raw.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(source))
	for _, k := range keys {
		h.Write([]byte("|" + k + "=" + raw.Fields[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

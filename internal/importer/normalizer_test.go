package importer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfm-ledger/internal/domain/shared"
)

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer("USD")

	t.Run("full record", func(t *testing.T) {
		raw := shared.RawRecord{
			Position: 3,
			Fields: map[string]string{
				FieldRef:        "ORD-1001",
				FieldDate:       "2026-03-14T09:30:00Z",
				FieldAmount:     "$1,234.56",
				FieldCurrency:   "eur",
				FieldDescriptor: "  Amazon order  ",
				FieldShop:       "Amazon",
				FieldCategory:   "Shopping",
				FieldStatus:     "verified",
			},
		}

		rec, err := n.Normalize(raw, nil, shared.SourceAmazon)
		require.NoError(t, err)

		assert.Equal(t, 3, rec.Position)
		assert.Equal(t, shared.SourceAmazon, rec.Source)
		require.NotNil(t, rec.ExternalRef)
		assert.Equal(t, "ORD-1001", *rec.ExternalRef)
		assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), rec.OccurredAt)
		assert.True(t, rec.Amount.Equal(decimal.RequireFromString("1234.56")))
		assert.Equal(t, "EUR", rec.Currency)
		assert.Equal(t, "Amazon order", rec.Descriptor)
		assert.Equal(t, "Amazon", rec.ShopName)
		assert.Equal(t, "Shopping", rec.CategoryName)
		assert.Equal(t, shared.TransactionStatusVerified, rec.Status)
		assert.NotEmpty(t, rec.ContentHash)
	})

	t.Run("defaults apply", func(t *testing.T) {
		raw := shared.RawRecord{
			Position: 0,
			Fields: map[string]string{
				FieldDate:       "2026-03-14",
				FieldAmount:     "12.50",
				FieldDescriptor: "Coffee",
			},
		}

		rec, err := n.Normalize(raw, nil, shared.SourceManual)
		require.NoError(t, err)

		assert.Nil(t, rec.ExternalRef)
		assert.Equal(t, "USD", rec.Currency)
		assert.Equal(t, shared.TransactionStatusPending, rec.Status)
		assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), rec.OccurredAt)
	})

	t.Run("line items", func(t *testing.T) {
		raw := shared.RawRecord{
			Position: 1,
			Fields: map[string]string{
				FieldDate:       "2026-03-14",
				FieldAmount:     "30.00",
				FieldDescriptor: "Grocery run",
			},
		}
		lines := []shared.LineFields{
			{Name: "Milk", Quantity: "2", UnitPrice: "2.50"},
			{Name: "Bread", TotalPrice: "3.00"},
		}

		rec, err := n.Normalize(raw, lines, shared.SourceMobileReceipt)
		require.NoError(t, err)
		require.Len(t, rec.LineItems, 2)

		assert.True(t, rec.LineItems[0].TotalPrice.Equal(decimal.RequireFromString("5.00")), "total derived from unit price and quantity")
		assert.True(t, rec.LineItems[1].Quantity.Equal(decimal.NewFromInt(1)), "quantity defaults to 1")
		assert.True(t, rec.LineItems[1].TotalPrice.Equal(decimal.RequireFromString("3.00")))
	})

	malformed := []struct {
		name   string
		fields map[string]string
		lines  []shared.LineFields
		field  string
	}{
		{
			name:   "missing date",
			fields: map[string]string{FieldAmount: "10", FieldDescriptor: "x"},
			field:  FieldDate,
		},
		{
			name:   "ambiguous slash date",
			fields: map[string]string{FieldDate: "03/04/2026", FieldAmount: "10", FieldDescriptor: "x"},
			field:  FieldDate,
		},
		{
			name:   "missing amount",
			fields: map[string]string{FieldDate: "2026-03-14", FieldDescriptor: "x"},
			field:  FieldAmount,
		},
		{
			name:   "scientific notation amount",
			fields: map[string]string{FieldDate: "2026-03-14", FieldAmount: "1e3", FieldDescriptor: "x"},
			field:  FieldAmount,
		},
		{
			name:   "missing descriptor",
			fields: map[string]string{FieldDate: "2026-03-14", FieldAmount: "10"},
			field:  FieldDescriptor,
		},
		{
			name:   "bad currency",
			fields: map[string]string{FieldDate: "2026-03-14", FieldAmount: "10", FieldDescriptor: "x", FieldCurrency: "DOLLARS"},
			field:  FieldCurrency,
		},
		{
			name:   "unknown status",
			fields: map[string]string{FieldDate: "2026-03-14", FieldAmount: "10", FieldDescriptor: "x", FieldStatus: "MAYBE"},
			field:  FieldStatus,
		},
		{
			name:   "nameless line item",
			fields: map[string]string{FieldDate: "2026-03-14", FieldAmount: "10", FieldDescriptor: "x"},
			lines:  []shared.LineFields{{Name: "  ", TotalPrice: "10"}},
			field:  "line_items",
		},
	}

	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			raw := shared.RawRecord{Position: 7, Fields: tt.fields}
			_, err := n.Normalize(raw, tt.lines, shared.SourceBank)
			require.Error(t, err)

			var recErr shared.MalformedRecordError
			require.True(t, errors.As(err, &recErr))
			assert.Equal(t, 7, recErr.Position)
			assert.Equal(t, tt.field, recErr.Field)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "12.34", want: "12.34"},
		{input: " $1,299.99 ", want: "1299.99"},
		{input: "-45.00", want: "-45"},
		{input: "€7", want: "7"},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "1E2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestHashRawRecord(t *testing.T) {
	a := shared.RawRecord{Position: 0, Fields: map[string]string{"amount": "10", "date": "2026-01-01"}}
	b := shared.RawRecord{Position: 5, Fields: map[string]string{"date": "2026-01-01", "amount": "10"}}

	// Same content hashes identically regardless of position or map order
	assert.Equal(t, HashRawRecord(shared.SourceBank, a), HashRawRecord(shared.SourceBank, b))

	// Source participates in the hash
	assert.NotEqual(t, HashRawRecord(shared.SourceBank, a), HashRawRecord(shared.SourceAmazon, a))

	c := shared.RawRecord{Fields: map[string]string{"date": "2026-01-01", "amount": "11"}}
	assert.NotEqual(t, HashRawRecord(shared.SourceBank, a), HashRawRecord(shared.SourceBank, c))
}

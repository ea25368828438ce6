package masterdata

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines master-data persistence operations. Name lookups are
// case-insensitive exact matches; Get* return nil, nil when nothing matches.
type Repository interface {
	GetCategoryByName(ctx context.Context, name string) (*Category, error)
	CreateCategory(ctx context.Context, category *Category) error
	ListCategories(ctx context.Context) ([]*Category, error)

	GetShopByName(ctx context.Context, name string) (*Shop, error)
	CreateShop(ctx context.Context, shop *Shop) error
	RecordShopVisit(ctx context.Context, shopID uuid.UUID, visitedAt time.Time) error

	WithTx(tx pgx.Tx) Repository
}

// ErrDuplicateName indicates a name uniqueness violation, typically a race
// with a concurrent batch creating the same reference row.
type ErrDuplicateName struct {
	Kind string
	Name string
}

func (e ErrDuplicateName) Error() string {
	return "duplicate " + e.Kind + " name: " + e.Name
}

// Is matches any ErrDuplicateName when the target is the zero value
func (e ErrDuplicateName) Is(target error) bool {
	var t ErrDuplicateName
	if !errors.As(target, &t) {
		return false
	}
	return (t.Kind == "" || t.Kind == e.Kind) && (t.Name == "" || t.Name == e.Name)
}

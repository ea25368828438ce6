// Package masterdata holds the long-lived reference entities looked up or
// lazily created during import: Categories and Shops.
package masterdata

import (
	"time"

	"github.com/google/uuid"
)

// Category is hierarchical reference data; ParentID is nil for roots.
// Categories are created lazily on first sight and never deleted automatically.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"` // "expense" or "income"
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Shop is a vendor reference entity, looked up by case-normalized name
type Shop struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
	VisitCount    int        `json:"visit_count"`
	LastVisitDate *time.Time `json:"last_visit_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewCategory creates an expense category with a fresh id
func NewCategory(name string) *Category {
	return &Category{
		ID:        uuid.New(),
		Name:      name,
		Type:      "expense",
		CreatedAt: time.Now().UTC(),
	}
}

// NewShop creates a shop with a fresh id
func NewShop(name string) *Shop {
	return &Shop{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

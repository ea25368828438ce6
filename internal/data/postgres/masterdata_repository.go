package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pfm-ledger/internal/domain/masterdata"
	"github.com/pfm-ledger/internal/platform/persistence"
)

// MasterDataRepository implements the masterdata.Repository interface for PostgreSQL
type MasterDataRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewMasterDataRepository creates a new PostgreSQL master-data repository
func NewMasterDataRepository(logger *slog.Logger, db *persistence.PostgresDB) masterdata.Repository {
	return &MasterDataRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *MasterDataRepository) WithTx(tx pgx.Tx) masterdata.Repository {
	return &MasterDataRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetCategoryByName looks up a category by case-insensitive exact name match.
// Returns nil, nil when no category matches.
func (r *MasterDataRepository) GetCategoryByName(ctx context.Context, name string) (*masterdata.Category, error) {
	query := `
		SELECT id, name, type, parent_id, created_at
		FROM categories
		WHERE LOWER(name) = LOWER($1)
	`

	var cat masterdata.Category
	err := r.querier.QueryRow(ctx, query, name).Scan(
		&cat.ID,
		&cat.Name,
		&cat.Type,
		&cat.ParentID,
		&cat.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get category by name", "name", name, "error", err)
		return nil, fmt.Errorf("failed to get category by name: %w", err)
	}

	return &cat, nil
}

// CreateCategory stores a new category. A name uniqueness violation, typically
// a race with a concurrent batch, is surfaced as ErrDuplicateName so the
// caller can retry the lookup.
func (r *MasterDataRepository) CreateCategory(ctx context.Context, category *masterdata.Category) error {
	query := `
		INSERT INTO categories (id, name, type, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query,
		category.ID,
		category.Name,
		category.Type,
		category.ParentID,
		category.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return masterdata.ErrDuplicateName{Kind: "category", Name: category.Name}
		}
		r.logger.Error("Failed to create category", "name", category.Name, "error", err)
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// ListCategories returns all categories ordered by name
func (r *MasterDataRepository) ListCategories(ctx context.Context) ([]*masterdata.Category, error) {
	query := `
		SELECT id, name, type, parent_id, created_at
		FROM categories
		ORDER BY name ASC
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list categories", "error", err)
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var cats []*masterdata.Category
	for rows.Next() {
		var cat masterdata.Category
		err := rows.Scan(&cat.ID, &cat.Name, &cat.Type, &cat.ParentID, &cat.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, &cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over categories: %w", err)
	}

	return cats, nil
}

// GetShopByName looks up a shop by case-insensitive exact name match.
// Returns nil, nil when no shop matches.
func (r *MasterDataRepository) GetShopByName(ctx context.Context, name string) (*masterdata.Shop, error) {
	query := `
		SELECT id, name, category_id, visit_count, last_visit_date, created_at
		FROM shops
		WHERE LOWER(name) = LOWER($1)
	`

	var shop masterdata.Shop
	err := r.querier.QueryRow(ctx, query, name).Scan(
		&shop.ID,
		&shop.Name,
		&shop.CategoryID,
		&shop.VisitCount,
		&shop.LastVisitDate,
		&shop.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get shop by name", "name", name, "error", err)
		return nil, fmt.Errorf("failed to get shop by name: %w", err)
	}

	return &shop, nil
}

// CreateShop stores a new shop, surfacing uniqueness races as ErrDuplicateName
func (r *MasterDataRepository) CreateShop(ctx context.Context, shop *masterdata.Shop) error {
	query := `
		INSERT INTO shops (id, name, category_id, visit_count, last_visit_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		shop.ID,
		shop.Name,
		shop.CategoryID,
		shop.VisitCount,
		shop.LastVisitDate,
		shop.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return masterdata.ErrDuplicateName{Kind: "shop", Name: shop.Name}
		}
		r.logger.Error("Failed to create shop", "name", shop.Name, "error", err)
		return fmt.Errorf("failed to create shop: %w", err)
	}

	return nil
}

// RecordShopVisit bumps the visit counter and stamps the visit date for a shop
func (r *MasterDataRepository) RecordShopVisit(ctx context.Context, shopID uuid.UUID, visitedAt time.Time) error {
	query := `
		UPDATE shops
		SET visit_count = visit_count + 1, last_visit_date = $1
		WHERE id = $2
	`

	_, err := r.querier.Exec(ctx, query, visitedAt.UTC(), shopID)
	if err != nil {
		r.logger.Error("Failed to record shop visit", "id", shopID.String(), "error", err)
		return fmt.Errorf("failed to record shop visit: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

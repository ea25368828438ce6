package importer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pfm-ledger/internal/domain/masterdata"
	"github.com/pfm-ledger/internal/domain/shared"
)

// MasterDataResolver performs get-or-create resolution of categories and
// shops. Resolved rows are cached for the lifetime of the resolver, which is
// one batch; a new resolver is built per batch so concurrently created rows
// are picked up on the next import.
type MasterDataResolver struct {
	repo   masterdata.Repository
	rules  *RuleTable
	logger *slog.Logger

	categories map[string]*masterdata.Category
	shops      map[string]*masterdata.Shop
}

// NewMasterDataResolver creates a batch-scoped resolver
func NewMasterDataResolver(repo masterdata.Repository, rules *RuleTable, logger *slog.Logger) *MasterDataResolver {
	return &MasterDataResolver{
		repo:       repo,
		rules:      rules,
		logger:     logger,
		categories: make(map[string]*masterdata.Category),
		shops:      make(map[string]*masterdata.Shop),
	}
}

// ResolveCategory returns the category with the given name, creating it when
// absent. Returns nil, nil for an empty name.
func (r *MasterDataResolver) ResolveCategory(ctx context.Context, name string) (*masterdata.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	key := strings.ToLower(name)
	if cached, ok := r.categories[key]; ok {
		return cached, nil
	}

	category, err := r.repo.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, shared.MasterDataResolutionError{Kind: "category", Name: name, Err: err}
	}
	if category == nil {
		category = masterdata.NewCategory(name)
		if err := r.repo.CreateCategory(ctx, category); err != nil {
			// Lost a create race; the row exists now
			if errors.Is(err, masterdata.ErrDuplicateName{}) {
				category, err = r.repo.GetCategoryByName(ctx, name)
			}
			if err != nil || category == nil {
				return nil, shared.MasterDataResolutionError{Kind: "category", Name: name, Err: err}
			}
		} else {
			r.logger.Debug("Created category", "name", name, "category_id", category.ID)
		}
	}

	r.categories[key] = category
	return category, nil
}

// ResolveShop returns the shop with the given name, creating it when absent.
// Returns nil, nil for an empty name. Visit statistics are not touched here;
// they belong to the ledger writer, which only counts records that land.
func (r *MasterDataResolver) ResolveShop(ctx context.Context, name string) (*masterdata.Shop, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	key := strings.ToLower(name)
	shop, ok := r.shops[key]
	if !ok {
		var err error
		shop, err = r.repo.GetShopByName(ctx, name)
		if err != nil {
			return nil, shared.MasterDataResolutionError{Kind: "shop", Name: name, Err: err}
		}
		if shop == nil {
			shop = masterdata.NewShop(name)
			if err := r.repo.CreateShop(ctx, shop); err != nil {
				if errors.Is(err, masterdata.ErrDuplicateName{}) {
					shop, err = r.repo.GetShopByName(ctx, name)
				}
				if err != nil || shop == nil {
					return nil, shared.MasterDataResolutionError{Kind: "shop", Name: name, Err: err}
				}
			} else {
				r.logger.Debug("Created shop", "name", name, "shop_id", shop.ID)
			}
		}
		r.shops[key] = shop
	}

	return shop, nil
}

// ClassifyLineItem resolves a category for a line item by keyword rules.
// Returns nil, nil when no rule matches; unmatched items stay uncategorized.
func (r *MasterDataResolver) ClassifyLineItem(ctx context.Context, itemName string) (*masterdata.Category, error) {
	category := r.rules.Classify(itemName)
	if category == "" {
		return nil, nil
	}
	return r.ResolveCategory(ctx, category)
}

// WithTx returns a resolver whose repository operations run inside tx. The
// cache is shared with the parent so rows resolved under an earlier savepoint
// remain visible.
func (r *MasterDataResolver) WithTx(repo masterdata.Repository) *MasterDataResolver {
	return &MasterDataResolver{
		repo:       repo,
		rules:      r.rules,
		logger:     r.logger,
		categories: r.categories,
		shops:      r.shops,
	}
}

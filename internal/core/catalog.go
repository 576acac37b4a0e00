package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ProductUpdate carries the fields a catalog sync may rewrite. Nil
// fields are left untouched in the backend.
type ProductUpdate struct {
	Name  *string
	Price *decimal.Decimal
}

// Empty reports whether the update would write nothing.
func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Price == nil
}

// CatalogSync keeps the commerce backend's product for a premium
// content item in step with the content store. The whole operation is
// an idempotent upsert: lookup-before-create on the deterministic SKU,
// then a diff-only update. Safe to retry and to run concurrently; the
// backend's SKU uniqueness resolves races.
type CatalogSync struct {
	content  ContentStore
	commerce CommerceBackend
	log      zerolog.Logger
}

// NewCatalogSync creates a catalog sync service.
func NewCatalogSync(content ContentStore, commerce CommerceBackend, log zerolog.Logger) *CatalogSync {
	return &CatalogSync{
		content:  content,
		commerce: commerce,
		log:      log.With().Str("component", "catalog_sync").Logger(),
	}
}

// SyncContentItem upserts the commerce product for one content item.
// Items that are not premium-priced are skipped; any existing product is
// deliberately left intact so purchase history survives demotions.
func (s *CatalogSync) SyncContentItem(ctx context.Context, contentItemID string) (SyncResult, error) {
	item, err := s.content.GetContentItem(ctx, contentItemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SyncResult{}, &ValidationError{Field: "contentItemId", Reason: "no such content item: " + contentItemID}
		}
		return SyncResult{}, err
	}

	if !item.Sellable() {
		s.log.Debug().Str("content_item", item.ID).Str("access_level", item.AccessLevel).
			Msg("not premium-priced, skipping")
		return SyncResult{Outcome: SyncSkipped}, nil
	}

	sku := DeriveSKU(item.ID)
	existing, err := s.commerce.FindProductBySKU(ctx, sku)
	switch {
	case err == nil:
		return s.update(ctx, item, existing)
	case errors.Is(err, ErrNotFound):
		return s.create(ctx, item, sku)
	default:
		return SyncResult{}, err
	}
}

func (s *CatalogSync) create(ctx context.Context, item *ContentItem, sku string) (SyncResult, error) {
	_, err := s.commerce.CreateProduct(ctx, &Product{
		SKU:    sku,
		Name:   item.Title,
		Price:  item.Price,
		Status: "publish",
	})
	if err != nil {
		// A concurrent sync may have won the SKU race; a product under
		// our deterministic SKU means the upsert already happened.
		if raced, lookupErr := s.commerce.FindProductBySKU(ctx, sku); lookupErr == nil {
			s.log.Info().Str("sku", sku).Msg("lost create race, product already exists")
			return SyncResult{Outcome: SyncCreated, Product: raced}, nil
		}
		return SyncResult{}, err
	}

	// Read back by SKU to confirm the create landed and to pick up the
	// backend-assigned ID, even if a concurrent sync won the race.
	created, err := s.commerce.FindProductBySKU(ctx, sku)
	if err != nil {
		return SyncResult{}, err
	}

	s.log.Info().Str("content_item", item.ID).Str("sku", sku).
		Str("product_id", created.ExternalID).Msg("product created")
	return SyncResult{Outcome: SyncCreated, Product: created}, nil
}

func (s *CatalogSync) update(ctx context.Context, item *ContentItem, existing *Product) (SyncResult, error) {
	var upd ProductUpdate
	if existing.Name != item.Title {
		name := item.Title
		upd.Name = &name
	}
	if !existing.Price.Equal(item.Price) {
		price := item.Price
		upd.Price = &price
	}

	if upd.Empty() {
		return SyncResult{Outcome: SyncUnchanged, Product: existing}, nil
	}

	updated, err := s.commerce.UpdateProduct(ctx, existing.ExternalID, upd)
	if err != nil {
		return SyncResult{}, err
	}

	s.log.Info().Str("content_item", item.ID).Str("sku", existing.SKU).
		Bool("name_changed", upd.Name != nil).Bool("price_changed", upd.Price != nil).
		Msg("product updated")
	return SyncResult{Outcome: SyncUpdated, Product: updated}, nil
}

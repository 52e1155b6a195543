package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/curryleaf/orders/internal/domain/models"
)

var ErrOfferNotFound = errors.New("offer not found")

// OfferStorage reads persisted discount codes.
type OfferStorage interface {
	GetOfferByCode(ctx context.Context, code string) (*models.Offer, error)
}

type offerRepository struct {
	db *sql.DB
}

func NewOfferRepository(db *sql.DB) *offerRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) GetOfferByCode(ctx context.Context, code string) (*models.Offer, error) {
	query := `SELECT id, code, discount_type, discount_value, max_discount, min_order_value,
		first_order_only, max_uses_per_user, valid_from, valid_to, category_ids, item_ids, active
		FROM offers WHERE code = $1`
	offer := &models.Offer{}
	row := r.db.QueryRowContext(ctx, query, code)
	err := row.Scan(
		&offer.ID, &offer.Code, &offer.DiscountType, &offer.DiscountValue,
		&offer.MaxDiscount, &offer.MinOrderValue, &offer.FirstOrderOnly,
		&offer.MaxUsesPerUser, &offer.ValidFrom, &offer.ValidTo,
		pq.Array(&offer.CategoryIDs), pq.Array(&offer.ItemIDs), &offer.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return offer, nil
}

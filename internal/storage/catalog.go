package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/curryleaf/orders/internal/domain/models"
)

var (
	ErrItemSizeNotFound = errors.New("item size not found")
	ErrAddOnNotFound    = errors.New("add-on not found")
)

// CatalogStorage is the authoritative source of item prices, availability
// and category GST rates. Checkout always re-reads it; client-submitted
// prices are never trusted.
type CatalogStorage interface {
	GetItemSizeDetail(ctx context.Context, sizeID int64) (*models.ItemSizeDetail, error)
	GetAddOnsByIDs(ctx context.Context, itemID int64, addOnIDs []int64) ([]*models.AddOn, error)
}

type catalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

// GetItemSizeDetail joins size, item and category so the order flow prices a
// line with a single read.
func (r *catalogRepository) GetItemSizeDetail(ctx context.Context, sizeID int64) (*models.ItemSizeDetail, error) {
	query := `
		SELECT s.id, i.id, c.id, i.name, s.name, s.price, c.gst_rate, i.available, s.available
		FROM item_sizes s
		JOIN menu_items i ON s.item_id = i.id
		JOIN categories c ON i.category_id = c.id
		WHERE s.id = $1`
	d := &models.ItemSizeDetail{}
	row := r.db.QueryRowContext(ctx, query, sizeID)
	err := row.Scan(&d.SizeID, &d.ItemID, &d.CategoryID, &d.ItemName, &d.SizeName,
		&d.Price, &d.GSTRate, &d.ItemAvailable, &d.SizeAvailable)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemSizeNotFound
		}
		return nil, fmt.Errorf("failed to get item size: %w", err)
	}
	return d, nil
}

// GetAddOnsByIDs returns the requested add-ons of the item. A missing id is
// the caller's signal that the cart references a stale add-on.
func (r *catalogRepository) GetAddOnsByIDs(ctx context.Context, itemID int64, addOnIDs []int64) ([]*models.AddOn, error) {
	if len(addOnIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, item_id, name, price, available
		FROM add_ons WHERE item_id = $1 AND id = ANY($2) ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, itemID, pq.Array(addOnIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query add-ons: %w", err)
	}
	defer rows.Close()

	var addOns []*models.AddOn
	for rows.Next() {
		a := &models.AddOn{}
		if err := rows.Scan(&a.ID, &a.ItemID, &a.Name, &a.Price, &a.Available); err != nil {
			return nil, fmt.Errorf("failed to scan add-on: %w", err)
		}
		addOns = append(addOns, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return addOns, nil
}

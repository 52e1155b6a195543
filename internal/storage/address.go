package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/curryleaf/orders/internal/domain/models"
)

var ErrAddressNotFound = errors.New("address not found")

// AddressStorage reads delivery addresses scoped to their owner.
type AddressStorage interface {
	GetAddressForUser(ctx context.Context, id, userID int64) (*models.Address, error)
}

type addressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) *addressRepository {
	return &addressRepository{db: db}
}

func (r *addressRepository) GetAddressForUser(ctx context.Context, id, userID int64) (*models.Address, error) {
	query := `SELECT id, user_id, label, line1, line2, city, pincode
		FROM addresses WHERE id = $1 AND user_id = $2`
	a := &models.Address{}
	row := r.db.QueryRowContext(ctx, query, id, userID)
	if err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.Line1, &a.Line2, &a.City, &a.Pincode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return a, nil
}

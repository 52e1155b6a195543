package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/curryleaf/orders/internal/domain/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserStorage reads accounts. Customer provisioning happens in the OTP
// service; this module only needs lookups.
type UserStorage interface {
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	user := &models.User{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, phone, name, role, pass_hash FROM users WHERE phone = $1", phone)
	if err := row.Scan(&user.ID, &user.Phone, &user.Name, &user.Role, &user.PassHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, phone, name, role, pass_hash FROM users WHERE id = $1", id)
	if err := row.Scan(&user.ID, &user.Phone, &user.Name, &user.Role, &user.PassHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

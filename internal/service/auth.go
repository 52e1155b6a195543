package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/curryleaf/orders/internal/auth"
	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/storage"
)

// AuthService issues staff tokens. Customers authenticate through the OTP
// service, which mints tokens with the same secret and a customer role.
type AuthService interface {
	StaffLogin(ctx context.Context, phone, password string) (string, error)
}

type authService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	tokenTTL time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, tokenTTL time.Duration) AuthService {
	return &authService{
		log:      log,
		userRepo: userRepo,
		tokenTTL: tokenTTL,
	}
}

// StaffLogin verifies staff credentials and returns a signed JWT carrying
// the staff role. Every failure collapses into ErrInvalidCredentials so the
// response does not reveal which check failed.
func (a *authService) StaffLogin(ctx context.Context, phone, password string) (string, error) {
	const op = "service.AuthService.StaffLogin"
	logger := a.log.With(slog.String("op", op), slog.String("phone", phone))
	logger.Info("checking staff credentials")

	user, err := a.userRepo.GetUserByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("staff user not found")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	if user.Role != models.RoleStaff {
		logger.Warn("user is not staff")
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := auth.NewToken(user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("staff logged in", slog.Int64("userID", user.ID))
	return token, nil
}

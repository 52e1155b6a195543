package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/notify"
	"github.com/curryleaf/orders/internal/storage"
)

// StatusService applies staff-driven forward transitions. Cancellation has
// its own service because of the refund hand-off.
type StatusService interface {
	UpdateStatus(ctx context.Context, orderID int64, target models.OrderStatus) (*models.Order, error)
}

type statusService struct {
	log       *slog.Logger
	db        *sql.DB
	orderRepo storage.OrderStorage
	notifier  notify.Notifier
}

func NewStatusService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, notifier notify.Notifier) StatusService {
	return &statusService{log: log, db: db, orderRepo: orderRepo, notifier: notifier}
}

// UpdateStatus moves the order forward under the row lock; an illegal
// target is rejected with no state change.
func (s *statusService) UpdateStatus(ctx context.Context, orderID int64, target models.OrderStatus) (*models.Order, error) {
	const op = "service.StatusService.UpdateStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.String("target", string(target)))

	if !target.Valid() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidTransition)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		logger.Error("failed to lock order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	next, err := models.Transition(order.Status, target)
	if err != nil {
		logger.Warn("transition rejected", slog.String("from", string(order.Status)))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.orderRepo.UpdateStatusTx(ctx, tx, orderID, next); err != nil {
		logger.Error("failed to update status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	order.Status = next

	if event, ok := eventForStatus(next); ok {
		if err := s.notifier.Publish(ctx, notify.NewEvent(event, orderID, order.UserID)); err != nil {
			logger.Warn("failed to publish status event", slog.Any("error", err))
		}
	}

	logger.Info("order status updated")
	return order, nil
}

func eventForStatus(status models.OrderStatus) (notify.EventType, bool) {
	switch status {
	case models.StatusConfirmed:
		return notify.EventOrderConfirmed, true
	case models.StatusPreparing:
		return notify.EventOrderPreparing, true
	case models.StatusReady:
		return notify.EventOrderReady, true
	case models.StatusOutForDelivery:
		return notify.EventOrderOutForDelivery, true
	case models.StatusCompleted:
		return notify.EventOrderCompleted, true
	case models.StatusCancelled:
		return notify.EventOrderCancelled, true
	default:
		return "", false
	}
}

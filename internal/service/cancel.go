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

// CancellationService cancels orders within state-machine constraints and
// hands captured payments to the refund processor.
type CancellationService interface {
	Cancel(ctx context.Context, orderID, actorUserID int64, actor models.Actor) (*models.Order, error)
}

type cancellationService struct {
	log       *slog.Logger
	db        *sql.DB
	orderRepo storage.OrderStorage
	refunds   RefundService
	notifier  notify.Notifier
}

func NewCancellationService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, refunds RefundService, notifier notify.Notifier) CancellationService {
	return &cancellationService{log: log, db: db, orderRepo: orderRepo, refunds: refunds, notifier: notifier}
}

// Cancel moves the order to cancelled under the row lock. Customers may
// cancel only before payment; staff may cancel any non-terminal order. If
// payment was captured, the refund is issued after the cancellation commits:
// the order is cancelled either way, payment_status flips to refunded only
// once the gateway confirms.
func (s *cancellationService) Cancel(ctx context.Context, orderID, actorUserID int64, actor models.Actor) (*models.Order, error) {
	const op = "service.CancellationService.Cancel"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.String("actor", string(actor)))
	logger.Info("cancelling order")

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
	if actor == models.ActorCustomer && order.UserID != actorUserID {
		return nil, fmt.Errorf("%s: %w", op, ErrNotOrderOwner)
	}
	if !models.CanCancel(order.Status, actor) {
		logger.Warn("cancellation rejected", slog.String("status", string(order.Status)))
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidTransition)
	}

	if err := s.orderRepo.UpdateStatusTx(ctx, tx, orderID, models.StatusCancelled); err != nil {
		logger.Error("failed to update status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	order.Status = models.StatusCancelled

	if err := s.notifier.Publish(ctx, notify.NewEvent(notify.EventOrderCancelled, orderID, order.UserID)); err != nil {
		logger.Warn("failed to publish cancelled event", slog.Any("error", err))
	}

	// Refund-eligible: payment was captured before the cancellation.
	if order.PaymentStatus == models.PaymentCompleted {
		refundable := order.TotalPrice
		if _, err := s.refunds.Refund(ctx, orderID, refundable, "order cancelled"); err != nil {
			// The order stays cancelled with payment_status=completed;
			// staff retries through the refund endpoint.
			logger.Error("refund after cancellation failed", slog.Any("error", err))
		} else {
			order.PaymentStatus = models.PaymentRefunded
		}
	}

	logger.Info("order cancelled")
	return order, nil
}

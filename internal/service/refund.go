package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/gateway"
	"github.com/curryleaf/orders/internal/notify"
	"github.com/curryleaf/orders/internal/storage"
)

// RefundService returns captured funds through the gateway. Partial refunds
// are allowed; cumulative refunds never exceed the captured amount.
type RefundService interface {
	Refund(ctx context.Context, orderID int64, amount decimal.Decimal, reason string) (*models.Transaction, error)
}

type refundService struct {
	log       *slog.Logger
	db        *sql.DB
	orderRepo storage.OrderStorage
	txRepo    storage.TransactionStorage
	gw        gateway.Client
	notifier  notify.Notifier
}

func NewRefundService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, txRepo storage.TransactionStorage, gw gateway.Client, notifier notify.Notifier) RefundService {
	return &refundService{log: log, db: db, orderRepo: orderRepo, txRepo: txRepo, gw: gw, notifier: notifier}
}

func (s *refundService) Refund(ctx context.Context, orderID int64, amount decimal.Decimal, reason string) (*models.Transaction, error) {
	const op = "service.RefundService.Refund"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.String("amount", amount.String()))
	logger.Info("processing refund", slog.String("reason", reason))

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRefundAmount)
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

	transaction, err := s.txRepo.GetRefundableByOrderIDTx(ctx, tx, orderID)
	if err != nil {
		logger.Warn("no refundable transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, ErrNotRefundable)
	}
	if transaction.GatewayPaymentID == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotRefundable)
	}

	remaining := transaction.Amount.Sub(transaction.RefundedAmount)
	if amount.GreaterThan(remaining) {
		logger.Warn("refund rejected",
			slog.String("remaining", remaining.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrRefundExceedsCapture)
	}

	if _, err := s.gw.Refund(ctx, *transaction.GatewayPaymentID, minorUnits(amount), map[string]string{"reason": reason}); err != nil {
		logger.Error("gateway refund failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refunded := transaction.RefundedAmount.Add(amount)
	status := transaction.Status
	if refunded.Equal(transaction.Amount) {
		status = models.TxRefunded
	}
	if err := s.txRepo.UpdateRefundTx(ctx, tx, transaction.ID, refunded, status); err != nil {
		logger.Error("failed to update transaction refund", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.orderRepo.UpdatePaymentStateTx(ctx, tx, orderID, models.PaymentRefunded, nil); err != nil {
		logger.Error("failed to update payment state", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	transaction.RefundedAmount = refunded
	transaction.Status = status

	event := notify.NewEvent(notify.EventRefundProcessed, orderID, order.UserID)
	event.Amount = &amount
	event.Reason = reason
	if err := s.notifier.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish refund event", slog.Any("error", err))
	}

	logger.Info("refund processed", slog.String("refunded", refunded.String()))
	return transaction, nil
}

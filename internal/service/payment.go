package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/gateway"
	"github.com/curryleaf/orders/internal/notify"
	"github.com/curryleaf/orders/internal/storage"
)

// InitiateResult is what the client SDK needs to open the gateway checkout.
type InitiateResult struct {
	OrderID        int64
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	KeyID          string
}

// PaymentStatusResult is the polling fallback for unreliable callbacks.
type PaymentStatusResult struct {
	OrderStatus       models.OrderStatus
	PaymentStatus     models.PaymentStatus
	TransactionStatus models.TxStatus
	GatewayOrderID    string
}

// PaymentService opens payment intents idempotently and reconciles verified
// gateway callbacks with order state.
type PaymentService interface {
	Initiate(ctx context.Context, userID, orderID int64) (*InitiateResult, error)
	Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*models.Order, error)
	CheckStatus(ctx context.Context, userID, orderID int64) (*PaymentStatusResult, error)
}

type paymentService struct {
	log           *slog.Logger
	db            *sql.DB
	orderRepo     storage.OrderStorage
	txRepo        storage.TransactionStorage
	gw            gateway.Client
	notifier      notify.Notifier
	gatewayName   string
	keyID         string
	webhookSecret string
	currency      string
}

func NewPaymentService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, txRepo storage.TransactionStorage, gw gateway.Client, notifier notify.Notifier, gatewayName, keyID, webhookSecret, currency string) PaymentService {
	return &paymentService{
		log:           log,
		db:            db,
		orderRepo:     orderRepo,
		txRepo:        txRepo,
		gw:            gw,
		notifier:      notifier,
		gatewayName:   gatewayName,
		keyID:         keyID,
		webhookSecret: webhookSecret,
		currency:      currency,
	}
}

// minorUnits converts a decimal rupee amount to paise for the gateway.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Initiate opens a payment intent for the order. If a live (created or
// authorized) transaction already exists it is reused, so a client retry
// after a timeout can never produce a second charge. The order row lock
// serializes concurrent initiates: the lock here waits rather than failing
// fast, so a second call arriving mid-flight blocks until the first commits
// and then returns the same intent.
func (s *paymentService) Initiate(ctx context.Context, userID, orderID int64) (*InitiateResult, error) {
	const op = "service.PaymentService.Initiate"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID))
	logger.Info("initiating payment")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	// Rollback after a successful commit is a no-op (sql.ErrTxDone).
	defer func() { _ = tx.Rollback() }()

	order, err := s.orderRepo.LockOrderByIDWaitTx(ctx, tx, orderID)
	if err != nil {
		logger.Error("failed to lock order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%s: %w", op, ErrNotOrderOwner)
	}
	if order.Status != models.StatusPendingPayment {
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotPayable)
	}

	amountMinor := minorUnits(order.TotalPrice)

	live, err := s.txRepo.GetLiveByOrderIDTx(ctx, tx, orderID)
	if err == nil {
		// Idempotent reuse of the in-flight attempt.
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
		}
		logger.Info("reusing live transaction", slog.String("gatewayOrderID", live.GatewayOrderID))
		return &InitiateResult{
			OrderID:        orderID,
			GatewayOrderID: live.GatewayOrderID,
			AmountMinor:    minorUnits(live.Amount),
			Currency:       live.Currency,
			KeyID:          s.keyID,
		}, nil
	}
	if !errors.Is(err, storage.ErrTransactionNotFound) {
		logger.Error("failed to look up live transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	receipt := fmt.Sprintf("order_%d_%s", orderID, uuid.NewString()[:8])
	intent, gwErr := s.gw.CreateIntent(ctx, amountMinor, s.currency, receipt)
	if gwErr != nil {
		// Release the lock before recording the failed attempt.
		_ = tx.Rollback()
		s.recordFailedAttempt(ctx, orderID, receipt, order.TotalPrice, gwErr)
		logger.Error("gateway intent creation failed", slog.Any("error", gwErr))
		if pubErr := s.notifier.Publish(ctx, notify.NewEvent(notify.EventPaymentFailed, orderID, order.UserID)); pubErr != nil {
			logger.Warn("failed to publish payment failed event", slog.Any("error", pubErr))
		}
		return nil, fmt.Errorf("%s: %w", op, gwErr)
	}

	transaction := &models.Transaction{
		OrderID:        &orderID,
		Gateway:        s.gatewayName,
		GatewayOrderID: intent.GatewayOrderID,
		Amount:         order.TotalPrice,
		RefundedAmount: decimal.Zero,
		Currency:       intent.Currency,
		Status:         models.TxCreated,
	}
	if _, err := s.txRepo.CreateTx(ctx, tx, transaction); err != nil {
		logger.Error("failed to create transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.orderRepo.SetGatewayOrderIDTx(ctx, tx, orderID, intent.GatewayOrderID); err != nil {
		logger.Error("failed to store gateway order id", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("payment intent created", slog.String("gatewayOrderID", intent.GatewayOrderID))
	return &InitiateResult{
		OrderID:        orderID,
		GatewayOrderID: intent.GatewayOrderID,
		AmountMinor:    amountMinor,
		Currency:       intent.Currency,
		KeyID:          s.keyID,
	}, nil
}

// recordFailedAttempt appends a failed transaction row so the attempt stays
// auditable. The order itself is untouched and remains payable.
func (s *paymentService) recordFailedAttempt(ctx context.Context, orderID int64, receipt string, amount decimal.Decimal, gwErr error) {
	const op = "service.PaymentService.recordFailedAttempt"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.log.Error("failed to begin transaction", slog.String("op", op), slog.Any("error", err))
		return
	}
	defer func() { _ = tx.Rollback() }()

	errDesc := gwErr.Error()
	failed := &models.Transaction{
		OrderID:        &orderID,
		Gateway:        s.gatewayName,
		GatewayOrderID: receipt, // no gateway id was issued; keep the receipt for uniqueness
		Amount:         amount,
		RefundedAmount: decimal.Zero,
		Currency:       s.currency,
		Status:         models.TxFailed,
	}
	var gwe *gateway.Error
	if errors.As(gwErr, &gwe) && gwe.Code != "" {
		failed.ErrorCode = &gwe.Code
	}
	failed.ErrorDescription = &errDesc

	if _, err := s.txRepo.CreateTx(ctx, tx, failed); err != nil {
		s.log.Error("failed to record failed attempt", slog.String("op", op), slog.Any("error", err))
		return
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit failed attempt", slog.String("op", op), slog.Any("error", err))
	}
}

// Verify authenticates a gateway callback and applies the capture. The
// signature check is pure; the state change happens under the order row
// lock so a replayed callback is a no-op and a callback racing a cancel
// resolves to exactly one winner.
func (s *paymentService) Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*models.Order, error) {
	const op = "service.PaymentService.Verify"
	logger := s.log.With(slog.String("op", op), slog.String("gatewayOrderID", gatewayOrderID))

	if err := gateway.VerifySignature(s.webhookSecret, gatewayOrderID, gatewayPaymentID, signature); err != nil {
		// Possible tampering attempt; the order must never be marked paid.
		logger.Warn("signature verification failed",
			slog.String("gatewayPaymentID", gatewayPaymentID))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	known, err := s.txRepo.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		logger.Error("unknown gateway order id", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if known.OrderID == nil {
		return nil, fmt.Errorf("%s: transaction has no order: %w", op, storage.ErrOrderNotFound)
	}
	orderID := *known.OrderID

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

	// Re-read under the lock; the unlocked read above only resolved the id.
	transaction, err := s.txRepo.GetByGatewayOrderIDTx(ctx, tx, gatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if transaction.Status == models.TxCaptured {
		// Callback replay: identical end state, no new rows.
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
		}
		logger.Info("callback replay ignored")
		return order, nil
	}
	if !transaction.Status.Live() {
		logger.Warn("transaction not capturable", slog.String("status", string(transaction.Status)))
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidTransition)
	}

	nextStatus, err := models.Transition(order.Status, models.StatusPending)
	if err != nil {
		// The order moved on (e.g. cancelled) before the callback landed.
		logger.Warn("order cannot accept capture", slog.String("status", string(order.Status)))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.txRepo.MarkCapturedTx(ctx, tx, transaction.ID, gatewayPaymentID, signature); err != nil {
		logger.Error("failed to mark transaction captured", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.orderRepo.UpdatePaymentStateTx(ctx, tx, orderID, models.PaymentCompleted, &gatewayPaymentID); err != nil {
		logger.Error("failed to update payment state", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.orderRepo.UpdateStatusTx(ctx, tx, orderID, nextStatus); err != nil {
		logger.Error("failed to advance order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	order.Status = nextStatus
	order.PaymentStatus = models.PaymentCompleted
	order.GatewayPaymentID = &gatewayPaymentID

	if err := s.notifier.Publish(ctx, notify.NewEvent(notify.EventPaymentCompleted, orderID, order.UserID)); err != nil {
		logger.Warn("failed to publish payment completed event", slog.Any("error", err))
	}

	logger.Info("payment captured", slog.Int64("orderID", orderID))
	return order, nil
}

// CheckStatus reports the reconciled payment state for client polling.
func (s *paymentService) CheckStatus(ctx context.Context, userID, orderID int64) (*PaymentStatusResult, error) {
	const op = "service.PaymentService.CheckStatus"

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%s: %w", op, ErrNotOrderOwner)
	}

	result := &PaymentStatusResult{
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
	}
	transaction, err := s.txRepo.GetLatestByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrTransactionNotFound) {
			return result, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result.TransactionStatus = transaction.Status
	result.GatewayOrderID = transaction.GatewayOrderID
	return result, nil
}

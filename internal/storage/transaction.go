package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/curryleaf/orders/internal/domain/models"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionStorage persists payment attempts. Rows are append-mostly: a
// failed attempt stays failed forever, retries insert new rows.
type TransactionStorage interface {
	CreateTx(ctx context.Context, tx *sql.Tx, t *models.Transaction) (int64, error)
	GetLiveByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Transaction, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Transaction, error)
	GetByGatewayOrderIDTx(ctx context.Context, tx *sql.Tx, gatewayOrderID string) (*models.Transaction, error)
	GetLatestByOrderID(ctx context.Context, orderID int64) (*models.Transaction, error)
	GetRefundableByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Transaction, error)
	MarkCapturedTx(ctx context.Context, tx *sql.Tx, id int64, gatewayPaymentID, signature string) error
	UpdateRefundTx(ctx context.Context, tx *sql.Tx, id int64, refunded decimal.Decimal, status models.TxStatus) error
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *transactionRepository {
	return &transactionRepository{db: db}
}

const txColumns = `id, order_id, gateway, gateway_order_id, gateway_payment_id, signature,
	amount, refunded_amount, currency, status, method, error_code, error_description,
	notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	err := row.Scan(
		&t.ID, &t.OrderID, &t.Gateway, &t.GatewayOrderID, &t.GatewayPaymentID, &t.Signature,
		&t.Amount, &t.RefundedAmount, &t.Currency, &t.Status, &t.Method, &t.ErrorCode,
		&t.ErrorDescription, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *transactionRepository) CreateTx(ctx context.Context, tx *sql.Tx, t *models.Transaction) (int64, error) {
	query := `INSERT INTO transactions
		(order_id, gateway, gateway_order_id, gateway_payment_id, signature, amount,
		 refunded_amount, currency, status, method, error_code, error_description, notes,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id`
	var id int64
	err := tx.QueryRowContext(ctx, query,
		t.OrderID, t.Gateway, t.GatewayOrderID, t.GatewayPaymentID, t.Signature,
		t.Amount, t.RefundedAmount, t.Currency, t.Status, t.Method,
		t.ErrorCode, t.ErrorDescription, t.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create transaction: %w", err)
	}
	return id, nil
}

// GetLiveByOrderIDTx returns the newest created/authorized attempt for the
// order. This is what the idempotent initiate path reuses.
func (r *transactionRepository) GetLiveByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE order_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`
	row := tx.QueryRowContext(ctx, query, orderID, models.TxCreated, models.TxAuthorized)
	return scanTransaction(row)
}

func (r *transactionRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE gateway_order_id = $1`, gatewayOrderID)
	return scanTransaction(row)
}

func (r *transactionRepository) GetByGatewayOrderIDTx(ctx context.Context, tx *sql.Tx, gatewayOrderID string) (*models.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE gateway_order_id = $1`, gatewayOrderID)
	return scanTransaction(row)
}

func (r *transactionRepository) GetLatestByOrderID(ctx context.Context, orderID int64) (*models.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, orderID)
	return scanTransaction(row)
}

func (r *transactionRepository) GetRefundableByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE order_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`
	row := tx.QueryRowContext(ctx, query, orderID, models.TxCaptured, models.TxAuthorized)
	return scanTransaction(row)
}

func (r *transactionRepository) MarkCapturedTx(ctx context.Context, tx *sql.Tx, id int64, gatewayPaymentID, signature string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, gateway_payment_id = $2, signature = $3, updated_at = NOW()
		 WHERE id = $4 AND status IN ($5, $6)`,
		models.TxCaptured, gatewayPaymentID, signature, id, models.TxCreated, models.TxAuthorized)
	if err != nil {
		return fmt.Errorf("failed to mark transaction captured: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *transactionRepository) UpdateRefundTx(ctx context.Context, tx *sql.Tx, id int64, refunded decimal.Decimal, status models.TxStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET refunded_amount = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		refunded, status, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction refund: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/curryleaf/orders/internal/domain/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderLocked means another request holds the row lock right now;
	// the caller should surface a retryable conflict.
	ErrOrderLocked = errors.New("order is locked by a concurrent request")
)

// OrderStorage persists orders and their lines. Methods with the Tx suffix
// participate in a caller-owned transaction; the order row lock acquired via
// LockOrderByIDTx is the serialization point for every state change.
type OrderStorage interface {
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error)
	CreateOrderItemsTx(ctx context.Context, tx *sql.Tx, orderID int64, items []*models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]*models.OrderItem, error)
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	LockOrderByIDWaitTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus) error
	UpdatePaymentStateTx(ctx context.Context, tx *sql.Tx, id int64, ps models.PaymentStatus, gatewayPaymentID *string) error
	SetGatewayOrderIDTx(ctx context.Context, tx *sql.Tx, id int64, gatewayOrderID string) error
	CountNonCancelledByUser(ctx context.Context, userID int64) (int, error)
	CountOfferRedemptions(ctx context.Context, offerID, userID int64) (int, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *orderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, address_id, offer_id, status, payment_status, payment_method,
	gateway_order_id, gateway_payment_id, subtotal, gst_amount, discount_amount,
	delivery_charge, total_price, special_instructions, address_snapshot, created_at, updated_at`

func scanOrder(row *sql.Row) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.OfferID, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.Subtotal, &o.GSTAmount, &o.DiscountAmount,
		&o.DeliveryCharge, &o.TotalPrice, &o.SpecialInstructions, &o.AddressSnapshot,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	query := `INSERT INTO orders
		(user_id, address_id, offer_id, status, payment_status, payment_method,
		 subtotal, gst_amount, discount_amount, delivery_charge, total_price,
		 special_instructions, address_snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id`
	var id int64
	err := tx.QueryRowContext(ctx, query,
		order.UserID, order.AddressID, order.OfferID, order.Status, order.PaymentStatus,
		order.PaymentMethod, order.Subtotal, order.GSTAmount, order.DiscountAmount,
		order.DeliveryCharge, order.TotalPrice, order.SpecialInstructions,
		order.AddressSnapshot,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

func (r *orderRepository) CreateOrderItemsTx(ctx context.Context, tx *sql.Tx, orderID int64, items []*models.OrderItem) error {
	query := `INSERT INTO order_items
		(order_id, item_id, size_id, item_name, size_name, quantity, unit_price, gst_rate, add_ons, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, item := range items {
		addOns, err := json.Marshal(item.AddOns)
		if err != nil {
			return fmt.Errorf("failed to marshal add-on snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			orderID, item.ItemID, item.SizeID, item.ItemName, item.SizeName,
			item.Quantity, item.UnitPrice, item.GSTRate, addOns, item.LineTotal,
		); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *orderRepository) GetOrderItems(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	query := `SELECT id, order_id, item_id, size_id, item_name, size_name, quantity,
		unit_price, gst_rate, add_ons, line_total
		FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		var addOns []byte
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ItemID, &item.SizeID,
			&item.ItemName, &item.SizeName, &item.Quantity, &item.UnitPrice,
			&item.GSTRate, &addOns, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if len(addOns) > 0 {
			if err := json.Unmarshal(addOns, &item.AddOns); err != nil {
				return nil, fmt.Errorf("failed to unmarshal add-on snapshot: %w", err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// LockOrderByIDTx loads the order under FOR UPDATE NOWAIT. A concurrent
// holder surfaces as ErrOrderLocked (pq 55P03) instead of blocking.
func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE NOWAIT`, id)
	o, err := scanOrder(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "55P03" {
			return nil, ErrOrderLocked
		}
		return nil, err
	}
	return o, nil
}

// LockOrderByIDWaitTx loads the order under a blocking FOR UPDATE. The
// payment initiate path uses it: a concurrent initiate must wait for the
// winner's commit and then reuse the intent it created, not fail fast.
func (r *orderRepository) LockOrderByIDWaitTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row)
}

func (r *orderRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return requireAffected(res)
}

func (r *orderRepository) UpdatePaymentStateTx(ctx context.Context, tx *sql.Tx, id int64, ps models.PaymentStatus, gatewayPaymentID *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET payment_status = $1, gateway_payment_id = COALESCE($2, gateway_payment_id), updated_at = NOW() WHERE id = $3`,
		ps, gatewayPaymentID, id)
	if err != nil {
		return fmt.Errorf("failed to update payment state: %w", err)
	}
	return requireAffected(res)
}

func (r *orderRepository) SetGatewayOrderIDTx(ctx context.Context, tx *sql.Tx, id int64, gatewayOrderID string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET gateway_order_id = $1, updated_at = NOW() WHERE id = $2`, gatewayOrderID, id)
	if err != nil {
		return fmt.Errorf("failed to set gateway order id: %w", err)
	}
	return requireAffected(res)
}

func (r *orderRepository) CountNonCancelledByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1 AND status <> $2`,
		userID, models.StatusCancelled).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func (r *orderRepository) CountOfferRedemptions(ctx context.Context, offerID, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE offer_id = $1 AND user_id = $2 AND status <> $3`,
		offerID, userID, models.StatusCancelled).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count offer redemptions: %w", err)
	}
	return count, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

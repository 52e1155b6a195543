package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/notify"
	"github.com/curryleaf/orders/internal/pricing"
	"github.com/curryleaf/orders/internal/storage"
)

// CreateOrderLine is one requested cart line. Prices are deliberately
// absent: the server re-reads them from the catalog.
type CreateOrderLine struct {
	ItemSizeID int64
	Quantity   int
	AddOnIDs   []int64
}

// CreateOrderInput is the order creation request after transport decoding.
type CreateOrderInput struct {
	AddressID           int64
	Lines               []CreateOrderLine
	OfferCode           string
	PaymentMethod       string
	SpecialInstructions string
}

// CreatedOrder is the persisted order with its line snapshots.
type CreatedOrder struct {
	Order *models.Order
	Items []*models.OrderItem
}

// OrderService creates orders with server-authoritative pricing.
type OrderService interface {
	CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (*CreatedOrder, error)
	GetOrder(ctx context.Context, userID int64, orderID int64) (*CreatedOrder, error)
}

type orderService struct {
	log            *slog.Logger
	db             *sql.DB
	orderRepo      storage.OrderStorage
	catalogRepo    storage.CatalogStorage
	addressRepo    storage.AddressStorage
	offers         OfferValidator
	notifier       notify.Notifier
	deliveryCharge decimal.Decimal
}

func NewOrderService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, catalogRepo storage.CatalogStorage, addressRepo storage.AddressStorage, offers OfferValidator, notifier notify.Notifier, deliveryCharge decimal.Decimal) OrderService {
	return &orderService{
		log:            log,
		db:             db,
		orderRepo:      orderRepo,
		catalogRepo:    catalogRepo,
		addressRepo:    addressRepo,
		offers:         offers,
		notifier:       notifier,
		deliveryCharge: deliveryCharge,
	}
}

// CreateOrder re-validates every line against the catalog, prices the cart,
// applies the offer if one was given, and persists the order with its item
// snapshots in one transaction. Nothing is persisted on any failure.
func (s *orderService) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (*CreatedOrder, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))
	logger.Info("creating order", slog.Int("lines", len(in.Lines)))

	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%s: order must have at least one item", op)
	}

	address, err := s.addressRepo.GetAddressForUser(ctx, in.AddressID, userID)
	if err != nil {
		logger.Error("failed to get address", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	snapshot, err := json.Marshal(address)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to snapshot address: %w", op, err)
	}

	var (
		priceLines  []catalogLine
		items       []*models.OrderItem
		categoryIDs []int64
		itemIDs     []int64
	)
	for _, line := range in.Lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%s: quantity must be at least 1", op)
		}
		item, priceLine, err := s.buildLine(ctx, line)
		if err != nil {
			logger.Warn("line rejected", slog.Int64("sizeID", line.ItemSizeID), slog.Any("error", err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		items = append(items, item)
		priceLines = append(priceLines, priceLine)
		categoryIDs = append(categoryIDs, priceLine.CategoryID)
		itemIDs = append(itemIDs, item.ItemID)
	}

	subtotal := decimal.Zero
	for _, l := range priceLines {
		subtotal = subtotal.Add(pricing.LineTotal(l.Line))
	}

	discount := decimal.Zero
	freeDelivery := false
	var offerID *int64
	if in.OfferCode != "" {
		result, err := s.offers.Validate(ctx, in.OfferCode, subtotal, categoryIDs, itemIDs, userID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !result.Valid {
			return nil, &OfferInvalidError{Reason: result.Reason}
		}
		discount = result.Discount
		freeDelivery = result.FreeDelivery
		offerID = &result.Offer.ID
	}

	lines := make([]pricing.Line, len(priceLines))
	for i, l := range priceLines {
		lines[i] = l.Line
	}
	breakdown := pricing.Calculate(lines, s.deliveryCharge, discount, freeDelivery)

	// Cash-on-delivery orders skip the online payment step and go straight
	// to the kitchen queue.
	status := models.StatusPendingPayment
	if in.PaymentMethod == models.PaymentMethodCOD {
		status = models.StatusPending
	}

	order := &models.Order{
		UserID:              userID,
		AddressID:           address.ID,
		OfferID:             offerID,
		Status:              status,
		PaymentStatus:       models.PaymentPending,
		PaymentMethod:       in.PaymentMethod,
		Subtotal:            breakdown.Subtotal,
		GSTAmount:           breakdown.GSTAmount,
		DiscountAmount:      breakdown.DiscountAmount,
		DeliveryCharge:      breakdown.DeliveryCharge,
		TotalPrice:          breakdown.TotalPrice,
		SpecialInstructions: in.SpecialInstructions,
		AddressSnapshot:     snapshot,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	orderID, err := s.orderRepo.CreateOrderTx(ctx, tx, order)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	order.ID = orderID

	if err := s.orderRepo.CreateOrderItemsTx(ctx, tx, orderID, items); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to create order items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	if err := s.notifier.Publish(ctx, notify.NewEvent(notify.EventOrderCreated, orderID, userID)); err != nil {
		logger.Warn("failed to publish order created event", slog.Any("error", err))
	}

	logger.Info("order created",
		slog.Int64("orderID", orderID),
		slog.String("total", order.TotalPrice.String()),
	)
	return &CreatedOrder{Order: order, Items: items}, nil
}

func (s *orderService) GetOrder(ctx context.Context, userID int64, orderID int64) (*CreatedOrder, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%s: %w", op, ErrNotOrderOwner)
	}
	items, err := s.orderRepo.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CreatedOrder{Order: order, Items: items}, nil
}

// catalogLine pairs the pricing input with the category it came from, which
// the offer restriction check needs.
type catalogLine struct {
	pricing.Line
	CategoryID int64
}

// buildLine re-reads one cart line from the catalog and freezes its prices.
func (s *orderService) buildLine(ctx context.Context, line CreateOrderLine) (*models.OrderItem, catalogLine, error) {
	detail, err := s.catalogRepo.GetItemSizeDetail(ctx, line.ItemSizeID)
	if err != nil {
		if errors.Is(err, storage.ErrItemSizeNotFound) {
			return nil, catalogLine{}, fmt.Errorf("%w: size %d not found", ErrItemUnavailable, line.ItemSizeID)
		}
		return nil, catalogLine{}, err
	}
	if !detail.ItemAvailable || !detail.SizeAvailable {
		return nil, catalogLine{}, fmt.Errorf("%w: %s (%s)", ErrItemUnavailable, detail.ItemName, detail.SizeName)
	}

	addOns, err := s.catalogRepo.GetAddOnsByIDs(ctx, detail.ItemID, line.AddOnIDs)
	if err != nil {
		return nil, catalogLine{}, err
	}
	if len(addOns) != len(line.AddOnIDs) {
		// The cart references an add-on that no longer exists or belongs to
		// another item.
		return nil, catalogLine{}, fmt.Errorf("%w: item %s", storage.ErrAddOnNotFound, detail.ItemName)
	}

	var (
		snapshots   []models.AddOnSnapshot
		addOnPrices []decimal.Decimal
	)
	for _, a := range addOns {
		if !a.Available {
			return nil, catalogLine{}, fmt.Errorf("%w: add-on %s", ErrItemUnavailable, a.Name)
		}
		snapshots = append(snapshots, models.AddOnSnapshot{ID: a.ID, Name: a.Name, Price: a.Price})
		addOnPrices = append(addOnPrices, a.Price)
	}

	priceLine := catalogLine{
		Line: pricing.Line{
			SizePrice:   detail.Price,
			AddOnPrices: addOnPrices,
			Quantity:    line.Quantity,
			GSTRate:     detail.GSTRate,
		},
		CategoryID: detail.CategoryID,
	}

	item := &models.OrderItem{
		ItemID:    detail.ItemID,
		SizeID:    detail.SizeID,
		ItemName:  detail.ItemName,
		SizeName:  detail.SizeName,
		Quantity:  line.Quantity,
		UnitPrice: detail.Price,
		GSTRate:   detail.GSTRate,
		AddOns:    snapshots,
		LineTotal: pricing.LineTotal(priceLine.Line),
	}
	return item, priceLine, nil
}

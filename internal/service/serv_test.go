package service_test

import (
	"context"
	"database/sql"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/gateway"
	"github.com/curryleaf/orders/internal/notify"
	"github.com/curryleaf/orders/internal/storage"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeOrderRepo struct {
	mu           sync.Mutex
	orders       map[int64]*models.Order
	items        map[int64][]*models.OrderItem
	nextID       int64
	lockErr      error
	nonCancelled int
	redemptions  int

	// When holdRowLock is set, LockOrderByIDWaitTx takes rowMu and keeps it,
	// emulating a row lock held until commit. The test releases it.
	holdRowLock bool
	rowMu       sync.Mutex
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64][]*models.OrderItem),
	}
}

func (f *fakeOrderRepo) add(order *models.Order) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.ID == 0 {
		f.nextID++
		order.ID = f.nextID
	}
	f.orders[order.ID] = order
	return order
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	order.ID = f.nextID
	f.orders[order.ID] = order
	return order.ID, nil
}

func (f *fakeOrderRepo) CreateOrderItemsTx(ctx context.Context, tx *sql.Tx, orderID int64, items []*models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[orderID] = items
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) GetOrderItems(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[orderID], nil
}

func (f *fakeOrderRepo) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return f.GetOrderByID(ctx, id)
}

func (f *fakeOrderRepo) LockOrderByIDWaitTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	if f.holdRowLock {
		f.rowMu.Lock()
	}
	return f.GetOrderByID(ctx, id)
}

func (f *fakeOrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (f *fakeOrderRepo) UpdatePaymentStateTx(ctx context.Context, tx *sql.Tx, id int64, ps models.PaymentStatus, gatewayPaymentID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	order.PaymentStatus = ps
	if gatewayPaymentID != nil {
		order.GatewayPaymentID = gatewayPaymentID
	}
	return nil
}

func (f *fakeOrderRepo) SetGatewayOrderIDTx(ctx context.Context, tx *sql.Tx, id int64, gatewayOrderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	order.GatewayOrderID = &gatewayOrderID
	return nil
}

func (f *fakeOrderRepo) CountNonCancelledByUser(ctx context.Context, userID int64) (int, error) {
	return f.nonCancelled, nil
}

func (f *fakeOrderRepo) CountOfferRedemptions(ctx context.Context, offerID, userID int64) (int, error) {
	return f.redemptions, nil
}

type fakeTxRepo struct {
	mu     sync.Mutex
	txs    map[int64]*models.Transaction
	nextID int64
}

var _ storage.TransactionStorage = (*fakeTxRepo)(nil)

func newFakeTxRepo() *fakeTxRepo {
	return &fakeTxRepo{txs: make(map[int64]*models.Transaction)}
}

func (f *fakeTxRepo) add(t *models.Transaction) *models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == 0 {
		f.nextID++
		t.ID = f.nextID
	}
	f.txs[t.ID] = t
	return t
}

func (f *fakeTxRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.txs)
}

func (f *fakeTxRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *models.Transaction) (int64, error) {
	f.add(t)
	return t.ID, nil
}

func (f *fakeTxRepo) GetLiveByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.Transaction
	for _, t := range f.txs {
		if t.OrderID != nil && *t.OrderID == orderID && t.Status.Live() {
			if latest == nil || t.ID > latest.ID {
				latest = t
			}
		}
	}
	if latest == nil {
		return nil, storage.ErrTransactionNotFound
	}
	return latest, nil
}

func (f *fakeTxRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txs {
		if t.GatewayOrderID == gatewayOrderID {
			return t, nil
		}
	}
	return nil, storage.ErrTransactionNotFound
}

func (f *fakeTxRepo) GetByGatewayOrderIDTx(ctx context.Context, tx *sql.Tx, gatewayOrderID string) (*models.Transaction, error) {
	return f.GetByGatewayOrderID(ctx, gatewayOrderID)
}

func (f *fakeTxRepo) GetLatestByOrderID(ctx context.Context, orderID int64) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.Transaction
	for _, t := range f.txs {
		if t.OrderID != nil && *t.OrderID == orderID {
			if latest == nil || t.ID > latest.ID {
				latest = t
			}
		}
	}
	if latest == nil {
		return nil, storage.ErrTransactionNotFound
	}
	return latest, nil
}

func (f *fakeTxRepo) GetRefundableByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txs {
		if t.OrderID != nil && *t.OrderID == orderID && t.Status.Refundable() {
			return t, nil
		}
	}
	return nil, storage.ErrTransactionNotFound
}

func (f *fakeTxRepo) MarkCapturedTx(ctx context.Context, tx *sql.Tx, id int64, gatewayPaymentID, signature string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txs[id]
	if !ok {
		return storage.ErrTransactionNotFound
	}
	if !t.Status.Live() {
		return storage.ErrTransactionNotFound
	}
	t.Status = models.TxCaptured
	t.GatewayPaymentID = &gatewayPaymentID
	t.Signature = &signature
	return nil
}

func (f *fakeTxRepo) UpdateRefundTx(ctx context.Context, tx *sql.Tx, id int64, refunded decimal.Decimal, status models.TxStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txs[id]
	if !ok {
		return storage.ErrTransactionNotFound
	}
	t.RefundedAmount = refunded
	t.Status = status
	return nil
}

type fakeOfferRepo struct {
	offers map[string]*models.Offer
}

var _ storage.OfferStorage = (*fakeOfferRepo)(nil)

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: make(map[string]*models.Offer)}
}

func (f *fakeOfferRepo) GetOfferByCode(ctx context.Context, code string) (*models.Offer, error) {
	offer, ok := f.offers[code]
	if !ok {
		return nil, storage.ErrOfferNotFound
	}
	return offer, nil
}

type fakeCatalogRepo struct {
	sizes  map[int64]*models.ItemSizeDetail
	addOns map[int64]*models.AddOn
}

var _ storage.CatalogStorage = (*fakeCatalogRepo)(nil)

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		sizes:  make(map[int64]*models.ItemSizeDetail),
		addOns: make(map[int64]*models.AddOn),
	}
}

func (f *fakeCatalogRepo) GetItemSizeDetail(ctx context.Context, sizeID int64) (*models.ItemSizeDetail, error) {
	detail, ok := f.sizes[sizeID]
	if !ok {
		return nil, storage.ErrItemSizeNotFound
	}
	return detail, nil
}

func (f *fakeCatalogRepo) GetAddOnsByIDs(ctx context.Context, itemID int64, addOnIDs []int64) ([]*models.AddOn, error) {
	var out []*models.AddOn
	for _, id := range addOnIDs {
		if a, ok := f.addOns[id]; ok && a.ItemID == itemID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeAddressRepo struct {
	addresses map[int64]*models.Address
}

var _ storage.AddressStorage = (*fakeAddressRepo)(nil)

func newFakeAddressRepo() *fakeAddressRepo {
	return &fakeAddressRepo{addresses: make(map[int64]*models.Address)}
}

func (f *fakeAddressRepo) GetAddressForUser(ctx context.Context, id, userID int64) (*models.Address, error) {
	a, ok := f.addresses[id]
	if !ok || a.UserID != userID {
		return nil, storage.ErrAddressNotFound
	}
	return a, nil
}

type fakeUserRepo struct {
	users map[string]*models.User
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	user, ok := f.users[phone]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

// fakeGateway counts calls so tests can assert the idempotent reuse path
// never reaches the gateway twice.
type fakeGateway struct {
	mu         sync.Mutex
	intents    int
	refunds    int
	intentErr  error
	refundErr  error
	gwOrderID  string
	intentHook func() // runs inside CreateIntent, before the counter moves
}

var _ gateway.Client = (*fakeGateway)(nil)

func (f *fakeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*gateway.Intent, error) {
	if f.intentHook != nil {
		f.intentHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	f.intents++
	id := f.gwOrderID
	if id == "" {
		id = "order_gw_fake"
	}
	return &gateway.Intent{GatewayOrderID: id, Amount: amountMinor, Currency: currency, Status: "created"}, nil
}

func (f *fakeGateway) Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (*gateway.RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refunds++
	return &gateway.RefundResult{RefundID: "rfnd_fake", Status: "processed"}, nil
}

// captureNotifier records published events in order.
type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

var _ notify.Notifier = (*captureNotifier)(nil)

func (c *captureNotifier) Publish(ctx context.Context, event notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureNotifier) Close() error { return nil }

func (c *captureNotifier) types() []notify.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

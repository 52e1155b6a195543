package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/curryleaf/orders/internal/app/handlers"
	"github.com/curryleaf/orders/internal/auth"
	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/gateway"
	"github.com/curryleaf/orders/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func asCustomer(req *http.Request, userID int64) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID, Role: models.RoleCustomer}))
}

func asStaff(req *http.Request, userID int64) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID, Role: models.RoleStaff}))
}

func withOrderID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type fakeOrderService struct {
	created *service.CreatedOrder
	err     error
}

func (f *fakeOrderService) CreateOrder(ctx context.Context, userID int64, in service.CreateOrderInput) (*service.CreatedOrder, error) {
	return f.created, f.err
}

func (f *fakeOrderService) GetOrder(ctx context.Context, userID, orderID int64) (*service.CreatedOrder, error) {
	return f.created, f.err
}

type fakePaymentService struct {
	initiate *service.InitiateResult
	order    *models.Order
	status   *service.PaymentStatusResult
	err      error
}

func (f *fakePaymentService) Initiate(ctx context.Context, userID, orderID int64) (*service.InitiateResult, error) {
	return f.initiate, f.err
}

func (f *fakePaymentService) Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakePaymentService) CheckStatus(ctx context.Context, userID, orderID int64) (*service.PaymentStatusResult, error) {
	return f.status, f.err
}

type fakeStatusService struct {
	order *models.Order
	err   error
}

func (f *fakeStatusService) UpdateStatus(ctx context.Context, orderID int64, target models.OrderStatus) (*models.Order, error) {
	return f.order, f.err
}

type fakeCancelService struct {
	order *models.Order
	err   error
}

func (f *fakeCancelService) Cancel(ctx context.Context, orderID, actorUserID int64, actor models.Actor) (*models.Order, error) {
	return f.order, f.err
}

type fakeRefundService struct {
	transaction *models.Transaction
	err         error
	gotAmount   decimal.Decimal
}

func (f *fakeRefundService) Refund(ctx context.Context, orderID int64, amount decimal.Decimal, reason string) (*models.Transaction, error) {
	f.gotAmount = amount
	return f.transaction, f.err
}

type fakeAuthService struct {
	token string
	err   error
}

func (f *fakeAuthService) StaffLogin(ctx context.Context, phone, password string) (string, error) {
	return f.token, f.err
}

func TestCreateOrderHandler_Success(t *testing.T) {
	created := &service.CreatedOrder{
		Order: &models.Order{ID: 1, UserID: 42, Status: models.StatusPendingPayment, TotalPrice: decimal.RequireFromString("555.00")},
		Items: []*models.OrderItem{{ID: 1, ItemName: "Paneer Tikka"}},
	}
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{created: created})

	body := `{"address_id": 10, "items": [{"item_size_id": 5, "quantity": 2}]}`
	req := asCustomer(httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(body)), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp handlers.OrderResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, int64(1), resp.Order.ID)
	assert.Len(t, resp.Items, 1)
}

func TestCreateOrderHandler_InvalidJSON(t *testing.T) {
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{})

	req := asCustomer(httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(`{"address_id":`)), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateOrderHandler_EmptyItems(t *testing.T) {
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{})

	body := `{"address_id": 10, "items": []}`
	req := asCustomer(httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(body)), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateOrderHandler_NoIdentity(t *testing.T) {
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{})

	body := `{"address_id": 10, "items": [{"item_size_id": 5, "quantity": 1}]}`
	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateOrderHandler_InvalidOffer(t *testing.T) {
	svc := &fakeOrderService{err: &service.OfferInvalidError{Reason: service.OfferReasonExpired}}
	handler := handlers.CreateOrderHandler(testLogger(), svc)

	body := `{"address_id": 10, "items": [{"item_size_id": 5, "quantity": 1}], "offer_code": "GONE"}`
	req := asCustomer(httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(body)), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var resp handlers.ErrorResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, service.OfferReasonExpired, resp.Reason)
}

func TestCreateOrderHandler_UnavailableItem(t *testing.T) {
	svc := &fakeOrderService{err: service.ErrItemUnavailable}
	handler := handlers.CreateOrderHandler(testLogger(), svc)

	body := `{"address_id": 10, "items": [{"item_size_id": 5, "quantity": 1}]}`
	req := asCustomer(httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(body)), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestInitiatePaymentHandler_Success(t *testing.T) {
	svc := &fakePaymentService{initiate: &service.InitiateResult{
		OrderID: 1, GatewayOrderID: "order_gw1", AmountMinor: 55500, Currency: "INR", KeyID: "rzp_test_key",
	}}
	handler := handlers.InitiatePaymentHandler(testLogger(), svc)

	req := asCustomer(httptest.NewRequest("POST", "/api/payments/initiate", bytes.NewBufferString(`{"order_id": 1}`)), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.InitiatePaymentResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "order_gw1", resp.GatewayOrderID)
	assert.Equal(t, int64(55500), resp.Amount)
}

func TestInitiatePaymentHandler_NotPayable(t *testing.T) {
	svc := &fakePaymentService{err: service.ErrOrderNotPayable}
	handler := handlers.InitiatePaymentHandler(testLogger(), svc)

	req := asCustomer(httptest.NewRequest("POST", "/api/payments/initiate", bytes.NewBufferString(`{"order_id": 1}`)), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestVerifyPaymentHandler_Success(t *testing.T) {
	svc := &fakePaymentService{order: &models.Order{ID: 1, Status: models.StatusPending, PaymentStatus: models.PaymentCompleted}}
	handler := handlers.VerifyPaymentHandler(testLogger(), svc)

	body := `{"gateway_order_id": "order_gw1", "gateway_payment_id": "pay_1", "signature": "abc"}`
	req := httptest.NewRequest("POST", "/api/payments/verify", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.VerifyPaymentResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "verified", resp.Status)
}

func TestVerifyPaymentHandler_SignatureMismatch(t *testing.T) {
	svc := &fakePaymentService{err: gateway.ErrSignatureMismatch}
	handler := handlers.VerifyPaymentHandler(testLogger(), svc)

	body := `{"gateway_order_id": "order_gw1", "gateway_payment_id": "pay_1", "signature": "tampered"}`
	req := httptest.NewRequest("POST", "/api/payments/verify", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyPaymentHandler_MissingFields(t *testing.T) {
	handler := handlers.VerifyPaymentHandler(testLogger(), &fakePaymentService{})

	body := `{"gateway_order_id": "order_gw1"}`
	req := httptest.NewRequest("POST", "/api/payments/verify", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPaymentStatusHandler_Success(t *testing.T) {
	svc := &fakePaymentService{status: &service.PaymentStatusResult{
		OrderStatus:       models.StatusPendingPayment,
		PaymentStatus:     models.PaymentPending,
		TransactionStatus: models.TxCreated,
		GatewayOrderID:    "order_gw1",
	}}
	handler := handlers.PaymentStatusHandler(testLogger(), svc)

	req := asCustomer(httptest.NewRequest("POST", "/api/payments/check-status", bytes.NewBufferString(`{"order_id": 1}`)), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.PaymentStatusResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, models.TxCreated, resp.TransactionStatus)
}

func TestRefundHandler_Success(t *testing.T) {
	svc := &fakeRefundService{transaction: &models.Transaction{
		ID: 3, RefundedAmount: decimal.RequireFromString("100.00"), Status: models.TxCaptured,
	}}
	handler := handlers.RefundHandler(testLogger(), svc)

	body := `{"order_id": 1, "amount": "100.00", "reason": "one item missing"}`
	req := asStaff(httptest.NewRequest("POST", "/api/payments/refund", bytes.NewBufferString(body)), 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, svc.gotAmount.Equal(decimal.RequireFromString("100.00")))
}

func TestRefundHandler_ExceedsCapture(t *testing.T) {
	svc := &fakeRefundService{err: service.ErrRefundExceedsCapture}
	handler := handlers.RefundHandler(testLogger(), svc)

	body := `{"order_id": 1, "amount": "600.00", "reason": "typo"}`
	req := asStaff(httptest.NewRequest("POST", "/api/payments/refund", bytes.NewBufferString(body)), 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRefundHandler_BadAmount(t *testing.T) {
	handler := handlers.RefundHandler(testLogger(), &fakeRefundService{})

	body := `{"order_id": 1, "amount": "not-a-number", "reason": "x"}`
	req := asStaff(httptest.NewRequest("POST", "/api/payments/refund", bytes.NewBufferString(body)), 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateStatusHandler_Success(t *testing.T) {
	svc := &fakeStatusService{order: &models.Order{ID: 1, Status: models.StatusPreparing}}
	handler := handlers.UpdateStatusHandler(testLogger(), svc)

	req := httptest.NewRequest("PATCH", "/api/orders/1/status", bytes.NewBufferString(`{"status": "preparing"}`))
	req = asStaff(withOrderID(req, "1"), 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUpdateStatusHandler_IllegalTransition(t *testing.T) {
	svc := &fakeStatusService{err: models.ErrInvalidTransition}
	handler := handlers.UpdateStatusHandler(testLogger(), svc)

	req := httptest.NewRequest("PATCH", "/api/orders/1/status", bytes.NewBufferString(`{"status": "ready"}`))
	req = asStaff(withOrderID(req, "1"), 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestUpdateStatusHandler_BadOrderID(t *testing.T) {
	handler := handlers.UpdateStatusHandler(testLogger(), &fakeStatusService{})

	req := httptest.NewRequest("PATCH", "/api/orders/abc/status", bytes.NewBufferString(`{"status": "ready"}`))
	req = asStaff(withOrderID(req, "abc"), 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCancelOrderHandler_Customer(t *testing.T) {
	svc := &fakeCancelService{order: &models.Order{ID: 1, Status: models.StatusCancelled}}
	handler := handlers.CancelOrderHandler(testLogger(), svc)

	req := httptest.NewRequest("POST", "/api/orders/1/cancel", nil)
	req = asCustomer(withOrderID(req, "1"), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCancelOrderHandler_AfterPaymentRejected(t *testing.T) {
	svc := &fakeCancelService{err: models.ErrInvalidTransition}
	handler := handlers.CancelOrderHandler(testLogger(), svc)

	req := httptest.NewRequest("POST", "/api/orders/1/cancel", nil)
	req = asCustomer(withOrderID(req, "1"), 42)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestStaffLoginHandler_Success(t *testing.T) {
	handler := handlers.StaffLoginHandler(testLogger(), &fakeAuthService{token: "test-token"})

	body := `{"phone": "+919900112233", "password": "password123"}`
	req := httptest.NewRequest("POST", "/api/auth/staff/login", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.StaffLoginResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "test-token", resp.Token)
}

func TestStaffLoginHandler_InvalidCredentials(t *testing.T) {
	handler := handlers.StaffLoginHandler(testLogger(), &fakeAuthService{err: service.ErrInvalidCredentials})

	body := `{"phone": "+919900112233", "password": "wrong"}`
	req := httptest.NewRequest("POST", "/api/auth/staff/login", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetOrderHandler_NotFoundHidesForeignOrders(t *testing.T) {
	svc := &fakeOrderService{err: service.ErrNotOrderOwner}
	handler := handlers.GetOrderHandler(testLogger(), svc)

	req := httptest.NewRequest("GET", "/api/orders/1", nil)
	req = asCustomer(withOrderID(req, "1"), 99)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

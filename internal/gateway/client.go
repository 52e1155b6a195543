package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Intent is a payment intent opened with the gateway. Amount is in the
// gateway's minor currency unit (paise for INR).
type Intent struct {
	GatewayOrderID string
	Amount         int64
	Currency       string
	Status         string
}

// RefundResult is the gateway's confirmation of an issued refund.
type RefundResult struct {
	RefundID string
	Status   string
}

// Client is the outbound surface the payment services depend on. The HTTP
// implementation talks to the real gateway; tests substitute fakes.
type Client interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*Intent, error)
	Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (*RefundResult, error)
}

// Error wraps any gateway-side failure: transport errors, timeouts and
// non-2xx responses. The order stays payable; the client may retry through
// the idempotent initiate path.
type Error struct {
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway: %v", e.Err)
	}
	return fmt.Sprintf("gateway: status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPClient calls the gateway's REST API with basic auth and a bounded
// timeout. It holds all configuration explicitly; there is no package-level
// state.
type HTTPClient struct {
	baseURL   string
	keyID     string
	keySecret string
	name      string
	httpc     *http.Client
}

// NewHTTPClient builds a gateway client. timeout bounds every call,
// including connection setup and body read.
func NewHTTPClient(baseURL, keyID, keySecret, name string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		name:      name,
		httpc:     &http.Client{Timeout: timeout},
	}
}

// Name returns the configured gateway name recorded on transactions.
func (c *HTTPClient) Name() string { return c.name }

type createIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type intentResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type refundRequest struct {
	Amount int64             `json:"amount"`
	Notes  map[string]string `json:"notes,omitempty"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent opens a payment intent for the given minor-unit amount.
func (c *HTTPClient) CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*Intent, error) {
	var resp intentResponse
	err := c.do(ctx, http.MethodPost, "/v1/orders", createIntentRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &Intent{
		GatewayOrderID: resp.ID,
		Amount:         resp.Amount,
		Currency:       resp.Currency,
		Status:         resp.Status,
	}, nil
}

// Refund returns amountMinor of a captured payment to the customer.
func (c *HTTPClient) Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (*RefundResult, error) {
	path := "/v1/payments/" + url.PathEscape(gatewayPaymentID) + "/refund"
	var resp refundResponse
	err := c.do(ctx, http.MethodPost, path, refundRequest{Amount: amountMinor, Notes: notes}, &resp)
	if err != nil {
		return nil, err
	}
	return &RefundResult{RefundID: resp.ID, Status: resp.Status}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	res, err := c.httpc.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return &Error{StatusCode: res.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var gwErr errorResponse
		_ = json.Unmarshal(raw, &gwErr)
		return &Error{
			StatusCode:  res.StatusCode,
			Code:        gwErr.Error.Code,
			Description: gwErr.Error.Description,
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{StatusCode: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

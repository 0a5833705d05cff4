package orders

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/manucarbs/ecommerce-monorepo/internal/cart"
	"github.com/manucarbs/ecommerce-monorepo/pkg/checkout"
	"github.com/manucarbs/ecommerce-monorepo/pkg/config"
	pkgerrors "github.com/manucarbs/ecommerce-monorepo/pkg/errors"
	"github.com/manucarbs/ecommerce-monorepo/pkg/logger"
)

// Gateway exposes the three order/payment exchanges with the backend. Each
// call is a single request/response; callers decide whether the user may
// retry.
type Gateway interface {
	CreateOrder(ctx context.Context, snapshot cart.Snapshot, shipping checkout.ShippingInfo) (*Order, error)
	CreatePaymentIntent(ctx context.Context, orderNumber string) (*PaymentIntent, error)
	Settle(ctx context.Context, orderNumber, gatewayPaymentID string) (*SettlementResult, error)
}

// Client talks to the storefront backend over authenticated HTTPS.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	logger      *logger.Logger
}

// NewClient builds the backend order gateway.
func NewClient(cfg config.BackendConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("backend logger is required")
	}
	return &Client{
		baseURL:     baseURL,
		bearerToken: strings.TrimSpace(cfg.BearerToken),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logg,
	}, nil
}

// CreateOrder records the cart as a server-side order. The snapshot itself is
// read server-side from the caller's cart; the body carries only shipping
// details. Never called twice for the same cart without explicit user
// resubmission.
func (c *Client) CreateOrder(ctx context.Context, snapshot cart.Snapshot, shipping checkout.ShippingInfo) (*Order, error) {
	if snapshot.Empty() {
		return nil, pkgerrors.New(pkgerrors.KindValidation, "cart contains no items")
	}

	body := checkoutRequest{
		Address: shipping.Address,
		City:    shipping.City,
		Phone:   shipping.Phone,
		Note:    shipping.Note,
	}
	ctx = c.logger.WithField(ctx, "items", len(snapshot.Items))
	c.logger.Info(ctx, "creating order")

	data, err := c.post(ctx, "/orders/checkout", body, true)
	if err != nil {
		return nil, c.mapTransportError(err, "create order", pkgerrors.KindServerError)
	}

	order, err := decodeOrder(data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.KindServerError, err, "decode order response")
	}
	if order.OrderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.KindServerError, "order response missing order number")
	}

	ctx = c.logger.WithOrderNumber(ctx, order.OrderNumber)
	c.logger.Info(ctx, "order created")
	return order, nil
}

// CreatePaymentIntent asks the backend for a single-use payment intent bound
// to the order.
func (c *Client) CreatePaymentIntent(ctx context.Context, orderNumber string) (*PaymentIntent, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.KindInvalidOrder, "order number is required")
	}

	ctx = c.logger.WithOrderNumber(ctx, orderNumber)
	c.logger.Info(ctx, "creating payment intent")

	data, err := c.post(ctx, "/payments/create-intent", createIntentRequest{OrderNumber: orderNumber}, false)
	if err != nil {
		return nil, c.mapTransportError(err, "create payment intent", pkgerrors.KindInvalidOrder)
	}

	intent, err := decodeIntent(data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.KindServerError, err, "decode payment intent response")
	}
	if intent.ClientSecret == "" {
		return nil, pkgerrors.New(pkgerrors.KindServerError, "payment intent response missing client secret")
	}
	if intent.OrderNumber == "" {
		intent.OrderNumber = orderNumber
	}

	c.logger.Info(ctx, "payment intent created")
	return intent, nil
}

// Settle reports the gateway confirmation to the backend. A success:false
// body is a domain failure even when the HTTP exchange succeeded.
func (c *Client) Settle(ctx context.Context, orderNumber, gatewayPaymentID string) (*SettlementResult, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.KindInvalidOrder, "order number is required")
	}
	if strings.TrimSpace(gatewayPaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.KindValidation, "gateway payment id is required")
	}

	ctx = c.logger.WithOrderNumber(ctx, orderNumber)
	c.logger.Info(ctx, "settling payment")

	data, err := c.post(ctx, "/payments/process", settleRequest{OrderNumber: orderNumber, PaymentIntentID: gatewayPaymentID}, true)
	if err != nil {
		return nil, c.mapTransportError(err, "settle payment", pkgerrors.KindServerError)
	}

	var result SettlementResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.KindServerError, err, "decode settlement response")
	}
	if !result.Success {
		message := result.Message
		if message == "" {
			message = "payment was not accepted by the server"
		}
		return &result, pkgerrors.New(pkgerrors.KindServerError, message)
	}

	c.logger.Info(ctx, "payment settled")
	return &result, nil
}

type httpStatusError struct {
	status  int
	message string
}

func (e *httpStatusError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("status %d: %s", e.status, e.message)
	}
	return fmt.Sprintf("status %d", e.status)
}

func (c *Client) post(ctx context.Context, path string, body any, idempotent bool) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	if idempotent {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httpStatusError{status: resp.StatusCode, message: extractServerMessage(data)}
	}
	return data, nil
}

// mapTransportError classifies connection failures and non-success statuses.
// notFoundKind decides how a missing/expired resource is reported; intent
// creation maps it to INVALID_ORDER, the other calls to SERVER_ERROR. Every
// other non-success response, including backend rejections of the request
// body or a stock race lost at order creation, is a SERVER_ERROR.
func (c *Client) mapTransportError(err error, op string, notFoundKind pkgerrors.Kind) error {
	var statusErr *httpStatusError
	if !stdErrors.As(err, &statusErr) {
		return pkgerrors.Wrap(pkgerrors.KindServerError, err, fmt.Sprintf("%s: backend unreachable", op))
	}

	message := statusErr.message
	if message == "" {
		message = fmt.Sprintf("%s failed", op)
	}

	switch statusErr.status {
	case http.StatusNotFound, http.StatusGone, http.StatusConflict, http.StatusUnprocessableEntity:
		return pkgerrors.Wrap(notFoundKind, statusErr, message)
	default:
		return pkgerrors.Wrap(pkgerrors.KindServerError, statusErr, message)
	}
}

func extractServerMessage(data []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

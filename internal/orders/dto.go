package orders

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/manucarbs/ecommerce-monorepo/pkg/checkout"
)

// Status is the order lifecycle as observed from backend responses. The
// client never sets it directly.
type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusPaid            Status = "PAID"
	StatusFailed          Status = "FAILED"
)

// Line is one order line derived from a cart item.
type Line struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Order is the server-recorded order. OrderNumber is server-assigned and
// opaque.
type Order struct {
	OrderNumber string                `json:"order_number"`
	Lines       []Line                `json:"lines,omitempty"`
	Shipping    checkout.ShippingInfo `json:"shipping"`
	AmountTotal decimal.Decimal       `json:"amount_total"`
	Status      Status                `json:"status"`
}

// PaymentIntent authorizes one payment attempt for a specific amount. The
// client holds it only long enough to hand the secret to the widget
// confirmation call; a secret is never reused after a settlement attempt.
type PaymentIntent struct {
	ClientSecret string          `json:"client_secret"`
	OrderNumber  string          `json:"order_number"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

// SettlementResult is the backend's authoritative verdict on a payment. The
// Success field, not the transport status, decides settlement.
type SettlementResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  Status `json:"status,omitempty"`
}

type checkoutRequest struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Phone   string `json:"phone"`
	Note    string `json:"note,omitempty"`
}

type createIntentRequest struct {
	OrderNumber string `json:"order_number"`
}

type settleRequest struct {
	OrderNumber     string `json:"order_number"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// orderWire tolerates the legacy field aliases still emitted by older
// backend deployments and collapses them into the canonical Order.
type orderWire struct {
	OrderNumber       string           `json:"order_number"`
	LegacyOrderNumber string           `json:"numeroOrden"`
	Lines             []Line           `json:"lines"`
	Shipping          shippingWire     `json:"shipping"`
	AmountTotal       *decimal.Decimal `json:"amount_total"`
	LegacyAmountTotal *decimal.Decimal `json:"montoTotal"`
	LegacyTotal       *decimal.Decimal `json:"total"`
	Status            Status           `json:"status"`
}

type shippingWire struct {
	Address       string `json:"address"`
	LegacyAddress string `json:"direccionEnvio"`
	City          string `json:"city"`
	LegacyCity    string `json:"ciudad"`
	Phone         string `json:"phone"`
	LegacyPhone   string `json:"telefono"`
	Note          string `json:"note"`
	LegacyNote    string `json:"referencia"`
}

func (w orderWire) toOrder() Order {
	order := Order{
		OrderNumber: firstNonEmpty(w.OrderNumber, w.LegacyOrderNumber),
		Lines:       w.Lines,
		Shipping: checkout.ShippingInfo{
			Address: firstNonEmpty(w.Shipping.Address, w.Shipping.LegacyAddress),
			City:    firstNonEmpty(w.Shipping.City, w.Shipping.LegacyCity),
			Phone:   firstNonEmpty(w.Shipping.Phone, w.Shipping.LegacyPhone),
			Note:    firstNonEmpty(w.Shipping.Note, w.Shipping.LegacyNote),
		},
		Status: w.Status,
	}
	switch {
	case w.AmountTotal != nil:
		order.AmountTotal = *w.AmountTotal
	case w.LegacyAmountTotal != nil:
		order.AmountTotal = *w.LegacyAmountTotal
	case w.LegacyTotal != nil:
		order.AmountTotal = *w.LegacyTotal
	}
	if order.Status == "" {
		order.Status = StatusCreated
	}
	return order
}

type intentWire struct {
	ClientSecret string           `json:"client_secret"`
	LegacySecret string           `json:"clientSecret"`
	OrderNumber  string           `json:"order_number"`
	LegacyOrder  string           `json:"orderNumber"`
	Amount       *decimal.Decimal `json:"amount"`
	Currency     string           `json:"currency"`
}

func (w intentWire) toIntent() PaymentIntent {
	intent := PaymentIntent{
		ClientSecret: firstNonEmpty(w.ClientSecret, w.LegacySecret),
		OrderNumber:  firstNonEmpty(w.OrderNumber, w.LegacyOrder),
		Currency:     w.Currency,
	}
	if w.Amount != nil {
		intent.Amount = *w.Amount
	}
	return intent
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func decodeOrder(data []byte) (*Order, error) {
	var wire orderWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	order := wire.toOrder()
	return &order, nil
}

func decodeIntent(data []byte) (*PaymentIntent, error) {
	var wire intentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	intent := wire.toIntent()
	return &intent, nil
}

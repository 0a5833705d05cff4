package widget

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChangeStatus classifies one emission from the card element's change
// stream.
type ChangeStatus string

const (
	ChangeEmpty      ChangeStatus = "empty"
	ChangeIncomplete ChangeStatus = "incomplete"
	ChangeInvalid    ChangeStatus = "invalid"
	ChangeComplete   ChangeStatus = "complete"
)

// ChangeEvent is emitted by the element whenever the captured card data
// changes. Reason is only set for invalid emissions.
type ChangeEvent struct {
	Status ChangeStatus
	Reason string
}

// StyleConfig is the opaque presentation configuration handed to the
// element on creation.
type StyleConfig struct {
	BaseColor    string
	InvalidColor string
	FontSize     string
}

// Element is one live card-capture instance. It is created, mounted,
// listened to, and destroyed by the adapter only.
type Element interface {
	Mount(container string) error
	OnChange(fn func(ChangeEvent))
	Unmount()
	Destroy()
}

// PaymentMethodRef points the gateway at the captured card data without the
// raw details ever passing through this process.
type PaymentMethodRef struct {
	Element     Element
	BillingName string
}

// Confirmation is the gateway's acknowledgement of a confirmed payment.
type Confirmation struct {
	ConfirmationID string
	Amount         decimal.Decimal
}

// GatewayError is a structured failure from the confirmation call.
type GatewayError struct {
	Type    string
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Type + "/" + e.Code + ": " + e.Message
	}
	return e.Type + ": " + e.Message
}

// ConfirmRequest bundles the single-use intent secret with the amount it
// authorizes and the captured payment method.
type ConfirmRequest struct {
	ClientSecret string
	Amount       decimal.Decimal
	Currency     string
	Method       PaymentMethodRef
}

// Gateway is the embedded payment-capture capability provided by an external
// collaborator. Implementations wrap a vendor SDK; tests inject fakes.
type Gateway interface {
	// Ready reports whether the underlying SDK finished initializing.
	Ready() bool
	CreateElement(style StyleConfig) (Element, error)
	ConfirmPayment(ctx context.Context, req ConfirmRequest) (*Confirmation, error)
}

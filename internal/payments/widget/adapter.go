package widget

import (
	"context"
	stdErrors "errors"
	"sync"

	pkgerrors "github.com/manucarbs/ecommerce-monorepo/pkg/errors"
	"github.com/manucarbs/ecommerce-monorepo/pkg/logger"
	"github.com/manucarbs/ecommerce-monorepo/pkg/metrics"
)

var defaultStyle = StyleConfig{
	BaseColor:    "#32325d",
	InvalidColor: "#ef4444",
	FontSize:     "16px",
}

// Adapter owns the single card element instance for the lifetime of one
// payment step visit. No other component touches the element.
type Adapter struct {
	mu        sync.Mutex
	gateway   Gateway
	style     StyleConfig
	logger    *logger.Logger
	metrics   *metrics.CheckoutMetrics
	container string
	element   Element
	ready     bool
	message   string
	onStatus  func(ready bool, message string)
}

// NewAdapter wraps the injected gateway capability.
func NewAdapter(gateway Gateway, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Adapter, error) {
	if gateway == nil {
		return nil, stdErrors.New("widget gateway required")
	}
	if logg == nil {
		return nil, stdErrors.New("widget logger required")
	}
	return &Adapter{
		gateway: gateway,
		style:   defaultStyle,
		logger:  logg,
		metrics: m,
	}, nil
}

// SetStatusListener registers the callback invoked on every readiness
// change. Last-write-wins; no debouncing.
func (a *Adapter) SetStatusListener(fn func(ready bool, message string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onStatus = fn
}

// Mount creates and mounts the element into the container. Calling it while
// an instance is already live is a no-op; duplicate mounts are a visible bug
// class this guard exists to prevent.
func (a *Adapter) Mount(ctx context.Context, container string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.element != nil {
		a.logger.Info(ctx, "card element already mounted")
		return nil
	}
	if !a.gateway.Ready() {
		return pkgerrors.New(pkgerrors.KindProcessorError, "payment processor has not finished initializing")
	}

	element, err := a.gateway.CreateElement(a.style)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.KindProcessorError, err, "create card element")
	}
	if err := element.Mount(container); err != nil {
		element.Destroy()
		return pkgerrors.Wrap(pkgerrors.KindProcessorError, err, "mount card element")
	}

	element.OnChange(a.handleChange)
	a.element = element
	a.container = container
	a.ready = false
	a.message = ""

	a.logger.Info(ctx, "card element mounted")
	return nil
}

// Ready reports whether the last change emission was complete.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Message returns the human-readable validity message for the current state.
func (a *Adapter) Message() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.message
}

// Reset destroys the live element, clears readiness, and remounts a fresh
// instance in the same container. Safe to call repeatedly; the previous
// instance is always destroyed before the next mount.
func (a *Adapter) Reset(ctx context.Context) error {
	a.mu.Lock()
	container := a.container
	if a.element != nil {
		a.element.Unmount()
		a.element.Destroy()
		a.element = nil
		a.metrics.IncWidgetReset()
	}
	a.ready = false
	a.message = ""
	listener := a.onStatus
	a.mu.Unlock()

	if listener != nil {
		listener(false, "")
	}
	a.logger.Info(ctx, "card element reset")

	if container == "" {
		return nil
	}
	return a.Mount(ctx, container)
}

// Teardown destroys the element without remounting, used when the flow
// leaves the payment step.
func (a *Adapter) Teardown(ctx context.Context) {
	a.mu.Lock()
	if a.element != nil {
		a.element.Unmount()
		a.element.Destroy()
		a.element = nil
	}
	a.container = ""
	a.ready = false
	a.message = ""
	a.mu.Unlock()
	a.logger.Info(ctx, "card element torn down")
}

// Confirm hands the captured payment method plus the intent secret to the
// gateway confirmation call.
func (a *Adapter) Confirm(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	a.mu.Lock()
	element := a.element
	a.mu.Unlock()

	if element == nil {
		return nil, pkgerrors.New(pkgerrors.KindProcessorError, "card element is not mounted")
	}

	req.Method = PaymentMethodRef{
		Element:     element,
		BillingName: "Customer",
	}
	confirmation, err := a.gateway.ConfirmPayment(ctx, req)
	if err != nil {
		return nil, classifyGatewayError(err)
	}
	if confirmation == nil || confirmation.ConfirmationID == "" {
		return nil, pkgerrors.New(pkgerrors.KindProcessorError, "gateway returned no payment confirmation")
	}
	return confirmation, nil
}

func (a *Adapter) handleChange(event ChangeEvent) {
	a.mu.Lock()
	switch event.Status {
	case ChangeComplete:
		a.ready = true
		a.message = ""
	case ChangeInvalid:
		a.ready = false
		a.message = event.Reason
	case ChangeEmpty:
		a.ready = false
		a.message = "please enter the card details"
	default:
		a.ready = false
		a.message = "card details are missing"
	}
	ready := a.ready
	message := a.message
	listener := a.onStatus
	a.mu.Unlock()

	if listener != nil {
		listener(ready, message)
	}
}

// classifyGatewayError maps structured gateway failures onto the closed
// taxonomy. card_declined recovers locally; other card codes count as
// invalid card data; anything else is a processor fault.
func classifyGatewayError(err error) error {
	var gatewayErr *GatewayError
	if !stdErrors.As(err, &gatewayErr) {
		return pkgerrors.Wrap(pkgerrors.KindProcessorError, err, "payment confirmation failed")
	}

	switch gatewayErr.Type {
	case "card_error":
		if gatewayErr.Code == "card_declined" {
			return pkgerrors.Wrap(pkgerrors.KindCardDeclined, gatewayErr, "card was declined, verify the details or use another card")
		}
		return pkgerrors.Wrap(pkgerrors.KindCardInvalid, gatewayErr, "card details are invalid, verify the number, expiry, or CVC")
	case "validation_error":
		return pkgerrors.Wrap(pkgerrors.KindCardInvalid, gatewayErr, "card details are invalid")
	default:
		return pkgerrors.Wrap(pkgerrors.KindProcessorError, gatewayErr, "payment processor error, try again")
	}
}

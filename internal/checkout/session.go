package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/manucarbs/ecommerce-monorepo/internal/cart"
	"github.com/manucarbs/ecommerce-monorepo/internal/orders"
	"github.com/manucarbs/ecommerce-monorepo/pkg/checkout"
	pkgerrors "github.com/manucarbs/ecommerce-monorepo/pkg/errors"
)

// Step is the orchestrator's position in the checkout flow.
type Step string

const (
	StepShipping           Step = "shipping"
	StepAwaitingOrder      Step = "awaiting_order"
	StepPayment            Step = "payment"
	StepAwaitingSettlement Step = "awaiting_settlement"
	StepConfirmed          Step = "confirmed"
	StepFailed             Step = "failed"
)

// ErrorRecord is the failure held for the current step. It is transient and
// cleared on every retry attempt.
type ErrorRecord struct {
	Kind    pkgerrors.Kind
	Message string
	Cause   error
}

// Summary describes a confirmed checkout.
type Summary struct {
	OrderNumber string
	Amount      decimal.Decimal
	PaymentID   string
	SettledAt   time.Time
}

// Session is the root aggregate for one checkout attempt. It is owned
// exclusively by the orchestrator, never persisted, and never shared across
// tabs.
type Session struct {
	ID            string
	Step          Step
	FailedKind    pkgerrors.Kind
	Snapshot      cart.Snapshot
	Shipping      checkout.ShippingInfo
	Order         *orders.Order
	Intent        *orders.PaymentIntent
	WidgetReady   bool
	WidgetMessage string
	LastError     *ErrorRecord
	Confirmation  *Summary
	Cancelled     bool
}

// event is one input to the pure transition core. Side effects (network,
// widget, timers) live in the orchestrator shell; apply only moves data.
type event interface{ isEvent() }

type eventShippingAccepted struct{ shipping checkout.ShippingInfo }
type eventOrderCreated struct{ order *orders.Order }
type eventWidgetStatus struct {
	ready   bool
	message string
}
type eventIntentIssued struct{ intent *orders.PaymentIntent }
type eventSubmitStarted struct{}
type eventSettled struct{ summary Summary }
type eventStepFailure struct{ record ErrorRecord }
type eventCardFailure struct{ record ErrorRecord }
type eventLocalFailure struct{ record ErrorRecord }
type eventErrorCleared struct{}
type eventBackToShipping struct{}
type eventBackToPayment struct{}
type eventCancelled struct{}

func (eventShippingAccepted) isEvent() {}
func (eventOrderCreated) isEvent()     {}
func (eventWidgetStatus) isEvent()     {}
func (eventIntentIssued) isEvent()     {}
func (eventSubmitStarted) isEvent()    {}
func (eventSettled) isEvent()          {}
func (eventStepFailure) isEvent()      {}
func (eventCardFailure) isEvent()      {}
func (eventLocalFailure) isEvent()     {}
func (eventErrorCleared) isEvent()     {}
func (eventBackToShipping) isEvent()   {}
func (eventBackToPayment) isEvent()    {}
func (eventCancelled) isEvent()        {}

// apply is the pure transition function (session, event) -> session.
func apply(s Session, e event) Session {
	switch ev := e.(type) {
	case eventShippingAccepted:
		s.Shipping = ev.shipping
		s.Step = StepAwaitingOrder
		s.LastError = nil
	case eventOrderCreated:
		s.Order = ev.order
		s.Step = StepPayment
		s.LastError = nil
	case eventWidgetStatus:
		s.WidgetReady = ev.ready
		s.WidgetMessage = ev.message
	case eventIntentIssued:
		s.Intent = ev.intent
	case eventSubmitStarted:
		s.Step = StepAwaitingSettlement
		s.LastError = nil
	case eventSettled:
		summary := ev.summary
		s.Confirmation = &summary
		s.Step = StepConfirmed
		s.Intent = nil
		s.LastError = nil
	case eventStepFailure:
		record := ev.record
		s.LastError = &record
		s.Step = StepFailed
		s.FailedKind = record.Kind
		s.Intent = nil
	case eventCardFailure:
		record := ev.record
		s.LastError = &record
		s.Step = StepPayment
		s.Intent = nil
	case eventLocalFailure:
		record := ev.record
		s.LastError = &record
	case eventErrorCleared:
		s.LastError = nil
	case eventBackToShipping:
		s.Step = StepShipping
		s.FailedKind = ""
		s.Intent = nil
		s.WidgetReady = false
		s.WidgetMessage = ""
		s.LastError = nil
	case eventBackToPayment:
		s.Step = StepPayment
		s.FailedKind = ""
		s.Intent = nil
		s.LastError = nil
	case eventCancelled:
		s.Cancelled = true
	}
	return s
}

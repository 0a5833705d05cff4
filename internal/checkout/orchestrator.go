package checkout

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/manucarbs/ecommerce-monorepo/internal/cart"
	"github.com/manucarbs/ecommerce-monorepo/internal/orders"
	"github.com/manucarbs/ecommerce-monorepo/internal/payments/widget"
	pkgcheckout "github.com/manucarbs/ecommerce-monorepo/pkg/checkout"
	"github.com/manucarbs/ecommerce-monorepo/pkg/config"
	pkgerrors "github.com/manucarbs/ecommerce-monorepo/pkg/errors"
	"github.com/manucarbs/ecommerce-monorepo/pkg/logger"
	"github.com/manucarbs/ecommerce-monorepo/pkg/metrics"
)

var (
	// ErrBusy rejects a request while another network or gateway operation
	// is in flight for the session. It is not a session failure and never
	// touches LastError.
	ErrBusy = stdErrors.New("checkout: another operation is in flight")
	// ErrSessionCancelled reports that the session was cancelled and the
	// triggering response was discarded.
	ErrSessionCancelled = stdErrors.New("checkout: session cancelled")
	// ErrNotStarted reports use of an orchestrator before Start.
	ErrNotStarted = stdErrors.New("checkout: session not started")
)

type paymentWidget interface {
	Mount(ctx context.Context, container string) error
	Reset(ctx context.Context) error
	Teardown(ctx context.Context)
	Confirm(ctx context.Context, req widget.ConfirmRequest) (*widget.Confirmation, error)
	SetStatusListener(fn func(ready bool, message string))
}

// Orchestrator drives one checkout session through shipping, payment, and
// settlement. It owns the session aggregate exclusively; UI layers observe
// snapshots through Subscribe.
type Orchestrator struct {
	mu          sync.Mutex
	session     Session
	started     bool
	inflight    bool
	stepEntered time.Time

	gateway    orders.Gateway
	widget     paymentWidget
	logger     *logger.Logger
	metrics    *metrics.CheckoutMetrics
	resetDelay time.Duration
	schedule   func(d time.Duration, fn func())
	observers  []func(Session)
}

// Params collects the orchestrator dependencies.
type Params struct {
	Gateway  orders.Gateway
	Widget   paymentWidget
	Logger   *logger.Logger
	Metrics  *metrics.CheckoutMetrics
	Config   config.CheckoutConfig
	Schedule func(d time.Duration, fn func())
}

// New builds the orchestrator.
func New(params Params) (*Orchestrator, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("order gateway required")
	}
	if params.Widget == nil {
		return nil, fmt.Errorf("payment widget required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	resetDelay := params.Config.WidgetResetDelay
	if resetDelay <= 0 {
		resetDelay = 1500 * time.Millisecond
	}
	schedule := params.Schedule
	if schedule == nil {
		schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}

	o := &Orchestrator{
		gateway:    params.Gateway,
		widget:     params.Widget,
		logger:     params.Logger,
		metrics:    params.Metrics,
		resetDelay: resetDelay,
		schedule:   schedule,
	}
	params.Widget.SetStatusListener(o.onWidgetStatus)
	return o, nil
}

// Subscribe registers an observer called with a session snapshot after every
// transition. Observers run on the orchestrator's critical path and must not
// call back into it.
func (o *Orchestrator) Subscribe(fn func(Session)) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	o.observers = append(o.observers, fn)
	o.mu.Unlock()
}

// Session returns a snapshot of the current session state.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Start opens the session from a cart snapshot. The stock guard runs first:
// any line exceeding its recorded availability blocks progression before any
// network call is made.
func (o *Orchestrator) Start(ctx context.Context, snapshot cart.Snapshot) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return fmt.Errorf("checkout: session already started")
	}
	if snapshot.Empty() {
		return pkgerrors.New(pkgerrors.KindValidation, "cart contains no items")
	}
	if err := pkgcheckout.ValidateStock(snapshot.Items); err != nil {
		return err
	}

	o.session = Session{
		ID:       uuid.NewString(),
		Step:     StepShipping,
		Snapshot: snapshot,
	}
	o.started = true
	o.stepEntered = time.Now()
	o.metrics.IncSessionStarted()

	ctx = o.logger.WithSessionID(ctx, o.session.ID)
	o.logger.Info(ctx, "checkout session started")
	o.notifyLocked()
	return nil
}

// AdvanceFromShipping validates the shipping details and converts the cart
// into a server-side order. On success the session moves to the payment
// step.
func (o *Orchestrator) AdvanceFromShipping(ctx context.Context, info pkgcheckout.ShippingInfo) error {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return ErrNotStarted
	}
	if o.session.Cancelled {
		o.mu.Unlock()
		return ErrSessionCancelled
	}
	if o.inflight {
		o.mu.Unlock()
		return ErrBusy
	}
	if o.session.Step != StepShipping {
		o.mu.Unlock()
		return fmt.Errorf("checkout: cannot advance from step %q", o.session.Step)
	}

	normalized, err := pkgcheckout.ValidateShipping(info)
	if err != nil {
		o.applyLocked(eventLocalFailure{record: recordFrom(err)})
		o.mu.Unlock()
		return err
	}

	o.inflight = true
	o.applyLocked(eventShippingAccepted{shipping: normalized})
	snapshot := o.session.Snapshot
	ctx = o.logger.WithSessionID(ctx, o.session.ID)
	o.mu.Unlock()

	order, err := o.gateway.CreateOrder(ctx, snapshot, normalized)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight = false

	if o.session.Cancelled {
		o.metrics.IncLateResponse("create_order")
		o.logger.Warn(ctx, "order response ignored, session cancelled")
		return ErrSessionCancelled
	}
	if err != nil {
		classified := pkgerrors.Classify(err)
		o.failStepLocked(ctx, classified)
		return err
	}

	o.applyLocked(eventOrderCreated{order: order})
	o.logger.Info(o.logger.WithOrderNumber(ctx, order.OrderNumber), "advanced to payment step")
	return nil
}

// MountWidget mounts the card element for the payment step.
func (o *Orchestrator) MountWidget(ctx context.Context, container string) error {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return ErrNotStarted
	}
	if o.session.Step != StepPayment {
		o.mu.Unlock()
		return fmt.Errorf("checkout: cannot mount widget on step %q", o.session.Step)
	}
	ctx = o.logger.WithSessionID(ctx, o.session.ID)
	o.mu.Unlock()

	if err := o.widget.Mount(ctx, container); err != nil {
		classified := pkgerrors.Classify(err)
		o.mu.Lock()
		o.failStepLocked(ctx, classified)
		o.mu.Unlock()
		return err
	}
	return nil
}

// SubmitPayment runs the intent, confirmation, and settlement chain. The
// session reaches the confirmed state only after the settlement call reports
// success; card-level failures loop back to the payment step with the widget
// reset after a short delay.
func (o *Orchestrator) SubmitPayment(ctx context.Context) error {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return ErrNotStarted
	}
	if o.session.Cancelled {
		o.mu.Unlock()
		return ErrSessionCancelled
	}
	if o.inflight {
		// A submit while AwaitingOrder/AwaitingSettlement is in progress is
		// rejected without touching session state.
		o.mu.Unlock()
		return ErrBusy
	}
	if o.session.Step != StepPayment {
		o.mu.Unlock()
		return pkgerrors.New(pkgerrors.KindInvalidOrder, "no active payment step, return to shipping")
	}

	o.applyLocked(eventErrorCleared{})
	ctx = o.logger.WithSessionID(ctx, o.session.ID)

	if !o.session.WidgetReady {
		err := pkgerrors.New(pkgerrors.KindCardIncomplete, "complete the card details before paying")
		o.cardFailureLocked(ctx, err)
		o.mu.Unlock()
		return err
	}
	if o.session.Order == nil || o.session.Order.OrderNumber == "" {
		err := pkgerrors.New(pkgerrors.KindInvalidOrder, "no active order, return to the cart")
		o.failStepLocked(ctx, err)
		o.mu.Unlock()
		return err
	}

	o.inflight = true
	o.applyLocked(eventSubmitStarted{})
	orderNumber := o.session.Order.OrderNumber
	snapshotTotal := o.session.Snapshot.Total()
	ctx = o.logger.WithOrderNumber(ctx, orderNumber)
	o.mu.Unlock()

	err := o.runPaymentChain(ctx, orderNumber, snapshotTotal)

	o.mu.Lock()
	o.inflight = false
	o.mu.Unlock()
	return err
}

func (o *Orchestrator) runPaymentChain(ctx context.Context, orderNumber string, snapshotTotal decimal.Decimal) error {
	intent, err := o.gateway.CreatePaymentIntent(ctx, orderNumber)

	o.mu.Lock()
	if o.session.Cancelled {
		o.mu.Unlock()
		o.metrics.IncLateResponse("create_intent")
		o.logger.Warn(ctx, "payment intent response ignored, session cancelled")
		return ErrSessionCancelled
	}
	if err != nil {
		o.failStepLocked(ctx, pkgerrors.Classify(err))
		o.mu.Unlock()
		return err
	}
	o.applyLocked(eventIntentIssued{intent: intent})
	o.mu.Unlock()

	confirmation, err := o.widget.Confirm(ctx, widget.ConfirmRequest{
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
	})

	o.mu.Lock()
	if o.session.Cancelled {
		o.mu.Unlock()
		o.metrics.IncLateResponse("confirm")
		o.logger.Warn(ctx, "gateway confirmation ignored, session cancelled")
		return ErrSessionCancelled
	}
	if err != nil {
		classified := pkgerrors.Classify(err)
		if pkgerrors.CardLevel(classified.Kind()) {
			o.cardFailureLocked(ctx, classified)
		} else {
			o.failStepLocked(ctx, classified)
		}
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	result, err := o.gateway.Settle(ctx, orderNumber, confirmation.ConfirmationID)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.Cancelled {
		// An already-sent settlement is never cancelled; a late success for
		// an abandoned session is observed, logged, and dropped.
		o.metrics.IncLateResponse("settle")
		if err == nil && result != nil && result.Success {
			o.logger.Warn(ctx, "late settlement success ignored for cancelled session")
		}
		return ErrSessionCancelled
	}
	if err != nil {
		// A settlement rejection invalidates the intent; the stale client
		// secret must never be retried, so the failure is fatal to the step.
		o.failStepLocked(ctx, pkgerrors.Classify(err))
		return err
	}

	amount := intent.Amount
	if amount.IsZero() {
		amount = confirmation.Amount
	}
	if amount.IsZero() {
		amount = snapshotTotal
	}

	o.applyLocked(eventSettled{summary: Summary{
		OrderNumber: orderNumber,
		Amount:      amount,
		PaymentID:   confirmation.ConfirmationID,
		SettledAt:   time.Now(),
	}})
	o.metrics.IncSessionConfirmed()
	o.logger.Info(ctx, "checkout confirmed")
	return nil
}

// GoBackToShipping tears down the payment widget and returns to the
// shipping step. The in-memory intent is discarded; the old order persists
// server-side but a fresh order and intent are requested on re-advance.
func (o *Orchestrator) GoBackToShipping(ctx context.Context) error {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return ErrNotStarted
	}
	if o.inflight {
		o.mu.Unlock()
		return ErrBusy
	}
	ctx = o.logger.WithSessionID(ctx, o.session.ID)
	o.mu.Unlock()

	o.widget.Teardown(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.applyLocked(eventBackToShipping{})
	o.session.Order = nil
	o.logger.Info(ctx, "returned to shipping step")
	return nil
}

// Recover leaves the failed state according to the failure's recovery
// policy: step-fatal failures that lost the order return to shipping, while
// retryable server faults with a live order return to the payment step with
// a fresh widget.
func (o *Orchestrator) Recover(ctx context.Context) error {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return ErrNotStarted
	}
	if o.session.Step != StepFailed {
		o.mu.Unlock()
		return fmt.Errorf("checkout: nothing to recover on step %q", o.session.Step)
	}
	kind := o.session.FailedKind
	meta := pkgerrors.MetadataFor(kind)
	hasOrder := o.session.Order != nil && o.session.Order.OrderNumber != ""
	ctx = o.logger.WithSessionID(ctx, o.session.ID)
	o.mu.Unlock()

	if meta.Recovery == pkgerrors.RecoverySession {
		return fmt.Errorf("checkout: %s requires restarting checkout", kind)
	}

	if meta.Retryable && hasOrder && kind != pkgerrors.KindInvalidOrder {
		if err := o.widget.Reset(ctx); err != nil {
			return err
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		o.applyLocked(eventBackToPayment{})
		o.logger.Info(ctx, "recovered to payment step")
		return nil
	}

	o.widget.Teardown(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.applyLocked(eventBackToShipping{})
	o.session.Order = nil
	o.logger.Info(ctx, "recovered to shipping step")
	return nil
}

// Cancel abandons the session. No further transitions are applied; pending
// responses are discarded on arrival and counted, never silently dropped.
func (o *Orchestrator) Cancel(ctx context.Context) {
	o.mu.Lock()
	if !o.started || o.session.Cancelled {
		o.mu.Unlock()
		return
	}
	o.applyLocked(eventCancelled{})
	ctx = o.logger.WithSessionID(ctx, o.session.ID)
	o.mu.Unlock()

	o.widget.Teardown(ctx)
	o.logger.Info(ctx, "checkout session cancelled")
}

func (o *Orchestrator) onWidgetStatus(ready bool, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started || o.session.Cancelled {
		return
	}
	o.applyLocked(eventWidgetStatus{ready: ready, message: message})
}

// cardFailureLocked records a card-level failure, keeps the session on the
// payment step, and schedules the widget reset after the configured delay.
func (o *Orchestrator) cardFailureLocked(ctx context.Context, err *pkgerrors.Error) {
	o.applyLocked(eventCardFailure{record: recordFrom(err)})
	o.logger.Warn(o.logger.WithField(ctx, "kind", string(err.Kind())), "card failure, widget reset scheduled")
	o.schedule(o.resetDelay, func() {
		o.mu.Lock()
		if o.session.Cancelled || o.session.Step != StepPayment {
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()

		resetCtx := context.Background()
		if resetErr := o.widget.Reset(resetCtx); resetErr != nil {
			o.logger.Error(resetCtx, "scheduled widget reset failed", resetErr)
			return
		}
		o.mu.Lock()
		// Re-check: the session may have been cancelled or moved off the
		// payment step while the widget was resetting.
		if !o.session.Cancelled && o.session.Step == StepPayment {
			o.applyLocked(eventErrorCleared{})
		}
		o.mu.Unlock()
	})
}

func (o *Orchestrator) failStepLocked(ctx context.Context, err *pkgerrors.Error) {
	o.applyLocked(eventStepFailure{record: recordFrom(err)})
	o.metrics.IncSessionFailed(string(err.Kind()))
	o.logger.Error(o.logger.WithField(ctx, "kind", string(err.Kind())), "checkout step failed", err)
}

// applyLocked runs the pure transition and fans the new snapshot out to
// observers. Callers hold the mutex.
func (o *Orchestrator) applyLocked(e event) {
	previous := o.session.Step
	o.session = apply(o.session, e)
	if o.session.Step != previous {
		o.metrics.ObserveStepDuration(string(previous), time.Since(o.stepEntered))
		o.stepEntered = time.Now()
	}
	o.notifyLocked()
}

func (o *Orchestrator) notifyLocked() {
	snapshot := o.session
	for _, observer := range o.observers {
		observer(snapshot)
	}
}

func recordFrom(err error) ErrorRecord {
	classified := pkgerrors.Classify(err)
	message := classified.Message()
	if message == "" {
		message = pkgerrors.MetadataFor(classified.Kind()).PublicMessage
	}
	return ErrorRecord{
		Kind:    classified.Kind(),
		Message: message,
		Cause:   classified.Unwrap(),
	}
}

package widget

import (
	"context"
	stdErrors "errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/manucarbs/ecommerce-monorepo/pkg/errors"
	"github.com/manucarbs/ecommerce-monorepo/pkg/logger"
)

type fakeElement struct {
	mounted   bool
	destroyed bool
	onChange  func(ChangeEvent)
	mountErr  error
}

func (e *fakeElement) Mount(container string) error {
	if e.mountErr != nil {
		return e.mountErr
	}
	e.mounted = true
	return nil
}

func (e *fakeElement) OnChange(fn func(ChangeEvent)) { e.onChange = fn }
func (e *fakeElement) Unmount()                      { e.mounted = false }
func (e *fakeElement) Destroy()                      { e.destroyed = true }

func (e *fakeElement) emit(event ChangeEvent) {
	if e.onChange != nil {
		e.onChange(event)
	}
}

type fakeGateway struct {
	ready      bool
	elements   []*fakeElement
	confirmErr error
	confirmed  *Confirmation
	createErr  error
}

func (g *fakeGateway) Ready() bool { return g.ready }

func (g *fakeGateway) CreateElement(style StyleConfig) (Element, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	element := &fakeElement{}
	g.elements = append(g.elements, element)
	return element, nil
}

func (g *fakeGateway) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	if g.confirmed != nil {
		return g.confirmed, nil
	}
	return &Confirmation{ConfirmationID: "pay_ok", Amount: req.Amount}, nil
}

func testAdapter(t *testing.T, gateway *fakeGateway) *Adapter {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "widget-test", Level: zerolog.Disabled, Output: io.Discard})
	adapter, err := NewAdapter(gateway, logg, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return adapter
}

func TestMount_SecondCallIsNoOp(t *testing.T) {
	gateway := &fakeGateway{ready: true}
	adapter := testAdapter(t, gateway)
	ctx := context.Background()

	if err := adapter.Mount(ctx, "#card"); err != nil {
		t.Fatalf("first mount: %v", err)
	}
	if err := adapter.Mount(ctx, "#card"); err != nil {
		t.Fatalf("second mount: %v", err)
	}
	if len(gateway.elements) != 1 {
		t.Fatalf("expected exactly one element instance, got %d", len(gateway.elements))
	}
}

func TestMount_GatewayNotReady(t *testing.T) {
	adapter := testAdapter(t, &fakeGateway{ready: false})

	err := adapter.Mount(context.Background(), "#card")
	if pkgerrors.KindOf(err) != pkgerrors.KindProcessorError {
		t.Fatalf("expected PROCESSOR_ERROR, got %v", err)
	}
}

func TestMount_ElementMountFailureDestroysIt(t *testing.T) {
	gateway := &failingMountGateway{}
	logg := logger.New(logger.Options{ServiceName: "widget-test", Level: zerolog.Disabled, Output: io.Discard})
	adapter, err := NewAdapter(gateway, logg, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	err = adapter.Mount(context.Background(), "#card")
	if pkgerrors.KindOf(err) != pkgerrors.KindProcessorError {
		t.Fatalf("expected PROCESSOR_ERROR, got %v", err)
	}
	if len(gateway.elements) != 1 || !gateway.elements[0].destroyed {
		t.Fatal("element that failed to mount must be destroyed")
	}

	// a later mount must not be blocked by the failed attempt
	if adapter.Ready() {
		t.Fatal("failed mount must leave the adapter not ready")
	}
}

type failingMountGateway struct{ elements []*fakeElement }

func (g *failingMountGateway) Ready() bool { return true }
func (g *failingMountGateway) CreateElement(style StyleConfig) (Element, error) {
	element := &fakeElement{mountErr: stdErrors.New("container not found")}
	g.elements = append(g.elements, element)
	return element, nil
}
func (g *failingMountGateway) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	return nil, stdErrors.New("not implemented")
}

func TestReadiness_FollowsChangeEvents(t *testing.T) {
	gateway := &fakeGateway{ready: true}
	adapter := testAdapter(t, gateway)

	var lastReady bool
	var lastMessage string
	adapter.SetStatusListener(func(ready bool, message string) {
		lastReady = ready
		lastMessage = message
	})

	if err := adapter.Mount(context.Background(), "#card"); err != nil {
		t.Fatalf("mount: %v", err)
	}
	element := gateway.elements[0]

	if adapter.Ready() {
		t.Fatal("adapter must start not ready")
	}

	element.emit(ChangeEvent{Status: ChangeComplete})
	if !adapter.Ready() || !lastReady {
		t.Fatal("complete emission must mark ready")
	}

	element.emit(ChangeEvent{Status: ChangeInvalid, Reason: "card number is incomplete"})
	if adapter.Ready() || lastReady {
		t.Fatal("invalid emission must clear readiness")
	}
	if adapter.Message() != "card number is incomplete" || lastMessage != "card number is incomplete" {
		t.Fatalf("invalid reason lost: %q", adapter.Message())
	}

	element.emit(ChangeEvent{Status: ChangeEmpty})
	if adapter.Ready() {
		t.Fatal("empty emission must clear readiness")
	}
}

func TestReset_DestroysAndRemounts(t *testing.T) {
	gateway := &fakeGateway{ready: true}
	adapter := testAdapter(t, gateway)
	ctx := context.Background()

	if err := adapter.Mount(ctx, "#card"); err != nil {
		t.Fatalf("mount: %v", err)
	}
	gateway.elements[0].emit(ChangeEvent{Status: ChangeComplete})
	if !adapter.Ready() {
		t.Fatal("precondition: ready")
	}

	if err := adapter.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if !gateway.elements[0].destroyed {
		t.Fatal("previous element must be destroyed before remount")
	}
	if len(gateway.elements) != 2 {
		t.Fatalf("expected a fresh element after reset, got %d instances", len(gateway.elements))
	}
	if adapter.Ready() {
		t.Fatal("readiness must not survive a reset")
	}

	gateway.elements[1].emit(ChangeEvent{Status: ChangeComplete})
	if !adapter.Ready() {
		t.Fatal("fresh element must drive readiness again")
	}
}

func TestTeardown_NoRemount(t *testing.T) {
	gateway := &fakeGateway{ready: true}
	adapter := testAdapter(t, gateway)
	ctx := context.Background()

	if err := adapter.Mount(ctx, "#card"); err != nil {
		t.Fatalf("mount: %v", err)
	}
	adapter.Teardown(ctx)

	if !gateway.elements[0].destroyed {
		t.Fatal("teardown must destroy the element")
	}
	if len(gateway.elements) != 1 {
		t.Fatal("teardown must not remount")
	}
	if adapter.Ready() {
		t.Fatal("teardown must clear readiness")
	}
}

func TestConfirm_RequiresMountedElement(t *testing.T) {
	adapter := testAdapter(t, &fakeGateway{ready: true})

	_, err := adapter.Confirm(context.Background(), ConfirmRequest{ClientSecret: "sec_123"})
	if pkgerrors.KindOf(err) != pkgerrors.KindProcessorError {
		t.Fatalf("expected PROCESSOR_ERROR, got %v", err)
	}
}

func TestConfirm_HappyPath(t *testing.T) {
	gateway := &fakeGateway{ready: true}
	adapter := testAdapter(t, gateway)
	ctx := context.Background()

	if err := adapter.Mount(ctx, "#card"); err != nil {
		t.Fatalf("mount: %v", err)
	}

	confirmation, err := adapter.Confirm(ctx, ConfirmRequest{
		ClientSecret: "sec_123",
		Amount:       decimal.NewFromInt(20),
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmation.ConfirmationID != "pay_ok" {
		t.Fatalf("unexpected confirmation %+v", confirmation)
	}
}

func TestClassifyGatewayError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want pkgerrors.Kind
	}{
		{"declined card", &GatewayError{Type: "card_error", Code: "card_declined"}, pkgerrors.KindCardDeclined},
		{"expired card", &GatewayError{Type: "card_error", Code: "expired_card"}, pkgerrors.KindCardInvalid},
		{"bad cvc", &GatewayError{Type: "card_error", Code: "invalid_cvc"}, pkgerrors.KindCardInvalid},
		{"validation", &GatewayError{Type: "validation_error"}, pkgerrors.KindCardInvalid},
		{"api fault", &GatewayError{Type: "api_error"}, pkgerrors.KindProcessorError},
		{"opaque failure", stdErrors.New("connection dropped"), pkgerrors.KindProcessorError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pkgerrors.KindOf(classifyGatewayError(tc.err)); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

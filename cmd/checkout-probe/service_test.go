package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/manucarbs/ecommerce-monorepo/internal/cart"
	"github.com/manucarbs/ecommerce-monorepo/internal/checkout"
	pkgcheckout "github.com/manucarbs/ecommerce-monorepo/pkg/checkout"
	"github.com/manucarbs/ecommerce-monorepo/pkg/config"
	"github.com/manucarbs/ecommerce-monorepo/pkg/logger"
)

type stubCart struct {
	snapshot *cart.Snapshot
	err      error
}

func (s *stubCart) Snapshot(ctx context.Context) (*cart.Snapshot, error) {
	return s.snapshot, s.err
}

type stubDriver struct {
	startErr   error
	advanceErr error
	mountErr   error
	submitErr  error
	session    checkout.Session

	gotShipping  pkgcheckout.ShippingInfo
	gotContainer string
	calls        []string
}

func (d *stubDriver) Start(ctx context.Context, snapshot cart.Snapshot) error {
	d.calls = append(d.calls, "start")
	return d.startErr
}

func (d *stubDriver) AdvanceFromShipping(ctx context.Context, info pkgcheckout.ShippingInfo) error {
	d.calls = append(d.calls, "advance")
	d.gotShipping = info
	return d.advanceErr
}

func (d *stubDriver) MountWidget(ctx context.Context, container string) error {
	d.calls = append(d.calls, "mount")
	d.gotContainer = container
	return d.mountErr
}

func (d *stubDriver) SubmitPayment(ctx context.Context) error {
	d.calls = append(d.calls, "submit")
	return d.submitErr
}

func (d *stubDriver) Session() checkout.Session { return d.session }

type stubTokens struct {
	gotToken string
	err      error
}

func (s *stubTokens) SupplyToken(token string) error {
	s.gotToken = token
	return s.err
}

func probeConfig() config.ProbeConfig {
	return config.ProbeConfig{
		ShippingAddress: "1 Probe Street",
		ShippingCity:    "San Salvador",
		ShippingPhone:   "+50370000000",
		CardSourceToken: "cnon:card-nonce-ok",
		Container:       "probe-card-element",
	}
}

func probeSnapshot() *cart.Snapshot {
	return &cart.Snapshot{Items: []cart.Item{{
		ProductID:      1,
		UnitPrice:      decimal.NewFromInt(10),
		Quantity:       2,
		AvailableStock: 5,
	}}}
}

func confirmedSession() checkout.Session {
	return checkout.Session{
		Step: checkout.StepConfirmed,
		Confirmation: &checkout.Summary{
			OrderNumber: "ORD-100",
			Amount:      decimal.NewFromInt(20),
			PaymentID:   "pay_abc",
		},
	}
}

func newTestService(t *testing.T, driver *stubDriver, tokens *stubTokens) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Config:       probeConfig(),
		Logger:       logger.New(logger.Options{ServiceName: "probe-test", Level: zerolog.Disabled, Output: io.Discard}),
		Cart:         &stubCart{snapshot: probeSnapshot()},
		Orchestrator: driver,
		Tokens:       tokens,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func TestRun_HappyPath(t *testing.T) {
	driver := &stubDriver{session: confirmedSession()}
	tokens := &stubTokens{}
	service := newTestService(t, driver, tokens)

	if err := service.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := strings.Join(driver.calls, ","); got != "start,advance,mount,submit" {
		t.Fatalf("unexpected call order %s", got)
	}
	if driver.gotShipping.Address != "1 Probe Street" || driver.gotShipping.City != "San Salvador" {
		t.Fatalf("unexpected shipping %+v", driver.gotShipping)
	}
	if driver.gotContainer != "probe-card-element" {
		t.Fatalf("unexpected container %q", driver.gotContainer)
	}
	if tokens.gotToken != "cnon:card-nonce-ok" {
		t.Fatalf("unexpected token %q", tokens.gotToken)
	}
}

func TestRun_CartFailure(t *testing.T) {
	service, err := NewService(ServiceParams{
		Config:       probeConfig(),
		Logger:       logger.New(logger.Options{ServiceName: "probe-test", Level: zerolog.Disabled, Output: io.Discard}),
		Cart:         &stubCart{err: errors.New("cart unavailable")},
		Orchestrator: &stubDriver{},
		Tokens:       &stubTokens{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := service.Run(context.Background()); err == nil {
		t.Fatal("expected cart failure to surface")
	}
}

func TestRun_SubmitFailure(t *testing.T) {
	driver := &stubDriver{submitErr: errors.New("card declined")}
	service := newTestService(t, driver, &stubTokens{})

	err := service.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "submit payment") {
		t.Fatalf("expected submit failure, got %v", err)
	}
}

func TestRun_UnconfirmedSessionFails(t *testing.T) {
	driver := &stubDriver{session: checkout.Session{Step: checkout.StepFailed}}
	service := newTestService(t, driver, &stubTokens{})

	if err := service.Run(context.Background()); err == nil {
		t.Fatal("expected failure when session never confirmed")
	}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "probe-test", Level: zerolog.Disabled, Output: io.Discard})
	if _, err := NewService(ServiceParams{Logger: logg, Orchestrator: &stubDriver{}, Tokens: &stubTokens{}}); err == nil {
		t.Fatal("expected missing cart to fail")
	}
	if _, err := NewService(ServiceParams{Logger: logg, Cart: &stubCart{}, Tokens: &stubTokens{}}); err == nil {
		t.Fatal("expected missing orchestrator to fail")
	}
}

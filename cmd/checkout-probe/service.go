package main

import (
	"context"
	"fmt"

	"github.com/manucarbs/ecommerce-monorepo/internal/cart"
	"github.com/manucarbs/ecommerce-monorepo/internal/checkout"
	pkgcheckout "github.com/manucarbs/ecommerce-monorepo/pkg/checkout"
	"github.com/manucarbs/ecommerce-monorepo/pkg/config"
	"github.com/manucarbs/ecommerce-monorepo/pkg/logger"
)

type snapshotSource interface {
	Snapshot(ctx context.Context) (*cart.Snapshot, error)
}

type sessionDriver interface {
	Start(ctx context.Context, snapshot cart.Snapshot) error
	AdvanceFromShipping(ctx context.Context, info pkgcheckout.ShippingInfo) error
	MountWidget(ctx context.Context, container string) error
	SubmitPayment(ctx context.Context) error
	Session() checkout.Session
}

type tokenSupplier interface {
	SupplyToken(token string) error
}

// Service drives one scripted checkout end to end against the configured
// backend, using the headless card confirmer in place of a browser widget.
type Service struct {
	cfg          config.ProbeConfig
	logger       *logger.Logger
	cart         snapshotSource
	orchestrator sessionDriver
	tokens       tokenSupplier
}

// ServiceParams collects the probe dependencies.
type ServiceParams struct {
	Config       config.ProbeConfig
	Logger       *logger.Logger
	Cart         snapshotSource
	Orchestrator sessionDriver
	Tokens       tokenSupplier
}

// NewService builds the probe service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart snapshot source required")
	}
	if params.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token supplier required")
	}
	return &Service{
		cfg:          params.Config,
		logger:       params.Logger,
		cart:         params.Cart,
		orchestrator: params.Orchestrator,
		tokens:       params.Tokens,
	}, nil
}

// Run executes the scripted checkout and returns the first failure.
func (s *Service) Run(ctx context.Context) error {
	snapshot, err := s.cart.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load cart snapshot: %w", err)
	}

	if err := s.orchestrator.Start(ctx, *snapshot); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	shipping := pkgcheckout.ShippingInfo{
		Address: s.cfg.ShippingAddress,
		City:    s.cfg.ShippingCity,
		Phone:   s.cfg.ShippingPhone,
		Note:    s.cfg.ShippingNote,
	}
	if err := s.orchestrator.AdvanceFromShipping(ctx, shipping); err != nil {
		return fmt.Errorf("advance from shipping: %w", err)
	}

	if err := s.orchestrator.MountWidget(ctx, s.cfg.Container); err != nil {
		return fmt.Errorf("mount widget: %w", err)
	}
	if err := s.tokens.SupplyToken(s.cfg.CardSourceToken); err != nil {
		return fmt.Errorf("supply card token: %w", err)
	}

	if err := s.orchestrator.SubmitPayment(ctx); err != nil {
		return fmt.Errorf("submit payment: %w", err)
	}

	session := s.orchestrator.Session()
	if session.Step != checkout.StepConfirmed || session.Confirmation == nil {
		return fmt.Errorf("session ended on step %q without confirmation", session.Step)
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"order_number": session.Confirmation.OrderNumber,
		"amount":       session.Confirmation.Amount.String(),
		"payment_id":   session.Confirmation.PaymentID,
	})
	s.logger.Info(ctx, "probe checkout confirmed")
	return nil
}

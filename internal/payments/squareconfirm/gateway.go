// Package squareconfirm provides a headless implementation of the payment
// widget capability backed by the Square Payments API. It captures card data
// as a source token supplied out of band (sandbox nonces for smoke checkouts)
// so the orchestrator can run end to end without a browser.
package squareconfirm

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/manucarbs/ecommerce-monorepo/internal/payments/widget"
	"github.com/manucarbs/ecommerce-monorepo/pkg/config"
	"github.com/manucarbs/ecommerce-monorepo/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = stdErrors.New("square access token is required")
	errLocationRequired    = stdErrors.New("square location id is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = stdErrors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

var centsFactor = decimal.NewFromInt(100)

// amountToCents converts a decimal major-unit amount to minor units, rounding
// half away from zero so sub-cent fractions are never silently truncated.
func amountToCents(amount decimal.Decimal) int64 {
	return amount.Mul(centsFactor).Round(0).IntPart()
}

// Gateway confirms payments against Square with centralized auth, logging,
// idempotency, and error mapping.
type Gateway struct {
	sdk         *sqclient.Client
	environment string
	locationID  string
	logger      *logger.Logger
	initialized bool

	mu      sync.Mutex
	element *cardTokenElement
}

// NewGateway initializes the Square wrapper and validates the credentials.
func NewGateway(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Gateway, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURLs[env]),
		sqoption.WithToken(accessToken),
	)

	g := &Gateway{
		sdk:         sdk,
		environment: env,
		locationID:  locationID,
		logger:      logg,
		initialized: true,
	}

	logg.Info(ctx, "square confirm gateway initialized")
	return g, nil
}

// Ready reports whether the SDK finished initializing.
func (g *Gateway) Ready() bool {
	return g != nil && g.initialized
}

// CreateElement returns a headless card element that accepts a pre-tokenized
// card source instead of raw card input.
func (g *Gateway) CreateElement(_ widget.StyleConfig) (widget.Element, error) {
	if !g.Ready() {
		return nil, stdErrors.New("square confirm gateway not initialized")
	}
	element := &cardTokenElement{}
	g.mu.Lock()
	g.element = element
	g.mu.Unlock()
	return element, nil
}

// SupplyToken forwards a pre-tokenized card source to the current element,
// standing in for the user completing the card form.
func (g *Gateway) SupplyToken(token string) error {
	g.mu.Lock()
	element := g.element
	g.mu.Unlock()
	if element == nil {
		return stdErrors.New("no card element has been created")
	}
	element.SupplyToken(token)
	return nil
}

// ConfirmPayment charges the captured source token for the intent amount.
func (g *Gateway) ConfirmPayment(ctx context.Context, req widget.ConfirmRequest) (*widget.Confirmation, error) {
	element, ok := req.Method.Element.(*cardTokenElement)
	if !ok || element == nil {
		return nil, &widget.GatewayError{Type: "validation_error", Message: "payment method is not a square card token"}
	}
	token := element.token()
	if token == "" {
		return nil, &widget.GatewayError{Type: "validation_error", Message: "no card token captured"}
	}

	amountCents := amountToCents(req.Amount)
	if amountCents <= 0 {
		return nil, &widget.GatewayError{Type: "validation_error", Message: "confirm amount must be positive"}
	}

	ctx = g.logger.WithFields(ctx, map[string]any{
		"operation":   "confirm_payment",
		"location_id": g.locationID,
		"amount":      amountCents,
	})
	g.logger.Info(ctx, "square confirm request")

	request := &sq.CreatePaymentRequest{
		IdempotencyKey: fmt.Sprintf("confirm-%s", uuid.NewString()),
		LocationID:     &g.locationID,
		SourceID:       token,
		AmountMoney:    moneyPtr(amountCents, req.Currency),
		ReferenceID:    ptrString(req.ClientSecret),
	}

	resp, err := g.sdk.Payments.Create(ctx, request)
	if err != nil {
		g.logger.Error(ctx, "square confirm failed", err)
		return nil, g.mapSquareError(err)
	}

	payment := resp.GetPayment()
	paymentID := stringValue(payment.GetID())
	if paymentID == "" {
		return nil, &widget.GatewayError{Type: "api_error", Message: "square returned no payment id"}
	}

	ctx = g.logger.WithField(ctx, "payment_id", paymentID)
	g.logger.Info(ctx, "square confirm response")
	return &widget.Confirmation{
		ConfirmationID: paymentID,
		Amount:         req.Amount,
	}, nil
}

// mapSquareError translates SDK failures into the structured gateway errors
// the widget adapter classifies.
func (g *Gateway) mapSquareError(err error) error {
	var apiErr *sqcore.APIError
	if !stdErrors.As(err, &apiErr) {
		return &widget.GatewayError{Type: "api_error", Message: err.Error()}
	}

	for _, sqErr := range extractSquareErrors(apiErr) {
		if sqErr == nil {
			continue
		}
		switch sqErr.Code {
		case sq.ErrorCodeCardDeclined, sq.ErrorCodeGenericDecline:
			return &widget.GatewayError{Type: "card_error", Code: "card_declined", Message: detailOrDefault(sqErr, "card declined")}
		case sq.ErrorCodeCardExpired, sq.ErrorCodeInvalidExpiration:
			return &widget.GatewayError{Type: "card_error", Code: "expired_card", Message: detailOrDefault(sqErr, "card expired")}
		case sq.ErrorCodeInvalidCard, sq.ErrorCodeCvvFailure:
			return &widget.GatewayError{Type: "card_error", Code: "invalid_cvc", Message: detailOrDefault(sqErr, "invalid card data")}
		}
		if sqErr.Category == sq.ErrorCategoryPaymentMethodError {
			return &widget.GatewayError{Type: "card_error", Message: detailOrDefault(sqErr, "payment method rejected")}
		}
	}

	if apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError {
		return &widget.GatewayError{Type: "validation_error", Message: apiErr.Error()}
	}
	return &widget.GatewayError{Type: "api_error", Message: apiErr.Error()}
}

func extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func detailOrDefault(sqErr *sq.Error, fallback string) string {
	if sqErr != nil && sqErr.Detail != nil && strings.TrimSpace(*sqErr.Detail) != "" {
		return *sqErr.Detail
	}
	return fallback
}

// cardTokenElement stands in for a browser card element. Supplying a source
// token is the headless analogue of the user completing the card form.
type cardTokenElement struct {
	mu        sync.Mutex
	mounted   bool
	destroyed bool
	source    string
	onChange  func(widget.ChangeEvent)
}

// SupplyToken records the pre-tokenized card source and emits a complete
// change event.
func (e *cardTokenElement) SupplyToken(token string) {
	e.mu.Lock()
	e.source = strings.TrimSpace(token)
	listener := e.onChange
	status := widget.ChangeComplete
	if e.source == "" {
		status = widget.ChangeEmpty
	}
	e.mu.Unlock()

	if listener != nil {
		listener(widget.ChangeEvent{Status: status})
	}
}

func (e *cardTokenElement) token() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

func (e *cardTokenElement) Mount(string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return stdErrors.New("card token element already destroyed")
	}
	e.mounted = true
	return nil
}

func (e *cardTokenElement) OnChange(fn func(widget.ChangeEvent)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

func (e *cardTokenElement) Unmount() {
	e.mu.Lock()
	e.mounted = false
	e.mu.Unlock()
}

func (e *cardTokenElement) Destroy() {
	e.mu.Lock()
	e.destroyed = true
	e.source = ""
	e.onChange = nil
	e.mu.Unlock()
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

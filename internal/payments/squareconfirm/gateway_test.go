package squareconfirm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	sqcore "github.com/square/square-go-sdk/core"

	"github.com/manucarbs/ecommerce-monorepo/internal/payments/widget"
	"github.com/manucarbs/ecommerce-monorepo/pkg/config"
	"github.com/manucarbs/ecommerce-monorepo/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "square-test", Level: zerolog.Disabled, Output: io.Discard})
}

func testGateway(t *testing.T) *Gateway {
	t.Helper()
	gateway, err := NewGateway(context.Background(), config.SquareConfig{
		AccessToken: "sandbox-token",
		LocationID:  "L123",
		Env:         "sandbox",
	}, testLogger())
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return gateway
}

func TestNewGateway_RequiresCredentials(t *testing.T) {
	ctx := context.Background()

	if _, err := NewGateway(ctx, config.SquareConfig{LocationID: "L123"}, testLogger()); !errors.Is(err, errAccessTokenRequired) {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if _, err := NewGateway(ctx, config.SquareConfig{AccessToken: "tok"}, testLogger()); !errors.Is(err, errLocationRequired) {
		t.Fatalf("expected missing location error, got %v", err)
	}
	if _, err := NewGateway(ctx, config.SquareConfig{AccessToken: "tok", LocationID: "L123", Env: "staging"}, testLogger()); !errors.Is(err, errInvalidSquareEnv) {
		t.Fatalf("expected invalid environment error, got %v", err)
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != sandboxEnv {
		t.Fatalf("empty environment must default to sandbox, got %q %v", env, err)
	}
	if env, err := normalizeEnv(" Production "); err != nil || env != productionEnv {
		t.Fatalf("environment must be case-insensitive, got %q %v", env, err)
	}
}

func TestAmountToCents(t *testing.T) {
	cases := []struct {
		amount string
		want   int64
	}{
		{"19.99", 1999},
		{"10", 1000},
		{"0.01", 1},
		{"19.999", 2000},
		{"19.994", 1999},
		{"0.005", 1},
	}
	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.amount)
		if err != nil {
			t.Fatalf("bad amount %q: %v", tc.amount, err)
		}
		if got := amountToCents(amount); got != tc.want {
			t.Errorf("amountToCents(%s) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}

func TestCardTokenElement_SupplyTokenEmitsComplete(t *testing.T) {
	gateway := testGateway(t)

	element, err := gateway.CreateElement(widget.StyleConfig{})
	if err != nil {
		t.Fatalf("CreateElement: %v", err)
	}
	if err := element.Mount("#card"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	var events []widget.ChangeEvent
	element.OnChange(func(e widget.ChangeEvent) { events = append(events, e) })

	if err := gateway.SupplyToken("cnon:card-nonce-ok"); err != nil {
		t.Fatalf("SupplyToken: %v", err)
	}
	if err := gateway.SupplyToken("  "); err != nil {
		t.Fatalf("SupplyToken: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 emissions, got %d", len(events))
	}
	if events[0].Status != widget.ChangeComplete {
		t.Fatalf("token must emit complete, got %s", events[0].Status)
	}
	if events[1].Status != widget.ChangeEmpty {
		t.Fatalf("blank token must emit empty, got %s", events[1].Status)
	}
}

func TestCardTokenElement_DestroyClearsToken(t *testing.T) {
	element := &cardTokenElement{}
	element.SupplyToken("cnon:card-nonce-ok")
	element.Destroy()

	if element.token() != "" {
		t.Fatal("destroy must clear the captured token")
	}
	if err := element.Mount("#card"); err == nil {
		t.Fatal("a destroyed element must refuse to mount")
	}
}

func TestSupplyToken_WithoutElement(t *testing.T) {
	gateway := testGateway(t)
	if err := gateway.SupplyToken("cnon:card-nonce-ok"); err == nil {
		t.Fatal("expected an error before any element exists")
	}
}

func TestConfirmPayment_RejectsEmptyToken(t *testing.T) {
	gateway := testGateway(t)
	element, err := gateway.CreateElement(widget.StyleConfig{})
	if err != nil {
		t.Fatalf("CreateElement: %v", err)
	}

	_, err = gateway.ConfirmPayment(context.Background(), widget.ConfirmRequest{
		Method: widget.PaymentMethodRef{Element: element},
	})
	var gatewayErr *widget.GatewayError
	if !errors.As(err, &gatewayErr) || gatewayErr.Type != "validation_error" {
		t.Fatalf("expected validation_error, got %v", err)
	}
}

func TestConfirmPayment_RejectsForeignElement(t *testing.T) {
	gateway := testGateway(t)

	_, err := gateway.ConfirmPayment(context.Background(), widget.ConfirmRequest{})
	var gatewayErr *widget.GatewayError
	if !errors.As(err, &gatewayErr) || gatewayErr.Type != "validation_error" {
		t.Fatalf("expected validation_error, got %v", err)
	}
}

func TestMapSquareError(t *testing.T) {
	gateway := testGateway(t)

	table := []struct {
		name     string
		status   int
		payload  string
		wantType string
		wantCode string
	}{
		{
			name:     "declined",
			status:   http.StatusPaymentRequired,
			payload:  `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED"}]}`,
			wantType: "card_error",
			wantCode: "card_declined",
		},
		{
			name:     "generic decline",
			status:   http.StatusPaymentRequired,
			payload:  `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"GENERIC_DECLINE"}]}`,
			wantType: "card_error",
			wantCode: "card_declined",
		},
		{
			name:     "expired",
			status:   http.StatusBadRequest,
			payload:  `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_EXPIRED"}]}`,
			wantType: "card_error",
			wantCode: "expired_card",
		},
		{
			name:     "cvv failure",
			status:   http.StatusBadRequest,
			payload:  `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CVV_FAILURE"}]}`,
			wantType: "card_error",
			wantCode: "invalid_cvc",
		},
		{
			name:     "other payment method error",
			status:   http.StatusBadRequest,
			payload:  `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"INSUFFICIENT_FUNDS"}]}`,
			wantType: "card_error",
			wantCode: "",
		},
		{
			name:     "client fault",
			status:   http.StatusBadRequest,
			payload:  `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"BAD_REQUEST"}]}`,
			wantType: "validation_error",
			wantCode: "",
		},
		{
			name:     "server fault",
			status:   http.StatusInternalServerError,
			payload:  `{"errors":[{"category":"API_ERROR","code":"INTERNAL_SERVER_ERROR"}]}`,
			wantType: "api_error",
			wantCode: "",
		},
	}
	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			mapped := gateway.mapSquareError(sqcore.NewAPIError(tt.status, errors.New(tt.payload)))

			var gatewayErr *widget.GatewayError
			if !errors.As(mapped, &gatewayErr) {
				t.Fatalf("expected GatewayError, got %T", mapped)
			}
			if gatewayErr.Type != tt.wantType || gatewayErr.Code != tt.wantCode {
				t.Fatalf("got %s/%s, want %s/%s", gatewayErr.Type, gatewayErr.Code, tt.wantType, tt.wantCode)
			}
		})
	}
}

func TestMapSquareError_OpaqueFailure(t *testing.T) {
	gateway := testGateway(t)
	mapped := gateway.mapSquareError(errors.New("connection reset"))

	var gatewayErr *widget.GatewayError
	if !errors.As(mapped, &gatewayErr) || gatewayErr.Type != "api_error" {
		t.Fatalf("expected api_error, got %v", mapped)
	}
}

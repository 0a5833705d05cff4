package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	Backend  BackendConfig
	Cart     CartConfig
	Square   SquareConfig
	Checkout CheckoutConfig
	Probe    ProbeConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"9090"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the storefront backend that owns orders and
// settlement.
type BackendConfig struct {
	BaseURL     string        `envconfig:"STOREFRONT_BACKEND_BASE_URL" required:"true"`
	BearerToken string        `envconfig:"STOREFRONT_BACKEND_BEARER_TOKEN"`
	Timeout     time.Duration `envconfig:"STOREFRONT_BACKEND_TIMEOUT" default:"15s"`
}

// CartConfig points at the upstream cart service that serves snapshots.
type CartConfig struct {
	BaseURL     string        `envconfig:"STOREFRONT_CART_BASE_URL" required:"true"`
	BearerToken string        `envconfig:"STOREFRONT_CART_BEARER_TOKEN"`
	Timeout     time.Duration `envconfig:"STOREFRONT_CART_TIMEOUT" default:"10s"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"STOREFRONT_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CheckoutConfig struct {
	Currency         string        `envconfig:"STOREFRONT_CHECKOUT_CURRENCY" default:"USD"`
	WidgetResetDelay time.Duration `envconfig:"STOREFRONT_CHECKOUT_WIDGET_RESET_DELAY" default:"1500ms"`
}

// ProbeConfig drives the scripted smoke checkout run by cmd/checkout-probe.
type ProbeConfig struct {
	ShippingAddress string `envconfig:"STOREFRONT_PROBE_SHIPPING_ADDRESS" default:"1 Probe Street"`
	ShippingCity    string `envconfig:"STOREFRONT_PROBE_SHIPPING_CITY" default:"San Salvador"`
	ShippingPhone   string `envconfig:"STOREFRONT_PROBE_SHIPPING_PHONE" default:"+50370000000"`
	ShippingNote    string `envconfig:"STOREFRONT_PROBE_SHIPPING_NOTE"`
	CardSourceToken string `envconfig:"STOREFRONT_PROBE_CARD_SOURCE_TOKEN" default:"cnon:card-nonce-ok"`
	Container       string `envconfig:"STOREFRONT_PROBE_CONTAINER" default:"probe-card-element"`
}

package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/manucarbs/ecommerce-monorepo/pkg/config"
	pkgerrors "github.com/manucarbs/ecommerce-monorepo/pkg/errors"
	"github.com/manucarbs/ecommerce-monorepo/pkg/logger"
)

// SnapshotSource provides the read-only cart view consumed at checkout entry.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Client reads cart snapshots from the upstream cart service.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	logger      *logger.Logger
}

// NewClient builds the cart snapshot client.
func NewClient(cfg config.CartConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("cart base url is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("cart logger is required")
	}
	return &Client{
		baseURL:     baseURL,
		bearerToken: strings.TrimSpace(cfg.BearerToken),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logg,
	}, nil
}

// Snapshot fetches the current cart contents. The returned value is a
// point-in-time copy; callers never write through it.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cart", nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.KindUnknown, err, "build cart snapshot request")
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.KindServerError, err, "cart service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.KindServerError, fmt.Sprintf("cart snapshot returned status %d", resp.StatusCode))
	}

	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.KindServerError, err, "decode cart snapshot")
	}

	ctx = c.logger.WithField(ctx, "items", len(snapshot.Items))
	c.logger.Info(ctx, "cart snapshot loaded")
	return &snapshot, nil
}

package checkout

import (
	"fmt"

	"github.com/manucarbs/ecommerce-monorepo/internal/cart"
	pkgerrors "github.com/manucarbs/ecommerce-monorepo/pkg/errors"
)

// StockViolationDetail exposes the data returned to callers when a cart line
// exceeds its recorded availability.
type StockViolationDetail struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name,omitempty"`
	RequestedQty   int    `json:"requested_qty"`
	AvailableStock int    `json:"available_stock"`
}

// ValidateStock re-checks every cart line against the availability recorded
// in the snapshot. Every line must carry a positive quantity no greater than
// its availability. This is a point-in-time pre-flight check; true stock races
// are resolved authoritatively by the backend at order creation.
func ValidateStock(items []cart.Item) error {
	var violations []StockViolationDetail
	for _, item := range items {
		if item.Quantity >= 1 && item.Quantity <= item.AvailableStock {
			continue
		}
		violations = append(violations, StockViolationDetail{
			ProductID:      item.ProductID,
			ProductName:    item.Name,
			RequestedQty:   item.Quantity,
			AvailableStock: item.AvailableStock,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.KindValidation, fmt.Sprintf("cannot purchase %d cart line(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

// StockViolations extracts the violator lines from a ValidateStock error, or
// nil when the error carries none.
func StockViolations(err error) []StockViolationDetail {
	typed := pkgerrors.As(err)
	if typed == nil {
		return nil
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return nil
	}
	violations, ok := details["violations"].([]StockViolationDetail)
	if !ok {
		return nil
	}
	return violations
}

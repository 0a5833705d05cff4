package cart

import "github.com/shopspring/decimal"

// Item is one cart line as captured in the snapshot. AvailableStock is the
// availability figure recorded when the cart was last refreshed, not a live
// reservation.
type Item struct {
	ProductID      int64           `json:"product_id"`
	Name           string          `json:"name,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	AvailableStock int             `json:"available_stock"`
}

// LineTotal returns unit price times quantity for this line.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Snapshot is the read-only view of the cart consumed at checkout entry.
type Snapshot struct {
	Items []Item `json:"items"`
}

// Empty reports whether the snapshot has no purchasable lines.
func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}

// Total sums the line totals across the snapshot.
func (s Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

package domain

import "time"

// Product is a catalog snapshot as seen by the cart: the cart reads
// price, stock and the prescription flag, and never mutates it.
type Product struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	PriceCents           int64     `json:"priceCents"`
	OriginalPriceCents   int64     `json:"originalPriceCents,omitempty"`
	StockCount           *int      `json:"stockCount,omitempty"`
	InStock              bool      `json:"inStock"`
	RequiresPrescription bool      `json:"requiresPrescription"`
	CreatedAt            time.Time `json:"createdAt"`
}

// DefaultStockLimit is the quantity ceiling for products that do not
// report a stock count.
const DefaultStockLimit = 99

// StockLimit returns the clamp ceiling for this product's cart quantity.
func (p Product) StockLimit() int {
	if p.StockCount == nil {
		return DefaultStockLimit
	}
	return *p.StockCount
}

package domain

import "time"

// CartLine holds a quantity of one product. A cart never contains two
// lines for the same product; adding an existing product increments the
// quantity instead.
type CartLine struct {
	ProductID                string    `json:"productId"`
	Product                  Product   `json:"product"`
	Quantity                 int       `json:"quantity"`
	AddedAt                  time.Time `json:"addedAt"`
	PrescriptionAcknowledged bool      `json:"prescriptionAcknowledged"`
}

// Totals is derived state. It is only ever produced by the totals
// calculator; nothing assigns its fields piecemeal.
type Totals struct {
	ItemCount        int   `json:"itemCount"`
	SubtotalCents    int64 `json:"subtotalCents"`
	TaxCents         int64 `json:"taxCents"`
	DeliveryFeeCents int64 `json:"deliveryFeeCents"`
	DiscountCents    int64 `json:"discountCents"`
	TotalCents       int64 `json:"totalCents"`
}

// CartState is the aggregate owned by the reducer. Lines are kept in
// insertion order, which is also display order.
type CartState struct {
	Lines         []CartLine `json:"lines"`
	IsOpen        bool       `json:"isOpen"`
	DiscountCents int64      `json:"discountCents"`
	Totals        Totals     `json:"totals"`
}

// RemoteLine is a row of the per-user cart_lines table joined with its
// product snapshot. ExpiresAt is informational: expiry is enforced by
// the store, the cart engine only surfaces it as a hint.
type RemoteLine struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Product   Product   `json:"product"`
}

// ToCartLine converts the stored row into the in-memory line shape used
// by the reducer.
func (l RemoteLine) ToCartLine() CartLine {
	return CartLine{
		ProductID:                l.ProductID,
		Product:                  l.Product,
		Quantity:                 l.Quantity,
		AddedAt:                  l.CreatedAt,
		PrescriptionAcknowledged: !l.Product.RequiresPrescription,
	}
}

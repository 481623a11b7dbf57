package cart

import (
	"math"

	"pharmacart/internal/domain"
)

// Pricing holds the configured rates applied by the totals calculator.
type Pricing struct {
	TaxRate          float64
	DeliveryFeeCents int64
}

// calculateTotals derives cart totals from the line list and the session
// discount. Pure and order-independent over lines; the total is floored
// at zero.
func calculateTotals(lines []domain.CartLine, discountCents int64, pricing Pricing) domain.Totals {
	totals := domain.Totals{DiscountCents: discountCents}
	for _, line := range lines {
		totals.ItemCount += line.Quantity
		totals.SubtotalCents += line.Product.PriceCents * int64(line.Quantity)
	}
	totals.TaxCents = int64(math.Round(float64(totals.SubtotalCents) * pricing.TaxRate))
	if totals.ItemCount > 0 {
		totals.DeliveryFeeCents = pricing.DeliveryFeeCents
	}
	total := totals.SubtotalCents + totals.TaxCents + totals.DeliveryFeeCents - discountCents
	if total < 0 {
		total = 0
	}
	totals.TotalCents = total
	return totals
}

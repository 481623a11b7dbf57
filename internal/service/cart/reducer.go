package cart

import (
	"time"

	"pharmacart/internal/domain"
)

type actionType int

const (
	actionAddLine actionType = iota
	actionRemoveLine
	actionSetQuantity
	actionClear
	actionToggleOpen
	actionSetOpen
	actionApplyDiscount
	actionReplaceLines
	actionAckPrescription
)

// action is a single reducer transition input. Which fields are read
// depends on typ.
type action struct {
	typ           actionType
	product       domain.Product
	productID     string
	quantity      int
	discountCents int64
	open          bool
	lines         []domain.CartLine
}

// reduce maps a cart state and an action to the next state. It never
// mutates its input; every transition ends by recomputing totals from
// the resulting lines and discount.
func reduce(state domain.CartState, a action, pricing Pricing, now time.Time) domain.CartState {
	next := state
	next.Lines = append([]domain.CartLine(nil), state.Lines...)

	switch a.typ {
	case actionAddLine:
		limit := a.product.StockLimit()
		if idx := findLine(next.Lines, a.product.ID); idx >= 0 {
			next.Lines[idx].Quantity = clampQuantity(next.Lines[idx].Quantity+a.quantity, limit)
		} else {
			next.Lines = append(next.Lines, domain.CartLine{
				ProductID:                a.product.ID,
				Product:                  a.product,
				Quantity:                 clampQuantity(a.quantity, limit),
				AddedAt:                  now,
				PrescriptionAcknowledged: !a.product.RequiresPrescription,
			})
		}
	case actionRemoveLine:
		next.Lines = removeLine(next.Lines, a.productID)
	case actionSetQuantity:
		if a.quantity <= 0 {
			next.Lines = removeLine(next.Lines, a.productID)
		} else if idx := findLine(next.Lines, a.productID); idx >= 0 {
			limit := next.Lines[idx].Product.StockLimit()
			next.Lines[idx].Quantity = clampQuantity(a.quantity, limit)
		}
	case actionClear:
		next.Lines = nil
	case actionToggleOpen:
		next.IsOpen = !next.IsOpen
	case actionSetOpen:
		next.IsOpen = a.open
	case actionApplyDiscount:
		next.DiscountCents = a.discountCents
	case actionReplaceLines:
		next.Lines = append([]domain.CartLine(nil), a.lines...)
	case actionAckPrescription:
		if idx := findLine(next.Lines, a.productID); idx >= 0 {
			next.Lines[idx].PrescriptionAcknowledged = true
		}
	}

	next.Totals = calculateTotals(next.Lines, next.DiscountCents, pricing)
	return next
}

func findLine(lines []domain.CartLine, productID string) int {
	for i, line := range lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func removeLine(lines []domain.CartLine, productID string) []domain.CartLine {
	out := lines[:0]
	for _, line := range lines {
		if line.ProductID != productID {
			out = append(out, line)
		}
	}
	return out
}

func clampQuantity(quantity, limit int) int {
	if quantity < 1 {
		quantity = 1
	}
	if quantity > limit {
		quantity = limit
	}
	return quantity
}

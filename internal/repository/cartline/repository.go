package cartline

import (
	"context"

	"pharmacart/internal/domain"
)

// Repository is the per-user cart-line table. It is the source of truth
// for authenticated carts; every write refreshes the row's expiry.
type Repository interface {
	ListForUser(ctx context.Context, userID string) ([]domain.RemoteLine, error)
	UpsertQuantity(ctx context.Context, userID, productID string, delta int) error
	UpdateQuantity(ctx context.Context, lineID string, quantity int) error
	Delete(ctx context.Context, lineID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

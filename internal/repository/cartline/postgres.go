package cartline

import (
	"context"
	"time"

	"pharmacart/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPostgres builds the Postgres-backed cart-line store. ttl is the
// sliding expiry applied on every write.
func NewPostgres(pool *pgxpool.Pool, ttl time.Duration) Repository {
	return &postgresRepo{pool: pool, ttl: ttl}
}

func (r *postgresRepo) ListForUser(ctx context.Context, userID string) ([]domain.RemoteLine, error) {
	const q = `
SELECT cl.id::text, cl.user_id, cl.product_id::text, cl.quantity, cl.created_at, cl.expires_at,
       p.name, p.description, p.price_cents, p.original_price_cents, p.stock_count,
       p.in_stock, p.requires_prescription, p.created_at
FROM cart_lines cl
JOIN products p ON p.id = cl.product_id
WHERE cl.user_id = $1 AND cl.expires_at > now()
ORDER BY cl.created_at ASC
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.RemoteLine
	for rows.Next() {
		var line domain.RemoteLine
		if err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.ProductID,
			&line.Quantity,
			&line.CreatedAt,
			&line.ExpiresAt,
			&line.Product.Name,
			&line.Product.Description,
			&line.Product.PriceCents,
			&line.Product.OriginalPriceCents,
			&line.Product.StockCount,
			&line.Product.InStock,
			&line.Product.RequiresPrescription,
			&line.Product.CreatedAt,
		); err != nil {
			return nil, err
		}
		line.Product.ID = line.ProductID
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *postgresRepo) UpsertQuantity(ctx context.Context, userID, productID string, delta int) error {
	const q = `
INSERT INTO cart_lines (user_id, product_id, quantity, expires_at)
SELECT $1, p.id, GREATEST(1, LEAST($3, COALESCE(p.stock_count, $5))), $4
FROM products p
WHERE p.id = $2
ON CONFLICT (user_id, product_id) DO UPDATE
SET quantity = GREATEST(1, LEAST(
        cart_lines.quantity + $3,
        COALESCE((SELECT stock_count FROM products WHERE id = $2), $5))),
    expires_at = $4
`
	cmd, err := r.pool.Exec(ctx, q, userID, productID, delta, time.Now().Add(r.ttl), domain.DefaultStockLimit)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	const q = `
UPDATE cart_lines cl
SET quantity = GREATEST(1, LEAST($2, COALESCE(p.stock_count, $3))),
    expires_at = $4
FROM products p
WHERE cl.id = $1 AND p.id = cl.product_id
`
	cmd, err := r.pool.Exec(ctx, q, lineID, quantity, domain.DefaultStockLimit, time.Now().Add(r.ttl))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, lineID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	return err
}

func (r *postgresRepo) DeleteExpired(ctx context.Context) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

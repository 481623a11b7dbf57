package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type productSeed struct {
	Name                 string
	Description          string
	PriceCents           int64
	OriginalPriceCents   int64
	StockCount           *int
	InStock              bool
	RequiresPrescription bool
}

func intPtr(n int) *int { return &n }

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	products := []productSeed{
		{
			Name:        "Paracetamol 500mg (20 tablets)",
			Description: "Pain and fever relief",
			PriceCents:  499,
			StockCount:  intPtr(120),
			InStock:     true,
		},
		{
			Name:               "Ibuprofen 200mg (24 tablets)",
			Description:        "Anti-inflammatory pain relief",
			PriceCents:         649,
			OriginalPriceCents: 799,
			StockCount:         intPtr(80),
			InStock:            true,
		},
		{
			Name:                 "Amoxicillin 250mg (21 capsules)",
			Description:          "Broad-spectrum antibiotic",
			PriceCents:           1250,
			StockCount:           intPtr(25),
			InStock:              true,
			RequiresPrescription: true,
		},
		{
			Name:        "Vitamin D3 1000 IU (90 softgels)",
			Description: "Daily vitamin D supplement",
			PriceCents:  899,
			InStock:     true,
		},
		{
			Name:        "Hydrocortisone Cream 1% (30g)",
			Description: "Topical relief for itching and rashes",
			PriceCents:  549,
			StockCount:  intPtr(0),
			InStock:     false,
		},
	}

	for _, p := range products {
		if err := upsertProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
	}

	return nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productSeed) error {
	const q = `
INSERT INTO products (name, description, price_cents, original_price_cents, stock_count, in_stock, requires_prescription)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (name) DO UPDATE
SET description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    original_price_cents = EXCLUDED.original_price_cents,
    stock_count = EXCLUDED.stock_count,
    in_stock = EXCLUDED.in_stock,
    requires_prescription = EXCLUDED.requires_prescription
`
	_, err := pool.Exec(ctx, q, p.Name, p.Description, p.PriceCents, p.OriginalPriceCents, p.StockCount, p.InStock, p.RequiresPrescription)
	if err != nil {
		return err
	}
	return nil
}

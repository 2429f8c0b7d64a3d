package products

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type seedProduct struct {
	title       string
	description string
	variants    []seedVariant
}

type seedVariant struct {
	options map[string]any
	price   string
	compare string
	stock   int
}

var demoProducts = []seedProduct{
	{
		title:       "Classic Tee",
		description: "Soft cotton t-shirt with a relaxed fit.",
		variants: []seedVariant{
			{options: map[string]any{"size": "S", "color": "black"}, price: "19.99", compare: "24.99", stock: 25},
			{options: map[string]any{"size": "M", "color": "black"}, price: "19.99", compare: "24.99", stock: 40},
			{options: map[string]any{"size": "L", "color": "white"}, price: "21.50", stock: 12},
		},
	},
	{
		title:       "Canvas Tote",
		description: "Heavy canvas bag for everyday carry.",
		variants: []seedVariant{
			{options: map[string]any{"color": "natural"}, price: "14.00", stock: 60},
			{options: map[string]any{"color": "navy"}, price: "15.00", stock: 0},
		},
	},
	{
		title:       "Ceramic Mug",
		description: "Stoneware mug, 350ml.",
		variants: []seedVariant{
			{options: map[string]any{"glaze": "matte"}, price: "12.50", stock: 18},
			{options: map[string]any{"glaze": "gloss"}, price: "12.50", compare: "15.00", stock: 7},
		},
	},
}

// Seed inserts the demo catalog when the products table is empty. It
// reports whether anything was inserted.
func (c *Conf) Seed(ctx context.Context) (bool, error) {
	inserted := false
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count products: %w", err)
		}
		if count > 0 {
			return nil
		}

		for _, sp := range demoProducts {
			slug := slugify(sp.title)
			var productID int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO products (title, slug, description, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, NOW(), NOW())
				RETURNING id`,
				sp.title, slug, sp.description, StatusActive,
			).Scan(&productID)
			if err != nil {
				return fmt.Errorf("failed to insert product %q: %w", sp.title, err)
			}

			for i, sv := range sp.variants {
				options, err := json.Marshal(sv.options)
				if err != nil {
					return fmt.Errorf("failed to encode variant options: %w", err)
				}
				compare := decimal.NullDecimal{}
				if sv.compare != "" {
					compare = decimal.NewNullDecimal(decimal.RequireFromString(sv.compare))
				}
				_, err = tx.ExecContext(ctx, `
					INSERT INTO variants (product_id, sku, price, compare_at_price, options, stock, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
					productID, fmt.Sprintf("%s-%d", strings.ToUpper(slug), i+1),
					decimal.RequireFromString(sv.price), compare, string(options), sv.stock,
				)
				if err != nil {
					return fmt.Errorf("failed to insert variant for %q: %w", sp.title, err)
				}
			}
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

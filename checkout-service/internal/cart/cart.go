package cart

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// MaxTokenLength matches the width of carts.token.
const MaxTokenLength = 64

type Cart struct {
	ID    int64
	Token string
}

type Item struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// Resolve returns the cart identified by token, creating it on first use.
// An empty token always creates a new cart with a generated token.
func (c *Conf) Resolve(ctx context.Context, token string) (Cart, error) {
	if token == "" {
		token = uuid.NewString()
	}

	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO carts (token, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (token) DO UPDATE SET token = EXCLUDED.token
		RETURNING id, token
	`
	var cart Cart
	if err := c.db.QueryRowContext(ctx, query, token).Scan(&cart.ID, &cart.Token); err != nil {
		return Cart{}, fmt.Errorf("failed to resolve cart: %w", err)
	}
	return cart, nil
}

// Items returns the lines of a cart in insertion order.
func (c *Conf) Items(ctx context.Context, cartID int64) ([]Item, error) {
	query := `
		SELECT variant_id, quantity
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id
	`
	rows, err := c.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.VariantID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return items, nil
}

// AddItem increments the quantity of a line, creating it if needed. The
// increment happens in a single statement so concurrent adds are not lost.
func (c *Conf) AddItem(ctx context.Context, cartID, variantID int64, quantity int) error {
	query := `
		INSERT INTO cart_items (cart_id, variant_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
	`
	if _, err := c.db.ExecContext(ctx, query, cartID, variantID, quantity); err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

// SetQuantity sets the quantity of a line. Zero removes the line.
func (c *Conf) SetQuantity(ctx context.Context, cartID, variantID int64, quantity int) error {
	if quantity == 0 {
		return c.RemoveItem(ctx, cartID, variantID)
	}

	query := `
		INSERT INTO cart_items (cart_id, variant_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
	`
	if _, err := c.db.ExecContext(ctx, query, cartID, variantID, quantity); err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return nil
}

func (c *Conf) RemoveItem(ctx context.Context, cartID, variantID int64) error {
	query := `DELETE FROM cart_items WHERE cart_id = $1 AND variant_id = $2`
	if _, err := c.db.ExecContext(ctx, query, cartID, variantID); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// Clear removes every line. The cart row and its token stay valid.
func (c *Conf) Clear(ctx context.Context, cartID int64) error {
	query := `DELETE FROM cart_items WHERE cart_id = $1`
	if _, err := c.db.ExecContext(ctx, query, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

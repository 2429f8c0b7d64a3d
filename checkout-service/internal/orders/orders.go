package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// CreateOrder persists a validated order in a single statement.
func (c *Conf) CreateOrder(ctx context.Context, v Validated) (Order, error) {
	items, err := json.Marshal(v.Items)
	if err != nil {
		return Order{}, fmt.Errorf("failed to encode order items: %w", err)
	}

	query := `
		INSERT INTO orders (email, items, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	o := Order{
		Email:       v.Email,
		Items:       v.Items,
		TotalAmount: v.TotalAmount.Round(2),
	}
	err = c.db.QueryRowContext(ctx, query, v.Email, string(items), o.TotalAmount).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("failed to insert order: %w", err)
	}
	return o, nil
}

package products

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"storefront/pkg/logkey"
)

var ErrNotFound = errors.New("product not found")

type Conf struct {
	db    *sql.DB
	cache Cache
}

// NewConf returns the product store. A nil cache disables caching.
func NewConf(db *sql.DB, cache Cache) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &Conf{db: db, cache: cache}, nil
}

const productColumns = `id, title, slug, COALESCE(description, ''), status, created_at, updated_at`

const variantColumns = `id, product_id, sku, price, compare_at_price, options, stock`

func (c *Conf) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return c.scanProducts(ctx, rows)
}

// GetProduct returns one product with its variants, reading through the cache.
func (c *Conf) GetProduct(ctx context.Context, id int64) (Product, error) {
	cached, err := c.cache.Get(ctx, id)
	if err == nil {
		return *cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		slog.Warn("product cache read failed", slog.Int64("product_id", id), slog.String(logkey.ERROR, err.Error()))
	}

	rows, err := c.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		return Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	ps, err := c.scanProducts(ctx, rows)
	if err != nil {
		return Product{}, err
	}
	if len(ps) == 0 {
		return Product{}, ErrNotFound
	}

	if err := c.cache.Set(ctx, ps[0]); err != nil {
		slog.Warn("product cache write failed", slog.Int64("product_id", id), slog.String(logkey.ERROR, err.Error()))
	}
	return ps[0], nil
}

// ProductsByIDs returns the products with the given ids, ordered by id.
func (c *Conf) ProductsByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return c.scanProducts(ctx, rows)
}

// ProductIDsForVariants returns the distinct owning product ids of the variants.
func (c *Conf) ProductIDsForVariants(ctx context.Context, variantIDs []int64) ([]int64, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT product_id FROM variants WHERE id = ANY($1) ORDER BY product_id`, pq.Array(variantIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query variant products: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variant products: %w", err)
	}
	return ids, nil
}

// ValidateProducts returns the union of the products named directly and the
// products owning the given variants, each product once.
func (c *Conf) ValidateProducts(ctx context.Context, productIDs, variantIDs []int64) ([]Product, error) {
	direct, err := c.ProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	owners, err := c.ProductIDsForVariants(ctx, variantIDs)
	if err != nil {
		return nil, err
	}
	viaVariants, err := c.ProductsByIDs(ctx, owners)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(direct)+len(viaVariants))
	out := make([]Product, 0, len(direct)+len(viaVariants))
	for _, p := range append(direct, viaVariants...) {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// VariantsByIDs returns the variants with the given ids keyed by id. Unknown
// ids are simply absent from the result.
func (c *Conf) VariantsByIDs(ctx context.Context, ids []int64) (map[int64]Variant, error) {
	out := make(map[int64]Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := c.db.QueryContext(ctx, `SELECT `+variantColumns+` FROM variants WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	variants, err := scanVariants(rows)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		out[v.ID] = v
	}
	return out, nil
}

func (c *Conf) scanProducts(ctx context.Context, rows *sql.Rows) ([]Product, error) {
	defer rows.Close()

	var ps []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Variants = []Variant{}
		ps = append(ps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	rows.Close()

	if len(ps) == 0 {
		return ps, nil
	}
	return ps, c.attachVariants(ctx, ps)
}

func (c *Conf) attachVariants(ctx context.Context, ps []Product) error {
	ids := make([]int64, 0, len(ps))
	index := make(map[int64]int, len(ps))
	for i, p := range ps {
		ids = append(ids, p.ID)
		index[p.ID] = i
	}

	rows, err := c.db.QueryContext(ctx, `SELECT `+variantColumns+` FROM variants WHERE product_id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query variants: %w", err)
	}
	variants, err := scanVariants(rows)
	if err != nil {
		return err
	}
	for _, v := range variants {
		if i, ok := index[v.ProductID]; ok {
			ps[i].Variants = append(ps[i].Variants, v)
		}
	}
	return nil
}

func scanVariants(rows *sql.Rows) ([]Variant, error) {
	defer rows.Close()

	var out []Variant
	for rows.Next() {
		var (
			v       Variant
			options []byte
		)
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Price, &v.CompareAtPrice, &options, &v.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &v.Options); err != nil {
				return nil, fmt.Errorf("failed to decode variant options: %w", err)
			}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}
	return out, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", er)
		}
		return fmt.Errorf("failed to execute withTx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}

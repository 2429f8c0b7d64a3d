package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product statuses.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Variants    []Variant `json:"variants"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Variant struct {
	ID             int64               `json:"id"`
	ProductID      int64               `json:"product_id"`
	SKU            string              `json:"sku"`
	Price          decimal.Decimal     `json:"price"`
	CompareAtPrice decimal.NullDecimal `json:"compare_at_price"`
	Options        map[string]any      `json:"options"`
	Stock          int                 `json:"stock"`
}

// ProductResource is the public representation of a product.
type ProductResource struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Status      string            `json:"status"`
	Variants    []VariantResource `json:"variants"`
}

// VariantResource renders prices with exactly two decimals.
type VariantResource struct {
	ID             int64          `json:"id"`
	SKU            string         `json:"sku"`
	Price          string         `json:"price"`
	CompareAtPrice *string        `json:"compare_at_price"`
	Options        map[string]any `json:"options"`
	Stock          int            `json:"stock"`
}

func NewProductResource(p Product) ProductResource {
	variants := make([]VariantResource, 0, len(p.Variants))
	for _, v := range p.Variants {
		vr := VariantResource{
			ID:      v.ID,
			SKU:     v.SKU,
			Price:   v.Price.StringFixed(2),
			Options: v.Options,
			Stock:   v.Stock,
		}
		if v.CompareAtPrice.Valid {
			s := v.CompareAtPrice.Decimal.StringFixed(2)
			vr.CompareAtPrice = &s
		}
		if vr.Options == nil {
			vr.Options = map[string]any{}
		}
		variants = append(variants, vr)
	}
	return ProductResource{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		Status:      p.Status,
		Variants:    variants,
	}
}

func NewProductResources(ps []Product) []ProductResource {
	out := make([]ProductResource, 0, len(ps))
	for _, p := range ps {
		out = append(out, NewProductResource(p))
	}
	return out
}

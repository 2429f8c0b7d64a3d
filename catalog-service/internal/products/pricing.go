package products

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/pkg/validation"
)

// Messages reported per line item.
const (
	MsgVariantNotFound   = "Variant not found."
	MsgVariantMismatch   = "Variant does not belong to product."
	MsgInsufficientStock = "Insufficient stock."
)

// pricePlaces is the number of decimals line totals and order totals are
// rounded to. decimal.Round rounds half away from zero.
const pricePlaces = 2

// LineItem is one product/variant/quantity tuple to be priced.
type LineItem struct {
	ProductID int64 `json:"product_id" validate:"required"`
	VariantID int64 `json:"variant_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"min=1"`
}

// PricedItem is a line item accepted by catalog. Prices are encoded as
// plain JSON numbers.
type PricedItem struct {
	ProductID  int64
	VariantID  int64
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

func (p PricedItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ProductID  int64       `json:"product_id"`
		VariantID  int64       `json:"variant_id"`
		Quantity   int         `json:"quantity"`
		UnitPrice  json.Number `json:"unit_price"`
		TotalPrice json.Number `json:"total_price"`
	}{
		ProductID:  p.ProductID,
		VariantID:  p.VariantID,
		Quantity:   p.Quantity,
		UnitPrice:  json.Number(p.UnitPrice.String()),
		TotalPrice: json.Number(p.TotalPrice.String()),
	})
}

// Quote is the priced result of a fully valid batch.
type Quote struct {
	Items       []PricedItem
	TotalAmount decimal.Decimal
}

func (q Quote) MarshalJSON() ([]byte, error) {
	items := q.Items
	if items == nil {
		items = []PricedItem{}
	}
	return json.Marshal(struct {
		Items       []PricedItem `json:"items"`
		TotalAmount json.Number  `json:"total_amount"`
	}{
		Items:       items,
		TotalAmount: json.Number(q.TotalAmount.String()),
	})
}

// PriceItems checks every item against the variants it references and
// prices the accepted ones. Items are checked independently so one bad
// line does not hide errors on the others. Any error fails the whole batch.
func PriceItems(items []LineItem, variants map[int64]Variant) (Quote, validation.Errors) {
	errs := validation.Errors{}
	quote := Quote{TotalAmount: decimal.Zero}

	for i, item := range items {
		variant, ok := variants[item.VariantID]
		switch {
		case !ok:
			errs.Add(fmt.Sprintf("items.%d.variant_id", i), MsgVariantNotFound)
			continue
		case variant.ProductID != item.ProductID:
			errs.Add(fmt.Sprintf("items.%d.product_id", i), MsgVariantMismatch)
			continue
		case variant.Stock < item.Quantity:
			errs.Add(fmt.Sprintf("items.%d.quantity", i), MsgInsufficientStock)
			continue
		}

		total := variant.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(pricePlaces)
		quote.Items = append(quote.Items, PricedItem{
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			Quantity:   item.Quantity,
			UnitPrice:  variant.Price,
			TotalPrice: total,
		})
		quote.TotalAmount = quote.TotalAmount.Add(total)
	}

	if len(errs) > 0 {
		return Quote{}, errs
	}
	quote.TotalAmount = quote.TotalAmount.Round(pricePlaces)
	return quote, nil
}

// VariantIDs returns the distinct variant ids referenced by items, in order
// of first appearance.
func VariantIDs(items []LineItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.VariantID]; ok {
			continue
		}
		seen[item.VariantID] = struct{}{}
		ids = append(ids, item.VariantID)
	}
	return ids
}

package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const validateItemsPath = "/internal/v1/products/validate-items"

// ErrInconsistentQuote is returned when catalog accepts a batch but its
// answer does not line up with the requested items.
var ErrInconsistentQuote = errors.New("catalog returned items that do not match the request")

// Caller performs a signed JSON POST to a peer service.
type Caller interface {
	Post(ctx context.Context, path string, data any, out any) error
}

// Validator asks catalog to check and price order items. Catalog is the
// only authority for prices and stock.
type Validator struct {
	catalog Caller
}

func NewValidator(catalog Caller) *Validator {
	return &Validator{catalog: catalog}
}

type validateItemsRequest struct {
	Items []LineItem `json:"items"`
}

type validateItemsResponse struct {
	Items       []Item          `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// ValidateOrder sends the items to catalog unchanged. Any catalog failure
// fails the whole order. The order total is the sum of the line totals
// catalog returned.
func (v *Validator) ValidateOrder(ctx context.Context, o NewOrder) (Validated, error) {
	var resp validateItemsResponse
	if err := v.catalog.Post(ctx, validateItemsPath, validateItemsRequest{Items: o.Items}, &resp); err != nil {
		return Validated{}, fmt.Errorf("catalog validation failed: %w", err)
	}

	if len(resp.Items) != len(o.Items) {
		return Validated{}, ErrInconsistentQuote
	}
	total := decimal.Zero
	for i, item := range resp.Items {
		req := o.Items[i]
		if item.ProductID != req.ProductID || item.VariantID != req.VariantID || item.Quantity != req.Quantity {
			return Validated{}, ErrInconsistentQuote
		}
		total = total.Add(item.TotalPrice)
	}

	return Validated{
		Email:       o.Email,
		Items:       resp.Items,
		TotalAmount: total,
	}, nil
}

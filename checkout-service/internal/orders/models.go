package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one requested product/variant/quantity tuple.
type LineItem struct {
	ProductID int64 `json:"product_id" validate:"required"`
	VariantID int64 `json:"variant_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"min=1"`
}

// NewOrder is the public order request.
type NewOrder struct {
	Email string     `json:"email" validate:"required,email"`
	Items []LineItem `json:"items" validate:"required,min=1,dive"`
}

// Item is a line item as priced by catalog.
type Item struct {
	ProductID  int64           `json:"product_id"`
	VariantID  int64           `json:"variant_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// MarshalJSON writes prices as JSON numbers rather than strings.
func (i Item) MarshalJSON() ([]byte, error) {
	type item struct {
		ProductID  int64       `json:"product_id"`
		VariantID  int64       `json:"variant_id"`
		Quantity   int         `json:"quantity"`
		UnitPrice  json.Number `json:"unit_price"`
		TotalPrice json.Number `json:"total_price"`
	}
	return json.Marshal(item{
		ProductID:  i.ProductID,
		VariantID:  i.VariantID,
		Quantity:   i.Quantity,
		UnitPrice:  json.Number(i.UnitPrice.String()),
		TotalPrice: json.Number(i.TotalPrice.String()),
	})
}

// Validated is an order whose items catalog accepted and priced.
type Validated struct {
	Email       string
	Items       []Item
	TotalAmount decimal.Decimal
}

type Order struct {
	ID          int64
	Email       string
	Items       []Item
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (o Order) MarshalJSON() ([]byte, error) {
	items := o.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(struct {
		ID          int64       `json:"id"`
		Email       string      `json:"email"`
		Items       []Item      `json:"items"`
		TotalAmount json.Number `json:"total_amount"`
		CreatedAt   time.Time   `json:"created_at"`
		UpdatedAt   time.Time   `json:"updated_at"`
	}{
		ID:          o.ID,
		Email:       o.Email,
		Items:       items,
		TotalAmount: json.Number(o.TotalAmount.StringFixed(2)),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	})
}

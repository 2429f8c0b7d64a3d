// Package mailer renders the order confirmation and hands it to a Sender.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/shopspring/decimal"
)

// Subject of the order confirmation mail.
const Subject = "Order Confirmation"

//go:embed templates
var templateFS embed.FS

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/order-summary.html"))
	textTmpl = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/order-summary.txt"))
)

type OrderItem struct {
	ProductID  int64           `json:"product_id"`
	VariantID  int64           `json:"variant_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Order is the finalized order as received from checkout.
type Order struct {
	Email       string          `json:"email"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Message is a rendered mail ready for delivery.
type Message struct {
	To        string
	Subject   string
	HTML      string
	Text      string
	RequestID string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// RenderOrderSummary builds the HTML and plain text confirmation for o.
func RenderOrderSummary(o Order, requestID string) (Message, error) {
	data := struct {
		Subject string
		Order   Order
	}{Subject: Subject, Order: o}

	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("failed to render html body: %w", err)
	}
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("failed to render text body: %w", err)
	}

	return Message{
		To:        o.Email,
		Subject:   Subject,
		HTML:      html.String(),
		Text:      text.String(),
		RequestID: requestID,
	}, nil
}

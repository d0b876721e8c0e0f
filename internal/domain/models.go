/**
 * @description
 * Order models consumed by the report aggregator.
 */
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a store order as read from the order source.
type Order struct {
	ID            int64          `json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	Status        string         `json:"status"`
	InvoiceNumber string         `json:"invoice_number"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	City          string         `json:"city"`
	Postcode      string         `json:"postcode"`
	Items         []LineItem     `json:"items"`
	Shipping      []ShippingItem `json:"shipping"`
}

// CustomerName joins the billing first and last name.
func (o Order) CustomerName() string {
	switch {
	case o.FirstName == "":
		return o.LastName
	case o.LastName == "":
		return o.FirstName
	default:
		return o.FirstName + " " + o.LastName
	}
}

// TaxAmount is the tax charged under one rate.
type TaxAmount struct {
	RateID int64           `json:"rate_id"`
	Amount decimal.Decimal `json:"amount"`
}

// LineItem is one product line. Total is the line total excluding tax.
type LineItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	VariantID int64           `json:"variant_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	TotalTax  decimal.Decimal `json:"total_tax"`
	Taxes     []TaxAmount     `json:"taxes"`
}

// ShippingItem is one shipping charge of an order.
type ShippingItem struct {
	ID       int64           `json:"id"`
	Total    decimal.Decimal `json:"total"`
	TotalTax decimal.Decimal `json:"total_tax"`
	Taxes    []TaxAmount     `json:"taxes"`
}

// ProductCode is a product with its classification (HSN) code, used by the code checker.
type ProductCode struct {
	ProductID int64  `json:"product_id"`
	ParentID  int64  `json:"parent_id,omitempty"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Code      string `json:"code"`
}

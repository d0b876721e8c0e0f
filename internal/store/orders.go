package store

import (
	"context"
	"fmt"

	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
	"github.com/shopspring/decimal"
)

// FetchOrders returns orders created inside the half-open range with one of the
// given statuses, oldest first, with their line, shipping and tax items.
func (r *Repository) FetchOrders(ctx context.Context, span domain.DateRange, statuses []string) ([]domain.Order, error) {
	query := `
		SELECT id, created_at, status, invoice_number,
		       billing_first_name, billing_last_name, billing_city, billing_postcode
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		  AND status = ANY($3)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, span.Start, span.End, statuses)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	positions := make(map[int64]int)
	var ids []int64
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.CreatedAt, &o.Status, &o.InvoiceNumber,
			&o.FirstName, &o.LastName, &o.City, &o.Postcode); err != nil {
			return nil, err
		}
		positions[o.ID] = len(orders)
		ids = append(ids, o.ID)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	taxes, err := r.itemTaxes(ctx, ids)
	if err != nil {
		return nil, err
	}

	itemRows, err := r.db.Query(ctx, `
		SELECT id, order_id, item_type, product_id, variation_id, name, quantity,
		       total::text, total_tax::text
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id ASC, id ASC
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			id, orderID, productID, variantID int64
			itemType, name, total, totalTax   string
			quantity                          int
		)
		if err := itemRows.Scan(&id, &orderID, &itemType, &productID, &variantID, &name, &quantity, &total, &totalTax); err != nil {
			return nil, err
		}
		totalDec, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("item %d total: %w", id, err)
		}
		taxDec, err := decimal.NewFromString(totalTax)
		if err != nil {
			return nil, fmt.Errorf("item %d tax: %w", id, err)
		}

		o := &orders[positions[orderID]]
		if itemType == "shipping" {
			o.Shipping = append(o.Shipping, domain.ShippingItem{
				ID: id, Total: totalDec, TotalTax: taxDec, Taxes: taxes[id],
			})
			continue
		}
		o.Items = append(o.Items, domain.LineItem{
			ID: id, ProductID: productID, VariantID: variantID, Name: name,
			Quantity: quantity, Total: totalDec, TotalTax: taxDec, Taxes: taxes[id],
		})
	}
	return orders, itemRows.Err()
}

func (r *Repository) itemTaxes(ctx context.Context, orderIDs []int64) (map[int64][]domain.TaxAmount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.item_id, t.rate_id, t.amount::text
		FROM order_item_taxes t
		JOIN order_items i ON i.id = t.item_id
		WHERE i.order_id = ANY($1)
		ORDER BY t.item_id, t.rate_id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("query item taxes: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.TaxAmount)
	for rows.Next() {
		var (
			itemID, rateID int64
			amount         string
		)
		if err := rows.Scan(&itemID, &rateID, &amount); err != nil {
			return nil, err
		}
		dec, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("item %d rate %d amount: %w", itemID, rateID, err)
		}
		out[itemID] = append(out[itemID], domain.TaxAmount{RateID: rateID, Amount: dec})
	}
	return out, rows.Err()
}

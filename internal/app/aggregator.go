package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
	"github.com/pplcallmesatz/gst-auditor-report/internal/store"
	"github.com/shopspring/decimal"
)

// Aggregator pivots the orders of a period into report rows with one column per tax rate.
type Aggregator struct {
	orders   OrderSource
	taxes    TaxSchemaSource
	codes    CodeResolver
	statuses []string
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

func NewAggregator(orders OrderSource, taxes TaxSchemaSource, codes CodeResolver, statuses []string, loc *time.Location, logger *slog.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		orders:   orders,
		taxes:    taxes,
		codes:    codes,
		statuses: statuses,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// Build fetches the period's orders and lays them out against the current tax schema.
func (a *Aggregator) Build(ctx context.Context, period domain.Period) (*domain.Report, error) {
	classes, err := a.taxes.ListTaxClassesAndRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tax schema: %w", err)
	}
	layout := domain.NewTaxLayout(classes)

	orders, err := a.orders.FetchOrders(ctx, period.Range(a.loc), a.statuses)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}

	report := &domain.Report{Period: period, Layout: layout, GeneratedAt: a.now()}
	codes := make(map[[2]int64]string)

	for _, order := range orders {
		for _, item := range order.Items {
			key := [2]int64{item.ProductID, item.VariantID}
			code, seen := codes[key]
			if !seen {
				code, err = a.codes.ResolveCode(ctx, item.ProductID, item.VariantID)
				if err != nil {
					return nil, fmt.Errorf("resolve code for order %d item %d: %w", order.ID, item.ID, err)
				}
				codes[key] = code
			}
			report.Rows = append(report.Rows, a.itemRow(order, item, code, layout))
		}

		if row, ok := a.shippingRow(order, layout); ok {
			report.Rows = append(report.Rows, row)
		}
	}

	a.logger.Info("report built", "period", period.String(), "orders", len(orders), "rows", len(report.Rows), "tax_columns", layout.Width())
	return report, nil
}

func (a *Aggregator) baseRow(order domain.Order) domain.ReportRow {
	return domain.ReportRow{
		Date:          order.CreatedAt.In(a.loc),
		OrderID:       order.ID,
		InvoiceNumber: order.InvoiceNumber,
		Status:        order.Status,
		CustomerName:  order.CustomerName(),
		City:          order.City,
		Postcode:      order.Postcode,
	}
}

func (a *Aggregator) itemRow(order domain.Order, item domain.LineItem, code string, layout *domain.TaxLayout) domain.ReportRow {
	row := a.baseRow(order)
	row.ProductName = item.Name
	row.ClassificationCode = code
	row.Quantity = item.Quantity

	inclusive := item.Total.Add(item.TotalTax)
	row.LineTotalIncTax = inclusive
	row.TotalExclTax = item.Total
	if item.Quantity > 0 {
		row.PriceIncTax = inclusive.Div(decimal.NewFromInt(int64(item.Quantity)))
	}

	row.Taxes = layout.NewCells()
	applyTaxes(row.Taxes, item.Taxes, layout)
	return row
}

// shippingRow sums every shipping item of the order into one row. ok is false when
// the order has no shipping charge or tax.
func (a *Aggregator) shippingRow(order domain.Order, layout *domain.TaxLayout) (domain.ReportRow, bool) {
	if len(order.Shipping) == 0 {
		return domain.ReportRow{}, false
	}

	total, tax := decimal.Zero, decimal.Zero
	cells := layout.NewCells()
	for _, s := range order.Shipping {
		total = total.Add(s.Total)
		tax = tax.Add(s.TotalTax)
		applyTaxes(cells, s.Taxes, layout)
	}
	if total.IsZero() && tax.IsZero() {
		return domain.ReportRow{}, false
	}

	row := a.baseRow(order)
	row.ProductName = domain.ShippingProductName
	row.Quantity = 1
	row.PriceIncTax = total.Add(tax)
	row.LineTotalIncTax = total.Add(tax)
	row.TotalExclTax = total
	row.Taxes = cells
	row.Shipping = true
	return row, true
}

func applyTaxes(cells []domain.TaxCell, taxes []domain.TaxAmount, layout *domain.TaxLayout) {
	for _, t := range taxes {
		for _, col := range layout.ColumnsFor(t.RateID) {
			cells[col].Add(t.Amount)
		}
	}
}

// PriorityCodeResolver looks up the classification code on the parent product and
// the variant in the configured order. The first non-empty code wins.
type PriorityCodeResolver struct {
	store        ProductCodeStore
	variantFirst bool
}

func NewPriorityCodeResolver(s ProductCodeStore, variantFirst bool) *PriorityCodeResolver {
	return &PriorityCodeResolver{store: s, variantFirst: variantFirst}
}

func (r *PriorityCodeResolver) ResolveCode(ctx context.Context, productID, variantID int64) (string, error) {
	order := []int64{productID, variantID}
	if r.variantFirst {
		order = []int64{variantID, productID}
	}
	for _, id := range order {
		if id <= 0 {
			continue
		}
		code, _, err := r.store.ProductCode(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				continue
			}
			return "", err
		}
		if code != "" {
			return code, nil
		}
	}
	return "", nil
}

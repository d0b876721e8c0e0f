/**
 * @description
 * Report model: the tax column layout computed once per build and the rows that
 * are indexed against it.
 */
package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// StandardClassName is the implicit class listed before every store-defined class.
const StandardClassName = "Standard"

// ShippingProductName labels the per-order shipping row.
const ShippingProductName = "Shipping"

// FixedColumns precede the tax columns in every report.
var FixedColumns = []string{
	"Order Date",
	"Order ID",
	"Invoice Number",
	"Order Status",
	"Name",
	"City",
	"Pincode",
	"Product Name",
	"HSN Code",
	"Price (Inc Tax)",
	"Qty",
	"Total (Inc Tax)",
	"Total Price (Excl Tax)",
}

// TaxRate is one rate inside a tax class. Percent is the raw rate as stored.
type TaxRate struct {
	ID      int64  `json:"id"`
	Label   string `json:"label"`
	Percent string `json:"percent"`
}

// HeaderLabel is the rate label ("Rate" when unnamed) with the percent suffix when known.
func (r TaxRate) HeaderLabel() string {
	label := r.Label
	if label == "" {
		label = "Rate"
	}
	if r.Percent == "" {
		return label
	}
	pct, err := decimal.NewFromString(r.Percent)
	if err != nil {
		return label + " (" + r.Percent + "%)"
	}
	return label + " (" + pct.String() + "%)"
}

// TaxClass groups rates. Rates are kept in store order.
type TaxClass struct {
	Name  string    `json:"name"`
	Slug  string    `json:"slug"`
	Rates []TaxRate `json:"rates"`
}

// TaxColumn is one tax sub-column. Placeholder columns stand in for a class with no rates.
type TaxColumn struct {
	Class       string
	RateID      int64
	Label       string
	Placeholder bool
}

// TaxGroup is the span of tax columns owned by one class.
type TaxGroup struct {
	Class string
	Start int
	Span  int
}

// TaxLayout is the ordered tax column schema of a single report build.
type TaxLayout struct {
	columns []TaxColumn
	groups  []TaxGroup
	index   map[int64][]int
}

// NewTaxLayout lays out one column per rate, or a single placeholder column for a
// class without rates, preserving class and rate order. A rate listed under several
// classes gets a column in each of them.
func NewTaxLayout(classes []TaxClass) *TaxLayout {
	l := &TaxLayout{index: make(map[int64][]int)}
	for _, class := range classes {
		group := TaxGroup{Class: class.Name, Start: len(l.columns)}
		if len(class.Rates) == 0 {
			l.columns = append(l.columns, TaxColumn{Class: class.Name, Label: "-", Placeholder: true})
		}
		for _, rate := range class.Rates {
			l.index[rate.ID] = append(l.index[rate.ID], len(l.columns))
			l.columns = append(l.columns, TaxColumn{Class: class.Name, RateID: rate.ID, Label: rate.HeaderLabel()})
		}
		group.Span = len(l.columns) - group.Start
		l.groups = append(l.groups, group)
	}
	return l
}

func (l *TaxLayout) Columns() []TaxColumn { return l.columns }

func (l *TaxLayout) Groups() []TaxGroup { return l.groups }

// Width is the number of tax columns.
func (l *TaxLayout) Width() int { return len(l.columns) }

// ColumnsFor returns every tax column index that carries rateID.
func (l *TaxLayout) ColumnsFor(rateID int64) []int {
	return l.index[rateID]
}

// HeaderRows returns the class-name row and the rate-label row, both including the
// fixed columns. Class names are padded with empty cells across their span.
func (l *TaxLayout) HeaderRows() [][]string {
	classRow := make([]string, 0, len(FixedColumns)+len(l.columns))
	rateRow := make([]string, 0, len(FixedColumns)+len(l.columns))
	classRow = append(classRow, FixedColumns...)
	for range FixedColumns {
		rateRow = append(rateRow, "")
	}
	for _, g := range l.groups {
		for i := 0; i < g.Span; i++ {
			if i == 0 {
				classRow = append(classRow, g.Class)
			} else {
				classRow = append(classRow, "")
			}
		}
	}
	for _, c := range l.columns {
		rateRow = append(rateRow, c.Label)
	}
	return [][]string{classRow, rateRow}
}

// NewCells returns empty cells sized to the layout, with placeholders marked.
func (l *TaxLayout) NewCells() []TaxCell {
	cells := make([]TaxCell, len(l.columns))
	for i, c := range l.columns {
		cells[i].Placeholder = c.Placeholder
	}
	return cells
}

// TaxCell holds the unrounded tax amount for one column.
type TaxCell struct {
	Amount      decimal.Decimal
	Set         bool
	Placeholder bool
}

// Add accumulates amount into the cell.
func (c *TaxCell) Add(amount decimal.Decimal) {
	c.Amount = c.Amount.Add(amount)
	c.Set = true
}

// String renders "-" for placeholders, "" for untaxed or zero cells and the rounded
// amount otherwise.
func (c TaxCell) String() string {
	switch {
	case c.Placeholder:
		return "-"
	case !c.Set || c.Amount.IsZero():
		return ""
	default:
		return FormatMoney(c.Amount)
	}
}

// FormatMoney rounds half-up to two decimal places.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ReportRow is one line of the report. Money values stay unrounded until formatted.
type ReportRow struct {
	Date               time.Time
	OrderID            int64
	InvoiceNumber      string
	Status             string
	CustomerName       string
	City               string
	Postcode           string
	ProductName        string
	ClassificationCode string
	PriceIncTax        decimal.Decimal
	Quantity           int
	LineTotalIncTax    decimal.Decimal
	TotalExclTax       decimal.Decimal
	Taxes              []TaxCell
	Shipping           bool
}

// Cells formats the row for output.
func (r ReportRow) Cells() []string {
	cells := make([]string, 0, len(FixedColumns)+len(r.Taxes))
	cells = append(cells,
		r.Date.Format("2006-01-02"),
		formatInt(r.OrderID),
		r.InvoiceNumber,
		r.Status,
		r.CustomerName,
		r.City,
		r.Postcode,
		r.ProductName,
		r.ClassificationCode,
		FormatMoney(r.PriceIncTax),
		formatInt(int64(r.Quantity)),
		FormatMoney(r.LineTotalIncTax),
		FormatMoney(r.TotalExclTax),
	)
	for _, t := range r.Taxes {
		cells = append(cells, t.String())
	}
	return cells
}

// Report is a built report for one period.
type Report struct {
	Period      Period
	Layout      *TaxLayout
	Rows        []ReportRow
	GeneratedAt time.Time
}

// Filename is the artifact name for the report's period.
func (r *Report) Filename() string {
	return "gst-audit-export-" + r.Period.String() + ".xlsx"
}

func (r *Report) HeaderRows() [][]string {
	return r.Layout.HeaderRows()
}

func (r *Report) DataRows() [][]string {
	out := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row.Cells())
	}
	return out
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

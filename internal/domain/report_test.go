package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func gstExemptLayout() *TaxLayout {
	return NewTaxLayout([]TaxClass{
		{Name: "GST", Slug: "gst", Rates: []TaxRate{
			{ID: 1, Label: "CGST", Percent: "5.0000"},
			{ID: 2, Label: "", Percent: "18"},
		}},
		{Name: "Exempt", Slug: "exempt"},
	})
}

func TestTaxLayout_ColumnsAndHeaders(t *testing.T) {
	layout := gstExemptLayout()

	if layout.Width() != 3 {
		t.Fatalf("expected 3 tax columns, got %d", layout.Width())
	}
	headers := layout.HeaderRows()
	if len(headers) != 2 {
		t.Fatalf("expected 2 header rows, got %d", len(headers))
	}
	fixed := len(FixedColumns)
	classRow, rateRow := headers[0][fixed:], headers[1][fixed:]
	wantClass := []string{"GST", "", "Exempt"}
	wantRate := []string{"CGST (5%)", "Rate (18%)", "-"}
	for i := range wantClass {
		if classRow[i] != wantClass[i] {
			t.Fatalf("class header %d: expected %q, got %q", i, wantClass[i], classRow[i])
		}
		if rateRow[i] != wantRate[i] {
			t.Fatalf("rate header %d: expected %q, got %q", i, wantRate[i], rateRow[i])
		}
	}
	if headers[0][0] != "Order Date" || headers[1][0] != "" {
		t.Fatalf("unexpected fixed header cells %q / %q", headers[0][0], headers[1][0])
	}

	groups := layout.Groups()
	if len(groups) != 2 || groups[0].Span != 2 || groups[1].Start != 2 || groups[1].Span != 1 {
		t.Fatalf("unexpected groups %+v", groups)
	}
}

func TestTaxCell_Formatting(t *testing.T) {
	layout := gstExemptLayout()
	cells := layout.NewCells()

	cols := layout.ColumnsFor(1)
	if len(cols) != 1 {
		t.Fatalf("expected rate 1 indexed once, got %v", cols)
	}
	cells[cols[0]].Add(decimal.RequireFromString("2.345"))

	got := []string{cells[0].String(), cells[1].String(), cells[2].String()}
	want := []string{"2.35", "", "-"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	zero := TaxCell{}
	zero.Add(decimal.Zero)
	if zero.String() != "" {
		t.Fatalf("expected zero amount to render empty, got %q", zero.String())
	}
}

func TestFormatMoney_RoundsHalfUpOnlyAtFormatting(t *testing.T) {
	sum := decimal.Zero
	for i := 0; i < 3; i++ {
		sum = sum.Add(decimal.RequireFromString("0.335"))
	}
	if got := FormatMoney(sum); got != "1.01" {
		t.Fatalf("expected 1.01, got %s", got)
	}
	if got := FormatMoney(decimal.RequireFromString("0.125")); got != "0.13" {
		t.Fatalf("expected 0.13, got %s", got)
	}
}

func TestReportFilename(t *testing.T) {
	r := &Report{Period: Period{Year: 2024, Month: 2}}
	if got := r.Filename(); got != "gst-audit-export-2024-02.xlsx" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestTaxLayout_SharedRateFillsEveryClass(t *testing.T) {
	layout := NewTaxLayout([]TaxClass{
		{Name: "Standard", Rates: []TaxRate{{ID: 7, Label: "IGST", Percent: "12"}}},
		{Name: "Apparel", Slug: "apparel", Rates: []TaxRate{
			{ID: 3, Label: "CGST", Percent: "2.5"},
			{ID: 7, Label: "IGST", Percent: "12"},
		}},
	})

	cols := layout.ColumnsFor(7)
	if len(cols) != 2 || cols[0] != 0 || cols[1] != 2 {
		t.Fatalf("expected rate 7 in columns [0 2], got %v", cols)
	}
	if got := layout.ColumnsFor(99); len(got) != 0 {
		t.Fatalf("expected unknown rate to have no columns, got %v", got)
	}

	cells := layout.NewCells()
	for _, col := range cols {
		cells[col].Add(decimal.RequireFromString("6"))
	}
	got := []string{cells[0].String(), cells[1].String(), cells[2].String()}
	want := []string{"6.00", "", "6.00"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

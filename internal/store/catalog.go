package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
)

// ListTaxClassesAndRates returns the standard class followed by the store classes,
// each with its rates in rate_order, rate_priority order.
func (r *Repository) ListTaxClassesAndRates(ctx context.Context) ([]domain.TaxClass, error) {
	classes := []domain.TaxClass{{Name: domain.StandardClassName, Slug: ""}}

	rows, err := r.db.Query(ctx, `SELECT name, slug FROM tax_classes ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c domain.TaxClass
		if err := rows.Scan(&c.Name, &c.Slug); err != nil {
			rows.Close()
			return nil, err
		}
		if c.Slug == "" {
			continue
		}
		classes = append(classes, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bySlug := make(map[string]int, len(classes))
	for i, c := range classes {
		bySlug[c.Slug] = i
	}

	rateRows, err := r.db.Query(ctx, `
		SELECT id, class_slug, label, percent
		FROM tax_rates
		ORDER BY rate_order ASC, rate_priority ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rateRows.Close()

	for rateRows.Next() {
		var (
			rate domain.TaxRate
			slug string
		)
		if err := rateRows.Scan(&rate.ID, &slug, &rate.Label, &rate.Percent); err != nil {
			return nil, err
		}
		i, ok := bySlug[slug]
		if !ok {
			continue
		}
		classes[i].Rates = append(classes[i].Rates, rate)
	}
	return classes, rateRows.Err()
}

// ProductCode returns the stored classification code and parent of a product.
func (r *Repository) ProductCode(ctx context.Context, productID int64) (code string, parentID int64, err error) {
	err = r.db.QueryRow(ctx, `SELECT hsn_code, parent_id FROM products WHERE id = $1`, productID).Scan(&code, &parentID)
	if err == pgx.ErrNoRows {
		return "", 0, ErrProductNotFound
	}
	return code, parentID, err
}

// ListProductCodes pages through products with their classification codes.
func (r *Repository) ListProductCodes(ctx context.Context, limit, offset int) ([]domain.ProductCode, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, parent_id, name, sku, hsn_code
		FROM products
		ORDER BY name ASC, id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []domain.ProductCode
	for rows.Next() {
		var p domain.ProductCode
		if err := rows.Scan(&p.ProductID, &p.ParentID, &p.Name, &p.SKU, &p.Code); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// SetProductCode stores a classification code for a product.
func (r *Repository) SetProductCode(ctx context.Context, productID int64, code string) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET hsn_code = $1 WHERE id = $2`, code, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

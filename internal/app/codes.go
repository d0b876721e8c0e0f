package app

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
)

const (
	DefaultPerPage = 20
	MinPerPage     = 10
	MaxPerPage     = 200
)

// ErrInvalidCode is returned for codes that are not 2 to 8 digits.
var ErrInvalidCode = errors.New("classification code must be empty or 2 to 8 digits")

// Page is a page of results.
type Page[T any] struct {
	Items   []T `json:"items"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

// NormalizePaging clamps page to at least 1 and perPage into [MinPerPage, MaxPerPage],
// using DefaultPerPage when unset.
func NormalizePaging(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage == 0:
		perPage = DefaultPerPage
	case perPage < MinPerPage:
		perPage = MinPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return page, perPage
}

func newPage[T any](items []T, page, perPage, total int) Page[T] {
	pages := 0
	if total > 0 {
		pages = (total + perPage - 1) / perPage
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: page, PerPage: perPage, Total: total, Pages: pages}
}

// ClassificationCodes lists and edits product classification codes.
type ClassificationCodes struct {
	store ProductCodeStore
}

func NewClassificationCodes(s ProductCodeStore) *ClassificationCodes {
	return &ClassificationCodes{store: s}
}

func (c *ClassificationCodes) List(ctx context.Context, page, perPage int) (Page[domain.ProductCode], error) {
	page, perPage = NormalizePaging(page, perPage)
	items, total, err := c.store.ListProductCodes(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return Page[domain.ProductCode]{}, err
	}
	return newPage(items, page, perPage, total), nil
}

// Save stores a code. An empty code clears it.
func (c *ClassificationCodes) Save(ctx context.Context, productID int64, code string) error {
	code = strings.TrimSpace(code)
	if code != "" {
		if len(code) < 2 || len(code) > 8 {
			return ErrInvalidCode
		}
		for _, r := range code {
			if !unicode.IsDigit(r) {
				return ErrInvalidCode
			}
		}
	}
	return c.store.SetProductCode(ctx, productID, code)
}

// PageRows slices rows for a preview page.
func PageRows[T any](rows []T, page, perPage int) Page[T] {
	page, perPage = NormalizePaging(page, perPage)
	start := (page - 1) * perPage
	if start > len(rows) {
		start = len(rows)
	}
	end := start + perPage
	if end > len(rows) {
		end = len(rows)
	}
	return newPage(rows[start:end], page, perPage, len(rows))
}

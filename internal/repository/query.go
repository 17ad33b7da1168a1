package repository

import (
	"strings"

	"github.com/allureimpex/allure-impex-api/internal/model"
)

// Sort fields accepted by List operations. Drivers map them to their own
// column or document field names.
const (
	SortCreatedAt = "createdAt"
	SortUpdatedAt = "updatedAt"
	SortName      = "name"
	SortCategory  = "category"
	SortStatus    = "status"
)

// Sort orders a listing. The zero value is newest first.
type Sort struct {
	Field string
	Asc   bool
}

// FieldOr returns the sort field or the fallback when empty.
func (s Sort) FieldOr(fallback string) string {
	if s.Field == "" {
		return fallback
	}
	return s.Field
}

// Page restricts a listing. Limit 0 means unpaginated.
type Page struct {
	Number int
	Limit  int
}

// Paginated reports whether the page restricts the result set.
func (p Page) Paginated() bool { return p.Limit > 0 }

// Offset is the number of records skipped before this page.
func (p Page) Offset() int {
	if p.Number < 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// ProductFilter selects products. Nil pointers do not filter.
type ProductFilter struct {
	Search      string
	Category    model.Category
	Subcategory string
	Featured    *bool
	Active      *bool
	Sort        Sort
	Page        Page
}

// UserFilter selects users.
type UserFilter struct {
	Sort Sort
	Page Page
}

// MessageFilter selects contact messages.
type MessageFilter struct {
	Status model.MessageStatus
	Sort   Sort
	Page   Page
}

// MatchesSearch is the canonical product search: a case-insensitive
// substring match over name, description, category, subcategory and each
// feature. Drivers that can push the predicate down (LIKE, $regex) must
// produce the same result set.
func MatchesSearch(p model.Product, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	fields := append([]string{p.Name, p.Description, string(p.Category), p.Subcategory}, p.Features...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// MatchesProduct applies every ProductFilter predicate except pagination.
func MatchesProduct(p model.Product, f ProductFilter) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Subcategory != "" && p.Subcategory != f.Subcategory {
		return false
	}
	if f.Featured != nil && p.IsFeatured != *f.Featured {
		return false
	}
	if f.Active != nil && p.IsActive != *f.Active {
		return false
	}
	return MatchesSearch(p, f.Search)
}

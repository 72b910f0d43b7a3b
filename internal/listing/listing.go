// Package listing implements the shared list-query contract: conjunctive
// filter composition, a count computed on the same predicates as the page
// window, and 1-indexed pagination with deterministic ordering.
package listing

import (
	"strings"

	"gorm.io/gorm"
)

const (
	// DefaultPageSize applies when the caller supplies no usable page size.
	DefaultPageSize = 20
	// MaxPageSize bounds the window a single request may fetch.
	MaxPageSize = 100
	// DefaultOrder sorts newest first with the identifier as tie breaker so
	// pages stay stable when rows share a creation timestamp.
	DefaultOrder = "created_at DESC, id DESC"
)

// Params carries the raw pagination request.
type Params struct {
	Page     int
	PageSize int
}

// Normalized clamps the parameters into a usable window. Out-of-range
// values are corrected, never rejected.
func (p Params) Normalized() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the normalized window.
func (p Params) Offset() int {
	offset := (p.Page - 1) * p.PageSize
	if offset < 0 {
		return 0
	}
	return offset
}

// Result is one page of a filtered collection.
type Result[T any] struct {
	Items    []T
	Total    int64
	Page     int
	PageSize int
	Pages    int
}

// PageCount computes ceil(total/pageSize) with a floor of one page.
func PageCount(total int64, pageSize int) int {
	if pageSize < 1 {
		pageSize = 1
	}
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if pages < 1 {
		return 1
	}
	return pages
}

// Scope narrows a query. Scopes combine conjunctively.
type Scope func(*gorm.DB) *gorm.DB

// Equals matches a column exactly. Used for status, boolean flags and
// foreign keys.
func Equals(column string, value any) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" = ?", value)
	}
}

// Contains matches a column by case-insensitive substring.
func Contains(column, value string) Scope {
	pattern := "%" + strings.ToLower(value) + "%"
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("LOWER("+column+") LIKE ?", pattern)
	}
}

// Search matches when any of the given free-text columns contains the
// query, case-insensitively.
func Search(query string, columns ...string) Scope {
	pattern := "%" + strings.ToLower(query) + "%"
	return func(db *gorm.DB) *gorm.DB {
		if len(columns) == 0 {
			return db
		}
		clauses := make([]string, 0, len(columns))
		args := make([]any, 0, len(columns))
		for _, column := range columns {
			clauses = append(clauses, "LOWER("+column+") LIKE ?")
			args = append(args, pattern)
		}
		return db.Where(strings.Join(clauses, " OR "), args...)
	}
}

// Run counts the filtered collection and fetches one window of it. The
// count runs on the same predicates as the window, before offset and limit
// apply. A page beyond the last returns empty items with the true total.
func Run[T any](db *gorm.DB, params Params, order string, scopes ...Scope) (Result[T], error) {
	params = params.Normalized()
	if order == "" {
		order = DefaultOrder
	}

	filtered := db.Model(new(T))
	for _, scope := range scopes {
		filtered = scope(filtered)
	}

	var total int64
	if err := filtered.Count(&total).Error; err != nil {
		return Result[T]{}, err
	}

	items := make([]T, 0, params.PageSize)
	err := filtered.
		Order(order).
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&items).Error
	if err != nil {
		return Result[T]{}, err
	}

	return Result[T]{
		Items:    items,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
		Pages:    PageCount(total, params.PageSize),
	}, nil
}

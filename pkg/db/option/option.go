package option

import "gorm.io/gorm"

// QueryOption mutates a gorm query before execution.
type QueryOption func(*gorm.DB) *gorm.DB

type QuerySortBy struct {
	SortBy  string // column, defaults to created_at
	OrderBy string // ASC or DESC
}

func WithSortBy(s QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		col := s.SortBy
		if col == "" {
			col = "created_at"
		}
		order := s.OrderBy
		if order != "ASC" && order != "DESC" {
			order = "ASC"
		}
		return tx.Order(col + " " + order)
	}
}

func WithLimit(n int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(n)
	}
}

func WithOffset(n int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Offset(n)
	}
}

func WithPreload(assoc string) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Preload(assoc)
	}
}

// Apply folds opts over tx.
func Apply(tx *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		tx = opt(tx)
	}
	return tx
}

package repository

import (
	"context"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
)

// FeedRepository reads and writes one campus-scoped collection.
type FeedRepository[T any] interface {
	Table() string
	// ListByCampus returns the newest rows of a campus, newest first.
	ListByCampus(ctx context.Context, campusID string, limit int) ([]T, error)
	Create(ctx context.Context, row *T) error
}

type feedRepository[T any] struct {
	tables backend.Tables
	table  string
}

// NewFeedRepository creates a repository for table.
func NewFeedRepository[T any](tables backend.Tables, table string) FeedRepository[T] {
	return &feedRepository[T]{tables: tables, table: table}
}

func (r *feedRepository[T]) Table() string { return r.table }

func (r *feedRepository[T]) ListByCampus(ctx context.Context, campusID string, limit int) ([]T, error) {
	rows := make([]T, 0)
	err := r.tables.Select(ctx, backend.Query{
		Table:   r.table,
		Filters: []backend.Filter{backend.Eq("campus_id", campusID)},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *feedRepository[T]) Create(ctx context.Context, row *T) error {
	return r.tables.Insert(ctx, r.table, row)
}

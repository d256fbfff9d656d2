package core

import (
	"context"
	"database/sql"
)

// DBExecutor is implemented by *sql.DB, *sqlx.DB & *sql.Tx.
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// PageRequest asks for the Page-th page (1-based) of Size items.
type PageRequest struct {
	Page int `query:"page"`
	Size int `query:"page_size"`
}

// Clean applies the default page size and caps it at max.
func (pr PageRequest) Clean(defaultSize, max int) PageRequest {
	if pr.Page < 1 {
		pr.Page = 1
	}
	if pr.Size < 1 {
		pr.Size = defaultSize
	}
	if max > 0 && pr.Size > max {
		pr.Size = max
	}
	return pr
}

func (pr PageRequest) Offset() int {
	return (pr.Page - 1) * pr.Size
}

// TotalPages returns the number of pages needed to hold total items.
func (pr PageRequest) TotalPages(total int) int {
	if pr.Size < 1 || total == 0 {
		return 0
	}
	return (total + pr.Size - 1) / pr.Size
}

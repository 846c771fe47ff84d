package records

import "context"

// Backend is a durable tabular store addressed by sheet name.
// Row and column indices are 1-based and count the header row.
type Backend interface {
	// EnsureSheet creates name with header when missing and is a no-op otherwise.
	EnsureSheet(ctx context.Context, name string, header []string) error
	// Rows returns every row including the header.
	Rows(ctx context.Context, name string) ([][]string, error)
	AppendRow(ctx context.Context, name string, values []string) error
	UpdateCell(ctx context.Context, name string, row, col int, value string) error
	// DeleteRow removes a row and shifts the following rows up.
	DeleteRow(ctx context.Context, name string, row int) error
	Close() error
}

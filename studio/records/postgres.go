package records

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres keeps collections in two tables: collections(name, header) and
// collection_rows(id, collection, cells). Physical row order is id order.
type Postgres struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

// NewPostgres uses an already connected database with migrations applied.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

type pgRow struct {
	ID    int64          `db:"id"`
	Cells pq.StringArray `db:"cells"`
}

func (p *Postgres) EnsureSheet(ctx context.Context, name string, header []string) error {
	query, args, err := p.qb.Insert("collections").
		Columns("name", "header").
		Values(name, pq.StringArray(header)).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, query, args...)
	return classifyPGError(err)
}

func (p *Postgres) header(ctx context.Context, name string) ([]string, error) {
	query, args, err := p.qb.Select("header").From("collections").Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return nil, err
	}
	var header pq.StringArray
	if err := p.db.GetContext(ctx, &header, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: collection %s", ErrNotFound, name)
		}
		return nil, classifyPGError(err)
	}
	return header, nil
}

func (p *Postgres) dataRows(ctx context.Context, name string) ([]pgRow, error) {
	query, args, err := p.qb.Select("id", "cells").
		From("collection_rows").
		Where(sq.Eq{"collection": name}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []pgRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classifyPGError(err)
	}
	return rows, nil
}

func (p *Postgres) Rows(ctx context.Context, name string) ([][]string, error) {
	header, err := p.header(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := p.dataRows(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(data)+1)
	out = append(out, header)
	for _, r := range data {
		out = append(out, r.Cells)
	}
	return out, nil
}

func (p *Postgres) AppendRow(ctx context.Context, name string, values []string) error {
	query, args, err := p.qb.Insert("collection_rows").
		Columns("collection", "cells").
		Values(name, pq.StringArray(values)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, query, args...)
	return classifyPGError(err)
}

// rowID maps a header-inclusive row index to the id of that data row.
func (p *Postgres) rowID(ctx context.Context, name string, row int) (int64, error) {
	if row < 2 {
		return 0, fmt.Errorf("%w: %s row %d", ErrNotFound, name, row)
	}
	query, args, err := p.qb.Select("id").
		From("collection_rows").
		Where(sq.Eq{"collection": name}).
		OrderBy("id").
		Offset(uint64(row - 2)).
		Limit(1).
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := p.db.GetContext(ctx, &id, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s row %d", ErrNotFound, name, row)
		}
		return 0, classifyPGError(err)
	}
	return id, nil
}

func (p *Postgres) UpdateCell(ctx context.Context, name string, row, col int, value string) error {
	id, err := p.rowID(ctx, name, row)
	if err != nil {
		return err
	}
	query, args, err := p.qb.Update("collection_rows").
		Set(fmt.Sprintf("cells[%d]", col), value).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, query, args...)
	return classifyPGError(err)
}

func (p *Postgres) DeleteRow(ctx context.Context, name string, row int) error {
	id, err := p.rowID(ctx, name, row)
	if err != nil {
		return err
	}
	query, args, err := p.qb.Delete("collection_rows").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, query, args...)
	return classifyPGError(err)
}

func (p *Postgres) Close() error { return p.db.Close() }

func classifyPGError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %w", ErrWriteConflict, err)
		case "3D000", "28P01", "57P03":
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

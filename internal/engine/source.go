package engine

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"strings"

	"db-siard/internal/dialect"
	"db-siard/internal/failure"
	"db-siard/internal/schema"
	"db-siard/internal/types"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// RowSource produces the rows of one table in archival order. fn is called
// once per row; an error from fn stops the scan and is returned as is.
type RowSource interface {
	Rows(ctx context.Context, s *schema.Schema, t *schema.Table, fn func(*schema.Row) error) error
}

// DBSource reads rows with a forward-only cursor over the source database.
type DBSource struct {
	DB      *sql.DB
	Dialect dialect.Dialect
	// Limit caps the rows read per table. Zero reads everything.
	Limit int
}

func (s *DBSource) Rows(ctx context.Context, sc *schema.Schema, t *schema.Table, fn func(*schema.Row) error) error {
	query := s.Dialect.SelectQuery(sc.Name, t.Name, t.ColumnNames())
	if s.Limit > 0 {
		query = s.Dialect.GetLimitRowQuery(query, s.Limit)
	}
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return failure.Operation("read "+t.Name, failure.Normalize(s.Dialect, err))
	}
	defer rows.Close()

	raw := make([]any, len(t.Columns))
	dest := make([]any, len(t.Columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	var index int64
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return failure.Operation("read "+t.Name, failure.Normalize(s.Dialect, err))
		}
		index++
		row := &schema.Row{Index: index, Cells: make([]schema.Cell, len(t.Columns))}
		for i, col := range t.Columns {
			cell, err := cellFor(col, raw[i])
			if err != nil {
				return failure.Operationf("read "+t.Name, "row %d column %s: %v", index, col.Name, err)
			}
			row.Cells[i] = cell
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return failure.Operation("read "+t.Name, failure.Normalize(s.Dialect, err))
	}
	return nil
}

// cellFor converts a scanned driver value into a cell of col.
func cellFor(col *schema.Column, v any) (schema.Cell, error) {
	if v == nil {
		return schema.NullCell{}, nil
	}
	if col.Type.IsLarge() {
		data, err := bytesOf(v)
		if err != nil {
			return nil, err
		}
		return lobCell(data, col.Type.Character()), nil
	}

	switch col.Type.Kind {
	case types.NumericExact:
		switch x := v.(type) {
		case []byte:
			d, err := decimal.NewFromString(strings.TrimSpace(string(x)))
			if err != nil {
				return nil, err
			}
			return schema.ScalarCell{Value: d}, nil
		case string:
			d, err := decimal.NewFromString(strings.TrimSpace(x))
			if err != nil {
				return nil, err
			}
			return schema.ScalarCell{Value: d}, nil
		}
	case types.NumericApproximate:
		f, err := cast.ToFloat64E(asString(v))
		if err != nil {
			return nil, err
		}
		return schema.ScalarCell{Value: f}, nil
	case types.Binary:
		data, err := bytesOf(v)
		if err != nil {
			return nil, err
		}
		return schema.ScalarCell{Value: data}, nil
	case types.String, types.XML, types.DateTime, types.Unsupported:
		if b, ok := v.([]byte); ok {
			return schema.ScalarCell{Value: string(b)}, nil
		}
	}
	return schema.ScalarCell{Value: v}, nil
}

func asString(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func bytesOf(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// lobCell wraps an in-memory payload as a large object.
func lobCell(data []byte, character bool) schema.LOBCell {
	return schema.LOBCell{Object: &schema.LargeObject{
		Open:      func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
		Length:    int64(len(data)),
		Character: character,
	}}
}

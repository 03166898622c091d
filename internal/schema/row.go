package schema

import (
	"io"

	"db-siard/internal/failure"
)

// Row is one record of a table. Index is 1-based and Cells follow column order.
type Row struct {
	Index int64
	Cells []Cell
}

// Cell is a single value of a row: ScalarCell, NullCell or LOBCell.
type Cell interface {
	IsNull() bool
}

// ScalarCell holds a value small enough to live inside the row element.
// Value is whatever the row source produced (string, []byte, int64, time.Time ...).
type ScalarCell struct {
	Value any
}

func (ScalarCell) IsNull() bool { return false }

type NullCell struct{}

func (NullCell) IsNull() bool { return true }

// LOBCell references a large object whose payload is streamed, never held.
type LOBCell struct {
	Object *LargeObject
}

func (c LOBCell) IsNull() bool { return c.Object == nil }

// LargeObject is a handle to a streamable value. Open may be called at most
// once by the archive writer; filters may wrap it before that.
type LargeObject struct {
	Open      func() (io.ReadCloser, error)
	Length    int64 // -1 when unknown
	Character bool

	// Set by the content writer once the object is stored.
	Path   string
	Digest string
}

// CheckRow verifies that row has exactly one cell per column.
func (t *Table) CheckRow(row *Row) error {
	if row == nil {
		return failure.Operationf("row", "nil row for table %s", t.Name)
	}
	if len(row.Cells) != len(t.Columns) {
		return failure.Operationf("row", "table %s row %d has %d cells, expected %d",
			t.Name, row.Index, len(row.Cells), len(t.Columns))
	}
	return nil
}

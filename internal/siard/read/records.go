package read

import (
	"context"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"db-siard/internal/failure"
	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/path"
	"db-siard/internal/types"
)

// Cell is one cell element as stored in a table XML.
type Cell struct {
	Name   string
	Column int // 0 when Name is not cN
	Text   string

	File       string
	Length     int64
	HasLength  bool
	Digest     string
	DigestType string
}

// External reports whether the cell references a LOB entry.
func (c Cell) External() bool { return c.File != "" }

// Record is one row element. Absent cells are null.
type Record struct {
	Index int64
	Cells []Cell
}

// Records streams the rows of the table stored at c. fn runs once per row,
// in file order; returning an error stops the scan.
func (a *Archive) Records(ctx context.Context, c siard.Content, fn func(Record) error) error {
	name := path.TableXML(c.SchemaIndex(), c.TableIndex())
	rc, err := a.Open(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	return scanRecords(ctx, rc, fn)
}

func scanRecords(ctx context.Context, r io.Reader, fn func(Record) error) error {
	dec := xml.NewDecoder(r)
	var (
		rec   *Record
		cell  *Cell
		text  strings.Builder
		index int64
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return failure.Operation("parse table", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch {
			case rec == nil && el.Name.Local == "row":
				index++
				rec = &Record{Index: index}
			case rec != nil && cell == nil:
				cell = startCell(el)
				text.Reset()
			case cell != nil:
				return failure.Operationf("parse table", "row %d: unexpected element %s inside %s", index, el.Name.Local, cell.Name)
			}
		case xml.CharData:
			if cell != nil {
				text.Write(el)
			}
		case xml.EndElement:
			switch {
			case cell != nil:
				cell.Text = text.String()
				rec.Cells = append(rec.Cells, *cell)
				cell = nil
			case rec != nil && el.Name.Local == "row":
				if index%1000 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if err := fn(*rec); err != nil {
					return err
				}
				rec = nil
			}
		}
	}
}

func startCell(el xml.StartElement) *Cell {
	c := &Cell{Name: el.Name.Local}
	if n, ok := strings.CutPrefix(c.Name, "c"); ok {
		if i, err := strconv.Atoi(n); err == nil && i > 0 {
			c.Column = i
		}
	}
	for _, attr := range el.Attr {
		switch attr.Name.Local {
		case "file":
			c.File = attr.Value
		case "length":
			if n, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
				c.Length, c.HasLength = n, true
			}
		case "digest":
			c.Digest = attr.Value
		case "digestType":
			c.DigestType = attr.Value
		}
	}
	return c
}

// Row converts a record of t into a row for restore. Text stays text; hex
// cells of binary columns are decoded; LOB references open lazily.
func (a *Archive) Row(t *schema.Table, rec Record) (*schema.Row, error) {
	row := &schema.Row{Index: rec.Index, Cells: make([]schema.Cell, len(t.Columns))}
	for i := range row.Cells {
		row.Cells[i] = schema.NullCell{}
	}
	for _, c := range rec.Cells {
		if c.Column < 1 || c.Column > len(t.Columns) {
			return nil, failure.Operationf("read row", "table %s row %d: cell %s outside %d columns", t.Name, rec.Index, c.Name, len(t.Columns))
		}
		col := t.Columns[c.Column-1]
		if c.External() {
			file, length := c.File, int64(-1)
			if c.HasLength {
				length = c.Length
			}
			row.Cells[c.Column-1] = schema.LOBCell{Object: &schema.LargeObject{
				Open:      func() (io.ReadCloser, error) { return a.LOB(file) },
				Length:    length,
				Character: col.Type.Character(),
				Path:      file,
				Digest:    c.Digest,
			}}
			continue
		}
		if !col.Type.Character() && (col.Type.IsLarge() || col.Type.XSD() == types.XSDBlob) {
			b, err := hex.DecodeString(strings.TrimSpace(c.Text))
			if err != nil {
				return nil, failure.Operation(fmt.Sprintf("read row %d column %s", rec.Index, col.Name), err)
			}
			row.Cells[c.Column-1] = schema.ScalarCell{Value: b}
			continue
		}
		row.Cells[c.Column-1] = schema.ScalarCell{Value: c.Text}
	}
	return row, nil
}

package validate

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"strings"

	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/path"
	"db-siard/internal/siard/read"
)

// maxDiagnostics bounds the findings reported per table.
const maxDiagnostics = 50

type tableData struct{ base }

func (v *tableData) Validate(ctx context.Context) (Outcome, error) {
	out := Outcome{Passed: true}
	db, err := v.env.Declared()
	if err != nil {
		out.fail("T_6.0-1", siard.MetadataXML, "table data cannot be checked without a descriptor: %v", err)
		return out, nil
	}
	a, err := v.env.Archive()
	if err != nil {
		return out, err
	}

	declared := make(map[siard.Content]*schema.Table)
	var order []siard.Content
	owner := make(map[siard.Content]*schema.Schema)
	for _, s := range db.Schemas {
		for _, t := range s.Tables {
			c := siard.At(s.Index, t.Index)
			declared[c] = t
			owner[c] = s
			order = append(order, c)
		}
	}
	siard.SortContents(order)

	stored, _ := a.Contents()
	for _, c := range stored {
		if _, ok := declared[c]; !ok {
			out.fail("T_6.0-2", c.String(), "table folder is not declared in the descriptor")
		}
	}

	for _, c := range order {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		v.checkTable(ctx, &out, a, c, owner[c], declared[c])
	}
	return out, nil
}

func (v *tableData) checkTable(ctx context.Context, out *Outcome, a *read.Archive, c siard.Content, s *schema.Schema, t *schema.Table) {
	where := s.Name + "." + t.Name
	if _, ok := a.Entry(path.TableXSD(c.SchemaIndex(), c.TableIndex())); !ok {
		out.fail("T_6.1-1", where, "table schema %s missing", path.TableXSD(c.SchemaIndex(), c.TableIndex()))
	}
	if _, ok := a.Entry(path.TableXML(c.SchemaIndex(), c.TableIndex())); !ok {
		out.fail("T_6.2-1", where, "table data %s missing", path.TableXML(c.SchemaIndex(), c.TableIndex()))
		return
	}

	found := 0
	report := func(req, format string, args ...any) {
		found++
		if found <= maxDiagnostics {
			out.fail(req, where, format, args...)
		} else {
			out.Passed = false
		}
	}

	var rows int64
	err := a.Records(ctx, c, func(rec read.Record) error {
		rows++
		present := make(map[int]bool, len(rec.Cells))
		for _, cell := range rec.Cells {
			if cell.Column < 1 || cell.Column > len(t.Columns) {
				report("T_6.2-2", "row %d: element %s is outside the %d declared columns", rec.Index, cell.Name, len(t.Columns))
				continue
			}
			present[cell.Column] = true
			if cell.External() {
				v.checkLOB(report, a, rec.Index, t.Columns[cell.Column-1], cell)
			}
		}
		for _, col := range t.Columns {
			if !col.IsNullable && !present[col.Index] {
				report("T_6.2-3", "row %d: non-nullable column %s has no value", rec.Index, col.Name)
			}
		}
		return nil
	})
	if err != nil {
		report("T_6.2-1", "table data does not parse: %v", err)
		return
	}
	if rows != t.Rows {
		report("T_6.2-4", "descriptor declares %d rows, table data holds %d", t.Rows, rows)
	}
}

func (v *tableData) checkLOB(report func(string, string, ...any), a *read.Archive, row int64, col *schema.Column, cell read.Cell) {
	size, ok := a.LOBSize(cell.File)
	if !ok {
		report("T_6.3-1", "row %d column %s: LOB %s does not exist", row, col.Name, cell.File)
		return
	}
	if cell.HasLength && cell.Length != size {
		report("T_6.3-2", "row %d column %s: LOB %s has %d bytes, cell declares %d", row, col.Name, cell.File, size, cell.Length)
	}
	if cell.Digest == "" {
		return
	}
	if t := strings.ToUpper(strings.TrimSpace(cell.DigestType)); t != "" && t != siard.DigestMD5 {
		return
	}
	rc, err := a.LOB(cell.File)
	if err != nil {
		report("T_6.3-1", "row %d column %s: LOB %s cannot be opened: %v", row, col.Name, cell.File, err)
		return
	}
	defer rc.Close()
	h := md5.New()
	if _, err := io.Copy(h, rc); err != nil {
		report("T_6.3-3", "row %d column %s: LOB %s cannot be read: %v", row, col.Name, cell.File, err)
		return
	}
	if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, cell.Digest) {
		report("T_6.3-3", "row %d column %s: LOB %s digest %s, cell declares %s", row, col.Name, cell.File, strings.ToUpper(got), cell.Digest)
	}
}

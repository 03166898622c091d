// Package content writes the per-table XML and XSD entries of an archive and
// streams large objects into entries of their own.
package content

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"db-siard/internal/failure"
	"db-siard/internal/observer"
	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/lob"
	"db-siard/internal/siard/path"
	"db-siard/internal/siard/write"

	"golang.org/x/text/unicode/norm"
)

type Options struct {
	Paths         path.Strategy
	CLOBThreshold int
	BLOBThreshold int
	// LOBs receives externalized objects. Nil means the main container.
	LOBs          write.Strategy
	Observer      observer.Observer
	// ProgressEvery is the row interval of Observer.Rows notifications.
	ProgressEvery int64
}

// Strategy writes table content. Calls must follow the bracket
// OpenSchema, OpenTable, TableRow..., CloseTable, CloseSchema.
type Strategy struct {
	w    write.Strategy
	lobs write.Strategy
	opts Options
	obs  observer.Observer

	schema *schema.Schema
	table  *schema.Table
	xml    *write.Staged
	buf    *bufio.Writer
	rows   int64
	lobN   int64
}

func New(w write.Strategy, opts Options) *Strategy {
	if opts.Paths.MaxFiles <= 0 {
		opts.Paths = path.New(0)
	}
	if opts.CLOBThreshold <= 0 {
		opts.CLOBThreshold = siard.DefaultCLOB
	}
	if opts.BLOBThreshold <= 0 {
		opts.BLOBThreshold = siard.DefaultBLOB
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 1000
	}
	lobs := opts.LOBs
	if lobs == nil {
		lobs = w
	}
	return &Strategy{w: w, lobs: lobs, opts: opts, obs: observer.OrNop(opts.Observer)}
}

// External reports whether LOBs go to a separate container.
func (s *Strategy) External() bool { return s.lobs != s.w }

// LOBs is the number of objects written outside their row so far.
func (s *Strategy) LOBs() int64 { return s.lobN }

func (s *Strategy) OpenSchema(sc *schema.Schema) error {
	if s.schema != nil {
		return failure.Operationf("open schema", "schema %s is still open", s.schema.Name)
	}
	if sc == nil || sc.Index <= 0 {
		return failure.Operationf("open schema", "schema has no archival ordinal")
	}
	s.schema = sc
	s.obs.OpenSchema(sc)
	return nil
}

func (s *Strategy) CloseSchema(sc *schema.Schema) error {
	if s.schema == nil || s.schema != sc {
		return failure.Operationf("close schema", "schema %s is not open", nameOf(sc))
	}
	if s.table != nil {
		return failure.Operationf("close schema", "table %s is still open", s.table.Name)
	}
	s.schema = nil
	s.obs.CloseSchema(sc)
	return nil
}

func nameOf(sc *schema.Schema) string {
	if sc == nil {
		return "<nil>"
	}
	return sc.Name
}

func (s *Strategy) OpenTable(sc *schema.Schema, t *schema.Table) error {
	if s.schema == nil || s.schema != sc {
		return failure.Operationf("open table", "schema %s is not open", nameOf(sc))
	}
	if s.table != nil {
		return failure.Operationf("open table", "table %s is still open", s.table.Name)
	}
	if t == nil || t.Index <= 0 {
		return failure.Operationf("open table", "table has no archival ordinal")
	}

	staged, err := s.w.Stage(path.TableXML(sc.Index, t.Index))
	if err != nil {
		return err
	}
	s.table, s.xml, s.rows = t, staged, 0
	s.buf = bufio.NewWriter(staged)

	ns := path.TableNamespace(sc.Index, t.Index)
	fmt.Fprintf(s.buf, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(s.buf, "<table xmlns=%q xmlns:xsi=%q xsi:schemaLocation=\"%s %s\">\n",
		ns, siard.XSINamespace, ns, path.TableXSDName(t.Index))
	s.obs.OpenTable(sc, t)
	return nil
}

// TableRow appends one row. Any failure discards the open table.
func (s *Strategy) TableRow(ctx context.Context, row *schema.Row) error {
	if s.table == nil {
		return failure.Operationf("table row", "no table is open")
	}
	if err := s.writeRow(ctx, row); err != nil {
		s.discard()
		return err
	}
	s.rows++
	if s.rows%s.opts.ProgressEvery == 0 {
		s.obs.Rows(s.schema, s.table, s.rows)
	}
	return nil
}

func (s *Strategy) writeRow(ctx context.Context, row *schema.Row) error {
	if err := s.table.CheckRow(row); err != nil {
		return err
	}
	index := row.Index
	if index <= 0 {
		index = s.rows + 1
	}

	s.buf.WriteString("  <row>")
	for i, cell := range row.Cells {
		if cell == nil || cell.IsNull() {
			continue
		}
		col := s.table.Columns[i]
		tag := "c" + strconv.Itoa(col.Index)
		if err := s.writeCell(ctx, tag, col, index, cell); err != nil {
			return failure.Operation(fmt.Sprintf("table %s row %d column %s", s.table.Name, index, col.Name), err)
		}
	}
	_, err := s.buf.WriteString("</row>\n")
	return err
}

func (s *Strategy) writeCell(ctx context.Context, tag string, col *schema.Column, row int64, cell schema.Cell) error {
	switch c := cell.(type) {
	case schema.LOBCell:
		return s.writeLOB(ctx, tag, col, row, c.Object)
	case schema.ScalarCell:
		if col.Type.IsLarge() {
			if obj, ok := s.oversized(col, c.Value); ok {
				return s.writeLOB(ctx, tag, col, row, obj)
			}
		}
		text, err := Format(col.Type, c.Value)
		if err != nil {
			return err
		}
		s.element(tag, text, col.Type.Character())
		return nil
	default:
		return fmt.Errorf("unsupported cell %T", cell)
	}
}

// oversized turns a scalar value of a large type that exceeds the inline
// threshold into a large object.
func (s *Strategy) oversized(col *schema.Column, v any) (*schema.LargeObject, bool) {
	var data []byte
	switch x := v.(type) {
	case string:
		data = []byte(x)
	case []byte:
		data = x
	default:
		return nil, false
	}
	character := col.Type.Character()
	if character && utf8.RuneCount(data) <= s.opts.CLOBThreshold {
		return nil, false
	}
	if !character && len(data) <= s.opts.BLOBThreshold {
		return nil, false
	}
	return &schema.LargeObject{
		Open:      func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(string(data))), nil },
		Length:    int64(len(data)),
		Character: character,
	}, true
}

func (s *Strategy) element(tag, text string, character bool) {
	s.buf.WriteByte('<')
	s.buf.WriteString(tag)
	s.buf.WriteByte('>')
	if character {
		xml.EscapeText(s.buf, []byte(text))
	} else {
		s.buf.WriteString(text)
	}
	s.buf.WriteString("</")
	s.buf.WriteString(tag)
	s.buf.WriteByte('>')
}

func (s *Strategy) inline(obj *schema.LargeObject) bool {
	if obj.Length < 0 {
		return false
	}
	if obj.Character {
		return obj.Length <= int64(s.opts.CLOBThreshold)
	}
	return obj.Length <= int64(s.opts.BLOBThreshold)
}

// writeLOB streams obj into an entry of its own. It returns when the copy
// completes, ctx ends or the LOB container is aborted, whichever comes first.
func (s *Strategy) writeLOB(ctx context.Context, tag string, col *schema.Column, row int64, obj *schema.LargeObject) error {
	if obj.Open == nil {
		return fmt.Errorf("large object has no source")
	}
	if s.inline(obj) {
		return s.writeInlineLOB(tag, obj)
	}

	entry := s.opts.Paths.LOB(s.schema.Index, s.table.Index, col.Index, row, 0, obj.Character)
	src, err := obj.Open()
	if err != nil {
		return err
	}
	var closeSrc sync.Once
	release := func() { closeSrc.Do(func() { src.Close() }) }
	defer release()

	var in io.Reader = src
	if obj.Character {
		in = norm.NFC.Reader(src)
	}

	dst, err := s.lobs.Open(entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-s.lobs.Aborted():
			cancel(failure.Operation("write "+entry, write.ErrClosed))
		case <-ctx.Done():
		}
	}()

	bridge := lob.New(in)
	lob.Pump(bridge, func(r io.Reader) error {
		_, err := io.Copy(dst, r)
		return err
	})
	if err := bridge.WaitContext(ctx); err != nil {
		// A consumer stuck in Read is released by closing its source; the
		// entry is sealed so its late writes are refused.
		release()
		s.lobs.Close()
		return err
	}
	if err := s.lobs.Close(); err != nil {
		return err
	}

	obj.Path = entry
	obj.Digest = bridge.Digest()
	s.lobN++
	fmt.Fprintf(s.buf, "<%s file=%q length=\"%d\" digestType=%q digest=%q/>",
		tag, entry, bridge.Length(), siard.DigestMD5, obj.Digest)
	return nil
}

func (s *Strategy) writeInlineLOB(tag string, obj *schema.LargeObject) error {
	src, err := obj.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	if obj.Character {
		s.element(tag, norm.NFC.String(string(data)), true)
	} else {
		s.element(tag, hex.EncodeToString(data), false)
	}
	return nil
}

// CloseTable seals the table XML, writes its XSD and records the row count.
func (s *Strategy) CloseTable(sc *schema.Schema, t *schema.Table) error {
	if s.table == nil || s.table != t || s.schema != sc {
		return failure.Operationf("close table", "table is not open")
	}
	s.buf.WriteString("</table>\n")
	if err := s.buf.Flush(); err != nil {
		s.discard()
		return failure.Operation("close table "+t.Name, err)
	}
	staged := s.xml
	s.xml, s.buf = nil, nil
	if err := staged.Close(); err != nil {
		s.discard()
		return err
	}

	w, err := s.w.Open(path.TableXSD(sc.Index, t.Index))
	if err != nil {
		s.discard()
		return err
	}
	if err := WriteXSD(w, sc, t); err != nil {
		s.w.Close()
		s.discard()
		return failure.Operation("write xsd "+t.Name, err)
	}
	if err := s.w.Close(); err != nil {
		s.discard()
		return err
	}

	t.Rows = s.rows
	s.table = nil
	s.obs.Rows(sc, t, s.rows)
	s.obs.CloseTable(sc, t)
	return nil
}

func (s *Strategy) discard() {
	if s.xml != nil {
		s.xml.Discard()
	}
	s.xml, s.buf, s.table = nil, nil, nil
}

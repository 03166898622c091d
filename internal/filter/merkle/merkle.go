// Package merkle computes a hash tree over the row stream of an export.
// Cell digests roll up into row digests, rows into tables, tables into
// schemas and schemas into a single top hash.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"db-siard/internal/failure"
	"db-siard/internal/schema"
	"db-siard/internal/siard/content"
	"db-siard/internal/types"

	"github.com/goccy/go-json"
	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"
)

type Algorithm string

const (
	BLAKE3 Algorithm = "BLAKE3"
	SHA256 Algorithm = "SHA-256"
)

// ParseAlgorithm accepts blake3, sha256 and sha-256 in any case.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "blake3":
		return BLAKE3, nil
	case "sha256", "sha-256":
		return SHA256, nil
	}
	return "", failure.Configuration("unknown merkle algorithm %q (known: blake3, sha256)", name)
}

func (a Algorithm) new() func() hash.Hash {
	if a == SHA256 {
		return sha256.New
	}
	return func() hash.Hash { return blake3.New() }
}

type Options struct {
	Algorithm Algorithm
	// Explain keeps every row and cell digest in the document.
	Explain   bool
	LowerCase bool
}

type Document struct {
	Algorithm string        `json:"algorithm"`
	Schemas   []*SchemaNode `json:"schemas"`
	TopHash   string        `json:"topHash"`
}

type SchemaNode struct {
	Name       string       `json:"name"`
	Tables     []*TableNode `json:"tables"`
	SchemaHash string       `json:"schemaHash"`
}

type TableNode struct {
	Name      string     `json:"name"`
	Columns   []string   `json:"columns"`
	RowCount  int64      `json:"rowCount"`
	Rows      []*RowNode `json:"rows,omitempty"`
	TableHash string     `json:"tableHash"`
}

type RowNode struct {
	Index   int64      `json:"index"`
	Cells   []CellNode `json:"cells"`
	RowHash string     `json:"rowHash"`
}

type CellNode struct {
	Index    int    `json:"index"`
	CellHash string `json:"cellHash"`
}

// Tree follows the same bracket as the content writer: OpenSchema,
// OpenTable, Wrap and Row per row, CloseTable, CloseSchema, Finish.
type Tree struct {
	opts    Options
	newHash func() hash.Hash

	doc    Document
	db     hash.Hash
	schema hash.Hash
	table  hash.Hash
	curS   *SchemaNode
	curT   *TableNode
	tees   map[int]*tee
}

func New(opts Options) *Tree {
	if opts.Algorithm == "" {
		opts.Algorithm = BLAKE3
	}
	t := &Tree{opts: opts, newHash: opts.Algorithm.new()}
	t.doc.Algorithm = string(opts.Algorithm)
	t.db = t.newHash()
	return t
}

func (t *Tree) hex(sum []byte) string {
	s := hex.EncodeToString(sum)
	if t.opts.LowerCase {
		return s
	}
	return strings.ToUpper(s)
}

func (t *Tree) OpenSchema(s *schema.Schema) {
	t.schema = t.newHash()
	t.curS = &SchemaNode{Name: s.Name}
	t.doc.Schemas = append(t.doc.Schemas, t.curS)
}

func (t *Tree) OpenTable(tb *schema.Table) error {
	if t.curS == nil {
		return failure.Operationf("merkle", "table %s opened outside a schema", tb.Name)
	}
	t.table = t.newHash()
	t.curT = &TableNode{Name: tb.Name, Columns: tb.ColumnNames()}
	t.curS.Tables = append(t.curS.Tables, t.curT)
	return nil
}

// Wrap replaces the large objects of row with copies whose payload is hashed
// while the archive writer drains them. Call it before the row is written.
func (t *Tree) Wrap(row *schema.Row) {
	t.tees = make(map[int]*tee)
	for i, c := range row.Cells {
		lc, ok := c.(schema.LOBCell)
		if !ok || lc.Object == nil {
			continue
		}
		obj := *lc.Object
		open := obj.Open
		tp := &tee{h: t.newHash()}
		t.tees[i] = tp
		obj.Open = func() (io.ReadCloser, error) {
			rc, err := open()
			if err != nil {
				return nil, err
			}
			tp.rc, tp.opened = rc, true
			tp.r = rc
			if obj.Character {
				tp.r = norm.NFC.Reader(rc)
			}
			return tp, nil
		}
		row.Cells[i] = schema.LOBCell{Object: &obj}
	}
}

// Row folds a written row into the open table.
func (t *Tree) Row(tb *schema.Table, row *schema.Row) error {
	if t.curT == nil {
		return failure.Operationf("merkle", "row %d arrived outside a table", row.Index)
	}
	rowHash := t.newHash()
	var node *RowNode
	if t.opts.Explain {
		node = &RowNode{Index: row.Index}
	}
	for i, c := range row.Cells {
		sum, err := t.cell(tb.Columns[i], i, c)
		if err != nil {
			return err
		}
		digest := t.hex(sum)
		rowHash.Write([]byte(digest))
		if node != nil {
			node.Cells = append(node.Cells, CellNode{Index: i + 1, CellHash: digest})
		}
	}
	digest := t.hex(rowHash.Sum(nil))
	t.table.Write([]byte(digest))
	t.curT.RowCount++
	if node != nil {
		node.RowHash = digest
		t.curT.Rows = append(t.curT.Rows, node)
	}
	t.tees = nil
	return nil
}

func (t *Tree) cell(col *schema.Column, i int, c schema.Cell) ([]byte, error) {
	h := t.newHash()
	switch x := c.(type) {
	case schema.NullCell:
	case schema.LOBCell:
		if x.Object == nil {
			break
		}
		tp, ok := t.tees[i]
		if !ok || !tp.opened {
			return nil, failure.Operationf("merkle", "large object of column %s was not wrapped or never read", col.Name)
		}
		return tp.h.Sum(nil), nil
	case schema.ScalarCell:
		if col.Type.Kind == types.Binary {
			if b, ok := rawBytes(x.Value); ok {
				h.Write(b)
				break
			}
		}
		text, err := content.Format(col.Type, x.Value)
		if err != nil {
			return nil, err
		}
		h.Write([]byte(text))
	}
	return h.Sum(nil), nil
}

func rawBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	}
	return nil, false
}

func (t *Tree) CloseTable() {
	if t.curT == nil {
		return
	}
	t.curT.TableHash = t.hex(t.table.Sum(nil))
	t.schema.Write([]byte(t.curT.TableHash))
	t.curT = nil
}

func (t *Tree) CloseSchema() {
	if t.curS == nil {
		return
	}
	t.curS.SchemaHash = t.hex(t.schema.Sum(nil))
	t.db.Write([]byte(t.curS.SchemaHash))
	t.curS = nil
}

// Finish computes the top hash. The tree must not be used afterwards.
func (t *Tree) Finish() *Document {
	t.doc.TopHash = t.hex(t.db.Sum(nil))
	return &t.doc
}

// Encode writes d as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

type tee struct {
	h      hash.Hash
	rc     io.ReadCloser
	r      io.Reader
	opened bool
}

func (t *tee) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.h.Write(p[:n])
	return n, err
}

func (t *tee) Close() error { return t.rc.Close() }

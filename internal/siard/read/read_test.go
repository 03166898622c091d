package read_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/content"
	"db-siard/internal/siard/metadata"
	"db-siard/internal/siard/read"
	"db-siard/internal/siard/write"
	"db-siard/internal/types"

	"github.com/spf13/afero"
)

func buildArchive(t *testing.T, fs afero.Fs) *schema.DatabaseStructure {
	t.Helper()
	db := &schema.DatabaseStructure{Name: "shop"}
	s := &schema.Schema{Name: "main"}
	db.AddSchema(s)
	tbl := &schema.Table{Name: "files"}
	tbl.AddColumn(&schema.Column{Name: "id", Type: types.Type{Kind: types.NumericExact, Precision: 10, SQL2008: "INTEGER"}})
	tbl.AddColumn(&schema.Column{Name: "data", Type: types.BLOB(0), IsNullable: true})
	s.AddTable(tbl)

	z, err := write.NewZip(fs, siard.Container{Path: "/shop.siard"})
	if err != nil {
		t.Fatal(err)
	}
	c := content.New(z, content.Options{BLOBThreshold: 2})
	c.OpenSchema(s)
	c.OpenTable(s, tbl)
	payloads := []string{"ab", "a larger payload"}
	for i, p := range payloads {
		data := p
		cell := schema.LOBCell{Object: &schema.LargeObject{
			Open:   func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(data)), nil },
			Length: int64(len(data)),
		}}
		row := &schema.Row{Index: int64(i + 1), Cells: []schema.Cell{schema.ScalarCell{Value: i + 1}, cell}}
		if err := c.TableRow(context.Background(), row); err != nil {
			t.Fatal(err)
		}
	}
	c.TableRow(context.Background(), &schema.Row{Index: 3, Cells: []schema.Cell{schema.ScalarCell{Value: 3}, schema.NullCell{}}})
	if err := c.CloseTable(s, tbl); err != nil {
		t.Fatal(err)
	}
	c.CloseSchema(s)
	if err := metadata.NewStrategy(z, metadata.EncodeOptions{}).Write(db); err != nil {
		t.Fatal(err)
	}
	if err := z.Finalize(); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestArchive_RecordsAndRows(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildArchive(t, fs)

	a, err := read.Open(fs, "/shop.siard")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	db, err := a.Metadata()
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	tbl := db.Schema("main").Table("files")
	if tbl.Rows != 3 {
		t.Errorf("Expected 3 rows in descriptor, got %d", tbl.Rows)
	}

	cs, bad := a.Contents()
	if len(cs) != 1 || cs[0].String() != "schema1/table1" || len(bad) != 0 {
		t.Fatalf("Expected one content folder, got %v %v", cs, bad)
	}

	var rows []*schema.Row
	err = a.Records(context.Background(), cs[0], func(rec read.Record) error {
		row, err := a.Row(tbl, rec)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}

	inline, ok := rows[0].Cells[1].(schema.ScalarCell)
	if !ok || !bytes.Equal(inline.Value.([]byte), []byte("ab")) {
		t.Errorf("Expected inline blob to decode from hex, got %#v", rows[0].Cells[1])
	}
	ext, ok := rows[1].Cells[1].(schema.LOBCell)
	if !ok {
		t.Fatalf("Expected external blob, got %#v", rows[1].Cells[1])
	}
	rc, err := ext.Object.Open()
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "a larger payload" {
		t.Errorf("Expected payload back, got %q", got)
	}
	if !rows[2].Cells[1].IsNull() {
		t.Error("Expected absent cell to read as null")
	}
}

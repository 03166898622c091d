package engine_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"db-siard/internal/dialect"
	"db-siard/internal/engine"
	"db-siard/internal/failure"
	"db-siard/internal/filter/merkle"
	"db-siard/internal/schema"
	"db-siard/internal/siard/read"
	"db-siard/internal/types"
	"db-siard/internal/validate"

	"github.com/spf13/afero"
)

const longBio = "a biography far longer than sixteen characters"

func openSqlite(t *testing.T, stmts ...string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("fixture %q: %v", stmt, err)
		}
	}
	return db
}

func sourceDB(t *testing.T) *sql.DB {
	return openSqlite(t,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, user_nm VARCHAR(50) NOT NULL, bio TEXT, avatar BLOB, joined DATE)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id), total DECIMAL(10,2))`,
		`INSERT INTO users VALUES (1, '김민준', 'short', x'cafe', '2024-03-01')`,
		`INSERT INTO users VALUES (2, 'Zoë', '`+longBio+`', NULL, '2023-12-31')`,
		`INSERT INTO orders VALUES (10, 1, 12.5)`,
		`INSERT INTO orders VALUES (11, 2, 7)`,
		`INSERT INTO orders VALUES (12, NULL, 0.25)`,
	)
}

func exportSource(t *testing.T, fs afero.Fs, out string, tree *merkle.Tree) (*schema.DatabaseStructure, *engine.ExportResult) {
	t.Helper()
	ctx := context.Background()
	src := sourceDB(t)
	d := &dialect.SqliteDialect{}

	structure, err := engine.Structure(ctx, src, d, engine.StructureOptions{
		DSN:        "file:/data/shop.db",
		Descriptor: engine.Descriptor{DataOwner: "test"},
	})
	if err != nil {
		t.Fatalf("Structure failed: %v", err)
	}
	res, err := engine.Export(ctx, engine.ExportJob{
		Fs:            fs,
		Output:        out,
		Structure:     structure,
		Source:        &engine.DBSource{DB: src, Dialect: d},
		CLOBThreshold: 16,
		BLOBThreshold: 16,
		Merkle:        tree,
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	return structure, res
}

func TestExportValidateRestore_Sqlite(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	tree := merkle.New(merkle.Options{})
	structure, res := exportSource(t, fs, "/out/shop.siard", tree)

	if structure.Name != "shop" {
		t.Errorf("Expected database name from the DSN, got %q", structure.Name)
	}
	if res.Tables != 2 || res.Rows != 5 {
		t.Errorf("Expected 2 tables and 5 rows, got %d and %d", res.Tables, res.Rows)
	}
	if res.LOBs != 1 {
		t.Errorf("Expected the long biography to be externalized, got %d LOBs", res.LOBs)
	}
	if ok, _ := afero.Exists(fs, "/out/shop.siard"); !ok {
		t.Fatal("Expected archive at its final path")
	}

	doc := tree.Finish()
	if doc.TopHash == "" || len(doc.Schemas) != 1 || len(doc.Schemas[0].Tables) != 2 {
		t.Errorf("Expected a merkle document over both tables, got %+v", doc)
	}

	report, err := validate.Run(ctx, fs, "/out/shop.siard", validate.Options{Reference: structure})
	if err != nil {
		t.Fatal(err)
	}
	if !report.Passed {
		var buf bytes.Buffer
		report.WriteText(&buf)
		t.Fatalf("Expected exported archive to validate:\n%s", buf.String())
	}

	archive, err := read.Open(fs, "/out/shop.siard")
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()

	target := openSqlite(t)
	d := &dialect.SqliteDialect{}
	results, err := engine.Restore(ctx, engine.RestoreJob{DB: target, Dialect: d, Archive: archive, CreateTables: true})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(results) != 2 || results[0].TableName != "users" {
		t.Fatalf("Expected users restored before orders, got %+v", results)
	}
	for _, r := range results {
		if r.Status != "OK" || r.Actual != r.Target {
			t.Errorf("Expected %s fully restored, got %+v", r.TableName, r)
		}
	}

	var name, bio string
	var avatar []byte
	if err := target.QueryRow(`SELECT user_nm, bio, avatar FROM users WHERE id = 1`).Scan(&name, &bio, &avatar); err != nil {
		t.Fatal(err)
	}
	if name != "김민준" || bio != "short" || !bytes.Equal(avatar, []byte{0xca, 0xfe}) {
		t.Errorf("Expected first user to survive, got %q %q %x", name, bio, avatar)
	}
	if err := target.QueryRow(`SELECT bio FROM users WHERE id = 2`).Scan(&bio); err != nil {
		t.Fatal(err)
	}
	if bio != longBio {
		t.Errorf("Expected externalized biography to be restored, got %q", bio)
	}
	var total float64
	if err := target.QueryRow(`SELECT total FROM orders WHERE id = 12`).Scan(&total); err != nil {
		t.Fatal(err)
	}
	if total != 0.25 {
		t.Errorf("Expected total 0.25, got %v", total)
	}
	var nullUser sql.NullInt64
	target.QueryRow(`SELECT user_id FROM orders WHERE id = 12`).Scan(&nullUser)
	if nullUser.Valid {
		t.Errorf("Expected null user_id to stay null, got %d", nullUser.Int64)
	}

	if err := engine.Clean(ctx, target, d, []*schema.Table{{Name: "users"}, {Name: "orders"}}, nil); err != nil {
		t.Fatal(err)
	}
	var left int
	target.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&left)
	if left != 0 {
		t.Errorf("Expected clean to empty orders, got %d rows", left)
	}
}

func TestExport_SyntheticWithExternalLOBs(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	src := engine.NewSynthetic(12, 7)
	src.MaxLOB = 256

	res, err := engine.Export(ctx, engine.ExportJob{
		Fs:                fs,
		Output:            "/out/sample.siard",
		Structure:         engine.SampleStructure(),
		Source:            src,
		CLOBThreshold:     64,
		BLOBThreshold:     64,
		ExternalLOBs:      true,
		MaxFilesPerFolder: 5,
		Compression:       "store",
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if res.LOBArchive != "/out/sample_lobs.zip" {
		t.Errorf("Expected LOB container next to the archive, got %q", res.LOBArchive)
	}
	if ok, _ := afero.Exists(fs, res.LOBArchive); !ok {
		t.Fatal("Expected LOB container to be finalized")
	}
	if res.LOBs == 0 {
		t.Error("Expected synthetic large objects to be externalized")
	}

	report, err := validate.Run(ctx, fs, "/out/sample.siard", validate.Options{Parallel: true})
	if err != nil {
		t.Fatal(err)
	}
	if !report.Passed {
		var buf bytes.Buffer
		report.WriteText(&buf)
		t.Fatalf("Expected synthetic archive to validate:\n%s", buf.String())
	}
}

// failingSource breaks on the second table.
type failingSource struct{ engine.RowSource }

var errBoom = errors.New("boom")

func (f failingSource) Rows(ctx context.Context, s *schema.Schema, t *schema.Table, fn func(*schema.Row) error) error {
	if t.Index > 1 {
		return errBoom
	}
	return f.RowSource.Rows(ctx, s, t, fn)
}

func TestExport_FailureLeavesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := engine.Export(context.Background(), engine.ExportJob{
		Fs:           fs,
		Output:       "/out/broken.siard",
		Structure:    engine.SampleStructure(),
		Source:       failingSource{engine.NewSynthetic(3, 1)},
		ExternalLOBs: true,
	})
	if !errors.Is(err, errBoom) || !errors.Is(err, failure.ErrOperation) {
		t.Fatalf("Expected the source error as an OperationFailure, got %v", err)
	}
	var files []string
	afero.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if len(files) != 0 {
		t.Errorf("Expected no files after a failed export, got %v", files)
	}
}

func TestExport_RejectsBadOutput(t *testing.T) {
	_, err := engine.Export(context.Background(), engine.ExportJob{
		Fs:        afero.NewMemMapFs(),
		Output:    "/out/archive.zip",
		Structure: engine.SampleStructure(),
		Source:    engine.NewSynthetic(1, 1),
	})
	if !errors.Is(err, failure.ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

// frobnicating reports FROBNICATE columns with a code no resolver tier knows.
type frobnicating struct {
	*dialect.SqliteDialect
}

func (f frobnicating) Describe(col dialect.NativeColumn) types.Descriptor {
	if strings.EqualFold(col.DataType, "FROBNICATE") {
		return types.Descriptor{Code: 9999, Name: "FROBNICATE"}
	}
	return f.SqliteDialect.Describe(col)
}

func TestStructure_UnknownTypeNeedsAllowPartial(t *testing.T) {
	ctx := context.Background()
	db := openSqlite(t, `CREATE TABLE gadgets (id INTEGER PRIMARY KEY, odd FROBNICATE)`)
	d := frobnicating{&dialect.SqliteDialect{}}

	_, err := engine.Structure(ctx, db, d, engine.StructureOptions{DSN: "gadgets.db"})
	if !errors.Is(err, failure.ErrUnknownType) {
		t.Fatalf("Expected UnknownType, got %v", err)
	}

	structure, err := engine.Structure(ctx, db, d, engine.StructureOptions{DSN: "gadgets.db", AllowPartial: true})
	if err != nil {
		t.Fatalf("Expected partial structure, got %v", err)
	}
	if got := structure.Schemas[0].Tables[0].ColumnNames(); len(got) != 1 || got[0] != "id" {
		t.Errorf("Expected only the id column, got %v", got)
	}
}

func TestStructure_TableFilterPrunesReferences(t *testing.T) {
	db := sourceDB(t)
	structure, err := engine.Structure(context.Background(), db, &dialect.SqliteDialect{}, engine.StructureOptions{
		DSN:    "shop.db",
		Tables: []string{"main.orders"},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := structure.Schemas[0]
	if len(s.Tables) != 1 || s.Tables[0].Name != "orders" || s.Tables[0].Index != 1 {
		t.Fatalf("Expected only orders as table1, got %+v", s.Tables)
	}
	if len(s.Tables[0].ForeignKeys) != 0 {
		t.Errorf("Expected the foreign key to users to be dropped, got %+v", s.Tables[0].ForeignKeys)
	}
}

func TestSynthetic_KeysAndReferences(t *testing.T) {
	ctx := context.Background()
	db := engine.SampleStructure()
	s := db.Schemas[0]
	src := engine.NewSynthetic(20, 42)

	ids := make(map[string]map[string]bool)
	emails := make(map[string]bool)
	for _, tbl := range s.Tables {
		ids[tbl.Name] = make(map[string]bool)
		err := src.Rows(ctx, s, tbl, func(row *schema.Row) error {
			if err := tbl.CheckRow(row); err != nil {
				return err
			}
			id := row.Cells[0].(schema.ScalarCell).Value
			ids[tbl.Name][toKey(id)] = true
			if tbl.Name == "customers" {
				email := row.Cells[2].(schema.ScalarCell).Value.(string)
				if emails[email] {
					t.Errorf("Expected unique emails, %s repeated", email)
				}
				emails[email] = true
			}
			if tbl.Name == "orders" {
				ref := toKey(row.Cells[1].(schema.ScalarCell).Value)
				if !ids["customers"][ref] {
					t.Errorf("Expected order %d to reference an existing customer, got %s", row.Index, ref)
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("%s: %v", tbl.Name, err)
		}
		if len(ids[tbl.Name]) != 20 {
			t.Errorf("Expected 20 distinct keys in %s, got %d", tbl.Name, len(ids[tbl.Name]))
		}
	}
}

func toKey(v any) string { return fmt.Sprint(v) }

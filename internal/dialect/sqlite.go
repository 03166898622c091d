package dialect

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"db-siard/internal/failure"
	"db-siard/internal/types"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SqliteDialect reads and writes SQLite files. SQLite has a single schema,
// reported as "main".
type SqliteDialect struct{}

func (d *SqliteDialect) Name() string       { return "sqlite" }
func (d *SqliteDialect) DriverName() string { return "sqlite" }

func (d *SqliteDialect) GetTablesQuery(schema string) string {
	return `SELECT name, NULL FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND ? IS NOT NULL ORDER BY name`
}

func (d *SqliteDialect) GetColumnsQuery(schema string) string {
	return `SELECT m.name, p.name, p.type, p.type, NULL, NULL, NULL,
    CASE WHEN p."notnull" = 0 AND p.pk = 0 THEN 'YES' ELSE 'NO' END,
    CASE WHEN p.pk > 0 THEN 'PRI' ELSE '' END,
    p.dflt_value, NULL, NULL
FROM sqlite_master m JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ? IS NOT NULL
ORDER BY m.name, p.cid`
}

func (d *SqliteDialect) GetPrimaryKeysQuery(schema string) string {
	return `SELECT m.name, p.name FROM sqlite_master m JOIN pragma_table_info(m.name) p WHERE m.type = 'table' AND p.pk > 0 AND ? IS NOT NULL ORDER BY m.name, p.pk`
}

func (d *SqliteDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT m.name, 'fk_' || m.name || '_' || f.id, f."from", f."table", f."to" FROM sqlite_master m JOIN pragma_foreign_key_list(m.name) f WHERE m.type = 'table' AND ? IS NOT NULL ORDER BY m.name, f.id, f.seq`
}

func (d *SqliteDialect) CurrentSchemaQuery() string { return "" }

var sqliteCodes = map[string]int{
	"text":     types.CodeLongVarchar,
	"datetime": types.CodeTimestamp,
	"float":    types.CodeDouble,
}

// Describe applies SQLite's type affinity rules to the declared type.
func (d *SqliteDialect) Describe(col NativeColumn) types.Descriptor {
	declared := strings.TrimSpace(col.DataType)
	p, s := typeArgs(declared)
	desc := types.Descriptor{Code: codeFor(sqliteCodes, declared), Name: declared, Size: p, Scale: s, Radix: 10}
	if desc.Code != types.CodeOther {
		return desc
	}
	upper := strings.ToUpper(declared)
	switch {
	case strings.Contains(upper, "INT"):
		desc.Code = types.CodeBigint
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "CLOB"), strings.Contains(upper, "TEXT"):
		desc.Code = types.CodeVarchar
		if p == 0 {
			desc.Code = types.CodeLongVarchar
		}
	case upper == "" || strings.Contains(upper, "BLOB"):
		desc.Code = types.CodeBlob
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"), strings.Contains(upper, "DOUB"):
		desc.Code = types.CodeDouble
	default:
		desc.Code = types.CodeNumeric
	}
	return desc
}

func (d *SqliteDialect) TypeOverrides() map[string]types.OverrideFunc {
	return map[string]types.OverrideFunc{
		"text": types.Fixed(types.CLOB(0)),
		"clob": types.Fixed(types.CLOB(0)),
	}
}

func (d *SqliteDialect) BeforePump(tx *sql.Tx) error {
	_, err := tx.Exec("PRAGMA defer_foreign_keys = ON")
	return err
}

func (d *SqliteDialect) AfterPump(tx *sql.Tx) error {
	return nil
}

func (d *SqliteDialect) BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *SqliteDialect) AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *SqliteDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), strings.Join(quoted, ", "), vals)
}

func (d *SqliteDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", d.QuoteIdent(table))
}

func (d *SqliteDialect) CreateTableQuery(table string, cols []ColumnSpec, pk []string) string {
	return createTable(d.QuoteIdent(table), cols, pk, d.QuoteIdent, d.NativeType)
}

func (d *SqliteDialect) NativeType(t types.Type) string {
	switch t.Kind {
	case types.String, types.XML, types.Unsupported:
		if t.LOB || t.Kind != types.String {
			return "TEXT"
		}
	case types.Binary:
		return "BLOB"
	}
	return standardNativeType(t)
}

func (d *SqliteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SqliteDialect) SelectQuery(schema, table string, cols []string) string {
	return selectQuery(d.QuoteIdent(table), cols, d.QuoteIdent)
}

func (d *SqliteDialect) QuoteIdent(name string) string {
	return quoteWith(`"`, `"`, name)
}

func (d *SqliteDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *SqliteDialect) GetSchemaName(input string) string {
	if input == "" {
		return "main"
	}
	return input
}

func (d *SqliteDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}

func (d *SqliteDialect) NormalizeError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH, sqlite3.SQLITE_READONLY:
			return failure.PermissionDenied(err)
		}
	}
	return err
}

func (d *SqliteDialect) DescribeDSN(dsn string) (ConnectionInfo, error) {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return ConnectionInfo{}, failure.Configuration("empty sqlite dsn")
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ConnectionInfo{URL: "sqlite:" + path, Database: name}, nil
}

package dialect

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"db-siard/internal/failure"
	"db-siard/internal/types"

	"github.com/lib/pq"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "postgres" }

func (d *PostgresDialect) GetTablesQuery(schema string) string {
	// use $1 placeholder
	return `SELECT t.table_name, obj_description(to_regclass(quote_ident(t.table_schema) || '.' || quote_ident(t.table_name)), 'pg_class') FROM information_schema.tables t WHERE t.table_schema = $1 AND t.table_type = 'BASE TABLE' ORDER BY t.table_name`
}

func (d *PostgresDialect) GetColumnsQuery(schema string) string {
	// Postgres specific: UDT_NAME is often better than DATA_TYPE.
	// Subqueries used to fetch PRIMARY KEY and UNIQUE constraints correctly.
	return `SELECT
    c.table_name,
    c.column_name,
    c.data_type,
    c.udt_name,
    c.character_maximum_length,
    c.numeric_precision,
    c.numeric_scale,
    c.is_nullable,
    (SELECT 'PRI' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
     WHERE tc.constraint_type = 'PRIMARY KEY'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS COLUMN_KEY,
    c.column_default,
    (SELECT 'UNIQUE' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
     WHERE tc.constraint_type = 'UNIQUE'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS IS_UNIQUE,
    col_description(to_regclass(quote_ident(c.table_schema) || '.' || quote_ident(c.table_name)), c.ordinal_position) AS COMMENT
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`
}

func (d *PostgresDialect) GetPrimaryKeysQuery(schema string) string {
	return `SELECT kcu.table_name, kcu.column_name FROM information_schema.key_column_usage kcu JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema WHERE kcu.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY' ORDER BY kcu.table_name, kcu.ordinal_position`
}

func (d *PostgresDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, ccu.table_name AS referenced_table_name, ccu.column_name AS referenced_column_name FROM information_schema.key_column_usage kcu JOIN information_schema.constraint_column_usage ccu ON kcu.constraint_name = ccu.constraint_name AND kcu.table_schema = ccu.constraint_schema JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema WHERE kcu.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY' ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`
}

func (d *PostgresDialect) CurrentSchemaQuery() string {
	return "SELECT current_schema()"
}

// postgresCodes follows what the JDBC driver reports for each udt_name.
var postgresCodes = map[string]int{
	"int2":        types.CodeSmallint,
	"int4":        types.CodeInteger,
	"int8":        types.CodeBigint,
	"serial":      types.CodeInteger,
	"bigserial":   types.CodeBigint,
	"oid":         types.CodeBigint,
	"float4":      types.CodeReal,
	"float8":      types.CodeDouble,
	"money":       types.CodeDouble,
	"bpchar":      types.CodeChar,
	"text":        types.CodeVarchar,
	"name":        types.CodeVarchar,
	"bytea":       types.CodeBinary,
	"bool":        types.CodeBit,
	"timetz":      types.CodeTime,
	"timestamptz": types.CodeTimestamp,
	"varbit":      types.CodeOther,
	"uuid":        types.CodeOther,
	"json":        types.CodeOther,
	"jsonb":       types.CodeOther,
	"tsvector":    types.CodeOther,
	"xml":         types.CodeSQLXML,
}

func (d *PostgresDialect) Describe(col NativeColumn) types.Descriptor {
	native := col.ColumnType
	if native == "" {
		native = col.DataType
	}
	desc := describe(postgresCodes, NativeColumn{
		DataType:  native,
		Length:    col.Length,
		Precision: col.Precision,
		Scale:     col.Scale,
	})
	if strings.EqualFold(col.DataType, "ARRAY") || strings.EqualFold(col.DataType, "USER-DEFINED") {
		if _, known := postgresCodes[strings.ToLower(native)]; !known {
			desc.Code = types.CodeOther
		}
	}
	return desc
}

func (d *PostgresDialect) TypeOverrides() map[string]types.OverrideFunc {
	clob := types.Sized(func(desc types.Descriptor) types.Type { return types.CLOB(desc.Size) })
	double := types.Fixed(types.Approximate("DOUBLE PRECISION", 53))
	return map[string]types.OverrideFunc{
		"text":     clob,
		"json":     clob,
		"jsonb":    clob,
		"xml":      types.Fixed(types.SQLXML()),
		"tsvector": types.Sized(func(desc types.Descriptor) types.Type { return types.Char(true, desc.Size) }),
		"bytea":    types.Sized(func(desc types.Descriptor) types.Type { return types.BLOB(desc.Size) }),
		"varbit": types.Sized(func(desc types.Descriptor) types.Type {
			t := types.Type{Kind: types.Binary, MaxLength: desc.Size}
			t.SQL99 = fmt.Sprintf("BIT VARYING(%d)", 8*desc.Size)
			t.SQL2008 = fmt.Sprintf("BINARY VARYING(%d)", 8*desc.Size)
			return t
		}),
		"money":       double,
		"float8":      double,
		"timetz":      types.Fixed(types.Time(true)),
		"timestamptz": types.Fixed(types.Temporal(true, true)),
		"uuid":        types.Fixed(types.Char(true, 36)),
		"numeric": func(desc types.Descriptor) (types.Type, bool) {
			// an unconstrained numeric reports no precision; explicit declarations stop at 1000
			if desc.Size == 0 || desc.Size > 1000 {
				return types.Exact("NUMERIC", 1000, 1000), true
			}
			return types.Type{}, false
		},
	}
}

func (d *PostgresDialect) BeforePump(tx *sql.Tx) error {
	// Use DEFERRED constraints for circular dependencies.
	// This works for foreign keys defined as DEFERRABLE.
	_, err := tx.Exec("SET CONSTRAINTS ALL DEFERRED")
	return err
}

func (d *PostgresDialect) AfterPump(tx *sql.Tx) error {
	_, err := tx.Exec("SET CONSTRAINTS ALL IMMEDIATE")
	return err
}

func (d *PostgresDialect) BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	// Try session_replication_role for circular dependencies (superuser required)
	if _, err := tx.Exec("SET session_replication_role = 'replica'"); err != nil {
		_, err2 := tx.Exec("SET CONSTRAINTS ALL DEFERRED")
		return fmt.Errorf("replication_role failed: %v, deferred failed: %v", err, err2)
	}
	return nil
}

func (d *PostgresDialect) AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	_, err := tx.Exec("SET session_replication_role = 'origin'")
	return err
}

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	// Generate placeholders ($1, $2, ...)
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), strings.Join(quoted, ", "), vals)
}

func (d *PostgresDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s CASCADE", d.QuoteIdent(table))
}

func (d *PostgresDialect) CreateTableQuery(table string, cols []ColumnSpec, pk []string) string {
	return createTable(d.QuoteIdent(table), cols, pk, d.QuoteIdent, d.NativeType)
}

func (d *PostgresDialect) NativeType(t types.Type) string {
	switch t.Kind {
	case types.String:
		if t.LOB {
			return "TEXT"
		}
	case types.Binary:
		return "BYTEA"
	case types.NumericExact:
		if t.Precision >= 1000 {
			return "NUMERIC"
		}
	case types.XML:
		return "XML"
	case types.Unsupported:
		return "TEXT"
	}
	return standardNativeType(t)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) SelectQuery(schema, table string, cols []string) string {
	return selectQuery(d.QuoteIdent(schema)+"."+d.QuoteIdent(table), cols, d.QuoteIdent)
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "int4", "int2":
		return "int"
	case "int8":
		return "bigint"
	case "float4":
		return "float"
	case "float8":
		return "double"
	case "bpchar":
		return "char"
	case "varchar":
		return "varchar"
	default:
		return t
	}
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}

func (d *PostgresDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}

func (d *PostgresDialect) NormalizeError(err error) error {
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case "42501", "28000", "28P01":
			return failure.PermissionDenied(err)
		}
	}
	return err
}

func (d *PostgresDialect) DescribeDSN(dsn string) (ConnectionInfo, error) {
	conn := dsn
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		parsed, err := pq.ParseURL(dsn)
		if err != nil {
			return ConnectionInfo{}, failure.Configuration("invalid postgres dsn: %v", err)
		}
		conn = parsed
	}
	kv := parseKeyValues(conn)
	host := kv["host"]
	if p := kv["port"]; p != "" {
		host += ":" + p
	}
	u := url.URL{Scheme: "postgresql", Host: host, Path: "/" + kv["dbname"]}
	return ConnectionInfo{URL: u.String(), User: kv["user"], Database: kv["dbname"]}, nil
}

// parseKeyValues reads a libpq "key=value key='quoted value'" string.
func parseKeyValues(s string) map[string]string {
	out := make(map[string]string)
	for len(s) > 0 {
		s = strings.TrimLeft(s, " ")
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = strings.TrimLeft(s[eq+1:], " ")
		var val string
		if strings.HasPrefix(s, "'") {
			var b strings.Builder
			i := 1
			for ; i < len(s); i++ {
				if s[i] == '\\' && i+1 < len(s) {
					i++
					b.WriteByte(s[i])
					continue
				}
				if s[i] == '\'' {
					break
				}
				b.WriteByte(s[i])
			}
			val = b.String()
			if i < len(s) {
				i++
			}
			s = s[i:]
		} else {
			end := strings.IndexByte(s, ' ')
			if end < 0 {
				end = len(s)
			}
			val = s[:end]
			s = s[end:]
		}
		out[key] = val
	}
	return out
}

package dialect

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"db-siard/internal/failure"
	"db-siard/internal/types"

	mssql "github.com/denisenkom/go-mssqldb" // SQL Server Driver
	"github.com/microsoft/go-mssqldb/msdsn"
)

type MSSQLDialect struct{}

func (d *MSSQLDialect) Name() string       { return "sqlserver" }
func (d *MSSQLDialect) DriverName() string { return "sqlserver" }

// Helper: MSSQL Driver (go-mssqldb) often prefers @p1, @p2 named parameters over ?
// especially when prepared statements are involved or simple Exec.

func (d *MSSQLDialect) GetTablesQuery(schema string) string {
	// Use @p1 for schema binding
	return `SELECT t.TABLE_NAME, CAST(ep.value AS NVARCHAR(MAX)) FROM INFORMATION_SCHEMA.TABLES t LEFT JOIN sys.extended_properties ep ON ep.major_id = OBJECT_ID(t.TABLE_SCHEMA + '.' + t.TABLE_NAME) AND ep.minor_id = 0 AND ep.name = 'MS_Description' WHERE t.TABLE_SCHEMA = @p1 AND t.TABLE_TYPE = 'BASE TABLE' ORDER BY t.TABLE_NAME`
}

func (d *MSSQLDialect) GetColumnsQuery(schema string) string {
	// Include PK, UNIQUE constraints, UNIQUE indexes, Identity info, and MS_Description (Comment)
	return `
		SELECT 
			c.TABLE_NAME, 
			c.COLUMN_NAME, 
			c.DATA_TYPE, 
			c.DATA_TYPE, 
			c.CHARACTER_MAXIMUM_LENGTH, 
			c.NUMERIC_PRECISION, 
			c.NUMERIC_SCALE, 
			c.IS_NULLABLE, 
			CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 'PRIMARY' ELSE '' END AS COLUMN_KEY,
			CASE 
				WHEN idxc.column_id IS NOT NULL THEN 'identity' 
				WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity'
				ELSE c.COLUMN_DEFAULT 
			END AS COLUMN_DEFAULT,
			CASE WHEN uq.COLUMN_NAME IS NOT NULL OR ui.COLUMN_NAME IS NOT NULL THEN 'UNIQUE' ELSE '' END AS IS_UNIQUE,
			CAST(ep.value AS NVARCHAR(MAX)) AS COMMENT
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu 
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1
		) pk ON c.TABLE_NAME = pk.TABLE_NAME AND c.COLUMN_NAME = pk.COLUMN_NAME
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu 
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'UNIQUE' AND tc.TABLE_SCHEMA = @p1
		) uq ON c.TABLE_NAME = uq.TABLE_NAME AND c.COLUMN_NAME = uq.COLUMN_NAME
		LEFT JOIN (
			SELECT 
				t.name AS TABLE_NAME,
				col.name AS COLUMN_NAME
			FROM sys.indexes idx
			JOIN sys.index_columns ic ON idx.object_id = ic.object_id AND idx.index_id = ic.index_id
			JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
			JOIN sys.tables t ON idx.object_id = t.object_id
			JOIN sys.schemas s ON t.schema_id = s.schema_id
			WHERE idx.is_unique = 1 
				AND idx.is_primary_key = 0
				AND s.name = @p1
		) ui ON c.TABLE_NAME = ui.TABLE_NAME AND c.COLUMN_NAME = ui.COLUMN_NAME
		LEFT JOIN sys.identity_columns idxc
			ON idxc.object_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
			AND idxc.name = c.COLUMN_NAME
		LEFT JOIN sys.extended_properties ep 
			ON ep.major_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME) 
			AND ep.minor_id = c.ORDINAL_POSITION 
			AND ep.name = 'MS_Description'
		WHERE c.TABLE_SCHEMA = @p1 
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION
	`
}

func (d *MSSQLDialect) GetPrimaryKeysQuery(schema string) string {
	return `SELECT T.TABLE_NAME, C.COLUMN_NAME FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS T JOIN INFORMATION_SCHEMA.CONSTRAINT_COLUMN_USAGE C ON T.CONSTRAINT_NAME = C.CONSTRAINT_NAME WHERE T.CONSTRAINT_TYPE = 'PRIMARY KEY' AND T.TABLE_SCHEMA = @p1 ORDER BY T.TABLE_NAME`
}

func (d *MSSQLDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.COLUMN_NAME, KCU2.TABLE_NAME AS REF_TABLE, KCU2.COLUMN_NAME AS REF_COLUMN FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1 ON RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2 ON RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME WHERE KCU1.TABLE_SCHEMA = @p1 AND KCU1.ORDINAL_POSITION = KCU2.ORDINAL_POSITION ORDER BY KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.ORDINAL_POSITION`
}

func (d *MSSQLDialect) CurrentSchemaQuery() string {
	return "SELECT SCHEMA_NAME()"
}

var mssqlCodes = map[string]int{
	"ntext":            types.CodeLongNVarchar,
	"text":             types.CodeLongVarchar,
	"image":            types.CodeLongVarbinary,
	"datetime2":        types.CodeTimestamp,
	"smalldatetime":    types.CodeTimestamp,
	"datetimeoffset":   types.CodeTimestampWithTimezone,
	"money":            types.CodeDecimal,
	"smallmoney":       types.CodeDecimal,
	"uniqueidentifier": types.CodeChar,
	"float":            types.CodeDouble,
	"xml":              types.CodeLongNVarchar,
	"sql_variant":      types.CodeOther,
	"hierarchyid":      types.CodeOther,
	"geography":        types.CodeOther,
	"geometry":         types.CodeOther,
	"timestamp":        types.CodeBinary,
	"rowversion":       types.CodeBinary,
}

func (d *MSSQLDialect) Describe(col NativeColumn) types.Descriptor {
	desc := describe(mssqlCodes, col)
	// (MAX) columns report a length of -1
	if col.Length < 0 {
		desc.Size = 0
		switch desc.Code {
		case types.CodeVarchar:
			desc.Code = types.CodeLongVarchar
		case types.CodeNVarchar:
			desc.Code = types.CodeLongNVarchar
		case types.CodeVarbinary:
			desc.Code = types.CodeLongVarbinary
		}
	}
	return desc
}

func (d *MSSQLDialect) TypeOverrides() map[string]types.OverrideFunc {
	return map[string]types.OverrideFunc{
		"uniqueidentifier": types.Fixed(types.Char(false, 36)),
		"money":            types.Fixed(types.Exact("DECIMAL", 19, 4)),
		"smallmoney":       types.Fixed(types.Exact("DECIMAL", 10, 4)),
		"xml":              types.Fixed(types.SQLXML()),
		"datetimeoffset":   types.Fixed(types.Temporal(true, true)),
		"timestamp":        types.Fixed(types.Type{Kind: types.Binary, MaxLength: 8, SQL2008: "BINARY(8)", SQL99: "BINARY(8)"}),
		"rowversion":       types.Fixed(types.Type{Kind: types.Binary, MaxLength: 8, SQL2008: "BINARY(8)", SQL99: "BINARY(8)"}),
	}
}

func mssqlBaseTables(tx *sql.Tx) ([]string, error) {
	rows, err := tx.Query("SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = SCHEMA_NAME()")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (d *MSSQLDialect) BeforePump(tx *sql.Tx) error {
	// Disable all constraints on all tables to allow bulk operations and avoid FK loops
	tables, err := mssqlBaseTables(tx)
	if err != nil {
		return err
	}

	for _, t := range tables {
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT all", d.QuoteIdent(t))); err != nil {
			return fmt.Errorf("failed to disable constraints on %s: %w", t, err)
		}
	}
	return nil
}

func (d *MSSQLDialect) AfterPump(tx *sql.Tx) error {
	tables, err := mssqlBaseTables(tx)
	if err != nil {
		return err
	}

	for _, t := range tables {
		// WITH CHECK validates rows restored while the constraints were off.
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s WITH CHECK CHECK CONSTRAINT all", d.QuoteIdent(t))); err != nil {
			return fmt.Errorf("failed to enable constraints on %s: %w", t, err)
		}
	}
	return nil
}

func (d *MSSQLDialect) BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	// Disable all constraints on this table to allow circular dependencies
	if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT all", d.QuoteIdent(tableName))); err != nil {
		return err
	}
	if hasIdentity {
		_, err := tx.Exec(fmt.Sprintf("SET IDENTITY_INSERT %s ON", d.QuoteIdent(tableName)))
		return err
	}
	return nil
}

func (d *MSSQLDialect) AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	// Do not re-enable constraints here. We enable them globally in AfterPump.
	// This supports circular dependencies (e.g. store <-> staff).
	if hasIdentity {
		_, err := tx.Exec(fmt.Sprintf("SET IDENTITY_INSERT %s OFF", d.QuoteIdent(tableName)))
		return err
	}
	return nil
}

func (d *MSSQLDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), strings.Join(quoted, ", "), vals)
}

func (d *MSSQLDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", d.QuoteIdent(table))
}

func (d *MSSQLDialect) CreateTableQuery(table string, cols []ColumnSpec, pk []string) string {
	return createTable(d.QuoteIdent(table), cols, pk, d.QuoteIdent, d.NativeType)
}

func (d *MSSQLDialect) NativeType(t types.Type) string {
	switch t.Kind {
	case types.String:
		if t.LOB {
			return "NVARCHAR(MAX)"
		}
		if strings.HasPrefix(t.SQL2008, "CHARACTER VARYING") || t.MaxLength <= 0 {
			return fmt.Sprintf("NVARCHAR(%d)", orDefault(t.MaxLength, 255))
		}
		return fmt.Sprintf("NCHAR(%d)", t.MaxLength)
	case types.Binary:
		if t.LOB || t.MaxLength <= 0 || t.MaxLength > 8000 {
			return "VARBINARY(MAX)"
		}
		return fmt.Sprintf("VARBINARY(%d)", t.MaxLength)
	case types.NumericExact:
		if t.Precision > 38 {
			return "DECIMAL(38,0)"
		}
	case types.NumericApproximate:
		if t.SQL2008 == "REAL" {
			return "REAL"
		}
		return "FLOAT"
	case types.Boolean:
		return "BIT"
	case types.DateTime:
		switch temporalName(t) {
		case "DATE":
			return "DATE"
		case "TIME", "TIME WITH TIME ZONE":
			return "TIME"
		case "TIMESTAMP WITH TIME ZONE":
			return "DATETIMEOFFSET"
		default:
			return "DATETIME2"
		}
	case types.XML:
		return "XML"
	case types.Unsupported:
		return "NVARCHAR(MAX)"
	}
	return standardNativeType(t)
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "nvarchar", "nchar", "text", "ntext":
		return "varchar"
	case "bit":
		return "boolean"
	case "tinyint":
		return "tinyint" // 0-255
	case "smallint":
		return "smallint"
	case "int":
		return "int"
	case "bigint":
		return "bigint"
	case "decimal", "numeric", "money", "smallmoney":
		return "decimal"
	case "float", "real":
		return "float"
	case "datetime", "datetime2", "smalldatetime", "date":
		return "datetime"
	case "image", "binary", "varbinary":
		return "blob"
	default:
		return t
	}
}

func (d *MSSQLDialect) SelectQuery(schema, table string, cols []string) string {
	return selectQuery(d.QuoteIdent(schema)+"."+d.QuoteIdent(table), cols, d.QuoteIdent)
}

func (d *MSSQLDialect) QuoteIdent(name string) string {
	return quoteWith("[", "]", name)
}

func (d *MSSQLDialect) GetSchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}

func (d *MSSQLDialect) GetLimitRowQuery(query string, limit int) string {
	// Simple T-SQL TOP injection
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		// Use Replace once. Note: this replaces the first occurrence.
		// If query is "SELECT ...", it becomes "SELECT TOP N ...".
		// Case insensitive replacement would be better but "SELECT" is standard.
		// We assume standard generated queries.
		return strings.Replace(query, "SELECT", fmt.Sprintf("SELECT TOP %d", limit), 1)
	}
	return query
}

// mssqlAccessErrors are server error numbers for missing grants and failed logins.
var mssqlAccessErrors = map[int32]bool{
	229:   true, // permission denied on object
	230:   true, // permission denied on column
	262:   true, // permission denied in database
	297:   true, // user does not have permission
	916:   true, // server principal cannot access database
	18456: true, // login failed
}

func (d *MSSQLDialect) NormalizeError(err error) error {
	var me mssql.Error
	if errors.As(err, &me) && mssqlAccessErrors[me.Number] {
		return failure.PermissionDenied(err)
	}
	return err
}

func (d *MSSQLDialect) DescribeDSN(dsn string) (ConnectionInfo, error) {
	cfg, err := msdsn.Parse(dsn)
	if err != nil {
		return ConnectionInfo{}, failure.Configuration("invalid sqlserver dsn: %v", err)
	}
	host := cfg.Host
	if cfg.Instance != "" {
		host += "/" + cfg.Instance
	}
	u := url.URL{Scheme: "sqlserver", Host: host, Path: "/" + cfg.Database}
	return ConnectionInfo{URL: u.String(), User: cfg.User, Database: cfg.Database}, nil
}

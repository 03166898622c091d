package dialect

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"db-siard/internal/failure"
	"db-siard/internal/types"

	"github.com/go-sql-driver/mysql"
)

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string       { return "mysql" }
func (d *MysqlDialect) DriverName() string { return "mysql" }

func (d *MysqlDialect) GetTablesQuery(schema string) string {
	return `SELECT TABLE_NAME, TABLE_COMMENT FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MysqlDialect) GetColumnsQuery(schema string) string {
	return `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE, IS_NULLABLE, COLUMN_KEY, EXTRA, IF(COLUMN_KEY='UNI', 'UNIQUE', NULL) AS IS_UNIQUE, COLUMN_COMMENT FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetPrimaryKeysQuery(schema string) string {
	return `SELECT TABLE_NAME, COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) CurrentSchemaQuery() string {
	return "SELECT DATABASE()"
}

var mysqlCodes = map[string]int{
	"tinytext":   types.CodeLongVarchar,
	"mediumtext": types.CodeLongVarchar,
	"longtext":   types.CodeLongVarchar,
	"tinyblob":   types.CodeLongVarbinary,
	"mediumblob": types.CodeLongVarbinary,
	"longblob":   types.CodeLongVarbinary,
	"float":      types.CodeReal,
	"year":       types.CodeSmallint,
	"enum":       types.CodeChar,
	"set":        types.CodeChar,
	"json":       types.CodeLongVarchar,
}

func (d *MysqlDialect) Describe(col NativeColumn) types.Descriptor {
	return describe(mysqlCodes, col)
}

func (d *MysqlDialect) TypeOverrides() map[string]types.OverrideFunc {
	clob := types.Sized(func(desc types.Descriptor) types.Type { return types.CLOB(desc.Size) })
	blob := types.Sized(func(desc types.Descriptor) types.Type { return types.BLOB(desc.Size) })
	return map[string]types.OverrideFunc{
		"tinytext":   clob,
		"text":       clob,
		"mediumtext": clob,
		"longtext":   clob,
		"json":       clob,
		"tinyblob":   blob,
		"blob":       blob,
		"mediumblob": blob,
		"longblob":   blob,
		"year":       types.Fixed(types.Exact("NUMERIC", 4, 0)),
		"enum":       types.Sized(func(desc types.Descriptor) types.Type { return types.Char(true, desc.Size) }),
		"set":        types.Sized(func(desc types.Descriptor) types.Type { return types.Char(true, desc.Size) }),
		"datetime":   types.Fixed(types.Temporal(true, false)),
	}
}

func (d *MysqlDialect) BeforePump(tx *sql.Tx) error {
	_, err := tx.Exec("SET FOREIGN_KEY_CHECKS = 0")
	return err
}

func (d *MysqlDialect) AfterPump(tx *sql.Tx) error {
	_, err := tx.Exec("SET FOREIGN_KEY_CHECKS = 1")
	return err
}

func (d *MysqlDialect) BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	_, err := tx.Exec("SET FOREIGN_KEY_CHECKS = 0")
	return err
}

func (d *MysqlDialect) AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), strings.Join(quoted, ", "), vals)
}

func (d *MysqlDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) CreateTableQuery(table string, cols []ColumnSpec, pk []string) string {
	return createTable(d.QuoteIdent(table), cols, pk, d.QuoteIdent, d.NativeType)
}

func (d *MysqlDialect) NativeType(t types.Type) string {
	switch t.Kind {
	case types.String:
		if t.LOB {
			return "LONGTEXT"
		}
	case types.Binary:
		if t.LOB {
			return "LONGBLOB"
		}
	case types.NumericApproximate:
		if t.SQL2008 == "REAL" {
			return "FLOAT"
		}
		return "DOUBLE"
	case types.DateTime:
		switch temporalName(t) {
		case "DATE":
			return "DATE"
		case "TIME", "TIME WITH TIME ZONE":
			return "TIME(6)"
		default:
			return "DATETIME(6)"
		}
	case types.XML, types.Unsupported:
		return "LONGTEXT"
	}
	return standardNativeType(t)
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) SelectQuery(schema, table string, cols []string) string {
	return selectQuery(d.QuoteIdent(schema)+"."+d.QuoteIdent(table), cols, d.QuoteIdent)
}

func (d *MysqlDialect) QuoteIdent(name string) string {
	return quoteWith("`", "`", name)
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}

func (d *MysqlDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}

// mysqlAccessErrors are server error numbers that mean the account lacks a
// grant or could not authenticate.
var mysqlAccessErrors = map[uint16]bool{
	1044: true, // ER_DBACCESS_DENIED_ERROR
	1045: true, // ER_ACCESS_DENIED_ERROR
	1130: true, // ER_HOST_NOT_PRIVILEGED
	1142: true, // ER_TABLEACCESS_DENIED_ERROR
	1143: true, // ER_COLUMNACCESS_DENIED_ERROR
	1211: true, // ER_PASSWORD_NO_MATCH / no permission to create users
	1227: true, // ER_SPECIFIC_ACCESS_DENIED_ERROR
	1370: true, // ER_PROCACCESS_DENIED_ERROR
	1410: true, // ER_CANT_CREATE_USER_WITH_GRANT
	1644: true, // ER_SIGNAL_EXCEPTION raised by permission triggers
	1645: true,
	1698: true, // ER_ACCESS_DENIED_NO_PASSWORD_ERROR
}

func (d *MysqlDialect) NormalizeError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && mysqlAccessErrors[me.Number] {
		return failure.PermissionDenied(err)
	}
	return err
}

func (d *MysqlDialect) DescribeDSN(dsn string) (ConnectionInfo, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ConnectionInfo{}, failure.Configuration("invalid mysql dsn: %v", err)
	}
	return ConnectionInfo{
		URL:      fmt.Sprintf("mysql://%s/%s", cfg.Addr, cfg.DBName),
		User:     cfg.User,
		Database: cfg.DBName,
	}, nil
}

package dialect

import (
	"database/sql"

	"db-siard/internal/failure"
	"db-siard/internal/types"
)

// NativeColumn is one row of a dialect's column metadata query.
type NativeColumn struct {
	DataType   string
	ColumnType string
	Length     int
	Precision  int
	Scale      int
}

// ColumnSpec describes a column for DDL generation.
type ColumnSpec struct {
	Name     string
	Type     types.Type
	Nullable bool
}

// ConnectionInfo is what the archive descriptor records about the source.
// It never contains a password.
type ConnectionInfo struct {
	URL      string
	User     string
	Database string
}

// Introspector abstracts schema introspection.
type Introspector interface {
	// Metadata Queries (Schema Introspection)
	GetTablesQuery(schema string) string
	GetColumnsQuery(schema string) string
	GetPrimaryKeysQuery(schema string) string
	GetForeignKeysQuery(schema string) string

	// CurrentSchemaQuery returns the query used when no schema is configured, or "".
	CurrentSchemaQuery() string
	GetSchemaName(input string) string
}

// TypeSource turns native column metadata into resolver input.
type TypeSource interface {
	Describe(col NativeColumn) types.Descriptor
	TypeOverrides() map[string]types.OverrideFunc
	NormalizeType(sqlType string) string
}

// Loader abstracts writing rows into a target database.
type Loader interface {
	// Execution Hooks (Global Level)
	BeforePump(tx *sql.Tx) error
	AfterPump(tx *sql.Tx) error

	// Execution Hooks (Table Level) - For IDENTITY_INSERT etc.
	BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error
	AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error

	// Query Generation
	InsertQuery(table string, cols []string) string
	TruncateQuery(table string) string
	CreateTableQuery(table string, cols []ColumnSpec, pk []string) string
	NativeType(t types.Type) string
	Placeholder(index int) string // Returns ?, $1, @p1, etc.
}

// Reader abstracts streaming rows out of a source database.
type Reader interface {
	SelectQuery(schema, table string, cols []string) string
	QuoteIdent(name string) string
	GetLimitRowQuery(query string, limit int) string
}

// Dialect bundles every capability of one backend.
type Dialect interface {
	Name() string
	DriverName() string
	Introspector
	TypeSource
	Loader
	Reader
	failure.Normalizer
	DescribeDSN(dsn string) (ConnectionInfo, error)
}

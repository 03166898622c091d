package dialect

import (
	"sort"
	"strings"

	"db-siard/internal/failure"
	"db-siard/internal/types"
)

// registry is built once and never mutated afterwards.
var registry = newRegistry(
	&MysqlDialect{},
	&PostgresDialect{},
	&MSSQLDialect{},
	&OracleDialect{},
	&SqliteDialect{},
)

var aliases = map[string]string{
	"mssql":      "sqlserver",
	"postgresql": "postgres",
	"pgx":        "postgres",
	"sqlite3":    "sqlite",
	"mariadb":    "mysql",
}

func newRegistry(ds ...Dialect) map[string]Dialect {
	m := make(map[string]Dialect, len(ds))
	for _, d := range ds {
		m[d.Name()] = d
	}
	return m
}

// Lookup returns the dialect for a configured driver name.
func Lookup(driver string) (Dialect, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	d, ok := registry[name]
	if !ok {
		return nil, failure.Configuration("unsupported driver %q (known: %s)", driver, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names lists the registered backends in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver builds the two-tier type resolver for d.
func Resolver(d TypeSource) *types.Resolver {
	return types.NewResolver(d.TypeOverrides())
}

// Ensure interface implementation
var _ Dialect = (*MysqlDialect)(nil)
var _ Dialect = (*PostgresDialect)(nil)
var _ Dialect = (*MSSQLDialect)(nil)
var _ Dialect = (*OracleDialect)(nil)
var _ Dialect = (*SqliteDialect)(nil)

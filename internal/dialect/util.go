package dialect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"db-siard/internal/types"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed and a function that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// DefaultNormalizeType is a default implementation for type normalization (lowercase).
func DefaultNormalizeType(sqlType string) string {
	return strings.ToLower(sqlType)
}

// DefaultGetSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultGetSchemaName(input string) string {
	return input
}

// commonCodes maps native type names shared by most backends to ANSI codes.
var commonCodes = map[string]int{
	"bit":                         types.CodeBit,
	"bool":                        types.CodeBoolean,
	"boolean":                     types.CodeBoolean,
	"tinyint":                     types.CodeTinyint,
	"smallint":                    types.CodeSmallint,
	"int":                         types.CodeInteger,
	"integer":                     types.CodeInteger,
	"mediumint":                   types.CodeInteger,
	"bigint":                      types.CodeBigint,
	"decimal":                     types.CodeDecimal,
	"numeric":                     types.CodeNumeric,
	"real":                        types.CodeReal,
	"float":                       types.CodeFloat,
	"double":                      types.CodeDouble,
	"double precision":            types.CodeDouble,
	"char":                        types.CodeChar,
	"character":                   types.CodeChar,
	"nchar":                       types.CodeNChar,
	"varchar":                     types.CodeVarchar,
	"character varying":           types.CodeVarchar,
	"nvarchar":                    types.CodeNVarchar,
	"text":                        types.CodeLongVarchar,
	"clob":                        types.CodeClob,
	"nclob":                       types.CodeNClob,
	"date":                        types.CodeDate,
	"time":                        types.CodeTime,
	"datetime":                    types.CodeTimestamp,
	"timestamp":                   types.CodeTimestamp,
	"time with time zone":         types.CodeTimeWithTimezone,
	"timestamp with time zone":    types.CodeTimestampWithTimezone,
	"timestamp without time zone": types.CodeTimestamp,
	"time without time zone":      types.CodeTime,
	"binary":                      types.CodeBinary,
	"varbinary":                   types.CodeVarbinary,
	"blob":                        types.CodeBlob,
	"xml":                         types.CodeSQLXML,
}

// codeFor looks name up in the backend table first, then in commonCodes.
// Unknown names map to OTHER.
func codeFor(own map[string]int, name string) int {
	n := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(n, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(n[i:], ')'); j >= 0 {
			rest = n[i+j+1:]
		}
		n = strings.Join(strings.Fields(n[:i]+" "+rest), " ")
	}
	if c, ok := own[n]; ok {
		return c
	}
	if c, ok := commonCodes[n]; ok {
		return c
	}
	return types.CodeOther
}

// describe builds a descriptor the way most information_schema dialects need.
func describe(own map[string]int, col NativeColumn) types.Descriptor {
	d := types.Descriptor{
		Code:  codeFor(own, col.DataType),
		Name:  col.DataType,
		Size:  col.Length,
		Scale: col.Scale,
		Radix: 10,
	}
	if d.Size <= 0 {
		d.Size = col.Precision
	}
	switch d.Code {
	case types.CodeDecimal, types.CodeNumeric, types.CodeFloat, types.CodeReal, types.CodeDouble:
		if col.Precision > 0 {
			d.Size = col.Precision
		}
	}
	return d
}

var parenArgs = regexp.MustCompile(`\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)`)

// typeArgs extracts "(p,s)" from a declared type such as "decimal(10,2)".
func typeArgs(declared string) (int, int) {
	m := parenArgs.FindStringSubmatch(declared)
	if m == nil {
		return 0, 0
	}
	p, _ := strconv.Atoi(m[1])
	s, _ := strconv.Atoi(m[2])
	return p, s
}

// standardNativeType renders t with SQL standard names, used when a backend
// has no better spelling.
func standardNativeType(t types.Type) string {
	switch t.Kind {
	case types.String:
		if t.LOB {
			return "CLOB"
		}
		if strings.HasPrefix(t.SQL2008, "CHARACTER VARYING") || t.MaxLength <= 0 {
			return fmt.Sprintf("VARCHAR(%d)", orDefault(t.MaxLength, 255))
		}
		return fmt.Sprintf("CHAR(%d)", t.MaxLength)
	case types.Binary:
		if t.LOB {
			return "BLOB"
		}
		return fmt.Sprintf("VARBINARY(%d)", orDefault(t.MaxLength, 1))
	case types.NumericExact:
		switch {
		case t.SQL2008 == "INTEGER" || t.SQL2008 == "SMALLINT":
			return t.SQL2008
		case t.Precision <= 0:
			return "NUMERIC"
		case t.Scale > 0:
			return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
		}
		return fmt.Sprintf("NUMERIC(%d)", t.Precision)
	case types.NumericApproximate:
		if t.SQL2008 == "REAL" {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case types.Boolean:
		return "BOOLEAN"
	case types.DateTime:
		return temporalName(t)
	default:
		return "CLOB"
	}
}

func temporalName(t types.Type) string {
	switch {
	case !t.TimePart:
		return "DATE"
	case strings.HasPrefix(t.SQL2008, "TIME") && !strings.HasPrefix(t.SQL2008, "TIMESTAMP"):
		if t.TimeZone {
			return "TIME WITH TIME ZONE"
		}
		return "TIME"
	case t.TimeZone:
		return "TIMESTAMP WITH TIME ZONE"
	default:
		return "TIMESTAMP"
	}
}

// createTable renders a CREATE TABLE statement with the given native type function.
func createTable(table string, cols []ColumnSpec, pk []string, quote func(string) string, native func(types.Type) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (", table)
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", quote(c.Name), native(c.Type))
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
	}
	if len(pk) > 0 {
		quoted := make([]string, len(pk))
		for i, p := range pk {
			quoted[i] = quote(p)
		}
		fmt.Fprintf(&b, ", PRIMARY KEY (%s)", strings.Join(quoted, ", "))
	}
	b.WriteString(")")
	return b.String()
}

// quoteWith doubles embedded quote characters.
func quoteWith(l, r, name string) string {
	return l + strings.ReplaceAll(name, r, r+r) + r
}

func selectQuery(qualified string, cols []string, quote func(string) string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), qualified)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

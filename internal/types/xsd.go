package types

import (
	"regexp"
	"strconv"
	"strings"
)

// XSD type names used in table schema definitions.
const (
	XSDString   = "xs:string"
	XSDDecimal  = "xs:decimal"
	XSDInteger  = "xs:integer"
	XSDDouble   = "xs:double"
	XSDFloat    = "xs:float"
	XSDBoolean  = "xs:boolean"
	XSDClob     = "clobType"
	XSDBlob     = "blobType"
	XSDDate     = "dateType"
	XSDTime     = "timeType"
	XSDDateTime = "dateTimeType"
)

var xsdConstant = map[string]string{
	"BINARY LARGE OBJECT":             XSDBlob,
	"BLOB":                            XSDBlob,
	"BINARY VARYING":                  XSDBlob,
	"BINARY":                          XSDBlob,
	"BIT VARYING":                     XSDBlob,
	"BIT":                             XSDBlob,
	"BOOLEAN":                         XSDBoolean,
	"CHARACTER LARGE OBJECT":          XSDClob,
	"CLOB":                            XSDClob,
	"NATIONAL CHARACTER LARGE OBJECT": XSDClob,
	"CHARACTER VARYING":               XSDString,
	"CHARACTER":                       XSDString,
	"NATIONAL CHARACTER VARYING":      XSDString,
	"NATIONAL CHARACTER":              XSDString,
	"DATE":                            XSDDate,
	"DECIMAL":                         XSDDecimal,
	"NUMERIC":                         XSDDecimal,
	"DOUBLE PRECISION":                XSDDouble,
	"FLOAT":                           XSDDouble,
	"DOUBLE":                          XSDFloat,
	"REAL":                            XSDFloat,
	"INTEGER":                         XSDInteger,
	"SMALLINT":                        XSDInteger,
	"BIGINT":                          XSDInteger,
	"TIME":                            XSDTime,
	"TIME WITH TIME ZONE":             XSDTime,
	"TIMESTAMP":                       XSDDateTime,
	"TIMESTAMP WITH TIME ZONE":        XSDDateTime,
}

type xsdPattern struct {
	re  *regexp.Regexp
	xsd string
}

var xsdPatterns = []xsdPattern{
	{regexp.MustCompile(`^BINARY VARYING\(\d+\)$`), XSDBlob},
	{regexp.MustCompile(`^BINARY\(\d+\)$`), XSDBlob},
	{regexp.MustCompile(`^BIT VARYING\(\d+\)$`), XSDBlob},
	{regexp.MustCompile(`^BIT\(\d+\)$`), XSDBlob},
	{regexp.MustCompile(`^CHARACTER VARYING\(\d+\)$`), XSDString},
	{regexp.MustCompile(`^CHARACTER\(\d+\)$`), XSDString},
	{regexp.MustCompile(`^NATIONAL CHARACTER VARYING\(\d+\)$`), XSDString},
	{regexp.MustCompile(`^NATIONAL CHARACTER\(\d+\)$`), XSDString},
	{regexp.MustCompile(`^DECIMAL\(\d+(,\s*\d+)?\)$`), XSDDecimal},
	{regexp.MustCompile(`^NUMERIC\(\d+(,\s*\d+)?\)$`), XSDDecimal},
	{regexp.MustCompile(`^FLOAT\(\d+\)$`), XSDDouble},
	{regexp.MustCompile(`^TIME\(\d+\)( WITH TIME ZONE)?$`), XSDTime},
	{regexp.MustCompile(`^TIMESTAMP\(\d+\)( WITH TIME ZONE)?$`), XSDDateTime},
}

// XSDFor maps an SQL2008 type name to its table schema type. The second
// result is false for names outside the SQL2008 vocabulary.
func XSDFor(sql2008 string) (string, bool) {
	name := strings.ToUpper(strings.TrimSpace(sql2008))
	if x, ok := xsdConstant[name]; ok {
		return x, true
	}
	for _, p := range xsdPatterns {
		if p.re.MatchString(name) {
			return p.xsd, true
		}
	}
	return "", false
}

// XSD returns the table schema type of t, defaulting to xs:string.
func (t Type) XSD() string {
	if x, ok := XSDFor(t.SQL2008); ok {
		return x
	}
	return XSDString
}

var sqlName = regexp.MustCompile(`^([A-Z ]+?)\s*(?:\((\d+)(?:,\s*(\d+))?\))?(\s+WITH TIME ZONE)?$`)

// ParseSQL2008 rebuilds a Type from its SQL2008 name, as stored in an archive
// descriptor.
func ParseSQL2008(name string) (Type, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if _, ok := XSDFor(upper); !ok {
		return Type{}, false
	}
	m := sqlName.FindStringSubmatch(upper)
	if m == nil {
		return Type{}, false
	}
	base := strings.TrimSpace(m[1])
	p, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	zone := m[4] != "" || strings.HasSuffix(base, "WITH TIME ZONE")
	base = strings.TrimSpace(strings.TrimSuffix(base, "WITH TIME ZONE"))

	var t Type
	switch base {
	case "CHARACTER", "NATIONAL CHARACTER":
		t = Type{Kind: String, MaxLength: p}
	case "CHARACTER VARYING", "NATIONAL CHARACTER VARYING":
		t = Type{Kind: String, MaxLength: p}
	case "CHARACTER LARGE OBJECT", "CLOB", "NATIONAL CHARACTER LARGE OBJECT":
		t = Type{Kind: String, MaxLength: p, LOB: true}
	case "BINARY", "BINARY VARYING", "BIT", "BIT VARYING":
		t = Type{Kind: Binary, MaxLength: p}
	case "BINARY LARGE OBJECT", "BLOB":
		t = Type{Kind: Binary, MaxLength: p, LOB: true}
	case "BOOLEAN":
		t = Type{Kind: Boolean}
	case "DECIMAL", "NUMERIC":
		t = Type{Kind: NumericExact, Precision: p, Scale: s}
	case "INTEGER":
		t = Type{Kind: NumericExact, Precision: 10}
	case "SMALLINT":
		t = Type{Kind: NumericExact, Precision: 5}
	case "BIGINT":
		t = Type{Kind: NumericExact, Precision: 19}
	case "REAL", "FLOAT", "DOUBLE":
		t = Type{Kind: NumericApproximate, Precision: p}
	case "DOUBLE PRECISION":
		t = Type{Kind: NumericApproximate, Precision: 53}
	case "DATE":
		t = Type{Kind: DateTime}
	case "TIME", "TIMESTAMP":
		t = Type{Kind: DateTime, TimePart: true, TimeZone: zone}
	default:
		return Type{}, false
	}
	t.SQL2008 = upper
	t.SQL99 = upper
	return t, true
}

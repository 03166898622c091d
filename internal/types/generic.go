package types

import (
	"fmt"
	"strings"

	"db-siard/internal/failure"
)

// Generic resolves a descriptor by its ANSI code alone. It is the fallback
// tier shared by every backend.
func Generic(d Descriptor) (Type, error) {
	var t Type
	switch d.Code {
	case CodeBit:
		if d.Size > 1 {
			bytes := (d.Size + 7) / 8
			t = Type{Kind: Binary, MaxLength: bytes}
			t.SQL99 = fmt.Sprintf("BIT VARYING(%d)", d.Size)
			t.SQL2008 = fmt.Sprintf("BINARY VARYING(%d)", bytes)
		} else {
			t = boolean()
		}
	case CodeBoolean:
		t = boolean()
	case CodeTinyint, CodeSmallint:
		t = exact(d.Size, 0, "SMALLINT")
	case CodeInteger:
		t = exact(d.Size, 0, "INTEGER")
	case CodeBigint:
		p := d.Size
		if p <= 0 {
			p = 19
		}
		t = exact(p, 0, fmt.Sprintf("NUMERIC(%d)", p))
	case CodeDecimal, CodeNumeric:
		name := "DECIMAL"
		if d.Code == CodeNumeric {
			name = "NUMERIC"
		}
		t = exact(d.Size, d.Scale, withPrecision(name, d.Size, d.Scale))
	case CodeReal:
		t = approximate(d.Size, "REAL")
	case CodeFloat:
		t = approximate(d.Size, "FLOAT")
	case CodeDouble:
		t = approximate(53, "DOUBLE PRECISION")
	case CodeChar, CodeNChar:
		t = Type{Kind: String, MaxLength: d.Size}
		t.SQL2008 = sized("CHARACTER", d.Size)
		t.SQL99 = t.SQL2008
	case CodeVarchar, CodeNVarchar:
		t = Type{Kind: String, MaxLength: d.Size}
		t.SQL2008 = sized("CHARACTER VARYING", d.Size)
		t.SQL99 = t.SQL2008
	case CodeLongVarchar, CodeLongNVarchar, CodeClob, CodeNClob:
		t = CLOB(d.Size)
	case CodeSQLXML:
		t = SQLXML()
	case CodeBinary, CodeVarbinary, CodeLongVarbinary, CodeBlob:
		t = BLOB(d.Size)
	case CodeDate:
		t = dateTime(false, false, "DATE")
	case CodeTime:
		t = dateTime(true, false, "TIME")
	case CodeTimeWithTimezone:
		t = dateTime(true, true, "TIME WITH TIME ZONE")
	case CodeTimestamp:
		t = dateTime(true, false, "TIMESTAMP")
	case CodeTimestampWithTimezone:
		t = dateTime(true, true, "TIMESTAMP WITH TIME ZONE")
	case CodeOther, CodeJavaObject, CodeDistinct, CodeStruct, CodeArray, CodeRef, CodeDatalink, CodeRowID, CodeNull:
		t = Type{Kind: Unsupported}
	default:
		return Type{}, &failure.UnknownTypeError{Code: d.Code, Name: d.Name, Size: d.Size, Scale: d.Scale}
	}
	return finish(t, d), nil
}

// CLOB is a character large object of the given declared length (0 unknown).
func CLOB(size int) Type {
	t := Type{Kind: String, MaxLength: size, LOB: true}
	t.SQL2008 = "CHARACTER LARGE OBJECT"
	t.SQL99 = t.SQL2008
	return t
}

// SQLXML is an XML document column. It shares the CLOB archive type.
func SQLXML() Type {
	t := Type{Kind: XML, LOB: true}
	t.SQL2008 = "CHARACTER LARGE OBJECT"
	t.SQL99 = t.SQL2008
	return t
}

// BLOB is a binary large object of the given declared length (0 unknown).
func BLOB(size int) Type {
	t := Type{Kind: Binary, MaxLength: size, LOB: true}
	t.SQL2008 = "BINARY LARGE OBJECT"
	t.SQL99 = t.SQL2008
	return t
}

func boolean() Type {
	return Type{Kind: Boolean, SQL2008: "BOOLEAN", SQL99: "BOOLEAN"}
}

func exact(precision, scale int, name string) Type {
	return Type{Kind: NumericExact, Precision: precision, Scale: scale, SQL2008: name, SQL99: name}
}

func approximate(precision int, name string) Type {
	return Type{Kind: NumericApproximate, Precision: precision, SQL2008: name, SQL99: name}
}

func dateTime(timePart, zone bool, name string) Type {
	return Type{Kind: DateTime, TimePart: timePart, TimeZone: zone, SQL2008: name, SQL99: name}
}

func sized(name string, size int) string {
	if size <= 0 {
		return name
	}
	return fmt.Sprintf("%s(%d)", name, size)
}

func withPrecision(name string, precision, scale int) string {
	switch {
	case precision <= 0:
		return name
	case scale > 0:
		return fmt.Sprintf("%s(%d,%d)", name, precision, scale)
	default:
		return fmt.Sprintf("%s(%d)", name, precision)
	}
}

// finish fills the fields every resolved type carries.
func finish(t Type, d Descriptor) Type {
	t.Native = d
	if t.Original == "" {
		t.Original = originalName(t.Kind, d)
	}
	if t.Kind == Unsupported {
		// unsupported values are archived in their textual form
		t.LOB = true
		if t.SQL2008 == "" {
			t.SQL2008 = "CHARACTER LARGE OBJECT"
			t.SQL99 = t.SQL2008
		}
		if t.Description == "" {
			t.Description = fmt.Sprintf("unsupported native type %s", d.Name)
		}
	}
	return t
}

func originalName(k Kind, d Descriptor) string {
	name := strings.TrimSpace(d.Name)
	if name == "" || strings.Contains(name, "(") {
		return name
	}
	switch k {
	case String, Binary:
		return sized(name, d.Size)
	case NumericExact:
		if d.Code == CodeDecimal || d.Code == CodeNumeric {
			return withPrecision(name, d.Size, d.Scale)
		}
	}
	return name
}

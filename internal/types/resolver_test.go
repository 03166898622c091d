package types_test

import (
	"errors"
	"testing"

	"db-siard/internal/failure"
	"db-siard/internal/types"
)

func TestGenericVarcharRoundTrip(t *testing.T) {
	r := types.NewResolver(nil)
	d := types.Descriptor{Code: types.CodeVarchar, Name: "VARCHAR", Size: 50}

	got, err := r.Resolve(d)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.Kind != types.String || got.MaxLength != 50 || got.LOB {
		t.Errorf("Expected String(50, non-LOB), got %+v", got)
	}
	if got.SQL2008 != "CHARACTER VARYING(50)" {
		t.Errorf("Expected CHARACTER VARYING(50), got %s", got.SQL2008)
	}

	again, _ := r.Resolve(d)
	if again != got {
		t.Errorf("Expected identical results for identical descriptors")
	}
}

func TestUnknownTypeCarriesDescriptor(t *testing.T) {
	r := types.NewResolver(nil)
	_, err := r.Resolve(types.Descriptor{Code: 9999, Name: "FROBNICATE"})
	if !errors.Is(err, failure.ErrUnknownType) {
		t.Fatalf("Expected ErrUnknownType, got %v", err)
	}
	var ute *failure.UnknownTypeError
	if !errors.As(err, &ute) || ute.Code != 9999 || ute.Name != "FROBNICATE" {
		t.Errorf("Expected (9999, FROBNICATE), got %+v", ute)
	}
}

func TestOverrideTakesPrecedence(t *testing.T) {
	r := types.NewResolver(map[string]types.OverrideFunc{
		"TEXT": types.Fixed(types.CLOB(0)),
	})
	got, err := r.Resolve(types.Descriptor{Code: types.CodeVarchar, Name: "text", Size: 2147483647})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !got.LOB || got.SQL2008 != "CHARACTER LARGE OBJECT" {
		t.Errorf("Expected override CLOB, got %+v", got)
	}
	if got.Native.Name != "text" {
		t.Errorf("Expected native descriptor to be kept, got %+v", got.Native)
	}
}

func TestOverrideMayDeclineToGeneric(t *testing.T) {
	r := types.NewResolver(map[string]types.OverrideFunc{
		"numeric": func(d types.Descriptor) (types.Type, bool) {
			if d.Size == 0 {
				return types.Exact("NUMERIC", 1000, 1000), true
			}
			return types.Type{}, false
		},
	})
	unbounded, _ := r.Resolve(types.Descriptor{Code: types.CodeNumeric, Name: "numeric"})
	if unbounded.SQL2008 != "NUMERIC(1000,1000)" {
		t.Errorf("Expected NUMERIC(1000,1000), got %s", unbounded.SQL2008)
	}
	bounded, _ := r.Resolve(types.Descriptor{Code: types.CodeNumeric, Name: "numeric", Size: 10, Scale: 2})
	if bounded.SQL2008 != "NUMERIC(10,2)" {
		t.Errorf("Expected NUMERIC(10,2), got %s", bounded.SQL2008)
	}
}

func TestOverrideKeyIgnoresParameters(t *testing.T) {
	r := types.NewResolver(map[string]types.OverrideFunc{
		"timestamp with time zone": types.Fixed(types.Temporal(true, true)),
	})
	got, err := r.Resolve(types.Descriptor{Code: types.CodeTimestamp, Name: "TIMESTAMP(6) WITH TIME ZONE"})
	if err != nil {
		t.Fatal(err)
	}
	if !got.TimeZone {
		t.Errorf("Expected zoned timestamp, got %+v", got)
	}
}

func TestGenericTable(t *testing.T) {
	cases := []struct {
		d       types.Descriptor
		kind    types.Kind
		sql2008 string
		lob     bool
	}{
		{types.Descriptor{Code: types.CodeBit, Name: "BIT", Size: 1}, types.Boolean, "BOOLEAN", false},
		{types.Descriptor{Code: types.CodeBit, Name: "BIT", Size: 16}, types.Binary, "BINARY VARYING(2)", false},
		{types.Descriptor{Code: types.CodeTinyint, Name: "TINYINT", Size: 3}, types.NumericExact, "SMALLINT", false},
		{types.Descriptor{Code: types.CodeBigint, Name: "BIGINT", Size: 19}, types.NumericExact, "NUMERIC(19)", false},
		{types.Descriptor{Code: types.CodeDecimal, Name: "DECIMAL", Size: 10, Scale: 2}, types.NumericExact, "DECIMAL(10,2)", false},
		{types.Descriptor{Code: types.CodeDouble, Name: "DOUBLE"}, types.NumericApproximate, "DOUBLE PRECISION", false},
		{types.Descriptor{Code: types.CodeNChar, Name: "NCHAR", Size: 3}, types.String, "CHARACTER(3)", false},
		{types.Descriptor{Code: types.CodeClob, Name: "CLOB"}, types.String, "CHARACTER LARGE OBJECT", true},
		{types.Descriptor{Code: types.CodeLongVarbinary, Name: "LONGBLOB"}, types.Binary, "BINARY LARGE OBJECT", true},
		{types.Descriptor{Code: types.CodeTimestampWithTimezone, Name: "TIMESTAMPTZ"}, types.DateTime, "TIMESTAMP WITH TIME ZONE", false},
		{types.Descriptor{Code: types.CodeSQLXML, Name: "XML"}, types.XML, "CHARACTER LARGE OBJECT", true},
		{types.Descriptor{Code: types.CodeOther, Name: "GEOMETRY"}, types.Unsupported, "CHARACTER LARGE OBJECT", true},
	}
	for _, c := range cases {
		got, err := types.Generic(c.d)
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.d.Name, err)
			continue
		}
		if got.Kind != c.kind || got.SQL2008 != c.sql2008 || got.LOB != c.lob {
			t.Errorf("%s: expected %s/%s/lob=%v, got %s/%s/lob=%v",
				c.d.Name, c.kind, c.sql2008, c.lob, got.Kind, got.SQL2008, got.LOB)
		}
	}
}

func TestUnsupportedKeepsDescriptor(t *testing.T) {
	d := types.Descriptor{Code: types.CodeOther, Name: "GEOMETRY", Size: 7}
	got, err := types.Generic(d)
	if err != nil {
		t.Fatal(err)
	}
	if got.Native != d {
		t.Errorf("Expected descriptor %+v to be kept, got %+v", d, got.Native)
	}
}

func TestSQLXML(t *testing.T) {
	x := types.SQLXML()
	if x.Kind != types.XML || x.Kind.String() != "xml" {
		t.Errorf("Expected xml kind, got %s", x.Kind)
	}
	if !x.IsLarge() || !x.Character() {
		t.Errorf("Expected XML to be large character data, got large=%v character=%v", x.IsLarge(), x.Character())
	}
	if x.XSD() != types.CLOB(0).XSD() {
		t.Errorf("Expected XML to share the CLOB table schema type, got %s", x.XSD())
	}
}

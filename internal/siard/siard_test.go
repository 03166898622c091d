package siard_test

import (
	"errors"
	"testing"

	"db-siard/internal/failure"
	"db-siard/internal/siard"
)

func TestSortContents_Numeric(t *testing.T) {
	var cs []siard.Content
	for _, s := range []string{"schema2/table10", "schema2/table2", "schema10/table1"} {
		c, err := siard.ParseContent(s)
		if err != nil {
			t.Fatalf("ParseContent(%q) failed: %v", s, err)
		}
		cs = append(cs, c)
	}

	siard.SortContents(cs)

	want := []string{"schema2/table2", "schema2/table10", "schema10/table1"}
	for i, c := range cs {
		if c.String() != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, c)
		}
	}
}

func TestParseContent_Malformed(t *testing.T) {
	for _, s := range []string{"schemaA/table1", "schema1", "users/orders", "schema1/table1/extra", "schema1/table-3"} {
		_, err := siard.ParseContent(s)
		if !errors.Is(err, failure.ErrConfiguration) {
			t.Errorf("Expected configuration error for %q, got %v", s, err)
		}
	}
}

func TestAt(t *testing.T) {
	c := siard.At(3, 12)
	if c.String() != "schema3/table12" || c.SchemaIndex() != 3 || c.TableIndex() != 12 {
		t.Errorf("Unexpected coordinate %s (%d,%d)", c, c.SchemaIndex(), c.TableIndex())
	}
	parsed, _ := siard.ParseContent("schema3/table12")
	if parsed != c {
		t.Errorf("Expected parsed coordinate to equal At(3,12)")
	}
}

func TestAuxiliaryFor(t *testing.T) {
	aux := siard.AuxiliaryFor(siard.Container{Path: "/tmp/shop.siard", Kind: siard.Main})
	if aux.Path != "/tmp/shop_lobs.zip" || aux.Kind != siard.Auxiliary {
		t.Errorf("Unexpected auxiliary container %+v", aux)
	}
}

package schema_test

import (
	"strings"
	"testing"

	"db-siard/internal/schema"
	"db-siard/internal/types"
)

func structure(extra func(users, orders *schema.Table)) *schema.DatabaseStructure {
	db := &schema.DatabaseStructure{Name: "shop"}
	s := &schema.Schema{Name: "main"}
	db.AddSchema(s)

	users := &schema.Table{Name: "users"}
	users.AddColumn(&schema.Column{Name: "id", Type: types.Exact("INTEGER", 10, 0)})
	users.AddColumn(&schema.Column{Name: "name", Type: types.Char(true, 40), IsNullable: true})
	users.PrimaryKey = &schema.PrimaryKey{Name: "pk_users", Columns: []string{"id"}}
	s.AddTable(users)

	orders := &schema.Table{Name: "orders"}
	orders.AddColumn(&schema.Column{Name: "id", Type: types.Exact("INTEGER", 10, 0)})
	orders.AddColumn(&schema.Column{Name: "user_id", Type: types.Exact("INTEGER", 10, 0), IsNullable: true})
	orders.ForeignKeys = []*schema.ForeignKey{{Name: "fk_orders_users", Columns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}}}
	s.AddTable(orders)

	if extra != nil {
		extra(users, orders)
	}
	return db
}

func TestCompare_Identical(t *testing.T) {
	if diffs := schema.Compare(structure(nil), structure(nil)); len(diffs) != 0 {
		t.Errorf("Expected no differences, got %v", diffs)
	}
}

func TestCompare_IgnoresVirtualElements(t *testing.T) {
	virtual := func(users, orders *schema.Table) {
		orders.AddColumn(&schema.Column{Name: "row_ref", Type: types.Exact("INTEGER", 10, 0), Virtual: true})
		orders.PrimaryKey = &schema.PrimaryKey{Name: "pk_orders_virtual", Columns: []string{"row_ref"}, Virtual: true}
		orders.ForeignKeys = append(orders.ForeignKeys, &schema.ForeignKey{
			Name: "fk_virtual", Columns: []string{"row_ref"}, RefTable: "users", RefColumns: []string{"id"}, Virtual: true,
		})
	}

	tests := []struct {
		name             string
		expected, actual *schema.DatabaseStructure
	}{
		{"virtual on the actual side", structure(nil), structure(virtual)},
		{"virtual on the expected side", structure(virtual), structure(nil)},
		{"virtual on both sides", structure(virtual), structure(virtual)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diffs := schema.Compare(tt.expected, tt.actual); len(diffs) != 0 {
				t.Errorf("Expected virtual elements to be ignored, got %v", diffs)
			}
		})
	}
}

func TestCompare_ReportsRealDifferences(t *testing.T) {
	actual := structure(func(users, orders *schema.Table) {
		users.Columns[1].IsNullable = false
		users.PrimaryKey = nil
		orders.ForeignKeys = nil
		orders.AddColumn(&schema.Column{Name: "note", Type: types.Char(true, 10)})
	})
	diffs := schema.Compare(structure(nil), actual)

	var got []string
	for _, d := range diffs {
		got = append(got, d.String())
	}
	joined := strings.Join(got, "\n")
	for _, want := range []string{
		"main.users.name: nullable true, found false",
		"main.users: primary key missing",
		"main.orders: expected 2 columns, found 3",
		"main.orders: expected 1 foreign keys, found 0",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected %q among differences:\n%s", want, joined)
		}
	}
}

package engine

import (
	"time"

	"db-siard/internal/schema"
	"db-siard/internal/types"
)

// SampleStructure is the built-in database used by the sample command: a
// customer, order and document schema that covers every canonical kind.
func SampleStructure() *schema.DatabaseStructure {
	integer := types.Exact("INTEGER", 0, 0)

	customers := &schema.Table{Name: "customers", Description: "registered customers"}
	addColumns(customers,
		&schema.Column{Name: "id", Type: integer, IsPK: true},
		&schema.Column{Name: "name", Type: types.Char(true, 40)},
		&schema.Column{Name: "email", Type: types.Char(true, 80), IsUnique: true},
		&schema.Column{Name: "phone", Type: types.Char(true, 20), IsNullable: true},
		&schema.Column{Name: "address", Type: types.Char(true, 120), IsNullable: true},
		&schema.Column{Name: "created_dt", Type: types.Temporal(true, false)},
	)
	customers.PrimaryKey = &schema.PrimaryKey{Name: "pk_customers", Columns: []string{"id"}}

	orders := &schema.Table{Name: "orders", Description: "customer orders", Dependencies: []string{"customers"}}
	addColumns(orders,
		&schema.Column{Name: "id", Type: integer, IsPK: true},
		&schema.Column{Name: "customer_id", Type: integer},
		&schema.Column{Name: "amount", Type: types.Exact("DECIMAL", 10, 2)},
		&schema.Column{Name: "weight", Type: types.Approximate("DOUBLE PRECISION", 53), IsNullable: true},
		&schema.Column{Name: "shipped_yn", Type: types.Bool()},
		&schema.Column{Name: "order_dt", Type: types.Temporal(false, false)},
	)
	orders.PrimaryKey = &schema.PrimaryKey{Name: "pk_orders", Columns: []string{"id"}}
	orders.ForeignKeys = []*schema.ForeignKey{{
		Name: "fk_orders_customer", Columns: []string{"customer_id"},
		RefSchema: "sample", RefTable: "customers", RefColumns: []string{"id"},
	}}

	documents := &schema.Table{Name: "documents", Description: "scanned order documents", Dependencies: []string{"orders"}}
	addColumns(documents,
		&schema.Column{Name: "id", Type: integer, IsPK: true},
		&schema.Column{Name: "order_id", Type: integer, IsNullable: true},
		&schema.Column{Name: "title", Type: types.Char(true, 100)},
		&schema.Column{Name: "body", Type: types.CLOB(0), IsNullable: true},
		&schema.Column{Name: "scan", Type: types.BLOB(0), IsNullable: true},
	)
	documents.PrimaryKey = &schema.PrimaryKey{Name: "pk_documents", Columns: []string{"id"}}
	documents.ForeignKeys = []*schema.ForeignKey{{
		Name: "fk_documents_order", Columns: []string{"order_id"},
		RefSchema: "sample", RefTable: "orders", RefColumns: []string{"id"},
	}}

	s := &schema.Schema{Name: "sample", Description: "synthetic sample data"}
	s.AddTable(customers)
	s.AddTable(orders)
	s.AddTable(documents)

	db := &schema.DatabaseStructure{
		Name:                "sample",
		Description:         "synthetic database generated by db-siard",
		DataOwner:           "db-siard",
		DataOriginTimespan:  "2024-2025",
		ProducerApplication: "db-siard",
		ArchivalDate:        time.Now(),
		ProductName:         "synthetic",
	}
	db.AddSchema(s)
	return db
}

func addColumns(t *schema.Table, cols ...*schema.Column) {
	for _, c := range cols {
		c.Meaning = schema.AnalyzeMeaning(c.Name, "")
		t.AddColumn(c)
	}
}

package schema_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"db-siard/internal/dialect"
	"db-siard/internal/failure"
	"db-siard/internal/schema"
	"db-siard/internal/types"
)

func TestSortTablesByFKCount_ComplexCircular(t *testing.T) {
	// 5개 이상의 복잡한 FK 관계를 가진 가상 테이블 구조 정의
	// A -> B -> C -> D -> E -> A (순환)
	// F -> E (단순 참조)
	// G (독립)
	tables := []*schema.Table{
		{Name: "A", Dependencies: []string{"B"}},
		{Name: "B", Dependencies: []string{"C"}},
		{Name: "C", Dependencies: []string{"D"}},
		{Name: "D", Dependencies: []string{"E"}},
		{Name: "E", Dependencies: []string{"A"}},
		{Name: "F", Dependencies: []string{"E"}},
		{Name: "G", Dependencies: []string{}},
	}

	sorted := schema.SortTablesByFKCount(tables)

	if len(sorted) != len(tables) {
		t.Errorf("Expected %d tables, got %d", len(tables), len(sorted))
	}

	// 순서 검증: 의존성이 최대한 만족되었는지 확인
	// 완전한 정답은 없지만(순환이므로), 적어도 독립 테이블 G가 앞쪽에 오는지 등을 확인
	// 그리고 Circular Dependency가 깨져서(heuristic score) 모든 테이블이 포함되었는지 확인

	visited := make(map[string]bool)
	for _, tbl := range sorted {
		visited[tbl.Name] = true
	}

	if !visited["A"] || !visited["B"] || !visited["C"] || !visited["D"] || !visited["E"] || !visited["F"] || !visited["G"] {
		t.Error("Not all tables are in the sorted list")
	}

	// G should ideally be first or very early
	if sorted[0].Name != "G" {
		t.Logf("Notice: Independent table G is at index 0? actual: %s", sorted[0].Name)
	}
}

func TestSortTablesByFKCount_Simple(t *testing.T) {
	// Users -> Orders -> OrderItems
	tables := []*schema.Table{
		{Name: "OrderItems", Dependencies: []string{"Orders"}},
		{Name: "Orders", Dependencies: []string{"Users"}},
		{Name: "Users", Dependencies: []string{}},
	}

	sorted := schema.SortTablesByFKCount(tables)

	if sorted[0].Name != "Users" {
		t.Errorf("Expected Users first, got %s", sorted[0].Name)
	}
	if sorted[1].Name != "Orders" {
		t.Errorf("Expected Orders second, got %s", sorted[1].Name)
	}
	if sorted[2].Name != "OrderItems" {
		t.Errorf("Expected OrderItems third, got %s", sorted[2].Name)
	}
}

// frobnicating reports FROBNICATE columns with a code no resolver tier knows.
type frobnicating struct {
	*dialect.SqliteDialect
}

func (f frobnicating) Describe(col dialect.NativeColumn) types.Descriptor {
	if strings.EqualFold(col.DataType, "FROBNICATE") {
		return types.Descriptor{Code: 9999, Name: "FROBNICATE"}
	}
	return f.SqliteDialect.Describe(col)
}

func openFixture(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, user_nm VARCHAR(50) NOT NULL, bio TEXT, avatar BLOB)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id), total DECIMAL(10,2), odd FROBNICATE)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("fixture %q: %v", stmt, err)
		}
	}
	return db
}

func TestAnalyze_Sqlite(t *testing.T) {
	db := openFixture(t)
	d := frobnicating{&dialect.SqliteDialect{}}

	s, problems, err := schema.Analyze(context.Background(), db, d, dialect.Resolver(d), "")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if s.Name != "main" {
		t.Errorf("Expected schema main, got %s", s.Name)
	}
	if len(s.Tables) != 2 {
		t.Fatalf("Expected 2 tables, got %d", len(s.Tables))
	}

	users := s.Table("users")
	if users == nil || users.Index != 2 {
		t.Fatalf("Expected users as second table, got %+v", users)
	}
	if got := users.ColumnNames(); strings.Join(got, ",") != "id,user_nm,bio,avatar" {
		t.Errorf("Expected users columns in declaration order, got %v", got)
	}
	if users.PrimaryKey == nil || users.PrimaryKey.Columns[0] != "id" {
		t.Errorf("Expected primary key on id, got %+v", users.PrimaryKey)
	}
	if c := users.Column("user_nm"); c.Type.SQL2008 != "CHARACTER VARYING(50)" || c.IsNullable {
		t.Errorf("Expected non-null CHARACTER VARYING(50), got %s nullable=%v", c.Type.SQL2008, c.IsNullable)
	}
	if c := users.Column("user_nm"); c.Meaning != "user name" {
		t.Errorf("Expected meaning 'user name', got %q", c.Meaning)
	}
	if c := users.Column("bio"); !c.Type.IsLarge() || c.Type.Kind != types.String {
		t.Errorf("Expected bio to be a character large object, got %+v", c.Type)
	}
	if c := users.Column("avatar"); !c.Type.IsLarge() || c.Type.Kind != types.Binary {
		t.Errorf("Expected avatar to be a binary large object, got %+v", c.Type)
	}

	orders := s.Table("orders")
	if len(orders.Columns) != 3 {
		t.Errorf("Expected unknown column to be left out, got %v", orders.ColumnNames())
	}
	if c := orders.Column("total"); c.Type.SQL2008 != "DECIMAL(10,2)" {
		t.Errorf("Expected DECIMAL(10,2), got %s", c.Type.SQL2008)
	}
	if len(orders.ForeignKeys) != 1 || orders.ForeignKeys[0].RefTable != "users" {
		t.Fatalf("Expected one foreign key to users, got %+v", orders.ForeignKeys)
	}
	if orders.ForeignKeys[0].RefColumns[0] != "id" {
		t.Errorf("Expected reference to users.id, got %v", orders.ForeignKeys[0].RefColumns)
	}

	if len(problems) != 1 {
		t.Fatalf("Expected 1 problem, got %d", len(problems))
	}
	var unknown *failure.UnknownTypeError
	if !errors.As(problems[0], &unknown) || !errors.Is(problems[0], failure.ErrUnknownType) {
		t.Fatalf("Expected UnknownTypeError, got %v", problems[0])
	}
	if unknown.Table != "orders" || unknown.Column != "odd" || unknown.Code != 9999 {
		t.Errorf("Expected orders.odd with code 9999, got %+v", unknown)
	}

	sorted := schema.SortTablesByFKCount(s.Tables)
	if sorted[0].Name != "users" {
		t.Errorf("Expected users before orders, got %s first", sorted[0].Name)
	}
}

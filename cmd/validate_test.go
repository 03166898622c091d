package cmd_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"db-siard/cmd"
	"db-siard/internal/failure"
)

func TestLoadReference(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "ref.db")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range []string{
		"CREATE TABLE people (id INTEGER PRIMARY KEY, name VARCHAR(40))",
		"CREATE TABLE pets (id INTEGER PRIMARY KEY, owner INTEGER REFERENCES people(id))",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("fixture %q: %v", stmt, err)
		}
	}
	db.Close()

	setDatabases(t, map[string]any{"name": "ref", "driver": "sqlite", "dsn": dsn, "active": true})
	ref, err := cmd.LoadReference(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("LoadReference failed: %v", err)
	}
	if len(ref.Schemas) != 1 {
		t.Fatalf("Expected one schema, got %d", len(ref.Schemas))
	}
	people := ref.Schemas[0].Table("people")
	if people == nil || len(people.Columns) != 2 {
		t.Fatalf("Expected people with 2 columns, got %+v", people)
	}
	pets := ref.Schemas[0].Table("pets")
	if pets == nil || len(pets.ForeignKeys) != 1 {
		t.Errorf("Expected pets to reference people, got %+v", pets)
	}
}

func TestLoadReference_NeedsActiveDatabase(t *testing.T) {
	setDatabases(t, map[string]any{"name": "a", "driver": "sqlite", "dsn": "x.db"})
	if _, err := cmd.LoadReference(context.Background(), nil, nil); !errors.Is(err, failure.ErrConfiguration) {
		t.Errorf("Expected configuration error without an active database, got %v", err)
	}
}

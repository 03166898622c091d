package schema

import (
	"strings"
	"time"

	"db-siard/internal/types"
)

// DatabaseStructure is everything the archive descriptor records about a
// database. Schema and table order is archival order.
type DatabaseStructure struct {
	Name                string
	Description         string
	Archiver            string
	ArchiverContact     string
	DataOwner           string
	DataOriginTimespan  string
	ProducerApplication string
	ArchivalDate        time.Time
	ClientMachine       string
	ProductName         string
	Connection          string
	DatabaseUser        string

	Schemas []*Schema
	Users   []User
}

type User struct {
	Name        string
	Description string
}

type Schema struct {
	Name        string
	Description string
	Index       int // 1-based ordinal inside the archive
	Tables      []*Table
}

type Table struct {
	Name             string
	Description      string
	Index            int // 1-based ordinal inside its schema
	Columns          []*Column
	PrimaryKey       *PrimaryKey
	ForeignKeys      []*ForeignKey
	CandidateKeys    []*CandidateKey
	CheckConstraints []*CheckConstraint
	Rows             int64

	Dependencies []string // 의존성 분석용 (restore ordering)
}

type Column struct {
	Name       string
	Index      int // 1-based, maps to the cN cell element
	Type       types.Type
	DataType   string // normalized native type name
	Length     int
	IsNullable bool
	IsPK       bool
	IsAutoInc  bool
	IsUnique   bool
	Default    string
	EnumValues []string
	Comment    string // DB 스키마 코멘트 (MS_Description 등)
	Meaning    string // 약어 또는 코멘트 분석을 통해 파악된 의미 (예: "phone", "email")

	// Virtual columns exist only to satisfy the archive format.
	Virtual bool
}

type PrimaryKey struct {
	Name    string
	Columns []string
	Virtual bool
}

type ForeignKey struct {
	Name       string
	Columns    []string
	RefSchema  string
	RefTable   string
	RefColumns []string
	Virtual    bool
}

type CandidateKey struct {
	Name    string
	Columns []string
}

type CheckConstraint struct {
	Name      string
	Condition string
}

// LoadResult reports how many rows of one table reached the target database.
type LoadResult struct {
	TableName string
	Target    int64
	Actual    int64
	Status    string
	ErrorMsg  string
}

// Schema finds a schema by name, ignoring case.
func (d *DatabaseStructure) Schema(name string) *Schema {
	for _, s := range d.Schemas {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

// AddSchema appends s and assigns its archival ordinal.
func (d *DatabaseStructure) AddSchema(s *Schema) {
	s.Index = len(d.Schemas) + 1
	d.Schemas = append(d.Schemas, s)
}

// Tables returns the number of tables across all schemas.
func (d *DatabaseStructure) Tables() int {
	n := 0
	for _, s := range d.Schemas {
		n += len(s.Tables)
	}
	return n
}

// Table finds a table by name, ignoring case.
func (s *Schema) Table(name string) *Table {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// AddTable appends t and assigns its archival ordinal.
func (s *Schema) AddTable(t *Table) {
	t.Index = len(s.Tables) + 1
	s.Tables = append(s.Tables, t)
}

// Column finds a column by name, ignoring case.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// AddColumn appends c and assigns its cell ordinal.
func (t *Table) AddColumn(c *Column) {
	c.Index = len(t.Columns) + 1
	t.Columns = append(t.Columns, c)
}

// ColumnNames lists column names in cell order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasIdentity reports whether any column is filled by the database itself.
func (t *Table) HasIdentity() bool {
	for _, c := range t.Columns {
		if c.IsAutoInc {
			return true
		}
	}
	return false
}

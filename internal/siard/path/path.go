// Package path maps archive coordinates to entry names. Every function is
// pure: equal coordinates always give the same path and distinct coordinates
// never share one.
package path

import (
	"strconv"
	"strings"

	"db-siard/internal/siard"
)

// Strategy lays out content entries. MaxFiles bounds the number of record
// files stored directly in one LOB folder. Sub-folders are not counted: a
// folder may also hold up to MaxFiles seg folders next to its records.
type Strategy struct {
	MaxFiles int
}

// New returns a strategy with the given fan-out bound, or the default when
// max is not positive.
func New(max int) Strategy {
	if max <= 0 {
		max = siard.DefaultFiles
	}
	return Strategy{MaxFiles: max}
}

func (s Strategy) max() int {
	if s.MaxFiles <= 0 {
		return siard.DefaultFiles
	}
	return s.MaxFiles
}

func SchemaFolder(schema int) string { return "schema" + strconv.Itoa(schema) }
func TableFolder(table int) string   { return "table" + strconv.Itoa(table) }
func LOBFolder(column int) string    { return "lob" + strconv.Itoa(column) }

// TableDir is content/schemaS/tableT.
func TableDir(schema, table int) string {
	return siard.ContentDir + "/" + SchemaFolder(schema) + "/" + TableFolder(table)
}

func TableXML(schema, table int) string {
	return TableDir(schema, table) + "/" + TableFolder(table) + ".xml"
}

func TableXSD(schema, table int) string {
	return TableDir(schema, table) + "/" + TableFolder(table) + ".xsd"
}

// TableXSDName is the schema file name referenced from the table XML.
func TableXSDName(table int) string { return TableFolder(table) + ".xsd" }

// TableNamespace is the target namespace of a table schema.
func TableNamespace(schema, table int) string {
	return siard.TableNamespace + SchemaFolder(schema) + "/" + TableXSDName(table)
}

// LOBDir is content/schemaS/tableT/lobC.
func LOBDir(schema, table, column int) string {
	return TableDir(schema, table) + "/" + LOBFolder(column)
}

// LOB names the entry of one large object. Records beyond MaxFiles move into
// seg sub-folders whose names are the base-MaxFiles digits of (row-1)/MaxFiles,
// so no folder receives more than MaxFiles record files. seq numbers additional
// objects of the same cell and is omitted when zero. Ordinals are 1-based.
func (s Strategy) LOB(schema, table, column int, row int64, seq int, character bool) string {
	var b strings.Builder
	b.WriteString(LOBDir(schema, table, column))
	b.WriteByte('/')
	for _, seg := range s.segments(row) {
		b.WriteString("seg")
		b.WriteString(strconv.FormatInt(seg, 10))
		b.WriteByte('/')
	}
	b.WriteString("record")
	b.WriteString(strconv.FormatInt(row, 10))
	if seq > 0 {
		b.WriteByte('_')
		b.WriteString(strconv.Itoa(seq))
	}
	if character {
		b.WriteString(".txt")
	} else {
		b.WriteString(".bin")
	}
	return b.String()
}

func (s Strategy) segments(row int64) []int64 {
	max := int64(s.max())
	if row <= max {
		return nil
	}
	q := (row - 1) / max
	var digits []int64
	for q > 0 {
		digits = append([]int64{q % max}, digits...)
		q /= max
	}
	return digits
}

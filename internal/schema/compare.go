package schema

import (
	"fmt"
	"strings"
)

// Difference is one mismatch between two structures.
type Difference struct {
	Path    string
	Message string
}

func (d Difference) String() string { return d.Path + ": " + d.Message }

// Compare reports how actual departs from expected. Virtual columns and keys
// on either side are ignored, they are artefacts of archiving.
func Compare(expected, actual *DatabaseStructure) []Difference {
	var diffs []Difference
	add := func(path, format string, args ...any) {
		diffs = append(diffs, Difference{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	for _, es := range expected.Schemas {
		as := actual.Schema(es.Name)
		if as == nil {
			add(es.Name, "schema missing")
			continue
		}
		for _, et := range es.Tables {
			path := es.Name + "." + et.Name
			at := as.Table(et.Name)
			if at == nil {
				add(path, "table missing")
				continue
			}
			compareTable(path, et, at, add)
		}
		for _, at := range as.Tables {
			if es.Table(at.Name) == nil {
				add(es.Name+"."+at.Name, "unexpected table")
			}
		}
	}
	for _, as := range actual.Schemas {
		if expected.Schema(as.Name) == nil {
			add(as.Name, "unexpected schema")
		}
	}
	return diffs
}

func compareTable(path string, et, at *Table, add func(string, string, ...any)) {
	ec, ac := realColumns(et), realColumns(at)
	if len(ec) != len(ac) {
		add(path, "expected %d columns, found %d", len(ec), len(ac))
	}
	for i, c := range ec {
		if i >= len(ac) {
			break
		}
		o := ac[i]
		cpath := path + "." + c.Name
		if !strings.EqualFold(c.Name, o.Name) {
			add(cpath, "column %d is named %s", i+1, o.Name)
			continue
		}
		if c.Type.SQL2008 != o.Type.SQL2008 {
			add(cpath, "type %s, found %s", c.Type.SQL2008, o.Type.SQL2008)
		}
		if c.IsNullable != o.IsNullable {
			add(cpath, "nullable %v, found %v", c.IsNullable, o.IsNullable)
		}
	}

	epk, apk := realKey(et.PrimaryKey), realKey(at.PrimaryKey)
	switch {
	case epk == nil && apk != nil:
		add(path, "unexpected primary key")
	case epk != nil && apk == nil:
		add(path, "primary key missing")
	case epk != nil && !sameNames(epk.Columns, apk.Columns):
		add(path, "primary key (%s), found (%s)", strings.Join(epk.Columns, ","), strings.Join(apk.Columns, ","))
	}

	ef, af := realForeignKeys(et), realForeignKeys(at)
	if len(ef) != len(af) {
		add(path, "expected %d foreign keys, found %d", len(ef), len(af))
	}
	for _, fk := range ef {
		if !hasForeignKey(af, fk) {
			add(path, "foreign key %s to %s missing", fk.Name, fk.RefTable)
		}
	}
}

func realColumns(t *Table) []*Column {
	var cols []*Column
	for _, c := range t.Columns {
		if !c.Virtual {
			cols = append(cols, c)
		}
	}
	return cols
}

func realKey(pk *PrimaryKey) *PrimaryKey {
	if pk == nil || pk.Virtual {
		return nil
	}
	return pk
}

func realForeignKeys(t *Table) []*ForeignKey {
	var fks []*ForeignKey
	for _, fk := range t.ForeignKeys {
		if !fk.Virtual {
			fks = append(fks, fk)
		}
	}
	return fks
}

func hasForeignKey(list []*ForeignKey, fk *ForeignKey) bool {
	for _, o := range list {
		if strings.EqualFold(o.RefTable, fk.RefTable) && sameNames(o.Columns, fk.Columns) && sameNames(o.RefColumns, fk.RefColumns) {
			return true
		}
	}
	return false
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

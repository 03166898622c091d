package validate

import (
	"context"

	"db-siard/internal/schema"
	"db-siard/internal/siard/path"
	"db-siard/internal/types"
)

type metadataCheck struct{ base }

func (m *metadataCheck) Validate(ctx context.Context) (Outcome, error) {
	out := Outcome{Passed: true}
	db, err := m.env.Declared()
	if err != nil {
		out.fail("M_5.0-1", "header/metadata.xml", "descriptor does not decode: %v", err)
		return out, nil
	}
	a, err := m.env.Archive()
	if err != nil {
		return out, err
	}

	if db.ArchivalDate.IsZero() {
		out.fail("M_5.1-1", "archivalDate", "archival date missing")
	}
	if len(db.Schemas) == 0 {
		out.fail("M_5.2-1", "schemas", "descriptor declares no schema")
	}
	for _, s := range db.Schemas {
		for _, t := range s.Tables {
			where := s.Name + "." + t.Name
			if _, ok := a.Entry(path.TableXML(s.Index, t.Index)); !ok {
				out.fail("M_5.3-1", where, "folder %s/%s has no table data", path.SchemaFolder(s.Index), path.TableFolder(t.Index))
			}
			m.checkColumns(&out, where, t)
			m.checkKeys(&out, db, s, where, t)
		}
	}
	return out, nil
}

func (m *metadataCheck) checkColumns(out *Outcome, where string, t *schema.Table) {
	if len(t.Columns) == 0 {
		out.fail("M_5.4-1", where, "table has no columns")
	}
	for _, c := range t.Columns {
		if _, ok := types.XSDFor(c.Type.SQL2008); ok {
			continue
		}
		if m.env.AllowedUDT(c.Type.SQL2008) {
			continue
		}
		out.fail("M_5.4-2", where+"."+c.Name, "type %q is neither SQL2008 nor an allowed user type", c.Type.SQL2008)
	}
}

func (m *metadataCheck) checkKeys(out *Outcome, db *schema.DatabaseStructure, s *schema.Schema, where string, t *schema.Table) {
	if pk := t.PrimaryKey; pk != nil {
		for _, name := range pk.Columns {
			if t.Column(name) == nil {
				out.fail("M_5.5-1", where, "primary key %s names unknown column %s", pk.Name, name)
			}
		}
	}
	for _, fk := range t.ForeignKeys {
		for _, name := range fk.Columns {
			if t.Column(name) == nil {
				out.fail("M_5.6-1", where, "foreign key %s names unknown column %s", fk.Name, name)
			}
		}
		rs := s
		if fk.RefSchema != "" {
			rs = db.Schema(fk.RefSchema)
		}
		var rt *schema.Table
		if rs != nil {
			rt = rs.Table(fk.RefTable)
		}
		if rt == nil {
			out.fail("M_5.6-2", where, "foreign key %s references unknown table %s.%s", fk.Name, fk.RefSchema, fk.RefTable)
			continue
		}
		for _, name := range fk.RefColumns {
			if rt.Column(name) == nil {
				out.fail("M_5.6-3", where, "foreign key %s references unknown column %s.%s", fk.Name, rt.Name, name)
			}
		}
	}
}

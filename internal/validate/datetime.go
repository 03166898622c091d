package validate

import (
	"context"
	"regexp"
	"strconv"

	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/read"
	"db-siard/internal/types"
)

var temporalPatterns = map[string]*regexp.Regexp{
	types.XSDDate:     regexp.MustCompile(`^(\d{4})-\d{2}-\d{2}Z?$`),
	types.XSDTime:     regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?$`),
	types.XSDDateTime: regexp.MustCompile(`^(\d{4})-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d*)?Z?$`),
}

type dateTime struct{ base }

func (v *dateTime) Validate(ctx context.Context) (Outcome, error) {
	out := Outcome{Passed: true}
	db, err := v.env.Declared()
	if err != nil {
		out.fail("T_6.4-1", siard.MetadataXML, "descriptor does not decode: %v", err)
		return out, nil
	}
	a, err := v.env.Archive()
	if err != nil {
		return out, err
	}

	for _, s := range db.Schemas {
		for _, t := range s.Tables {
			cols := temporalColumns(t)
			if len(cols) == 0 {
				continue
			}
			where := s.Name + "." + t.Name
			found := 0
			err := a.Records(ctx, siard.At(s.Index, t.Index), func(rec read.Record) error {
				for _, cell := range rec.Cells {
					re, ok := cols[cell.Column]
					if !ok || validTemporal(re, cell.Text) {
						continue
					}
					found++
					if found <= maxDiagnostics {
						out.fail("T_6.4-1", where, "row %d column %s: %q is not a UTC %s value",
							rec.Index, t.Columns[cell.Column-1].Name, cell.Text, t.Columns[cell.Column-1].Type.XSD())
					}
				}
				return nil
			})
			if err != nil {
				// unreadable table data is reported by table-data
				v.env.Log.Debug("date-time skipped table", "table", where, "error", err)
			}
		}
	}
	return out, nil
}

func temporalColumns(t *schema.Table) map[int]*regexp.Regexp {
	cols := make(map[int]*regexp.Regexp)
	for _, c := range t.Columns {
		if re, ok := temporalPatterns[c.Type.XSD()]; ok {
			cols[c.Index] = re
		}
	}
	return cols
}

func validTemporal(re *regexp.Regexp, text string) bool {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	if len(m) > 1 && len(m[1]) == 4 {
		y, _ := strconv.Atoi(m[1])
		return y >= 1 && y <= 9999
	}
	return true
}

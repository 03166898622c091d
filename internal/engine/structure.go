package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"db-siard/internal/dialect"
	"db-siard/internal/failure"
	"db-siard/internal/schema"
)

// Descriptor holds the archival facts no database can report.
type Descriptor struct {
	Name               string `mapstructure:"name"`
	Description        string `mapstructure:"description"`
	Archiver           string `mapstructure:"archiver"`
	ArchiverContact    string `mapstructure:"archiver_contact"`
	DataOwner          string `mapstructure:"data_owner"`
	DataOriginTimespan string `mapstructure:"data_origin_timespan"`
}

type StructureOptions struct {
	// Schemas to archive, in archival order. Empty means the current schema.
	Schemas []string
	// Tables restricts the export to "table" or "schema.table" names.
	Tables []string
	// AllowPartial drops columns of unknown type instead of failing.
	AllowPartial bool
	DSN          string
	Descriptor   Descriptor
	Logger       *slog.Logger
}

// Structure introspects the source database into an archive structure.
func Structure(ctx context.Context, db *sql.DB, d dialect.Dialect, opts StructureOptions) (*schema.DatabaseStructure, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	info, err := d.DescribeDSN(opts.DSN)
	if err != nil {
		return nil, err
	}

	out := &schema.DatabaseStructure{
		Name:                firstNonEmpty(opts.Descriptor.Name, info.Database),
		Description:         opts.Descriptor.Description,
		Archiver:            opts.Descriptor.Archiver,
		ArchiverContact:     opts.Descriptor.ArchiverContact,
		DataOwner:           opts.Descriptor.DataOwner,
		DataOriginTimespan:  opts.Descriptor.DataOriginTimespan,
		ProducerApplication: "db-siard",
		ArchivalDate:        time.Now(),
		ProductName:         d.Name(),
		Connection:          info.URL,
		DatabaseUser:        info.User,
	}
	if host, err := os.Hostname(); err == nil {
		out.ClientMachine = host
	}
	if info.User != "" {
		out.Users = []schema.User{{Name: info.User}}
	}

	names := opts.Schemas
	if len(names) == 0 {
		names = []string{""}
	}
	filter := newTableFilter(opts.Tables)
	resolver := dialect.Resolver(d)

	var problems []error
	for _, name := range names {
		analyzed, unknown, err := schema.Analyze(ctx, db, d, resolver, name)
		if err != nil {
			return nil, failure.Normalize(d, err)
		}
		problems = append(problems, unknown...)

		s := &schema.Schema{Name: analyzed.Name, Description: analyzed.Description}
		for _, t := range analyzed.Tables {
			if !filter.keep(s.Name, t.Name) {
				continue
			}
			if len(t.Columns) == 0 {
				log.Warn("table has no archivable column, skipped", "schema", s.Name, "table", t.Name)
				continue
			}
			s.AddTable(t)
		}
		if len(s.Tables) > 0 {
			out.AddSchema(s)
		}
	}

	if len(problems) > 0 {
		if !opts.AllowPartial {
			return nil, errors.Join(problems...)
		}
		for _, p := range problems {
			log.Warn("column left out of the archive", "error", p)
		}
	}
	if len(out.Schemas) == 0 {
		return nil, failure.Configuration("nothing to archive: no table matched")
	}
	pruneReferences(out)
	return out, nil
}

// pruneReferences drops foreign keys whose target is not part of the archive.
func pruneReferences(db *schema.DatabaseStructure) {
	for _, s := range db.Schemas {
		for _, t := range s.Tables {
			kept := t.ForeignKeys[:0]
			for _, fk := range t.ForeignKeys {
				rs := s
				if fk.RefSchema != "" {
					rs = db.Schema(fk.RefSchema)
				}
				if rs == nil || rs.Table(fk.RefTable) == nil {
					continue
				}
				kept = append(kept, fk)
			}
			t.ForeignKeys = kept

			deps := t.Dependencies[:0]
			for _, dep := range t.Dependencies {
				if s.Table(dep) != nil {
					deps = append(deps, dep)
				}
			}
			t.Dependencies = deps
		}
	}
}

type tableFilter map[string]bool

func newTableFilter(names []string) tableFilter {
	if len(names) == 0 {
		return nil
	}
	f := make(tableFilter, len(names))
	for _, n := range names {
		f[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return f
}

func (f tableFilter) keep(schemaName, table string) bool {
	if f == nil {
		return true
	}
	return f[strings.ToLower(table)] || f[strings.ToLower(schemaName+"."+table)]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

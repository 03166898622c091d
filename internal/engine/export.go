package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"db-siard/internal/failure"
	"db-siard/internal/filter/merkle"
	"db-siard/internal/observer"
	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/content"
	"db-siard/internal/siard/metadata"
	"db-siard/internal/siard/path"
	"db-siard/internal/siard/write"

	"github.com/spf13/afero"
)

type ExportJob struct {
	Fs        afero.Fs
	Output    string
	Structure *schema.DatabaseStructure
	Source    RowSource

	Compression       string
	MaxFilesPerFolder int
	CLOBThreshold     int
	BLOBThreshold     int
	// ExternalLOBs moves every externalized object into <base>_lobs.zip.
	ExternalLOBs  bool
	ProgressEvery int64

	Observer observer.Observer
	// Merkle, when set, hashes every row as it is written.
	Merkle *merkle.Tree
	Logger *slog.Logger
}

type ExportResult struct {
	Archive    string
	LOBArchive string
	Tables     int
	Rows       int64
	LOBs       int64
}

// Export writes job.Structure and the rows of job.Source into a new archive.
// Nothing is left at the output path unless every step succeeds.
func Export(ctx context.Context, job ExportJob) (*ExportResult, error) {
	db := job.Structure
	if db == nil || len(db.Schemas) == 0 {
		return nil, failure.Configuration("export needs at least one schema")
	}
	if job.Source == nil {
		return nil, failure.Configuration("export needs a row source")
	}
	if !strings.EqualFold(filepath.Ext(job.Output), siard.Extension) {
		return nil, failure.Configuration("output %q must end in %s", job.Output, siard.Extension)
	}
	log := job.Logger
	if log == nil {
		log = slog.Default()
	}
	fs := job.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	main := siard.Container{Path: job.Output, Kind: siard.Main}
	z, err := write.NewZip(fs, main, write.WithMethod(job.Compression))
	if err != nil {
		return nil, err
	}
	result := &ExportResult{Archive: main.Path}

	var (
		aux       *write.Zip
		lobs      write.Strategy
		lobFolder string
	)
	if job.ExternalLOBs {
		ac := siard.AuxiliaryFor(main)
		aux, err = write.NewZip(fs, ac, write.WithMethod(job.Compression))
		if err != nil {
			z.Abort()
			return nil, err
		}
		lobs = aux
		lobFolder = filepath.Base(ac.Path)
		result.LOBArchive = ac.Path
	}
	abort := func() {
		if err := z.Abort(); err != nil {
			log.Warn("discarding partial archive failed", "error", err)
		}
		if aux != nil {
			if err := aux.Abort(); err != nil {
				log.Warn("discarding partial LOB container failed", "error", err)
			}
		}
	}

	obs := observer.OrNop(job.Observer)
	cs := content.New(z, content.Options{
		Paths:         path.New(job.MaxFilesPerFolder),
		CLOBThreshold: job.CLOBThreshold,
		BLOBThreshold: job.BLOBThreshold,
		LOBs:          lobs,
		Observer:      obs,
		ProgressEvery: job.ProgressEvery,
	})

	obs.OpenDatabase(db)
	err = exportContent(ctx, job, cs, result)
	if err == nil {
		err = metadata.NewStrategy(z, metadata.EncodeOptions{LOBFolder: lobFolder}).Write(db)
	}
	if err == nil && aux != nil {
		err = aux.Finalize()
	}
	if err == nil {
		if err = z.Finalize(); err != nil && aux != nil {
			fs.Remove(result.LOBArchive)
		}
	}
	obs.CloseDatabase(db)
	if err != nil {
		abort()
		return nil, err
	}
	result.LOBs = cs.LOBs()
	log.Info("archive written", "path", result.Archive, "tables", result.Tables, "rows", result.Rows, "lobs", result.LOBs)
	return result, nil
}

func exportContent(ctx context.Context, job ExportJob, cs *content.Strategy, result *ExportResult) error {
	tree := job.Merkle
	for _, s := range job.Structure.Schemas {
		if err := cs.OpenSchema(s); err != nil {
			return err
		}
		if tree != nil {
			tree.OpenSchema(s)
		}
		for _, t := range s.Tables {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := exportTable(ctx, job, cs, s, t); err != nil {
				return failure.Operation("export "+s.Name+"."+t.Name, err)
			}
			result.Tables++
			result.Rows += t.Rows
		}
		if tree != nil {
			tree.CloseSchema()
		}
		if err := cs.CloseSchema(s); err != nil {
			return err
		}
	}
	return nil
}

func exportTable(ctx context.Context, job ExportJob, cs *content.Strategy, s *schema.Schema, t *schema.Table) error {
	tree := job.Merkle
	if err := cs.OpenTable(s, t); err != nil {
		return err
	}
	if tree != nil {
		if err := tree.OpenTable(t); err != nil {
			return err
		}
	}
	err := job.Source.Rows(ctx, s, t, func(row *schema.Row) error {
		if tree != nil {
			tree.Wrap(row)
		}
		if err := cs.TableRow(ctx, row); err != nil {
			return err
		}
		if tree != nil {
			return tree.Row(t, row)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := cs.CloseTable(s, t); err != nil {
		return err
	}
	if tree != nil {
		tree.CloseTable()
	}
	return nil
}

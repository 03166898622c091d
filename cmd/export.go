package cmd

import (
	"fmt"
	"strings"
	"time"

	"db-siard/internal/engine"
	"db-siard/internal/filter/merkle"
	"db-siard/internal/observer"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	exportSchemas      []string
	exportTables       []string
	exportOutput       string
	exportAllowPartial bool
	exportLimit        int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Archive the active database into a SIARD file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := openActive(ctx)
		if err != nil {
			return err
		}
		defer conn.DB.Close()

		descriptor, err := loadDescriptor()
		if err != nil {
			return err
		}
		tree, err := merkleTree()
		if err != nil {
			return err
		}

		logger.Info("analyzing schema", "dialect", conn.Dialect.Name())
		structure, err := engine.Structure(ctx, conn.DB, conn.Dialect, engine.StructureOptions{
			Schemas:      exportSchemas,
			Tables:       exportTables,
			AllowPartial: exportAllowPartial,
			DSN:          conn.Config.DSN,
			Descriptor:   descriptor,
			Logger:       logger,
		})
		if err != nil {
			return err
		}

		start := time.Now()
		job := loadArchiveSettings().job(exportOutput)
		job.Fs = afero.NewOsFs()
		job.Structure = structure
		job.Source = &engine.DBSource{DB: conn.DB, Dialect: conn.Dialect, Limit: exportLimit}
		job.Observer = observer.ForStdout(observer.NewLog(logger))
		job.Merkle = tree

		res, err := engine.Export(ctx, job)
		if err != nil {
			return err
		}
		printExportSummary(res, time.Since(start))

		if tree != nil {
			return writeMerkle(job.Fs, tree.Finish(), exportOutput)
		}
		return nil
	},
}

func printExportSummary(res *engine.ExportResult, elapsed time.Duration) {
	fmt.Println("\n📦 Archive Summary:")
	fmt.Printf("  Archive : %s\n", res.Archive)
	if res.LOBArchive != "" {
		fmt.Printf("  LOBs    : %s\n", res.LOBArchive)
	}
	fmt.Printf("  Tables  : %d\n", res.Tables)
	fmt.Printf("  Rows    : %d\n", res.Rows)
	fmt.Printf("  Objects : %d externalized\n", res.LOBs)
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Time Elapsed: %s\n", elapsed.Round(time.Millisecond))
}

// writeMerkle stores the digest document at merkle.output, or next to the
// archive as <base>.merkle.json.
func writeMerkle(fs afero.Fs, doc *merkle.Document, archive string) error {
	out := viper.GetString("merkle.output")
	if out == "" {
		out = strings.TrimSuffix(archive, ".siard") + ".merkle.json"
	}
	f, err := fs.Create(out)
	if err != nil {
		return err
	}
	if err := doc.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("🌳 Merkle root (%s): %s -> %s\n", doc.Algorithm, doc.TopHash, out)
	return nil
}

func init() {
	RootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringSliceVarP(&exportSchemas, "schemas", "s", []string{}, "Schemas to archive (default: current schema)")
	exportCmd.Flags().StringSliceVarP(&exportTables, "tables", "t", []string{}, "Specific tables to archive (table or schema.table)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Archive path, must end in .siard")
	exportCmd.Flags().BoolVar(&exportAllowPartial, "allow-partial", false, "Leave out columns of unknown type instead of failing")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Archive at most this many rows per table")
	exportCmd.Flags().Bool("external-lobs", false, "Store large objects in a separate <base>_lobs.zip")
	exportCmd.Flags().Bool("merkle", false, "Write a merkle digest document next to the archive")
	exportCmd.MarkFlagRequired("output")

	viper.BindPFlag("archive.external_lobs", exportCmd.Flags().Lookup("external-lobs"))
	viper.BindPFlag("merkle.enabled", exportCmd.Flags().Lookup("merkle"))
}

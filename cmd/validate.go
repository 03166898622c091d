package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"db-siard/internal/engine"
	"db-siard/internal/failure"
	"db-siard/internal/observer"
	"db-siard/internal/schema"
	"db-siard/internal/validate"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	reportFile       string
	reportSkips      []string
	reference        bool
	referenceSchemas []string
	referenceTables  []string
)

var validateCmd = &cobra.Command{
	Use:   "validate <archive.siard>",
	Short: "Check an archive against the SIARD 2.1 requirements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := afero.NewOsFs()
		format := viper.GetString("validation.report_format")

		opts := validate.Options{
			Disabled: disabledComponents(),
			Parallel: viper.GetBool("validation.parallel"),
			Observer: observer.ForStdout(observer.NewLog(logger)),
			Logger:   logger,
		}
		if file := viper.GetString("validation.allowed_udts"); file != "" {
			udts, err := validate.LoadUDTs(fs, file)
			if err != nil {
				return err
			}
			opts.AllowedUDTs = udts
		}
		if reference {
			ref, err := LoadReference(cmd.Context(), referenceSchemas, referenceTables)
			if err != nil {
				return err
			}
			opts.Reference = ref
		}

		report, err := validate.Run(cmd.Context(), fs, args[0], opts)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if reportFile != "" {
			f, err := fs.Create(reportFile)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := report.Encode(w, format); err != nil {
			return err
		}
		if !report.Passed {
			return failure.Operationf("validate", "%s did not pass validation", args[0])
		}
		return nil
	},
}

// LoadReference introspects the active database the way export does, for
// the structure fidelity check.
func LoadReference(ctx context.Context, schemas, tables []string) (*schema.DatabaseStructure, error) {
	conn, err := openActive(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.DB.Close()

	descriptor, err := loadDescriptor()
	if err != nil {
		return nil, err
	}
	logger.Info("loading reference structure", "database", conn.Config.Name, "dialect", conn.Dialect.Name())
	return engine.Structure(ctx, conn.DB, conn.Dialect, engine.StructureOptions{
		Schemas:      schemas,
		Tables:       tables,
		AllowPartial: true,
		DSN:          conn.Config.DSN,
		Descriptor:   descriptor,
		Logger:       logger,
	})
}

// disabledComponents merges validation.components.<name>: false with --skip.
func disabledComponents() map[string]bool {
	disabled := make(map[string]bool)
	for name, on := range viper.GetStringMap("validation.components") {
		if enabled, ok := on.(bool); ok && !enabled {
			disabled[strings.ToLower(name)] = true
		}
	}
	for _, name := range reportSkips {
		disabled[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return disabled
}

func init() {
	RootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&reportFile, "report", "", "Write the report to this file instead of stdout")
	validateCmd.Flags().String("format", "text", "Report format: text, yaml or json")
	validateCmd.Flags().String("allowed-udts", "", "File listing accepted user-defined type names, one per line")
	validateCmd.Flags().Bool("parallel", false, "Run validation components concurrently")
	validateCmd.Flags().StringSliceVar(&reportSkips, "skip", []string{}, "Components to skip (repeatable)")
	validateCmd.Flags().BoolVar(&reference, "reference", false, "Compare the archive structure with the active database")
	validateCmd.Flags().StringSliceVar(&referenceSchemas, "reference-schemas", []string{}, "Schemas of the reference database (default: current schema)")
	validateCmd.Flags().StringSliceVar(&referenceTables, "reference-tables", []string{}, "Tables of the reference database")

	viper.BindPFlag("validation.report_format", validateCmd.Flags().Lookup("format"))
	viper.BindPFlag("validation.allowed_udts", validateCmd.Flags().Lookup("allowed-udts"))
	viper.BindPFlag("validation.parallel", validateCmd.Flags().Lookup("parallel"))
}

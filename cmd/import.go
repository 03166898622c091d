package cmd

import (
	"fmt"
	"time"

	"db-siard/internal/engine"
	"db-siard/internal/observer"
	"db-siard/internal/schema"
	"db-siard/internal/siard/read"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	importClean  bool
	importCreate bool
)

var importCmd = &cobra.Command{
	Use:   "import <archive.siard>",
	Short: "Restore an archive into the active database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		archive, err := read.Open(afero.NewOsFs(), args[0])
		if err != nil {
			return err
		}
		defer archive.Close()

		conn, err := openActive(ctx)
		if err != nil {
			return err
		}
		defer conn.DB.Close()

		logger.Info("starting restore", "archive", args[0], "clean", importClean)
		start := time.Now()
		results, err := engine.Restore(ctx, engine.RestoreJob{
			DB:           conn.DB,
			Dialect:      conn.Dialect,
			Archive:      archive,
			CreateTables: importCreate,
			Clean:        importClean,
			Observer:     observer.ForStdout(observer.NewLog(logger)),
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		printLoadResults(results)
		logger.Info("restore done", "elapsed", time.Since(start))
		return nil
	},
}

func printLoadResults(results []schema.LoadResult) {
	fmt.Println("\n📊 Summary Report (Dependency Order):")
	var total int64
	for i, r := range results {
		icon := "✓"
		if r.Status != "OK" {
			icon = "!"
		}
		fmt.Printf("[%s] [%02d/%02d] %-20s : %d rows (Target: %d) - %s\n",
			icon, i+1, len(results), r.TableName, r.Actual, r.Target, r.Status)
		if r.ErrorMsg != "" {
			fmt.Printf("    └ Error: %s\n", r.ErrorMsg)
		}
		total += r.Actual
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Total Rows: %d\n", total)
}

func init() {
	RootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importClean, "clean", false, "Clean target tables before loading")
	importCmd.Flags().BoolVar(&importCreate, "create-tables", false, "Create the archived tables before loading")
}

package cmd

import (
	"context"
	"fmt"

	"db-siard/internal/engine"
	"db-siard/internal/schema"

	"github.com/spf13/cobra"
)

var (
	cleanSchemas []string
	cleanTables  []string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean all data from tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := openActive(ctx)
		if err != nil {
			return err
		}
		defer conn.DB.Close()

		tables, err := orderedTables(ctx, conn, cleanSchemas, cleanTables)
		if err != nil {
			return err
		}
		if err := engine.Clean(ctx, conn.DB, conn.Dialect, tables, logger); err != nil {
			return err
		}
		fmt.Println("Database Cleaned Successfully!")
		return nil
	},
}

// orderedTables analyzes the active database and returns the selected
// tables parents first.
func orderedTables(ctx context.Context, conn *connection, schemas, tables []string) ([]*schema.Table, error) {
	logger.Info("analyzing schema", "dialect", conn.Dialect.Name())
	structure, err := engine.Structure(ctx, conn.DB, conn.Dialect, engine.StructureOptions{
		Schemas:      schemas,
		Tables:       tables,
		AllowPartial: true,
		DSN:          conn.Config.DSN,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	var all []*schema.Table
	for _, s := range structure.Schemas {
		all = append(all, s.Tables...)
	}
	return schema.SortTablesByFKCount(all), nil
}

func init() {
	RootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringSliceVarP(&cleanSchemas, "schemas", "s", []string{}, "Schemas to clean (default: current schema)")
	cleanCmd.Flags().StringSliceVarP(&cleanTables, "tables", "t", []string{}, "Specific tables to clean (comma-separated)")
}

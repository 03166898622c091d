package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list-tables",
	Short: "Show the tables an export would archive, in restore order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := openActive(ctx)
		if err != nil {
			return err
		}
		defer conn.DB.Close()

		tables, err := orderedTables(ctx, conn, exportSchemas, exportTables)
		if err != nil {
			return err
		}
		fmt.Printf("🔍 Analysis Results:\n")
		for i, t := range tables {
			fmt.Printf("[%02d] %s (%d columns, Dependencies: %v)\n", i+1, t.Name, len(t.Columns), t.Dependencies)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(listCmd)

	listCmd.Flags().StringSliceVarP(&exportSchemas, "schemas", "s", []string{}, "Schemas to inspect (default: current schema)")
	listCmd.Flags().StringSliceVarP(&exportTables, "tables", "t", []string{}, "Specific tables to inspect")
}

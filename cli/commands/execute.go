package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hydrate-orm/hydrate-go/cli/internal/ui"
	"github.com/hydrate-orm/hydrate-go/query/materializer"
	"github.com/hydrate-orm/hydrate-go/query/spec"
)

var (
	executeURL      string
	executeProvider string
	executeFirst    int
	executeMax      int
)

var executeCmd = &cobra.Command{
	Use:   "execute <sql> [args...]",
	Short: "Execute a native query and print the materialized results",
	Long: `Execute a native SQL query against the configured database.

Each result column becomes a scalar return; rows are materialized
through the mapping engine and rendered as a table.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeCommand(args[0], args[1:])
	},
}

func init() {
	executeCmd.Flags().StringVar(&executeURL, "url", "", "database connection string (defaults to DATABASE_URL)")
	executeCmd.Flags().StringVar(&executeProvider, "provider", "", "database provider (postgresql, mysql, sqlite)")
	executeCmd.Flags().IntVar(&executeFirst, "first", 0, "skip the first n rows")
	executeCmd.Flags().IntVar(&executeMax, "max", 0, "return at most n rows")
	rootCmd.AddCommand(executeCmd)
}

func executeCommand(sqlText string, rawArgs []string) error {
	c, err := openClient(executeURL, executeProvider)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		ui.PrintError("Failed to connect: %v", err)
		return err
	}
	defer c.Disconnect(ctx)

	args := make([]any, len(rawArgs))
	for i, a := range rawArgs {
		args[i] = a
	}

	rows, err := c.DB().QueryContext(ctx, sqlText, args...)
	if err != nil {
		ui.PrintError("Query failed: %v", err)
		return err
	}
	base, err := materializer.NewRowsCursor(rows)
	if err != nil {
		rows.Close()
		ui.PrintError("%v", err)
		return err
	}

	// Ad-hoc queries have no declared mapping; every column maps to an
	// untyped scalar return.
	columns := base.Columns()
	returns := make([]spec.Return, len(columns))
	for i, col := range columns {
		returns[i] = &spec.ScalarReturn{Column: col}
	}
	mapping, err := spec.New(returns...)
	if err != nil {
		base.Close()
		ui.PrintError("%v", err)
		return err
	}

	var cursor materializer.RowCursor = base
	if executeFirst > 0 || executeMax > 0 {
		cursor = materializer.NewPagedCursor(base, executeFirst, executeMax)
	}

	results, err := materializer.New(mapping).List(ctx, cursor)
	if err != nil {
		ui.PrintError("Materialization failed: %v", err)
		return err
	}

	tableRows := make([][]string, 0, len(results))
	for _, result := range results {
		row := make([]string, len(columns))
		if tuple, ok := result.(materializer.Tuple); ok {
			for i, v := range tuple {
				row[i] = formatValue(v)
			}
		} else {
			row[0] = formatValue(result)
		}
		tableRows = append(tableRows, row)
	}

	ui.PrintTable(columns, tableRows)
	ui.PrintSuccess("%d row(s)", len(results))
	return nil
}

package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hydrate-orm/hydrate-go/cli/internal/ui"
)

var (
	callURL      string
	callProvider string
)

var callCmd = &cobra.Command{
	Use:   "call <procedure> [args...]",
	Short: "Call a stored procedure and print its first result set",
	Long: `Call a stored procedure through the provider's canonical call form.

Update counts emitted before the first result set are skipped; the
first set with columns is rendered as a table.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callCommand(args[0], args[1:])
	},
}

func init() {
	callCmd.Flags().StringVar(&callURL, "url", "", "database connection string (defaults to DATABASE_URL)")
	callCmd.Flags().StringVar(&callProvider, "provider", "", "database provider (postgresql, mysql)")
	rootCmd.AddCommand(callCmd)
}

func callCommand(procedure string, rawArgs []string) error {
	c, err := openClient(callURL, callProvider)
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

	cursor, err := c.Procedures().Query(ctx, procedure, args...)
	if err != nil {
		ui.PrintError("Procedure failed: %v", err)
		return err
	}
	defer cursor.Close()

	var headers []string
	var tableRows [][]string
	for cursor.Next() {
		row, err := cursor.Row()
		if err != nil {
			ui.PrintError("%v", err)
			return err
		}
		if headers == nil {
			headers = row.Columns()
		}
		cells := make([]string, len(headers))
		for i, col := range headers {
			value, _ := row.Get(col)
			cells[i] = formatValue(value)
		}
		tableRows = append(tableRows, cells)
	}
	if err := cursor.Err(); err != nil {
		ui.PrintError("%v", err)
		return err
	}

	if headers == nil {
		ui.PrintInfo("Procedure returned an empty result set")
		return nil
	}
	ui.PrintTable(headers, tableRows)
	ui.PrintSuccess("%d row(s)", len(tableRows))
	return nil
}

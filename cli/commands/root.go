package commands

import (
	"github.com/spf13/cobra"

	"github.com/hydrate-orm/hydrate-go/cli/internal/version"
	"github.com/hydrate-orm/hydrate-go/internal/debug"
	"github.com/hydrate-orm/hydrate-go/telemetry"
)

var (
	debugFlag   bool
	seqEndpoint string
)

var rootCmd = &cobra.Command{
	Use:   "hydrate",
	Short: "Result-set mapping engine for native SQL",
	Long: `hydrate runs native SQL queries and stored procedures and maps
their result sets to structured output through mapping specs.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug.InitWithSeq(debugFlag, seqEndpoint)
		telemetry.Init(version.Version, true)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown()
		debug.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&seqEndpoint, "seq", "", "ship logs to a Seq server at this endpoint")
}

// Execute is the main entry point for the CLI
func Execute() error {
	return rootCmd.Execute()
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hydrate-orm/hydrate-go/cli/internal/update"
	"github.com/hydrate-orm/hydrate-go/cli/internal/version"
)

var versionCheckUpdate bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Get().FullString())
		if versionCheckUpdate {
			return update.CheckForUpdates(version.Version)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheckUpdate, "check-update", false, "check whether a newer release is available")
	rootCmd.AddCommand(versionCmd)
}

package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hydrate-orm/hydrate-go/cli/internal/config"
	"github.com/hydrate-orm/hydrate-go/cli/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a hydrate project interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initCommand() error {
	ui.PrintHeader("hydrate", "native query result mapping")

	var provider string
	if err := survey.AskOne(&survey.Select{
		Message: "Database provider:",
		Options: []string{"postgresql", "mysql", "sqlite"},
		Default: "postgresql",
	}, &provider); err != nil {
		return err
	}

	var databaseURL string
	if err := survey.AskOne(&survey.Input{
		Message: "Database connection string:",
		Help:    "Stored in .env as DATABASE_URL",
	}, &databaseURL); err != nil {
		return err
	}

	enableCache := true
	if err := survey.AskOne(&survey.Confirm{
		Message: "Enable query result caching?",
		Default: true,
	}, &enableCache); err != nil {
		return err
	}

	cfg := &config.Config{Provider: provider}
	if enableCache {
		cfg.CacheSize = config.DefaultCacheSize
		cfg.CacheTTL = config.DefaultCacheTTL
	}
	if err := config.Save(cfg); err != nil {
		ui.PrintError("Failed to save configuration: %v", err)
		return err
	}
	ui.PrintSuccess("Configuration saved")

	if databaseURL != "" {
		env := fmt.Sprintf("DATABASE_URL=%q\n", databaseURL)
		if err := afero.WriteFile(config.AppFs, ".env", []byte(env), 0600); err != nil {
			ui.PrintError("Failed to write .env: %v", err)
			return err
		}
		ui.PrintSuccess("Created .env")
	}

	ui.PrintInfo("Run a first query with: hydrate execute \"SELECT 1\"")
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"pinscraper/pkg/config"
	"pinscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage pinscraper configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (PINSCRAPER_*), including .env files
  - Configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration with every available option.

The file is created as '.pinscraper.yaml' in the current directory unless a
path is given with --config.`,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources. Object storage secrets
are never part of the output.`,
	RunE: runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".pinscraper.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the file, in particular output.data_root and storage.endpoint")
	fmt.Println("2. Store object storage keys with 'pinscraper auth login' if you use buckets")
	fmt.Println("3. Run 'pinscraper config validate', then 'pinscraper scrape'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		ui.PrintError("Configuration validation failed")
		return err
	}

	var warnings []string
	if err := os.MkdirAll(cfg.Output.DataRoot, 0755); err != nil {
		return fmt.Errorf("cannot create data root: %w", err)
	}
	if cfg.Database.DSN == "" {
		warnings = append(warnings, "database.dsn is empty; export needs --db-dsn")
	}
	if !cfg.Browser.Headless && cfg.Browser.RemoteURL == "" {
		warnings = append(warnings, "browser runs with a visible window")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Site root: %s\n", cfg.Site.RootURL)
	fmt.Printf("  Data root: %s\n", cfg.Output.DataRoot)
	fmt.Printf("  Remote prefix: %s\n", cfg.Output.RemotePrefix)
	fmt.Printf("  Object storage: %s (profile %s)\n", cfg.Storage.Endpoint, cfg.Storage.Profile)
	fmt.Printf("  Scrolls per category: %d\n", cfg.Browser.ScrollCount)
	fmt.Printf("  Download rate: %d requests/minute\n", cfg.Download.RequestsPerMinute)
	fmt.Printf("  Max retries: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

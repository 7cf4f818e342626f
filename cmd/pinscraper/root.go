package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"pinscraper/pkg/auth"
	"pinscraper/pkg/config"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/objectstore"
	"pinscraper/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	dataRoot      string
	s3Endpoint    string
	s3Profile     string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pinscraper",
	Short: "Incremental Pinterest category crawler",
	Long: `pinscraper crawls Pinterest idea categories and grabs the pins it has
not seen before.

Features:
  - Remembers every grabbed pin, so reruns only fetch new items
  - Stores each category locally or in an S3-compatible bucket
  - Moves existing data when a category changes placement
  - Extends or discards previously scraped categories on request
  - Interrupted runs leave the stored history untouched
  - Exports the collected records to Postgres or SQLite`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		if cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.pinscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&dataRoot, "data-root", "d", "", "directory holding the ledger, registry and local categories")
	rootCmd.PersistentFlags().StringVar(&s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint")
	rootCmd.PersistentFlags().StringVar(&s3Profile, "s3-profile", "", "stored object storage credential profile")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show logs and one line per item")

	rootCmd.SetVersionTemplate(`pinscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags that override configuration
func globalFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if dataRoot != "" {
		flags["data-root"] = dataRoot
	}
	if s3Endpoint != "" {
		flags["s3-endpoint"] = s3Endpoint
	}
	if s3Profile != "" {
		flags["s3-profile"] = s3Profile
	}
	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case !verbose:
		// The progress line owns the terminal unless verbose output was asked for
		flags["log-level"] = "error"
	}
	if cmd.Flags().Changed("no-color") {
		flags["no-color"] = noColor
	}
	return flags
}

// loadConfig loads configuration and initializes the global logger
func loadConfig(cmd *cobra.Command, extra map[string]interface{}) (*config.Config, error) {
	flags := globalFlags(cmd)
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithField("version", version).Debug("pinscraper starting")
	return cfg, nil
}

// openRemote connects to object storage when credentials can be resolved
// from the environment or the credential store. It returns a nil client
// when none are configured.
func openRemote(cfg *config.Config) (objectstore.Client, error) {
	log := logger.GetLogger()
	if cfg.Storage.AccessKeyID == "" || cfg.Storage.SecretAccessKey == "" {
		manager, err := auth.NewManager()
		if err != nil {
			log.WithError(err).Warn("Credential store unavailable")
			return nil, nil
		}
		if err := manager.Apply(&cfg.Storage); err != nil {
			log.WithField("profile", cfg.Storage.Profile).Debug("No object storage credentials configured")
			return nil, nil
		}
	}

	store, err := objectstore.NewMinioStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"endpoint": cfg.Storage.Endpoint,
		"profile":  cfg.Storage.Profile,
	}).Debug("Object storage configured")
	return store, nil
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"pinscraper/pkg/auth"
	"pinscraper/pkg/config"
	"pinscraper/pkg/objectstore"
	"pinscraper/pkg/ui"
)

var verifyBucket string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage object storage credentials",
	Long: `Manage the access keys used for remote placements.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY (read only)`,
}

var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store an access key pair",
	Example: `  # Store the default profile
  pinscraper auth login

  # Store a named profile and check that a bucket is reachable
  pinscraper auth login archive --verify-bucket my-pins`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	loginCmd.Flags().StringVar(&verifyBucket, "verify-bucket", "", "check that this bucket is reachable with the new keys")
}

func profileArg(cfg *config.Config, args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(args[0])
	}
	return cfg.Storage.Profile
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := profileArg(cfg, args)
	auth.ShowCredentialGuide(os.Stdout)
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Access key ID: ")
	keyID, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read access key ID: %w", err)
	}

	fmt.Print("Secret access key: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read secret access key: %w", err)
	}

	fmt.Printf("Endpoint [%s]: ", cfg.Storage.Endpoint)
	endpoint, _ := reader.ReadString('\n')
	endpoint = strings.TrimSpace(endpoint)

	profile := &auth.Profile{
		Name:            name,
		AccessKeyID:     strings.TrimSpace(keyID),
		SecretAccessKey: strings.TrimSpace(string(secret)),
		Endpoint:        endpoint,
		Region:          cfg.Storage.Region,
	}

	if verifyBucket != "" {
		storage := cfg.Storage
		storage.AccessKeyID = profile.AccessKeyID
		storage.SecretAccessKey = profile.SecretAccessKey
		if endpoint != "" {
			storage.Endpoint = endpoint
		}
		if err := checkBucket(storage, verifyBucket); err != nil {
			return err
		}
		ui.PrintSuccess("Bucket " + verifyBucket + " is reachable")
	}

	if err := manager.Store(profile); err != nil {
		return err
	}
	ui.PrintSuccess("Stored profile " + name)
	return nil
}

func checkBucket(storage config.StorageConfig, bucket string) error {
	store, err := objectstore.NewMinioStore(storage)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ok, err := store.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := profileArg(cfg, args)
	if err := manager.Delete(name); err != nil {
		return err
	}
	ui.PrintSuccess("Removed profile " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	profiles, err := manager.List()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		ui.PrintWarning("No stored profiles. Run 'pinscraper auth login' to add one.")
		return nil
	}

	fmt.Printf("  %-16s %-16s %-28s %s\n", "PROFILE", "ACCESS KEY", "ENDPOINT", "MODIFIED")
	for _, p := range profiles {
		s := auth.SanitizeProfile(p)
		endpoint := s.Endpoint
		if endpoint == "" {
			endpoint = "-"
		}
		fmt.Printf("  %-16s %-16s %-28s %s\n", s.Name, s.AccessKeyID, endpoint, s.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

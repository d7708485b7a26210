package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/NeKzor/b2"
	"github.com/NeKzor/b2/internal/app"
	"github.com/NeKzor/b2/internal/config"
	"github.com/NeKzor/b2/internal/gateway"
	"github.com/NeKzor/b2/internal/uploader"
	"github.com/NeKzor/b2/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.2.0"

var (
	configPath string
	bucketID   string
)

func main() {
	// Get default config path
	defaultConfigPath, err := config.DefaultConfigPath()
	if err != nil {
		defaultConfigPath = "./config.toml"
	}

	// Root command
	rootCmd := &cobra.Command{
		Use:   "b2",
		Short: "Backblaze B2 uploads and download links",
		Long:  "Upload files into a Backblaze B2 bucket, print download URLs, and run a small HTTP gateway in front of the bucket.",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to config file")

	// Account command
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Authorize and print account details",
		RunE:  runAccount,
	}

	// Upload command
	uploadCmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload files to the configured bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUpload,
	}
	uploadCmd.Flags().StringVarP(&bucketID, "bucket", "b", "", "Bucket ID, overrides b2.bucket_id from the config")

	// Url command
	urlCmd := &cobra.Command{
		Use:   "url <fileName>",
		Short: "Print the download URL for a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runURL,
	}

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE:  runServe,
	}

	// Generate-config command
	generateConfigCmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return utils.GenerateConfig(configPath)
		},
	}

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("b2 version %s\n", version)
		},
	}

	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateConfigCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfigIfPresent reads the config file when it exists. account,
// upload and url also work from environment credentials alone, so a
// missing file only yields the defaults.
func loadConfigIfPresent() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

// resolveCredentials finds an application key pair: config file first,
// then the environment (after loading a local .env), then an
// interactive prompt for the key itself.
func resolveCredentials(cfg *config.Config) (b2.Credentials, error) {
	_ = godotenv.Load()

	if cfg.B2.KeyID != "" && cfg.B2.ApplicationKey != "" {
		return b2.Credentials{KeyID: cfg.B2.KeyID, ApplicationKey: cfg.B2.ApplicationKey}, nil
	}
	if creds, err := b2.CredentialsFromEnv(); err == nil {
		return creds, nil
	}

	keyID := cfg.B2.KeyID
	if keyID == "" {
		keyID = os.Getenv("B2_APPLICATION_KEY_ID")
	}
	if keyID == "" {
		return b2.Credentials{}, fmt.Errorf("no key id found: set b2.key_id in %s or B2_APPLICATION_KEY_ID in the environment", configPath)
	}

	key, err := utils.PromptApplicationKey(os.Stderr)
	if err != nil {
		return b2.Credentials{}, err
	}
	return b2.Credentials{KeyID: keyID, ApplicationKey: key}, nil
}

// authorizedClient builds a client from cfg and authorizes it.
func authorizedClient(cfg *config.Config) (*b2.Client, *b2.Authorization, error) {
	creds, err := resolveCredentials(cfg)
	if err != nil {
		return nil, nil, err
	}

	userAgent := cfg.B2.UserAgent
	if userAgent == "" {
		userAgent = app.DefaultUserAgent
	}
	var opts []b2.Option
	if cfg.B2.BaseURL != "" {
		opts = append(opts, b2.WithBaseURL(cfg.B2.BaseURL))
	}

	client, err := b2.NewClient(userAgent, opts...)
	if err != nil {
		return nil, nil, err
	}

	auth, err := client.AuthorizeAccount(creds)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to authorize with b2: %w", err)
	}
	return client, auth, nil
}

func runAccount(cmd *cobra.Command, args []string) error {
	cfg := loadConfigIfPresent()

	_, auth, err := authorizedClient(cfg)
	if err != nil {
		return err
	}

	storage := auth.APIInfo.StorageAPI

	fmt.Printf("Account ID:    %s\n", auth.AccountID)
	if auth.ApplicationKeyExpirationTimestamp == nil {
		fmt.Println("Key expires:   never")
	} else {
		fmt.Printf("Key expires:   %d\n", *auth.ApplicationKeyExpirationTimestamp)
	}
	fmt.Printf("API URL:       %s\n", storage.APIURL)
	fmt.Printf("Download URL:  %s\n", storage.DownloadURL)
	fmt.Printf("S3 URL:        %s\n", storage.S3APIURL)
	if storage.BucketName != "" {
		fmt.Printf("Bucket:        %s (%s)\n", storage.BucketName, storage.BucketID)
	}
	if storage.NamePrefix != "" {
		fmt.Printf("Name prefix:   %s\n", storage.NamePrefix)
	}
	fmt.Printf("Capabilities:  %s\n", strings.Join(storage.Capabilities, ", "))
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfigIfPresent()

	client, _, err := authorizedClient(cfg)
	if err != nil {
		return err
	}

	bucket := bucketID
	if bucket == "" {
		bucket = cfg.B2.BucketID
	}
	if bucket == "" {
		return fmt.Errorf("no bucket found: set b2.bucket_id in %s or pass --bucket", configPath)
	}

	jobs := make([]uploader.Job, len(args))
	for i, path := range args {
		jobs[i] = uploader.Job{Path: path}
	}

	pool := uploader.New(client, app.NewLogger(cfg.Loglevel), cfg.UploadWorkers)
	results := pool.UploadAll(ctx, bucket, jobs)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", res.Job.Path, res.Err)
			continue
		}
		fmt.Printf("%s\t%s\t%s\n", res.Job.Path, res.File.FileID, res.DownloadURL)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(results))
	}
	return nil
}

func runURL(cmd *cobra.Command, args []string) error {
	cfg := loadConfigIfPresent()

	client, _, err := authorizedClient(cfg)
	if err != nil {
		return err
	}

	downloadURL, err := client.DownloadURL(args[0])
	if err != nil {
		return err
	}

	fmt.Println(downloadURL)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Build container with shared dependencies
	container, err := app.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}

	container.Logger.Infof("Starting b2 gateway, version %s", version)

	server := gateway.NewServer(container)
	return server.StartWithContext(ctx)
}

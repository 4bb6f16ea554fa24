package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rowjay/content-restore/internal/app"
	"github.com/rowjay/content-restore/internal/config"
	"github.com/rowjay/content-restore/internal/logging"
	"github.com/rowjay/content-restore/internal/notify"
	"github.com/rowjay/content-restore/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Verbosity  int
}

type overrideFlags struct {
	APIKey        string
	Client        string
	Endpoint      string
	RestorePoint  string
	ParentID      string
	BackupDir     string
	Storage       string
	S3Endpoint    string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Region      string
	S3UseSSL      string
	S3PathStyle   string
	Prefix        string
	Compression   string
	EncryptionKey string
}

func main() {
	root := &rootFlags{}
	overrides := &overrideFlags{}

	rootCmd := &cobra.Command{
		Use:           "crestore",
		Short:         "Restore backed up content folders into the content service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&root.ConfigPath, "config", "c", "", "Path to config file (yaml/toml/json/ini or .enc)")
	pf.StringVar(&root.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")
	pf.IntVarP(&root.Verbosity, "verbose", "v", 0, "Verbosity (4 steps, 7 folders, 9 every poll)")

	pf.StringVarP(&overrides.APIKey, "api", "a", "", "API access as <id>:<key>")
	pf.StringVarP(&overrides.Client, "client", "k", "", "Deployment and organization as <site>_<orgid>")
	pf.StringVar(&overrides.Endpoint, "endpoint", "", "Content API endpoint (overrides deployment)")
	pf.StringVarP(&overrides.BackupDir, "backup-dir", "b", "", "Local backup directory")
	pf.StringVar(&overrides.Storage, "storage", "", "Backup location backend (local, s3)")
	pf.StringVar(&overrides.S3Endpoint, "s3-endpoint", "", "S3 endpoint (MinIO/OSS)")
	pf.StringVar(&overrides.S3Bucket, "s3-bucket", "", "S3 bucket")
	pf.StringVar(&overrides.S3AccessKey, "s3-access-key", "", "S3 access key")
	pf.StringVar(&overrides.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	pf.StringVar(&overrides.S3Region, "s3-region", "", "S3 region")
	pf.StringVar(&overrides.S3UseSSL, "s3-ssl", "", "Use SSL for S3 endpoint (true/false)")
	pf.StringVar(&overrides.S3PathStyle, "s3-path-style", "", "Force path-style S3 (true/false)")
	pf.StringVar(&overrides.Prefix, "prefix", "", "Key prefix of the backup inside the location")
	pf.StringVar(&overrides.Compression, "compression", "", "Payload compression (none/gzip/zstd)")
	pf.StringVar(&overrides.EncryptionKey, "encryption-key", "", "Payload encryption key (base64, hex or file:<path>)")

	rootCmd.AddCommand(newRestoreCmd(root, overrides))
	rootCmd.AddCommand(newValidateCmd(root, overrides))
	rootCmd.AddCommand(newInspectCmd(root, overrides))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "crestore:", err)
		os.Exit(1)
	}
}

func newRestoreCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Recreate a backup under a new restore point",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root, overrides)
			if err != nil {
				return err
			}
			if dryRun {
				cfg.Restore.DryRun = true
			}
			ctx, cancel := runContext(cfg)
			defer cancel()

			appSvc, err := build(ctx, cfg, !cfg.Restore.DryRun)
			if err != nil {
				return err
			}
			summary, err := appSvc.Restore(ctx)
			if err != nil {
				return err
			}
			appSvc.Log.Info().
				Str("restore_point", summary.RestorePoint).
				Str("id", summary.RestorePointID).
				Int("folders", summary.Folders).
				Int("imported", summary.Imported).
				Int("failed", summary.Failed).
				Str("audit", summary.Audit.Audit).
				Msg("restore completed")
			return nil
		},
	}

	cmd.Flags().StringVarP(&overrides.RestorePoint, "restore-point", "r", "", "Name of the restore folder (default <tag>.<date>.<time>)")
	cmd.Flags().StringVar(&overrides.ParentID, "parent-id", "", "Folder to create the restore point in (default personal folder)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the restore without creating anything")
	return cmd
}

func newValidateCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check credentials, manifest and payloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := runContext(cfg)
			defer cancel()

			appSvc, err := build(ctx, cfg, true)
			if err != nil {
				return err
			}
			report, err := appSvc.Validate(ctx)
			for _, row := range report.Missing {
				appSvc.Log.Warn().Str("uid", row.UID).Str("path", row.Path).Str("backup_path", row.BackupPath).Msg("content document missing")
			}
			if err != nil {
				return err
			}
			appSvc.Log.Info().Int("folders", report.Folders).Int("items", report.Items).Msg("validation succeeded")
			return nil
		},
	}
}

func newInspectCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show what a backup contains and the folders a restore would create",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := runContext(cfg)
			defer cancel()

			appSvc, err := build(ctx, cfg, false)
			if err != nil {
				return err
			}
			out, err := appSvc.Inspect(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "rows\t%d\nfolders\t%d\nitems\t%d\n", out.Rows, len(out.Folders), out.Items)
			for typ, n := range out.Types {
				fmt.Fprintf(w, "type\t%s\t%d\n", typ, n)
			}
			for _, step := range out.Folders {
				fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", step.Depth), step.Name)
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	var input string
	var output string
	var key string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config utilities",
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" || key == "" {
				return fmt.Errorf("--input, --output, and --key are required")
			}
			return config.EncryptConfigFile(input, output, key)
		},
	}
	encrypt.Flags().StringVar(&input, "input", "", "Input config file")
	encrypt.Flags().StringVar(&output, "output", "", "Output encrypted config file (.enc)")
	encrypt.Flags().StringVar(&key, "key", "", "Encryption key (base64, hex or file:<path>)")

	cmd.AddCommand(encrypt)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crestore %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

// build wires the app. The content service client is only created when withService is
// set, so inspect and dry runs work offline.
func build(ctx context.Context, cfg *config.Config, withService bool) (*app.App, error) {
	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)
	store, set, err := app.OpenBackup(cfg)
	if err != nil {
		return nil, err
	}
	appSvc := app.New(cfg, nil, set, store, logger, notify.FromConfig(cfg.Notifications))
	if !withService {
		return appSvc, nil
	}
	if err := cfg.Service.RequireCredentials(); err != nil {
		return nil, err
	}
	client, err := app.NewServiceClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("endpoint", client.Endpoint()).Msg("content service resolved")
	appSvc.Service = client
	return appSvc, nil
}

func runContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, cfg.Global.OperationTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func loadConfig(root *rootFlags, overrides *overrideFlags) (*config.Config, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, root, overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) error {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}
	if root.Verbosity > 0 {
		cfg.Global.Verbosity = root.Verbosity
	}
	cfg.Global.LogLevel = logging.Level(cfg.Global.LogLevel, cfg.Global.Verbosity)

	if overrides.APIKey != "" {
		if err := cfg.Service.ApplyAPIKey(overrides.APIKey); err != nil {
			return err
		}
	}
	if overrides.Client != "" {
		if err := cfg.Service.ApplyClient(overrides.Client); err != nil {
			return err
		}
	}
	if overrides.Endpoint != "" {
		cfg.Service.Endpoint = overrides.Endpoint
	}
	if overrides.RestorePoint != "" {
		cfg.Restore.RestorePoint = overrides.RestorePoint
	}
	if overrides.ParentID != "" {
		cfg.Restore.ParentID = overrides.ParentID
	}

	if overrides.BackupDir != "" {
		cfg.Storage.Backend = "local"
		cfg.Storage.Local.Path = overrides.BackupDir
	}
	if overrides.Storage != "" {
		cfg.Storage.Backend = overrides.Storage
	}
	if overrides.S3Endpoint != "" {
		cfg.Storage.S3.Endpoint = overrides.S3Endpoint
	}
	if overrides.S3Bucket != "" {
		cfg.Storage.S3.Bucket = overrides.S3Bucket
	}
	if overrides.S3AccessKey != "" {
		cfg.Storage.S3.AccessKey = overrides.S3AccessKey
	}
	if overrides.S3SecretKey != "" {
		cfg.Storage.S3.SecretKey = overrides.S3SecretKey
	}
	if overrides.S3Region != "" {
		cfg.Storage.S3.Region = overrides.S3Region
	}
	if overrides.S3UseSSL != "" {
		cfg.Storage.S3.UseSSL = parseBool(overrides.S3UseSSL)
	}
	if overrides.S3PathStyle != "" {
		cfg.Storage.S3.ForcePathStyle = parseBool(overrides.S3PathStyle)
	}
	if overrides.Prefix != "" {
		cfg.Storage.Prefix = overrides.Prefix
	}
	if overrides.Compression != "" {
		cfg.Backup.Compression = overrides.Compression
	}
	if overrides.EncryptionKey != "" {
		cfg.Backup.EncryptionKey = overrides.EncryptionKey
		cfg.Backup.Encryption = true
	}

	cfg.Backup.Compression = strings.ToLower(cfg.Backup.Compression)
	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	return nil
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

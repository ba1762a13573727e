// Package cmd implements the bucketnav command line.
package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/bucketnav/internal/config"
	"github.com/3leaps/bucketnav/internal/observability"
	"github.com/3leaps/bucketnav/internal/server/handlers"
)

const binaryName = "bucketnav"

var (
	cfgFile      string
	verbose      bool
	readOnly     bool
	outputFormat string

	appConfig *config.Config
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

var rootCmd = &cobra.Command{
	Use:   binaryName,
	Short: "Browse object storage buckets as folders",
	Long: `bucketnav presents a flat object store as a folder hierarchy.

Keys are split on "/" into folders. Navigate with ls or the interactive
browser, select objects and folders, delete them in bulk (folders are
removed recursively) and upload up to 20 files at a time.

Supported URIs:
  s3://bucket/prefix/       AWS S3 and S3-compatible stores
  minio://bucket/prefix/    MinIO (endpoint from config)
  gs://bucket/prefix/       Google Cloud Storage
  admin://bucket/prefix/    storage admin HTTP API
  file://bucket/prefix/     a directory under file.root`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initApp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./bucketnav.yaml or user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "readonly", false, "Refuse every mutating operation")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|jsonl|yaml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo records build metadata for `version` and GET /version.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit, buildDate)
}

func initApp(cmd *cobra.Command, args []string) error {
	observability.InitCLILogger(binaryName, verbose)

	config.SetConfigFile(cfgFile)
	var overrides map[string]any
	if cmd.Flags().Changed("readonly") {
		overrides = map[string]any{"readonly": readOnly}
	}
	cfg, err := config.Load(cmd.Context(), overrides)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to load configuration", err)
	}
	appConfig = cfg
	observability.CLILogger.Debug("configuration loaded",
		zap.Bool("readonly", cfg.ReadOnly),
		zap.String("file_root", cfg.File.Root))
	return nil
}

// IsReadOnly reports whether mutating commands must refuse to run.
func IsReadOnly() bool {
	if readOnly {
		return true
	}
	return appConfig != nil && appConfig.ReadOnly
}

func requireWritable(action string) error {
	if IsReadOnly() {
		return exitError(foundry.ExitInvalidArgument, "readonly mode enabled: refusing "+action, errors.New("disable --readonly to modify the bucket"))
	}
	return nil
}

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/bucketnav/internal/observability"
	"github.com/3leaps/bucketnav/pkg/output"
	"github.com/3leaps/bucketnav/pkg/provider"
)

var statCmd = &cobra.Command{
	Use:   "stat <uri>",
	Short: "Show the metadata of one object",
	Long: `Show size, modification time, ETag, content type and user metadata of
a single object.

Examples:
  bucketnav stat s3://bucket/logs/app.log
  bucketnav stat gs://bucket/images/cat.png --output yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runStat,
}

func init() {
	rootCmd.AddCommand(statCmd)
}

func runStat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	u, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	if u.IsPattern() || u.IsPrefix() {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", fmt.Errorf("%s does not name an object", u))
	}

	cfg, err := loadedConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to load configuration", err)
	}
	sess, err := openSession(ctx, cfg, u)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = sess.Close() }()

	meta, err := sess.Stat(ctx, u.Key)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return exitError(foundry.ExitFileNotFound, "Object not found", err)
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to read object metadata", err)
	}

	w, err := output.New(outputFormat, cmd.OutOrStdout(), uuid.NewString(), u.Bucket)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.WriteEntry(ctx, output.ObjectEntry(meta)); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	return nil
}

package cmd

import (
	"errors"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/bucketnav/internal/observability"
	"github.com/3leaps/bucketnav/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse <uri>",
	Short: "Browse a bucket interactively",
	Long: `Open a full-screen browser on a bucket.

Move with the arrow keys, open folders with enter, select with space and
delete the selection with x. Press ? for every binding.

Examples:
  bucketnav browse s3://bucket/
  bucketnav browse gs://bucket/logs/2024/ --readonly`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	u, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	if u.IsPattern() {
		return exitError(foundry.ExitInvalidArgument, "browse requires a folder URI", errors.New("glob patterns select keys; open their folder instead"))
	}
	// The browser owns the terminal; log lines would tear the screen.
	observability.CLILogger = zap.NewNop()

	cfg, err := loadedConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to load configuration", err)
	}
	sess, err := openSession(ctx, cfg, u)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = sess.Close() }()

	if err := tui.Run(ctx, sess, tui.Options{ReadOnly: IsReadOnly()}); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Browser failed", err)
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/bucketnav/internal/observability"
	"github.com/3leaps/bucketnav/pkg/match"
	"github.com/3leaps/bucketnav/pkg/output"
)

var lsCmd = &cobra.Command{
	Use:   "ls <uri>",
	Short: "List one folder level",
	Long: `List the folders and objects directly under a prefix.

Deeper keys appear only as their folder entry. A glob in the last segment
filters the level.

Examples:
  bucketnav ls s3://bucket/
  bucketnav ls s3://bucket/logs/2024/ --output jsonl
  bucketnav ls 'gs://bucket/images/*.png'
  bucketnav ls s3://bucket/big/ --token <next_token>`,
	Args: cobra.ExactArgs(1),
	RunE: runLs,
}

var (
	lsToken    string
	lsAll      bool
	lsHidden   bool
	lsMaxPages int
)

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().StringVar(&lsToken, "token", "", "Continuation token from a previous page")
	lsCmd.Flags().BoolVar(&lsAll, "all", false, "Follow continuation tokens until the level is exhausted")
	lsCmd.Flags().BoolVar(&lsHidden, "hidden", false, "Let glob patterns match dot-prefixed names")
	lsCmd.Flags().IntVar(&lsMaxPages, "max-pages", 100, "Page cap for --all")
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	u, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	var filter *match.Matcher
	if u.IsPattern() {
		filter, err = match.New(match.Config{Includes: []string{u.Pattern}, IncludeHidden: lsHidden})
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid pattern", err)
		}
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

	w, err := output.New(outputFormat, cmd.OutOrStdout(), uuid.NewString(), u.Bucket)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", err)
	}
	defer func() { _ = w.Close() }()

	token := lsToken
	for page := 0; ; page++ {
		l, err := sess.ListingPage(ctx, token)
		if err != nil {
			observability.CLILogger.Error("Listing failed", zap.String("prefix", u.Prefix().String()), zap.Error(err))
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to list prefix", err)
		}
		if filter != nil {
			l = filterListing(l, filter)
		}
		if err := output.WriteListing(ctx, w, l); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
		}

		token = l.NextToken
		if !lsAll || token == "" {
			return nil
		}
		if page+1 >= lsMaxPages {
			return exitError(foundry.ExitInvalidArgument, "Page cap reached", fmt.Errorf("stopped after %d pages; resume with --token %s", lsMaxPages, token))
		}
	}
}

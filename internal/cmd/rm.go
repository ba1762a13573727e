package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/bucketnav/internal/observability"
	"github.com/3leaps/bucketnav/pkg/batch"
	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/match"
	"github.com/3leaps/bucketnav/pkg/output"
	"github.com/3leaps/bucketnav/pkg/provider"
	"github.com/3leaps/bucketnav/pkg/session"
)

var rmCmd = &cobra.Command{
	Use:   "rm <uri>...",
	Short: "Delete objects and folders",
	Long: `Delete objects and folders from one folder level.

A URI ending in "/" names a folder, which is deleted with everything under
it. A glob in the last segment selects every matching entry of its level.
All URIs must name entries of the same folder. The folder is listed in
full before anything is selected; if it has more than --max-pages pages,
nothing is deleted.

Deletes run one at a time and never stop on a failure; the summary reports
how many succeeded and failed.

Examples:
  bucketnav rm s3://bucket/logs/old.log
  bucketnav rm s3://bucket/tmp/ --yes
  bucketnav rm 's3://bucket/logs/*.gz' --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRm,
}

var (
	rmYes      bool
	rmDryRun   bool
	rmHidden   bool
	rmMaxPages int
)

var (
	errRmTruncated = errors.New("folder has more entries than --max-pages allows")
	errRmNoSuchKey = errors.New("no such object or folder")
)

func init() {
	rootCmd.AddCommand(rmCmd)

	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "Skip the confirmation prompt")
	rmCmd.Flags().BoolVar(&rmDryRun, "dry-run", false, "Print the selection without deleting")
	rmCmd.Flags().BoolVar(&rmHidden, "hidden", false, "Let glob patterns match dot-prefixed names")
	rmCmd.Flags().IntVar(&rmMaxPages, "max-pages", 100, "Page cap when listing the folder")
}

// rmTarget is one URI resolved to the folder it lives in.
type rmTarget struct {
	uri   *BucketURI
	level browse.Prefix
	key   string
}

func resolveRmTargets(args []string) ([]rmTarget, error) {
	targets := make([]rmTarget, 0, len(args))
	for _, arg := range args {
		u, err := ParseURI(arg)
		if err != nil {
			return nil, err
		}
		t := rmTarget{uri: u}
		switch {
		case u.IsPattern():
			t.level = u.Level
		case u.Key == "":
			return nil, fmt.Errorf("refusing to delete the bucket root of %s; use a glob such as %s://%s/*", arg, u.Scheme, u.Bucket)
		case u.IsPrefix():
			p := browse.NormalizePrefix(u.Key)
			t.level, t.key = p.Parent(), p.String()
		default:
			t.level, t.key = browse.NormalizePrefix(u.Key).Parent(), u.Key
		}
		if len(targets) > 0 {
			first := targets[0]
			if first.uri.Scheme != u.Scheme || first.uri.Bucket != u.Bucket {
				return nil, fmt.Errorf("all URIs must name the same bucket: %s vs %s://%s", first.uri, u.Scheme, u.Bucket)
			}
			if first.level != t.level {
				return nil, fmt.Errorf("all URIs must name entries of the same folder: %q vs %q", first.level, t.level)
			}
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	targets, err := resolveRmTargets(args)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	if !rmDryRun {
		if err := requireWritable("delete"); err != nil {
			return err
		}
	}

	cfg, err := loadedConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to load configuration", err)
	}
	first := targets[0]
	levelURI := *first.uri
	levelURI.Key, levelURI.Pattern, levelURI.Level = first.level.String(), "", first.level

	w, err := output.New(outputFormat, cmd.OutOrStdout(), "", first.uri.Bucket)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", err)
	}
	defer func() { _ = w.Close() }()

	progress := func(key string, err error, done, total int) {
		rec := &output.ItemRecord{Op: output.OpDelete, Key: key, OK: err == nil}
		if err != nil {
			rec.Code = provider.Code(err)
			rec.Error = err.Error()
		}
		if werr := w.WriteItem(ctx, rec); werr != nil {
			observability.CLILogger.Warn("Failed to write item", zap.Error(werr))
		}
	}
	executor := batch.New(
		batch.WithLogger(observability.CLILogger),
		batch.WithRate(cfg.Browse.DeleteRate),
		batch.WithProgress(progress),
	)

	sess, err := openSession(ctx, cfg, &levelURI, session.WithExecutor(executor))
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = sess.Close() }()

	if err := selectRmTargets(ctx, sess, targets); err != nil {
		var fe *session.FetchError
		switch {
		case errors.As(err, &fe):
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to list prefix", err)
		case errors.Is(err, errRmNoSuchKey):
			return exitError(foundry.ExitFileNotFound, "Nothing to delete", err)
		case errors.Is(err, errRmTruncated):
			return exitError(foundry.ExitInvalidArgument, "Page cap reached", err)
		}
		return exitError(foundry.ExitInvalidArgument, "Invalid selection", err)
	}

	keys := sess.Selection().Keys()
	if len(keys) == 0 {
		observability.CLILogger.Info("Nothing matched", zap.Strings("uris", args))
		return nil
	}
	if rmDryRun {
		for _, k := range keys {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), k); err != nil {
				return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
			}
		}
		return nil
	}
	if !rmYes {
		ok, err := confirmDelete(cmd.InOrStdin(), cmd.ErrOrStderr(), keys)
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Failed to read confirmation", err)
		}
		if !ok {
			return exitError(foundry.ExitInvalidArgument, "Delete cancelled", errors.New("not confirmed"))
		}
	}

	res, err := sess.DeleteSelected(ctx)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Delete failed", err)
	}
	if err := w.WriteSummary(ctx, batchSummary(output.OpDelete, first.level, res.Succeeded, res.Failed, res.Duration)); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	if ctx.Err() != nil {
		return exitError(foundry.ExitSignalInt, "Delete cancelled", ctx.Err())
	}
	if res.Failed > 0 {
		return exitError(foundry.ExitExternalServiceUnavailable, "Some deletes failed", fmt.Errorf("%d of %d failed", res.Failed, res.Total()))
	}
	return nil
}

// selectRmTargets lists the whole folder and selects every target in it.
func selectRmTargets(ctx context.Context, sess *session.Session, targets []rmTarget) error {
	l, err := sess.ListingAll(ctx, rmMaxPages)
	if err != nil {
		return err
	}
	if l.Truncated {
		return fmt.Errorf("%w: %q (%d pages)", errRmTruncated, l.Prefix, rmMaxPages)
	}

	for _, t := range targets {
		if !t.uri.IsPattern() {
			if sess.Selection().Has(t.key) {
				continue
			}
			if _, err := sess.Toggle(ctx, t.key); err != nil {
				if errors.Is(err, session.ErrNotInListing) {
					return fmt.Errorf("%w: %s", errRmNoSuchKey, t.uri)
				}
				return err
			}
			continue
		}
		m, err := match.New(match.Config{Includes: []string{t.uri.Pattern}, IncludeHidden: rmHidden})
		if err != nil {
			return err
		}
		if _, err := sess.SelectMatching(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func confirmDelete(in io.Reader, out io.Writer, keys []string) (bool, error) {
	const preview = 10
	for i, k := range keys {
		if i == preview {
			fmt.Fprintf(out, "  ... and %d more\n", len(keys)-preview)
			break
		}
		suffix := ""
		if browse.IsFolderKey(k) {
			suffix = " (folder, recursive)"
		}
		fmt.Fprintf(out, "  %s%s\n", k, suffix)
	}
	fmt.Fprintf(out, "Delete %d item(s)? [y/N] ", len(keys))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func batchSummary(op string, prefix browse.Prefix, succeeded, failed int, d time.Duration) *output.SummaryRecord {
	return &output.SummaryRecord{
		Op:            op,
		Prefix:        prefix.String(),
		Succeeded:     succeeded,
		Failed:        failed,
		Duration:      d,
		DurationHuman: d.Round(time.Millisecond).String(),
	}
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/bucketnav/internal/observability"
	"github.com/3leaps/bucketnav/pkg/output"
	"github.com/3leaps/bucketnav/pkg/provider"
	"github.com/3leaps/bucketnav/pkg/upload"
)

var putCmd = &cobra.Command{
	Use:   "put <folder-uri> <file>...",
	Short: "Upload local files into a folder",
	Long: fmt.Sprintf(`Upload local files into a folder. Each file keeps its base name.

At most %d files are accepted per call; a larger batch is rejected before
anything is uploaded. Files upload concurrently and one failure does not
stop the others.

Examples:
  bucketnav put s3://bucket/reports/ q1.pdf q2.pdf
  bucketnav put file://scratch/ ./notes.txt --output jsonl`, upload.MaxBatchFiles),
	Args: cobra.MinimumNArgs(2),
	RunE: runPut,
}

func init() {
	rootCmd.AddCommand(putCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	u, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	if !u.IsPrefix() {
		return exitError(foundry.ExitInvalidArgument, "put requires a folder URI", errors.New("append '/' to the destination"))
	}
	if err := requireWritable("upload"); err != nil {
		return err
	}

	paths := args[1:]
	if len(paths) > upload.MaxBatchFiles {
		return exitError(foundry.ExitInvalidArgument, "Too many files", &upload.BatchTooLargeError{Count: len(paths), Max: upload.MaxBatchFiles})
	}
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		f, err := upload.LocalFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return exitError(foundry.ExitFileNotFound, "File not found", err)
			}
			return exitError(foundry.ExitFileReadError, "Cannot read file", err)
		}
		files = append(files, f)
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

	w, err := output.New(outputFormat, cmd.OutOrStdout(), "", u.Bucket)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", err)
	}
	defer func() { _ = w.Close() }()

	res, err := sess.Upload(ctx, files, func(o upload.Outcome) {
		rec := &output.ItemRecord{Op: output.OpPut, Key: o.Key, OK: o.Err == nil}
		if o.Err != nil {
			rec.Code = provider.Code(o.Err)
			rec.Error = o.Err.Error()
		}
		if werr := w.WriteItem(ctx, rec); werr != nil {
			observability.CLILogger.Warn("Failed to write item", zap.Error(werr))
		}
	})
	if err != nil {
		if errors.Is(err, upload.ErrBatchTooLarge) {
			return exitError(foundry.ExitInvalidArgument, "Too many files", err)
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Upload failed", err)
	}
	if err := w.WriteSummary(ctx, batchSummary(output.OpPut, u.Prefix(), res.Succeeded, res.Failed, res.Duration)); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	if res.Failed > 0 {
		return exitError(foundry.ExitExternalServiceUnavailable, "Some uploads failed", fmt.Errorf("%d of %d failed", res.Failed, res.Total()))
	}
	return nil
}

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/scan"
	"github.com/spf13/cobra"
)

func newBatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [files or directories...]",
		Short: "Scan QR codes from many images, one after another",
		Long: `Scan every image in the given files and directories. Images are scanned
sequentially through a single pipeline; Ctrl-C cancels the current scan and
stops the run.

Examples:
  qrscan batch *.png
  qrscan batch photos/ --recursive --include '*.jpg'
  qrscan batch photos/ --format json --output results.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runBatch,
	}

	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringSlice("include", nil, "glob patterns of files to include")
	cmd.Flags().StringSlice("exclude", nil, "glob patterns of files to exclude")
	cmd.Flags().Bool("continue-on-error", true, "skip unreadable files instead of stopping")
	cmd.Flags().StringP("format", "f", "", "output format (text, json, csv)")
	cmd.Flags().StringP("output", "o", "", "write results to a file")
	cmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	cmd.Flags().BoolP("quiet", "q", false, "print results only")
	cmd.Flags().Duration("timeout", 0, "per-image scan timeout (default from config: 10s)")
	return cmd
}

// configToBatchConfig applies flag overrides on top of the loaded configuration.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) *batch.Config {
	bc := cfg.ToBatchConfig()
	if cmd.Flags().Changed("recursive") {
		bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	if cmd.Flags().Changed("include") {
		bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	}
	if cmd.Flags().Changed("exclude") {
		bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	}
	if cmd.Flags().Changed("continue-on-error") {
		bc.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	if cmd.Flags().Changed("format") {
		bc.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("output") {
		bc.OutputFile, _ = cmd.Flags().GetString("output")
	}
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	return bc
}

func (a *app) runBatch(cmd *cobra.Command, args []string) error {
	cfg := *a.cfg
	if cmd.Flags().Changed("timeout") {
		d, _ := cmd.Flags().GetDuration("timeout")
		cfg.Scan.Timeout = d.String()
	}
	bc := configToBatchConfig(&cfg, cmd)

	store, err := a.openHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer closeHistory(store)

	orch, err := newOrchestrator(&cfg, scan.LogNotifier{}, store)
	if err != nil {
		return err
	}

	var progress batch.ProgressCallback = batch.NoOpProgressCallback{}
	switch {
	case bc.Quiet:
	case bc.ShowProgress:
		progress = batch.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Scanning").WithUpdateInterval(bc.ProgressInterval)
	default:
		progress = batch.NewLogProgressCallback(slog.Default(), 10)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := batch.Process(ctx, orch, args, bc, progress)
	if errors.Is(err, batch.ErrNoImages) {
		return fmt.Errorf("%w in %v", err, args)
	}
	if res == nil {
		return fmt.Errorf("batch scan failed: %w", err)
	}

	if saveErr := res.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); saveErr != nil {
		return saveErr
	}
	res.PrintStats(cmd.ErrOrStderr(), bc.Quiet)

	if err != nil {
		return fmt.Errorf("batch scan failed: %w", err)
	}
	if res.Interrupted {
		return errors.New("batch scan interrupted")
	}
	return nil
}

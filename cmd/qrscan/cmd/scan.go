package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/scan"
	"github.com/MeKo-Tech/qrscan/internal/source"
	"github.com/spf13/cobra"
)

// errScanUnsuccessful gives a non-zero exit status after the notice was shown.
var errScanUnsuccessful = errors.New("scan unsuccessful")

func newScanCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Scan a QR code from one image",
		Long: `Scan a QR code from one image file. Use "-" to read the image from stdin.

The result is printed as a notice (text) or as the full outcome record (json).
A decoded payload is appended to the scan history unless --no-history is set.

Supported formats: PNG, JPEG, GIF, BMP, TIFF, WebP

Examples:
  qrscan scan code.png
  qrscan scan photo --image-format jpeg
  cat code.png | qrscan scan - --format json`,
		Args: cobra.ExactArgs(1),
		RunE: a.runScan,
	}

	cmd.Flags().Duration("timeout", 0, "scan timeout (default from config: 10s)")
	cmd.Flags().String("image-format", "", "declared container format (png, jpeg, gif, bmp, tiff, webp)")
	cmd.Flags().StringP("format", "f", "", "output format (text, json)")
	cmd.Flags().Bool("no-history", false, "do not record the result in the scan history")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, args []string) error {
	cfg := *a.cfg
	if cmd.Flags().Changed("timeout") {
		d, _ := cmd.Flags().GetDuration("timeout")
		cfg.Scan.Timeout = d.String()
	}
	format := cfg.Output.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported output format for scan: %s (must be text or json)", format)
	}

	declared := codec.FormatUnknown
	if name, _ := cmd.Flags().GetString("image-format"); name != "" {
		f, ok := codec.ParseFormat(name)
		if !ok {
			return fmt.Errorf("unsupported image format: %s", name)
		}
		declared = f
	}

	src, err := openSource(cmd, args[0], declared)
	if err != nil {
		if errors.Is(err, scan.ErrPermissionDenied) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), scan.PermissionNotice().String())
		}
		return err
	}

	var store history.Store
	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		store, err = a.openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer closeHistory(store)
	}

	var notifier scan.Notifier
	if format == "text" {
		notifier = &scan.WriterNotifier{W: cmd.OutOrStdout()}
	}
	orch, err := newOrchestrator(&cfg, notifier, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := orch.Run(ctx, src)
	if err != nil {
		return fmt.Errorf("scan %s: %w", src, err)
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode outcome: %w", err)
		}
	} else if out.Status == scan.StateCancelled {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Scan cancelled.")
	}

	switch out.Status {
	case scan.StateSucceeded, scan.StateNotFound:
		return nil
	default:
		return fmt.Errorf("%w: %s", errScanUnsuccessful, out.Status)
	}
}

func openSource(cmd *cobra.Command, path string, declared codec.Format) (source.Image, error) {
	if path == "-" {
		return source.FromReader("stdin", cmd.InOrStdin(), declared)
	}
	return source.FromFile(path, declared)
}

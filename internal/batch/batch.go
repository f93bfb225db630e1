// Package batch scans many image files one after another through a single
// orchestrator.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/scan"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

// ErrNoImages is returned when discovery finds nothing to scan.
var ErrNoImages = errors.New("no image files found")

// Runner starts one scan and waits for its outcome.
type Runner interface {
	Run(ctx context.Context, src source.Image) (scan.Outcome, error)
}

// Process discovers image files under paths and scans them sequentially.
func Process(ctx context.Context, r Runner, paths []string, cfg *Config, progress ProgressCallback) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	files, err := discoverImageFiles(paths, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	res := &Result{Items: make([]Item, 0, len(files))}
	start := time.Now()
	progress.OnStart(len(files))
	defer func() {
		res.Duration = time.Since(start)
		progress.OnComplete()
	}()

	for i, file := range files {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		src, err := source.FromFile(file, codec.FormatUnknown)
		if err != nil {
			progress.OnError(i+1, err)
			if !cfg.ContinueOnError {
				return res, fmt.Errorf("open %s: %w", file, err)
			}
			slog.Warn("Skipping image", "file", file, "error", err)
			res.Items = append(res.Items, Item{File: file, Err: err.Error()})
			progress.OnProgress(i+1, len(files))
			continue
		}

		out, err := r.Run(ctx, src)
		if err != nil {
			res.Interrupted = true
			if ctx.Err() != nil {
				break
			}
			// ErrBusy: another caller holds the orchestrator.
			return res, fmt.Errorf("scan %s: %w", file, err)
		}
		res.Items = append(res.Items, Item{File: file, Outcome: out})
		slog.Debug("Batch item scanned", "file", file, "status", out.Status.String())
		progress.OnProgress(i+1, len(files))

		if out.Status == scan.StateCancelled && ctx.Err() != nil {
			res.Interrupted = true
			break
		}
	}
	return res, nil
}

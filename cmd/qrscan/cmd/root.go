package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/scan"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries state shared by every command of one command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	loader  *config.Loader
}

// NewRootCommand builds the qrscan command tree on v.
func NewRootCommand(v *viper.Viper) *cobra.Command {
	a := &app{v: v}

	root := &cobra.Command{
		Use:   "qrscan",
		Short: "Scan QR codes from images",
		Long: `qrscan decodes QR codes from image files.

Each scan runs through a cancellable pipeline: the image is normalized to a
canonical width, decoded to pixels and searched for a QR code. Scans time out
after 10 seconds by default and can be cancelled with Ctrl-C.

Examples:
  qrscan scan code.png
  qrscan scan photo.jpg --format json --timeout 5s
  qrscan batch images/ --recursive
  qrscan serve --port 8080
  qrscan history list`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/qrscan, /etc/qrscan)")
	root.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = v.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log_format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(
		newScanCommand(a),
		newBatchCommand(a),
		newServeCommand(a),
		newHistoryCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree on the global viper instance.
func Execute() {
	if err := NewRootCommand(viper.GetViper()).Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.loader = config.NewLoaderWithViper(a.v)

	var err error
	if a.cfgFile != "" {
		a.cfg, err = a.loader.LoadWithFile(a.cfgFile)
	} else {
		a.cfg, err = a.loader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), a.cfg))
	if used := a.loader.GetConfigFileUsed(); used != "" {
		slog.Debug("Loaded configuration", "file", used)
	}
	return nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	var level slog.Level
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openHistory opens the configured store, or returns nil when history is off.
func (a *app) openHistory(ctx context.Context) (history.Store, error) {
	if !a.cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(ctx, a.cfg.ToHistoryOptions())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

func closeHistory(store history.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close history", "error", err)
	}
}

// newOrchestrator builds the pipeline from cfg.
func newOrchestrator(cfg *config.Config, n scan.Notifier, store history.Store) (*scan.Orchestrator, error) {
	stages, err := cfg.BuildStages()
	if err != nil {
		return nil, err
	}
	scfg, err := cfg.ToScanConfig()
	if err != nil {
		return nil, err
	}
	return scan.NewOrchestrator(scfg, stages, scan.NewSink(n, store)), nil
}

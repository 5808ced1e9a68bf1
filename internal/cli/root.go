// Package cli implements the imgtool command line: the compress and resize
// tools on local files, plus a view of the shared activity log.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/harliandi/go-convert/internal/config"
	"github.com/harliandi/go-convert/internal/converter"
	"github.com/harliandi/go-convert/internal/history"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

type rootOptions struct {
	verbose     bool
	noHistory   bool
	historyFile string
	uploadDir   string
}

// app holds what a subcommand needs once flags are parsed.
type app struct {
	opts      *rootOptions
	logger    *logrus.Logger
	converter *converter.Converter
}

// NewRootCmd builds the imgtool command tree. Defaults for the history file
// and upload directory come from the same environment as the API server.
func NewRootCmd() *cobra.Command {
	cfg := config.Load()
	opts := &rootOptions{}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:   "imgtool",
		Short: "Target-size JPEG compression and resizing",
		Long: `imgtool encodes images as JPEG against a size budget.

compress finds the highest quality that fits under --target-kb.
resize changes dimensions and grows the file towards --target-kb.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := cfg.LogLevel
			if opts.verbose {
				level = "debug"
			} else if level == "info" {
				level = "warn"
			}
			lc := *cfg
			lc.LogLevel = level
			a.logger = lc.NewLogger(cmd.ErrOrStderr())
			a.converter = converter.New(
				converter.WithMaxFileSize(cfg.MaxUploadBytes()),
				converter.WithLogger(a.logger),
			)
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&opts.noHistory, "no-history", false, "do not record conversions in the activity log")
	root.PersistentFlags().StringVar(&opts.historyFile, "history-file", cfg.HistoryFile, "activity log path")
	root.PersistentFlags().StringVar(&opts.uploadDir, "upload-dir", cfg.UploadDir, "output directory counted by history stats")
	root.SetVersionTemplate(fmt.Sprintf(
		"imgtool %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))

	root.AddCommand(
		newCompressCmd(a),
		newResizeCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// Execute runs imgtool with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// recordHistory logs a finished conversion unless --no-history is set.
func (a *app) recordHistory(action, input, output string) error {
	if a.opts.noHistory {
		return nil
	}
	log, err := history.Open(a.opts.historyFile, a.logger)
	if err != nil {
		return err
	}
	if _, err := log.Record(action, baseName(input), baseName(output)); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

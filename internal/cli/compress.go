package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/harliandi/go-convert/internal/history"
	"github.com/harliandi/go-convert/pkg/targetsize"
	"github.com/spf13/cobra"
)

type compressOptions struct {
	output   string
	targetKB int
}

func newCompressCmd(a *app) *cobra.Command {
	opts := &compressOptions{}

	cmd := &cobra.Command{
		Use:   "compress <input>",
		Short: "Compress an image to a JPEG at or below a target size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			data, err := readInput(input)
			if err != nil {
				return err
			}

			res, err := a.converter.Compress(data, kbToBytes(opts.targetKB))
			if err != nil {
				return err
			}

			output := opts.output
			if output == "" {
				output = defaultOutput(input, "compressed")
			}
			if err := writeOutput(output, res.Data); err != nil {
				return err
			}
			if err := a.recordHistory(history.ActionCompressImage, input, output); err != nil {
				return err
			}

			printResult(cmd, input, output, len(data), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path (default <input>_compressed.jpg)")
	cmd.Flags().IntVar(&opts.targetKB, "target-kb", 0, "target size in KB (0 encodes at the default quality)")
	return cmd
}

// kbToBytes mirrors the form parsing: non-positive means no target.
func kbToBytes(kb int) int {
	return targetsize.TargetFromKB(strconv.Itoa(kb))
}

func defaultOutput(input, suffix string) string {
	if input == "-" {
		return suffix + ".jpg"
	}
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	return stem + "_" + suffix + ".jpg"
}

// writeOutput writes data next to path and renames it into place.
func writeOutput(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".imgtool-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func baseName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return filepath.Base(path)
}

func printResult(cmd *cobra.Command, input, output string, inputSize int, res *targetsize.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Input:       %s (%s)\n", input, formatBytes(inputSize))
	fmt.Fprintf(out, "  Output:      %s (%s)\n", output, formatBytes(res.Size))
	fmt.Fprintf(out, "  Dimensions:  %dx%d\n", res.Width, res.Height)
	fmt.Fprintf(out, "  Quality:     %d\n", res.Quality)
	if res.Scale != 1 {
		fmt.Fprintf(out, "  Scale:       %.3f\n", res.Scale)
	}
	if res.Iterations > 0 {
		fmt.Fprintf(out, "  Iterations:  %d\n", res.Iterations)
	}
	fmt.Fprintln(out)
}

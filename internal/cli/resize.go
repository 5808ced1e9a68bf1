package cli

import (
	"github.com/harliandi/go-convert/internal/converter"
	"github.com/harliandi/go-convert/internal/history"
	"github.com/spf13/cobra"
)

type resizeOptions struct {
	output   string
	width    int
	height   int
	targetKB int
}

func newResizeCmd(a *app) *cobra.Command {
	opts := &resizeOptions{}

	cmd := &cobra.Command{
		Use:   "resize <input>",
		Short: "Resize an image and grow it towards a target size",
		Long: `resize optionally scales the image to --width and/or --height (one
dimension keeps the aspect ratio), then encodes at maximum quality and
upscales further when the result is still smaller than --target-kb.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			data, err := readInput(input)
			if err != nil {
				return err
			}

			res, err := a.converter.Resize(data, converter.ResizeRequest{
				Width:       max(opts.width, 0),
				Height:      max(opts.height, 0),
				TargetBytes: kbToBytes(opts.targetKB),
			})
			if err != nil {
				return err
			}

			output := opts.output
			if output == "" {
				output = defaultOutput(input, "resized")
			}
			if err := writeOutput(output, res.Data); err != nil {
				return err
			}
			if err := a.recordHistory(history.ActionIncreaseSize, input, output); err != nil {
				return err
			}

			printResult(cmd, input, output, len(data), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path (default <input>_resized.jpg)")
	cmd.Flags().IntVar(&opts.width, "width", 0, "output width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", 0, "output height in pixels")
	cmd.Flags().IntVar(&opts.targetKB, "target-kb", 0, "target size in KB (0 encodes once at quality 95)")
	return cmd
}

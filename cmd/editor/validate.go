package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/pipeline"
)

func newValidateCmd() *cobra.Command {
	var (
		ops    string
		width  int
		height int
	)

	cmd := &cobra.Command{
		Use:   "validate --ops <ops.json> --width <px> --height <px>",
		Short: "Check a batch against an image size without running it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, err := loadOps(ops, "")
			if err != nil {
				return err
			}
			return validateSteps(cmd.OutOrStdout(), domain.Geometry{Width: width, Height: height}, steps)
		},
	}

	cmd.Flags().StringVar(&ops, "ops", "", "JSON file with the transformations")
	cmd.Flags().IntVar(&width, "width", 0, "Width of the image the batch starts from")
	cmd.Flags().IntVar(&height, "height", 0, "Height of the image the batch starts from")
	_ = cmd.MarkFlagRequired("ops")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

// validateSteps reports every step, stopping the geometry walk at the first
// invalid one since later steps would be checked against the wrong size.
func validateSteps(w io.Writer, start domain.Geometry, steps []domain.Descriptor) error {
	if start.IsZero() {
		return fmt.Errorf("width and height must be positive")
	}
	q := pipeline.NewQueue(start)
	for i, d := range steps {
		before := q.Geometry()
		if _, err := q.Enqueue(d); err != nil {
			fmt.Fprintf(w, "step %d %-18s invalid: %v\n", i, d, err)
			return fmt.Errorf("step %d: %w", i, err)
		}
		after := q.Geometry()
		fmt.Fprintf(w, "step %d %-18s ok %dx%d -> %dx%d\n", i, d, before.Width, before.Height, after.Width, after.Height)
	}
	fmt.Fprintf(w, "%d steps valid\n", len(steps))
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/config"
	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/processor"
	"github.com/yokitheyo/imageeditor/internal/pipeline"
	"github.com/yokitheyo/imageeditor/internal/session"
)

type applyOptions struct {
	in        string
	out       string
	ops       string
	quality   int
	watermark string
	timeout   time.Duration
}

func newApplyCmd() *cobra.Command {
	var opts applyOptions

	cmd := &cobra.Command{
		Use:   "apply --in <file> --out <file> --ops <ops.json>",
		Short: "Run a batch of transformations on a local file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApply(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.in, "in", "", "Input image")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output image")
	cmd.Flags().StringVar(&opts.ops, "ops", "", "JSON file with the transformations")
	cmd.Flags().IntVar(&opts.quality, "quality", 90, "Default encoder quality")
	cmd.Flags().StringVar(&opts.watermark, "watermark", "Pik-Cha", "Text for watermark steps without one")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Give up after this long")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("ops")
	return cmd
}

func runApply(ctx context.Context, opts applyOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := os.ReadFile(opts.in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	geometry, format, err := processor.Inspect(data)
	if err != nil {
		return err
	}
	steps, err := loadOps(opts.ops, opts.watermark)
	if err != nil {
		return err
	}
	steps = withOutputFormat(steps, opts.out)

	exec := processor.NewImageProcessor(&config.ProcessingConfig{OutputQuality: opts.quality})
	s := session.New(uuid.NewString(), session.NewPipelineCommitter(pipeline.New(exec)), 0)

	img := domain.Image{
		ID:               uuid.NewString(),
		OriginalFilename: filepath.Base(opts.in),
		OriginalPath:     opts.in,
		Path:             opts.in,
		Format:           format.Canonical(),
		Size:             int64(len(data)),
		Width:            geometry.Width,
		Height:           geometry.Height,
		Version:          1,
		Status:           domain.StatusReady,
	}
	if err := s.Load(img, domain.Asset{Data: data, Geometry: geometry, Format: format.Canonical()}); err != nil {
		return err
	}
	for i, d := range steps {
		if _, err := s.Enqueue(d); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	committed, err := s.Commit(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, s.Asset().Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	zlog.Logger.Info().
		Str("out", opts.out).
		Int("steps", len(steps)).
		Int("width", committed.Width).
		Int("height", committed.Height).
		Str("format", string(committed.Format)).
		Msg("batch applied")
	fmt.Printf("%s: %dx%d %s (%d steps)\n", opts.out, committed.Width, committed.Height, committed.Format, len(steps))
	return nil
}

// withOutputFormat appends a format step when the output extension asks for
// a format the batch does not already end in.
func withOutputFormat(steps []domain.Descriptor, out string) []domain.Descriptor {
	target := domain.ParseFormat(strings.TrimPrefix(filepath.Ext(out), "."))
	if !target.IsSupported() {
		return steps
	}
	for i := len(steps) - 1; i >= 0; i-- {
		switch p := steps[i].Params().(type) {
		case domain.FormatParams:
			if p.Target.Canonical() == target.Canonical() {
				return steps
			}
			return append(steps, domain.NewFormat(target))
		case domain.RemoveBackgroundParams:
			if target.Canonical() == domain.FormatPNG {
				return steps
			}
			return append(steps, domain.NewFormat(target))
		}
	}
	return append(steps, domain.NewFormat(target))
}

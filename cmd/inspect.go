package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"family-atlas/importance"
	"family-atlas/media"
	"family-atlas/metadata"
	"family-atlas/model"
)

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Show how each file would be triaged",
		Long: `Prints the kind, importance scores, capture year and GPS position of
each file without moving anything.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			filter := importance.NewFilter(log)
			for _, path := range args {
				inspect(cmd.OutOrStdout(), filter, path)
			}
			return nil
		},
	}
}

func inspect(out io.Writer, filter *importance.Filter, path string) {
	kind := media.Classify(path)
	fmt.Fprintf(out, "%s\n  kind: %s (%s)\n", path, kind, media.TypeOf(path))
	if kind != model.KindImage {
		return
	}

	scores, err := filter.Assess(path)
	if err != nil {
		fmt.Fprintf(out, "  important: false (%v)\n", err)
	} else {
		verdict := "kept"
		if reason := scores.Reason(); reason != "" {
			verdict = reason
		}
		fmt.Fprintf(out, "  important: %t (%s)\n", scores.Important(), verdict)
		fmt.Fprintf(out, "  blur: %.1f  colors: %d  saturation: %.1f  edges: %.3f\n",
			scores.Blur, scores.UniqueColors, scores.MeanSaturation, scores.EdgeDensity)
	}

	if !media.IsScannable(path) {
		return
	}
	tags, ok := metadata.Read(path)
	if !ok {
		fmt.Fprintf(out, "  exif: none\n")
		return
	}
	fmt.Fprintf(out, "  year: %s\n", metadata.YearOrNoDate(tags))
	if lat, lon, ok := metadata.ExtractGPS(tags); ok {
		fmt.Fprintf(out, "  gps: %s, %s\n", formatCoord(lat), formatCoord(lon))
	} else {
		fmt.Fprintf(out, "  gps: none\n")
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

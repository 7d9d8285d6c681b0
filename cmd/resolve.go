package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"family-atlas/geo"
	"family-atlas/model"
)

func newResolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "resolve LAT LON",
		Short:   "Resolve coordinates to the folder name they would be filed under",
		Example: `  family-atlas resolve 35.1796 129.0756`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("latitude %q: %w", args[0], err)
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("longitude %q: %w", args[1], err)
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			r := newResolver(cfg, log)
			place := r.Resolve(cmd.Context(), lat, lon)
			if d, ok := geo.DistanceKm(r.Home, model.Coordinates{Lat: lat, Lon: lon}); ok {
				log.Debug("distance from home", zap.Float64("km", d))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", geo.Sanitize(place))
			return nil
		},
	}
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"family-atlas/config"
	"family-atlas/geo"
	"family-atlas/importance"
	"family-atlas/model"
	"family-atlas/organizer"
	"family-atlas/pipeline"
	"family-atlas/storage"
	"family-atlas/worker"
)

func newOrganizeCmd(opts *options) *cobra.Command {
	var (
		mode   string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "organize SOURCE",
		Short: "Filter, categorize and index a folder of photos",
		Long: `Moves every file of SOURCE into the library.

Videos go to Photos/{Year}/Videos, unimportant images to Photos/NONESSENTIAL
and images carrying GPS tags to Photos/{Year}/{Place}. The library is then
rescanned and the result saved to the snapshot file.`,
		Example: `  # Organize a camera dump into ~/Pictures/atlas
  family-atlas organize ~/Downloads/camera --base ~/Pictures/atlas

  # Only rebuild the index of an existing library
  family-atlas organize --mode scan_only --base ~/Pictures/atlas`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := pipeline.ParseMode(mode)
			if err != nil {
				return err
			}
			var source string
			if len(args) == 1 {
				source, err = filepath.Abs(args[0])
				if err != nil {
					return err
				}
			}
			if source == "" && m == pipeline.ModeFull {
				return fmt.Errorf("organize: SOURCE is required in %s mode", m)
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if strict {
				cfg.Strict = true
			}
			return runOrganize(cmd.Context(), cmd.OutOrStdout(), cfg, source, m)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(pipeline.ModeFull), "Run mode: full or scan_only")
	cmd.Flags().BoolVar(&strict, "strict", false, "Refuse to run when SOURCE holds files that are neither images nor videos")

	return cmd
}

func newScanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Rebuild the location index from the library folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runOrganize(cmd.Context(), cmd.OutOrStdout(), cfg, "", pipeline.ModeScanOnly)
		},
	}
}

func runOrganize(ctx context.Context, out io.Writer, cfg *config.Config, source string, mode pipeline.Mode) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return err
	}

	o, stop := newOrganizer(ctx, cfg, base, log)
	defer stop()

	groups, err := o.Process(ctx, source, mode, func(p pipeline.Progress) {
		fmt.Fprintf(out, "[%3d%%] %s\n", p.Percent, p.Message)
	})
	if err != nil {
		return err
	}
	printSummary(out, groups)
	return nil
}

// newOrganizer wires the full stack: resolver, filter, storage, pipeline,
// worker and snapshot store. stop shuts the worker down.
func newOrganizer(ctx context.Context, cfg *config.Config, base string, log *zap.Logger) (*organizer.Organizer, func()) {
	p := pipeline.New(importance.NewFilter(log), newResolver(cfg, log), storage.NewLocalPhotoStorage(log), log)
	p.Strict = cfg.Strict

	ctx, cancel := context.WithCancel(ctx)
	w := worker.New(p, cfg.QueueSize, log)
	w.Start(ctx)

	o := organizer.New(base, w, storage.NewLocalPhotoStorage(log), storage.NewFileSnapshotStore(cfg.Snapshot()), log)
	return o, cancel
}

func newResolver(cfg *config.Config, log *zap.Logger) *geo.Resolver {
	client := geo.NewNominatimClient(cfg.GeocoderURL, cfg.UserAgent)
	if cfg.GeocodeInterval > 0 {
		client.Limiter = rate.NewLimiter(rate.Every(cfg.GeocodeInterval), 1)
	} else {
		client.Limiter = rate.NewLimiter(rate.Inf, 1)
	}

	r := geo.NewResolver(client, geo.NewCache(), log)
	r.Home = model.Coordinates{Lat: cfg.HomeLat, Lon: cfg.HomeLon}
	r.HomeRadiusKm = cfg.HomeRadiusKm
	r.Timeout = cfg.GeocodeTimeout
	return r
}

func printSummary(out io.Writer, groups []model.LocationGroup) {
	photos := 0
	for _, g := range groups {
		photos += len(g.Photos)
		fmt.Fprintf(out, "%-32s %4d photos  %s\n", g.ID, len(g.Photos), g.FolderPath)
	}
	fmt.Fprintf(out, "%d locations, %d photos\n", len(groups), photos)
}

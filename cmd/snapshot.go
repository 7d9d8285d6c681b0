package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"family-atlas/config"
	"family-atlas/organizer"
	"family-atlas/storage"
)

func newSnapshotCmd(opts *options) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Show the saved library snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store := storage.NewFileSnapshotStore(cfg.Snapshot())
			snap, err := store.Load()
			if errors.Is(err, storage.ErrNoSnapshot) {
				return fmt.Errorf("no snapshot at %s, run organize or scan first", store.Path)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:      %s\n", store.Path)
			fmt.Fprintf(out, "version:   %s\n", snap.Version)
			fmt.Fprintf(out, "saved at:  %s\n", snap.SavedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "base path: %s\n", snap.BasePath)
			fmt.Fprintf(out, "locations: %d\n", snap.TotalLocations)
			fmt.Fprintf(out, "photos:    %d\n", snap.TotalPhotos)
			if list {
				printSummary(out, snap.Groups())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List every location")

	return cmd
}

// loadLibrary restores an organizer from the snapshot file. Library edits
// need no worker.
func loadLibrary(cfg *config.Config) (*organizer.Organizer, func(), error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, nil, err
	}
	o := organizer.New(base, nil, storage.NewLocalPhotoStorage(log), storage.NewFileSnapshotStore(cfg.Snapshot()), log)
	if err := o.Load(); err != nil {
		_ = log.Sync()
		return nil, nil, fmt.Errorf("load library: %w", err)
	}
	return o, func() { _ = log.Sync() }, nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"family-atlas/organizer"
)

// newLocationCmd groups the edits that work on the saved library.
func newLocationCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Browse and edit the saved location groups",
	}

	cmd.AddCommand(
		libraryCmd(opts, "photos ID [SUBFOLDER]", "List the photos of a location or one of its subfolders", cobra.RangeArgs(1, 2),
			func(cmd *cobra.Command, o *organizer.Organizer, args []string) error {
				var sub string
				if len(args) == 2 {
					sub = args[1]
				}
				photos, err := o.FolderPhotos(args[0], sub)
				if err != nil {
					return err
				}
				for _, p := range photos {
					fmt.Fprintln(cmd.OutOrStdout(), p.URL)
				}
				return nil
			}),
		libraryCmd(opts, "folders ID", "List the subfolders of a location", cobra.ExactArgs(1),
			func(cmd *cobra.Command, o *organizer.Organizer, args []string) error {
				subs, err := o.Subfolders(args[0])
				if err != nil {
					return err
				}
				for _, s := range subs {
					fmt.Fprintln(cmd.OutOrStdout(), s)
				}
				return nil
			}),
		libraryCmd(opts, "mkdir ID NAME", "Create a subfolder inside a location", cobra.ExactArgs(2),
			func(cmd *cobra.Command, o *organizer.Organizer, args []string) error {
				dir, err := o.CreateSubfolder(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dir)
				return nil
			}),
		libraryCmd(opts, "rename ID NAME", "Change the display name of a location", cobra.ExactArgs(2),
			func(cmd *cobra.Command, o *organizer.Organizer, args []string) error {
				return o.RenameLocation(args[0], args[1])
			}),
		libraryCmd(opts, "delete ID PHOTO", "Delete a photo from disk and from the library", cobra.ExactArgs(2),
			func(cmd *cobra.Command, o *organizer.Organizer, args []string) error {
				return o.DeletePhoto(args[0], args[1])
			}),
		libraryCmd(opts, "set-aside ID PHOTO", "Move a photo to Photos/NONESSENTIAL", cobra.ExactArgs(2),
			func(cmd *cobra.Command, o *organizer.Organizer, args []string) error {
				path, err := o.MoveToNonessential(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}),
	)

	return cmd
}

func libraryCmd(opts *options, use, short string, args cobra.PositionalArgs, run func(*cobra.Command, *organizer.Organizer, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			o, done, err := loadLibrary(cfg)
			if err != nil {
				return err
			}
			defer done()
			return run(cmd, o, args)
		},
	}
}

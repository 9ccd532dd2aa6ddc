package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aweris/pinboard"
)

var (
	putType        string
	putTitle       string
	putDescription string
	putUnversioned bool
)

var putCmd = &cobra.Command{
	Use:   "put <pin> <file>...",
	Short: "Publish a new version of a pin",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPut,
}

func init() {
	putCmd.Flags().StringVar(&putType, "type", "file", "payload type tag")
	putCmd.Flags().StringVar(&putTitle, "title", "", "version title")
	putCmd.Flags().StringVar(&putDescription, "description", "", "version description")
	putCmd.Flags().BoolVar(&putUnversioned, "unversioned", false, "overwrite the single slot instead of appending")
	rootCmd.AddCommand(putCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	b, err := openBoard()
	if err != nil {
		return err
	}

	meta := pinboard.Meta{
		Type:        putType,
		Title:       putTitle,
		Description: putDescription,
	}

	var opts []pinboard.StoreOption
	if putUnversioned {
		opts = append(opts, pinboard.StoreVersioned(false))
	}

	log.Infof("storing %s (%d files)...", args[0], len(args)-1)
	name, err := b.Store(cmd.Context(), args[0], args[1:], meta, opts...)
	if err != nil {
		return err
	}

	log.Infof("stored %s", name)
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <pin> [version]",
	Short: "Fetch a pin version into the local cache",
	Long:  "Download every file of a pin version (latest if omitted) and print the local directory.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	version := ""
	if len(args) > 1 {
		version = args[1]
	}

	b, err := openBoard()
	if err != nil {
		return err
	}

	log.Infof("fetching %s...", args[0])
	lm, err := b.Fetch(cmd.Context(), args[0], version)
	if err != nil {
		return err
	}

	log.Infof("fetched %s@%s (%d files)", lm.Name, lm.Version, len(lm.Meta.File))
	fmt.Println(lm.Dir)
	return nil
}

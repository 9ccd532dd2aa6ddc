package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/pinboard"
)

var infoCmd = &cobra.Command{
	Use:   "info <pin> [version]",
	Short: "Show a version's metadata record",
	Long:  "Print the metadata record of a pin version (latest if omitted) as YAML.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	version := ""
	if len(args) > 1 {
		version = args[1]
	}

	b, err := openBoard()
	if err != nil {
		return err
	}

	lm, err := b.ReadMeta(cmd.Context(), args[0], version)
	if err != nil {
		return err
	}

	fmt.Printf("# %s@%s\n", lm.Name, lm.Version)
	out, err := pinboard.EncodeMeta(lm.Meta)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

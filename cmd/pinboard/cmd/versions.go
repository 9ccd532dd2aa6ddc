package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <pin>",
	Short: "List a pin's versions, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersions,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	b, err := openBoard()
	if err != nil {
		return err
	}

	versions, err := b.Versions(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if len(versions) == 0 {
		fmt.Println("(no versions)")
		return nil
	}
	for _, v := range versions {
		fmt.Println(v)
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pins on the board",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	b, err := openBoard()
	if err != nil {
		return err
	}

	pins, err := b.List(cmd.Context())
	if err != nil {
		return err
	}

	if len(pins) == 0 {
		fmt.Println("(no pins)")
		return nil
	}
	for _, name := range pins {
		fmt.Println(name)
	}
	return nil
}

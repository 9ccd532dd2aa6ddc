package cmd

import (
	"github.com/spf13/cobra"
)

var rmVersion string

var rmCmd = &cobra.Command{
	Use:   "rm <pin>",
	Short: "Delete a pin or one of its versions",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

func init() {
	rmCmd.Flags().StringVar(&rmVersion, "version", "", "delete only this version")
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	b, err := openBoard()
	if err != nil {
		return err
	}

	if rmVersion != "" {
		if err := b.DeleteVersion(cmd.Context(), args[0], rmVersion); err != nil {
			return err
		}
		log.Infof("deleted %s@%s", args[0], rmVersion)
		return nil
	}

	if err := b.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	log.Infof("deleted %s", args[0])
	return nil
}

package commands

import (
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every ledger block as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, stores, service, _, err := openService(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		return printJSON(cmd, service.Blocks())
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

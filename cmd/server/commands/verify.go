package commands

import (
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the stored ledger and print the report",
	Long:  "Loads the stored ledger, checks linkage and block hashes, and prints the report as JSON. Exits with status 1 when the ledger is invalid.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, stores, _, report, err := openService(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		if err := printJSON(cmd, report); err != nil {
			return err
		}
		return report.Err()
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

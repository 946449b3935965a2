package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCacheCmd = &cobra.Command{
	Use:   "reset-cache",
	Short: "Forget cached credentials and identity",
	Long: `Forget the cached access token pair and the cached account id.
The next command that needs authentication runs the PIN flow again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := db.ResetCache(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cached credentials cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCacheCmd)
}

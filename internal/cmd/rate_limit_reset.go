package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	rateLimitResetAll      bool
	rateLimitResetEndpoint string
	rateLimitResetYes      bool
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset persisted rate limit windows",
	Long: `Reset persisted rate limit windows. Resetting only clears the local
bookkeeping; the server's own quota is unaffected, so a reset does not
grant more requests than the API will actually accept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint := strings.TrimSpace(rateLimitResetEndpoint)
		if rateLimitResetAll && endpoint != "" {
			return errors.New("--all and --endpoint are mutually exclusive")
		}
		if !rateLimitResetAll && endpoint == "" {
			return errors.New("specify --endpoint or --all")
		}
		if rateLimitResetAll && !rateLimitResetYes {
			return errors.New("--all requires --yes")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		deleted, err := db.ResetRateLimitStates(cmd.Context(), endpoint)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d rate limit window(s)\n", deleted)
		return nil
	},
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset all endpoints")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetEndpoint, "endpoint", "", "Reset a single endpoint (exact match)")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
}

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/chirpwire/chirpwire/internal/output"
)

var rateLimitListOutput string

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput)
		if err != nil {
			return err
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

		states, err := db.ListRateLimitStates(cmd.Context())
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(states, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		}

		lines := []string{"Rate Limits", ""}
		if len(states) == 0 {
			lines = append(lines, "(no persisted rate limit state)")
			_, _ = fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(strings.Join(lines, "\n"), 0))
			return nil
		}

		for _, state := range states {
			lines = append(lines, fmt.Sprintf("%s [%s]: remaining=%d resets=%s",
				state.Endpoint, state.Scope, state.RequestsRemaining,
				state.ResetAt.UTC().Format(time.RFC3339)))
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}

package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/chirpwire/chirpwire/internal/core"
	"github.com/chirpwire/chirpwire/internal/core/limits"
)

var rateLimitShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the built-in endpoint limit table",
	RunE: func(cmd *cobra.Command, args []string) error {
		limitTable := limits.Default()

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Endpoint", "User Limit", "App Limit", "Max Results"})

		for _, endpoint := range limitTable.Endpoints() {
			entry, ok := limitTable.Lookup(endpoint)
			if !ok {
				continue
			}
			maxResults := "-"
			if entry.MaxResults > 0 {
				maxResults = fmt.Sprintf("%d", entry.MaxResults)
			}
			t.AppendRow(table.Row{
				endpoint,
				limitLabel(entry.UserLimit),
				limitLabel(entry.AppLimit),
				maxResults,
			})
		}

		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

func limitLabel(limit *core.RateLimit) string {
	if limit == nil {
		return "-"
	}
	return fmt.Sprintf("%d / %s", limit.Rate, limit.Period)
}

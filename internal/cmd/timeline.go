package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chirpwire/chirpwire/internal/output"
)

var (
	timelineOutput string
	timelineLimit  int
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show your home timeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(timelineOutput)
		if err != nil {
			return err
		}

		client, db, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		page, err := client.HomeTimeline(cmd.Context(), timelineLimit)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatTweets(page)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	timelineCmd.Flags().StringVar(&timelineOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	timelineCmd.Flags().IntVar(&timelineLimit, "limit", 10, "Maximum number of tweets to return")
	rootCmd.AddCommand(timelineCmd)
}

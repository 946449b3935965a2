package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chirpwire/chirpwire/internal/output"
)

var (
	searchOutput string
	searchLimit  int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search recent tweets",
	Long: `Search recent tweets matching a query. The query is automatically
restricted to English originals (retweets are excluded).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(searchOutput)
		if err != nil {
			return err
		}

		client, db, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		page, err := client.SearchTweets(cmd.Context(), args[0], searchLimit)
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
	searchCmd.Flags().StringVar(&searchOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of tweets to return")
	rootCmd.AddCommand(searchCmd)
}

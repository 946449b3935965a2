package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chirpwire/chirpwire/internal/output"
)

var (
	tweetsOutput string
	tweetsLimit  int
)

var tweetsCmd = &cobra.Command{
	Use:   "tweets <username>",
	Short: "Show a user's recent tweets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(tweetsOutput)
		if err != nil {
			return err
		}

		client, db, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		user, err := client.GetUserByUsername(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		page, err := client.GetUserTweets(cmd.Context(), user.ID, tweetsLimit)
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
	tweetsCmd.Flags().StringVar(&tweetsOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	tweetsCmd.Flags().IntVar(&tweetsLimit, "limit", 10, "Maximum number of tweets to return")
	rootCmd.AddCommand(tweetsCmd)
}

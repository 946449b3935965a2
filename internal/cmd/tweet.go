package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chirpwire/chirpwire/internal/output"
)

var tweetOutput string

var tweetCmd = &cobra.Command{
	Use:   "tweet <id>",
	Short: "Show a single tweet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(tweetOutput)
		if err != nil {
			return err
		}

		client, db, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		tweet, err := client.GetTweet(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatTweet(tweet)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	tweetCmd.Flags().StringVar(&tweetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	rootCmd.AddCommand(tweetCmd)
}

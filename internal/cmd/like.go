package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var likeCmd = &cobra.Command{
	Use:   "like <tweet-id>",
	Short: "Like a tweet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, db, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := client.LikeTweet(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Liked tweet %s\n", args[0])
		return nil
	},
}

var unlikeCmd = &cobra.Command{
	Use:   "unlike <tweet-id>",
	Short: "Remove a like from a tweet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, db, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := client.UnlikeTweet(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unliked tweet %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(unlikeCmd)
}

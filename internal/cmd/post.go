package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chirpwire/chirpwire/internal/observability"
	"github.com/chirpwire/chirpwire/internal/output"
	"github.com/chirpwire/chirpwire/internal/twitter"
)

var (
	postOutput  string
	postMedia   string
	postReplyTo string
)

var postCmd = &cobra.Command{
	Use:   "post <text>",
	Short: "Post a tweet",
	Long: `Post a tweet, optionally with a media attachment or as a reply.

Media files are uploaded through the chunked upload protocol before the
tweet itself is created.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(postOutput)
		if err != nil {
			return err
		}

		client, db, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		created, err := client.CreateTweet(cmd.Context(), twitter.CreateTweetRequest{
			Text:      args[0],
			MediaPath: postMedia,
			ReplyToID: postReplyTo,
		})
		if err != nil {
			return err
		}

		// Re-fetch for the full field set; the create response only
		// carries id and text. Quota for the read may be gone, in which
		// case the created tweet is still reported.
		tweet, err := client.GetTweet(cmd.Context(), created.ID)
		if err != nil {
			var limited *twitter.RateLimitedError
			if !errors.As(err, &limited) && !errors.Is(err, twitter.ErrRateLimitExceeded) {
				return err
			}
			observability.CLILogger.Warn("posted, but could not re-fetch the tweet",
				zap.String("tweet_id", created.ID), zap.Error(err))
			tweet = created
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
	postCmd.Flags().StringVar(&postOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	postCmd.Flags().StringVar(&postMedia, "media", "", "Attach a media file (max 15 MiB)")
	postCmd.Flags().StringVar(&postReplyTo, "reply-to", "", "Post as a reply to the given tweet id")
	rootCmd.AddCommand(postCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chirpwire/chirpwire/internal/output"
)

var userOutput string

var userCmd = &cobra.Command{
	Use:   "user <username>",
	Short: "Show a user's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(userOutput)
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

		rendered, err := output.NewFormatter(format).FormatUser(user)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	userCmd.Flags().StringVar(&userOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	rootCmd.AddCommand(userCmd)
}

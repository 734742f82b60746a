package cmd

import (
	"context"
	"fmt"
	"time"

	"yatube/middleware"
	"yatube/models"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Print a signed access token for an existing user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		be, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer be.close()

		user, err := be.users.GetByUsername(ctx, args[0])
		if err != nil {
			return fmt.Errorf("user %q: %w", args[0], err)
		}
		token, err := middleware.IssueToken(cfg.JWTSecret, models.Principal{UserID: user.ID, Username: user.Username}, cfg.TokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

package cmd

import (
	"errors"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tokensession/internal/authn"
)

func newRefreshCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new access token",
		Long: `Exchange the stored refresh token for a new access token and store it.

A rejected refresh token ends the session; log in again afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openSession(cmd, global)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.coordinator.UseLocalToken(cmd.Context()); err != nil {
				return err
			}

			stop := startSpinner(env.quiet, "Refreshing token...")
			err = env.coordinator.Refresh(cmd.Context())
			stop()
			if errors.Is(err, authn.ErrNoRefreshToken) {
				return &AuthRequiredError{Endpoint: env.coordinator.Endpoint()}
			}
			if err != nil {
				return err
			}

			env.printf("%s Token refreshed for %s\n", text.FgGreen.Sprint("✓"), env.coordinator.Username())
			if rec := env.coordinator.Token(); rec != nil {
				env.printf("  Token expires: %s\n", rec.AccessTokenExpiry.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

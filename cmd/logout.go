package cmd

import (
	"errors"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tokensession/internal/authn"
)

func newLogoutCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the access token and clear the stored session",
		Long: `Revoke the stored access token on the server and remove the stored session.

The local session is cleared even when the server cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openSession(cmd, global)
			if err != nil {
				return err
			}
			defer env.Close()

			// The stored token has to be loaded to be revoked. A session that
			// cannot be refreshed any more is still cleared below.
			_ = env.coordinator.UseLocalToken(cmd.Context())

			err = env.coordinator.Logout(cmd.Context())
			if errors.Is(err, authn.ErrRevokeFailed) {
				env.printf("%s Logged out locally; the server did not confirm revocation\n", text.FgYellow.Sprint("!"))
				return err
			}
			if err != nil {
				return err
			}
			env.printf("%s Logged out from %s\n", text.FgGreen.Sprint("✓"), env.coordinator.Endpoint())
			return nil
		},
	}
}

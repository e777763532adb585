package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tokensession/internal/authn"
)

type loginOptions struct {
	username      string
	passwordStdin bool
	noRemember    bool
}

func newLoginCmd(global *globalOptions) *cobra.Command {
	opts := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a username and password",
		Long: `Log in to the configured token endpoint with the password grant.

The resulting session is stored so later commands can resume it. Unless
--no-remember is given the refresh token is stored as well, which lets the
session outlive the access token.

Examples:
  tokensession login -u alice                        # Prompt for the password
  echo "$PASSWORD" | tokensession login -u alice --password-stdin
  tokensession login -u alice --no-remember          # Do not store the refresh token`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Username (prompted for when omitted)")
	cmd.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().BoolVar(&opts.noRemember, "no-remember", false, "Do not store the refresh token")
	return cmd
}

func runLogin(cmd *cobra.Command, global *globalOptions, opts *loginOptions) error {
	env, err := openSession(cmd, global)
	if err != nil {
		return err
	}
	defer env.Close()

	reader := bufio.NewReader(cmd.InOrStdin())

	username := opts.username
	if username == "" {
		username, err = promptLine(reader, cmd.ErrOrStderr(), "Username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}
	if username == "" {
		return errors.New("username must not be empty")
	}

	var password string
	if opts.passwordStdin {
		password, err = readLine(reader)
		if err != nil {
			return fmt.Errorf("failed to read password from stdin: %w", err)
		}
	} else {
		password, err = promptPassword(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	stop := startSpinner(env.quiet, "Logging in to "+env.coordinator.Endpoint()+"...")
	err = env.coordinator.Login(cmd.Context(), username, password, authn.WithRememberMe(!opts.noRemember))
	stop()
	if err != nil {
		return err
	}

	env.printf("%s Logged in as %s\n", text.FgGreen.Sprint("✓"), env.coordinator.Username())
	if rec := env.coordinator.Token(); rec != nil && !rec.AccessTokenExpiry.IsZero() {
		env.printf("  Token expires: %s\n", rec.AccessTokenExpiry.Local().Format(time.RFC1123))
	}
	if opts.noRemember {
		env.println("  Refresh token not stored; log in again when the token expires.")
	}
	return nil
}

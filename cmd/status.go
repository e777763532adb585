package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tokensession/internal/session"
	"tokensession/pkg/auth"
	"tokensession/pkg/logging"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func newStatusCmd(global *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the stored session",
		Long: `Show the state of the stored session.

The stored session is resumed first, which refreshes an expired access token
when a refresh token was stored. Token values are never printed.

Examples:
  tokensession status             # Table output
  tokensession status -o json     # Machine-readable output`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputTable && output != outputJSON {
				return fmt.Errorf("unsupported output format %q (use %s or %s)", output, outputTable, outputJSON)
			}

			env, err := openSession(cmd, global)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.coordinator.UseLocalToken(cmd.Context()); err != nil {
				logging.Warn("CLI", "Could not resume stored session: %v", err)
			}

			status := buildStatus(env)
			if output == outputJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}
			renderStatus(cmd, status, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table or json")
	return cmd
}

func buildStatus(env *sessionEnv) auth.Status {
	c := env.coordinator
	status := auth.Status{
		Endpoint:      c.Endpoint(),
		State:         c.State().String(),
		Authenticated: c.LoggedIn(),
		Username:      c.Username(),
	}

	rec := c.Token()
	if rec == nil {
		return status
	}
	status.RefreshAvailable = rec.HasRefreshToken()
	status.RememberMe = rec.RememberMe
	if rec.HasAccessToken() {
		status.SetExpiry(rec.AccessTokenExpiry)
		status.SetIdentityFromToken(rec.AccessToken)
	}
	if status.Username == "" {
		status.Username = rec.Username
	}
	return status
}

func renderStatus(cmd *cobra.Command, status auth.Status, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("KEY"), text.FgHiCyan.Sprint("VALUE")})

	t.AppendRow(table.Row{"Endpoint", status.Endpoint})
	t.AppendRow(table.Row{"State", colorState(status.State)})
	if status.Username != "" {
		t.AppendRow(table.Row{"User", status.Username})
	}
	if status.ExpiresAt != nil {
		t.AppendRow(table.Row{"Expires", formatExpiry(now, *status.ExpiresAt)})
	}

	refresh := text.FgYellow.Sprint("Not stored")
	if status.RefreshAvailable {
		refresh = text.FgGreen.Sprint("Available")
	}
	t.AppendRow(table.Row{"Refresh", refresh})

	if status.Identity != nil {
		if status.Identity.Subject != "" {
			t.AppendRow(table.Row{"Subject", status.Identity.Subject})
		}
		if status.Identity.Issuer != "" {
			t.AppendRow(table.Row{"Issuer", status.Identity.Issuer})
		}
	}

	t.Render()
}

func colorState(state string) string {
	switch state {
	case session.LoggedIn.String():
		return text.FgGreen.Sprint(state)
	case session.LoggedOut.String():
		return text.FgYellow.Sprint(state)
	default:
		return state
	}
}

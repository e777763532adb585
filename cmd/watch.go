package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tokensession/internal/session"
)

func newWatchCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive and print state changes",
		Long: `Resume the stored session and keep it alive in the foreground.

The access token is refreshed ahead of its expiry and every state change is
printed. The command ends on interrupt, or when the session is lost and no
refresh token is left to recover it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := openSession(cmd, global)
			if err != nil {
				return err
			}
			defer env.Close()

			return runWatch(ctx, env)
		},
	}
}

func runWatch(ctx context.Context, env *sessionEnv) error {
	c := env.coordinator

	states := make(chan session.State, 16)
	unsubscribe := c.OnStateChanged(func(s session.State) {
		select {
		case states <- s:
		default:
		}
	})
	defer unsubscribe()

	if err := env.resume(ctx); err != nil {
		return err
	}
	printState(env, c.State(), c.Username())

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-states:
			printState(env, s, c.Username())
			if s == session.LoggedOut && !c.Token().HasRefreshToken() {
				return &AuthRequiredError{Endpoint: c.Endpoint()}
			}
		}
	}
}

// printState is essential output and ignores --quiet.
func printState(env *sessionEnv, s session.State, username string) {
	line := time.Now().Format(time.RFC3339) + " " + colorState(s.String())
	if username != "" {
		line += " " + username
	}
	_, _ = env.out.Write([]byte(line + "\n"))
}

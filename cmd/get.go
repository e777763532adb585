package cmd

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	textutil "tokensession/pkg/strings"
)

func newGetCmd(global *globalOptions) *cobra.Command {
	var headers []string

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Send an authenticated GET request and print the response body",
		Long: `Send a GET request with the session's bearer token and print the body.

The token is only attached when the URL's host is the token endpoint's host.
A 401 response from that host ends the session.

Examples:
  tokensession get https://api.example.com/orders
  tokensession get https://api.example.com/orders -H "Accept: application/json"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openSession(cmd, global)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.resume(cmd.Context()); err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, args[0], nil)
			if err != nil {
				return fmt.Errorf("invalid request URL: %w", err)
			}
			for _, h := range headers {
				name, value, ok := cutHeader(h)
				if !ok {
					return fmt.Errorf("invalid header %q (expected \"Name: value\")", h)
				}
				req.Header.Add(name, value)
			}

			client := env.coordinator.HTTPClient()
			client.Timeout = env.config.HTTPTimeout
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusUnauthorized && !env.coordinator.LoggedIn() {
				return &AuthRequiredError{Endpoint: env.coordinator.Endpoint()}
			}
			if resp.StatusCode >= 400 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("request failed with status %d: %s",
					resp.StatusCode, textutil.Snippet(string(body), textutil.DefaultSnippetLen))
			}

			if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
				return fmt.Errorf("failed to read response body: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra request header (\"Name: value\"), may be repeated")
	return cmd
}

func cutHeader(h string) (string, string, bool) {
	name, value, ok := strings.Cut(h, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

package cmd

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"tokensession/internal/config"
	"tokensession/pkg/oauth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates the command needs a session and none is available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the token endpoint rejected the credentials.
	ExitCodeAuthFailed = 3
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	endpoint   string
	storeType  string
	logLevel   string
	quiet      bool
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "tokensession",
		Short: "Keep an OAuth2 bearer-token session alive",
		Long: `tokensession logs in to an OAuth2 token endpoint with a username and
password, keeps the resulting bearer token fresh with refresh grants and
attaches it to requests sent to the API host.

The session is persisted between invocations, so a later command resumes
where the previous one left off.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
	}

	defaultConfigPath, err := config.GetDefaultConfigPath()
	if err != nil {
		defaultConfigPath = ""
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config-path", defaultConfigPath, "Configuration directory containing config.yaml and stored tokens")
	flags.StringVar(&opts.endpoint, "endpoint", "", "OAuth token endpoint URL (overrides configuration)")
	flags.StringVar(&opts.storeType, "store", "", "Token store backend: file, sqlite or memory (overrides configuration)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides configuration)")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress non-essential output")

	cmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newStatusCmd(opts),
		newRefreshCmd(opts),
		newGetCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It is called by main.main().
func Execute() {
	// A .env file in the working directory may carry the TOKENSESSION_*
	// variables; it is optional.
	_ = godotenv.Load()

	rootCmd.SetVersionTemplate(`{{printf "tokensession version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var authRequired *AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	if oauth.IsAuthRejected(err) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

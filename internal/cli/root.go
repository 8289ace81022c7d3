// Package cli provides the command-line interface for commit-semver.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rescale/commit-semver/internal/config"
	"github.com/rescale/commit-semver/internal/errs"
	"github.com/rescale/commit-semver/internal/logging"
	"github.com/rescale/commit-semver/internal/version"
)

var (
	// Global flags
	cfgFile    string
	envFile    string
	repository string
	apiBaseURL string
	verbose    bool
	debug      bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc

	// lookupEnv is the environment configuration is read from. Tests replace it.
	lookupEnv = config.OSEnv()
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "commit-semver",
		Short: "Semantic versions for CI commits",
		Long: `commit-semver ` + version.Version + ` - Built: ` + version.BuildTime + `
Computes one semantic version per commit in a GitHub Actions pipeline and
recovers it in later stages, so build, release and promote steps agree on
the same string.

  generate        compute the version of the current commit
  commit-version  fetch the version an earlier run published for a commit

The version is printed on stdout. Diagnostics go to stderr.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger
			logger = logging.NewLogger(cmd.ErrOrStderr())
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default ./"+config.DefaultConfigFileName+" if present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Read variables from a .env file (the environment wins)")
	rootCmd.PersistentFlags().StringVar(&repository, "repository", "", "Repository as owner/repo (overrides GITHUB_REPOSITORY)")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "GitHub API base URL (overrides GITHUB_API_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for commit-semver.

  source <(commit-semver completion bash)
  commit-semver completion zsh > "${fpath[1]}/_commit-semver"
  commit-semver completion fish | source`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			default:
				return rootCmd.GenPowerShellCompletion(out)
			}
		},
	}
	rootCmd.AddCommand(completionCmd)

	// Disable default completion command (we're adding our own above)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI. Failures are reported on stderr with their kind.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "received signal %v, cancelling\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	// Clean up signal handler
	signal.Stop(sigChan)
	close(sigChan)

	if err != nil {
		ReportError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newCommitVersionCmd())
}

// ReportError prints the one-line diagnostic of a failed invocation, naming
// the failure kind.
func ReportError(w io.Writer, err error) {
	fmt.Fprintf(w, "error [%s]: %v\n", errs.Kind(err), err)
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the command context, or the signal-aware root context.
func GetContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig assembles the configuration: defaults, INI file, .env file,
// environment, then the global flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	if path := config.ResolveConfigPath(cfgFile, "."); path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
		GetLogger().Debug().Str("path", path).Msg("loaded config file")
	}

	env, err := lookupEnv.WithDotEnv(envFile)
	if err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, env); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("repository") {
		cfg.GitHub.Repository = repository
	}
	if flags.Changed("api-url") {
		cfg.GitHub.APIURL = apiBaseURL
	}
	return cfg, nil
}

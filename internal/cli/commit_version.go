package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/rescale/commit-semver/internal/config"
	"github.com/rescale/commit-semver/internal/github"
	ihttp "github.com/rescale/commit-semver/internal/http"
	"github.com/rescale/commit-semver/internal/locator"
	"github.com/rescale/commit-semver/internal/output"
)

func newCommitVersionCmd() *cobra.Command {
	var (
		commitSHA         string
		artifactName      string
		workflowName      string
		anyWorkflow       bool
		includeInProgress bool
		maxPages          int
		outputFile        string
	)

	cmd := &cobra.Command{
		Use:   "commit-version",
		Short: "Fetch the version an earlier run published for a commit",
		Long: `Fetch the version an earlier workflow run published for a commit.

The most recent successful run of the workflow for the commit is looked up
through the GitHub API and its version artifact is downloaded. If that run
has no such artifact the command fails; older runs are not consulted.

Requires GITHUB_REPOSITORY and a GITHUB_TOKEN with actions:read.

Workflow is a display name ("Build") or a workflow file ("build.yml").
It defaults to GITHUB_WORKFLOW, else generate-version.

Examples:
  commit-semver commit-version
  commit-semver commit-version --commit-sha1 $SHA --workflow-name build.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("commit-sha1") {
				cfg.Lookup.CommitSHA = commitSHA
			}
			if flags.Changed("artifact-name") {
				cfg.Lookup.ArtifactName = artifactName
			}
			if flags.Changed("workflow-name") {
				cfg.Lookup.WorkflowName = workflowName
			}
			if flags.Changed("include-in-progress") {
				cfg.Lookup.IncludeInProgress = includeInProgress
			}
			if flags.Changed("max-pages") {
				cfg.GitHub.MaxPages = maxPages
			}
			if flags.Changed("output-file") {
				cfg.Output.PayloadFile = outputFile
			}

			if err := cfg.ValidateLookup(); err != nil {
				return err
			}
			if err := ensureProxyPassword(&cfg, cmd.ErrOrStderr()); err != nil {
				return err
			}

			workflow := cfg.Lookup.WorkflowOrDefault()
			if anyWorkflow {
				workflow = ""
			}
			return runCommitVersion(GetContext(cmd), cfg, workflow, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&commitSHA, "commit-sha1", "", "Commit whose version to fetch (default GITHUB_SHA)")
	cmd.Flags().StringVar(&artifactName, "artifact-name", "", "Name of the version artifact (default version)")
	cmd.Flags().StringVar(&workflowName, "workflow-name", "", "Workflow name or file to search (default GITHUB_WORKFLOW, else generate-version)")
	cmd.Flags().BoolVar(&anyWorkflow, "any-workflow", false, "Search runs of every workflow")
	cmd.Flags().BoolVar(&includeInProgress, "include-in-progress", false, "Search in-progress runs instead of successful ones (default LIST_RUNNING_WORKFLOWS)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Pages of workflow runs to search before giving up")
	cmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "Also write the version to this file")

	cmd.MarkFlagsMutuallyExclusive("workflow-name", "any-workflow")

	return cmd
}

// runCommitVersion builds the API client for cfg, locates the version and
// publishes it.
func runCommitVersion(ctx context.Context, cfg config.Config, workflow string, stdout io.Writer) error {
	log := GetLogger()

	httpClient, err := ihttp.NewClient(cfg.GitHub, cfg.Proxy, lookupEnv)
	if err != nil {
		return err
	}
	client, err := github.NewClient(cfg.GitHub, httpClient, log.Zerolog())
	if err != nil {
		return err
	}

	log.Info().
		Str("repository", client.Repository()).
		Str("commit", cfg.Lookup.CommitSHA).
		Str("workflow", workflow).
		Str("artifact", cfg.Lookup.ArtifactName).
		Bool("in_progress", cfg.Lookup.IncludeInProgress).
		Msg("searching workflow runs")

	res, err := locator.New(client, log.Zerolog()).Locate(ctx, locator.Query{
		CommitSHA:         cfg.Lookup.CommitSHA,
		Workflow:          workflow,
		ArtifactName:      cfg.Lookup.ArtifactName,
		IncludeInProgress: cfg.Lookup.IncludeInProgress,
		MaxPages:          cfg.GitHub.MaxPages,
		PageSize:          cfg.GitHub.PageSize,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("version", res.Version.String()).
		Int64("run_id", res.Run.ID).
		Str("run_url", res.Run.URL).
		Str("artifact", res.Entry).
		Msg("found version")

	return output.New(stdout, cfg.Output).Publish(res.Version.String(), res.Run.HeadSHA)
}

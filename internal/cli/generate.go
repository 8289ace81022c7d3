package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rescale/commit-semver/internal/config"
	"github.com/rescale/commit-semver/internal/gitmeta"
	"github.com/rescale/commit-semver/internal/logging"
	"github.com/rescale/commit-semver/internal/output"
	"github.com/rescale/commit-semver/internal/resolver"
)

// generateOptions are the generate flags that have no config file key.
type generateOptions struct {
	latestTag    string
	latestTagSet bool
	allTags      bool
}

func newGenerateCmd() *cobra.Command {
	var (
		opts          generateOptions
		sha           string
		branch        string
		defaultBranch string
		runNumber     string
		rcMode        string
		repoPath      string
		outputFile    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compute the version of the current commit",
		Long: `Compute the version of the current commit.

On the default branch the newest version tag gets its patch bumped
(1.2.9 -> 1.2.10), or 0.0.1 when there is no tag. With RC mode enabled the
version becomes a release candidate: 1.2.10-rc.<run>+<sha>.

On any other branch the version is a build version that sorts below every
release: 0.0.1-build.<run>+<branch>.<sha>.

Inputs come from the GitHub Actions environment (GITHUB_SHA, GITHUB_REF,
GITHUB_REF_NAME, GITHUB_HEAD_REF, GITHUB_RUN_NUMBER, REPO_DEFAULT_BRANCH,
BUILD_RC_SEMVER). Missing SHA and branch fall back to the local checkout.

Tags are read from the local checkout unless --latest-tag is given. The
default actions/checkout is shallow and fetches no tags, so check out with
fetch-depth: 0 (or fetch the tags) before running generate on the default
branch.

Examples:
  commit-semver generate
  commit-semver generate --rc enabled --output-file version`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("sha") {
				cfg.Build.CommitSHA = sha
			}
			if flags.Changed("branch") {
				cfg.Build.HeadRef = branch
			}
			if flags.Changed("default-branch") {
				cfg.Build.DefaultBranch = defaultBranch
			}
			if flags.Changed("run-number") {
				cfg.Build.RunNumber = runNumber
			}
			if flags.Changed("rc") {
				f, err := config.ParseFlag(rcMode)
				if err != nil {
					return fmt.Errorf("--rc: %w", err)
				}
				cfg.Build.RCMode = f
			}
			if flags.Changed("repo-path") {
				cfg.Build.RepoPath = repoPath
			}
			if flags.Changed("output-file") {
				cfg.Output.PayloadFile = outputFile
			}
			opts.latestTagSet = flags.Changed("latest-tag")

			return runGenerate(cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&sha, "sha", "", "Commit SHA to version (default GITHUB_SHA, else HEAD)")
	cmd.Flags().StringVar(&branch, "branch", "", "Branch being built (default GITHUB_HEAD_REF, GITHUB_REF_NAME, else the checked out branch)")
	cmd.Flags().StringVar(&defaultBranch, "default-branch", "", "Release branch (default REPO_DEFAULT_BRANCH, else main)")
	cmd.Flags().StringVar(&runNumber, "run-number", "", "Pipeline run counter (default GITHUB_RUN_NUMBER)")
	cmd.Flags().StringVar(&rcMode, "rc", "", "Release candidate mode: enabled or disabled (default BUILD_RC_SEMVER)")
	cmd.Flags().StringVar(&repoPath, "repo-path", "", "Path inside the git checkout (default .)")
	cmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "Also write the version to this file for upload as the version artifact")
	cmd.Flags().StringVar(&opts.latestTag, "latest-tag", "", "Use this tag instead of reading tags from git (empty means no tag)")
	cmd.Flags().BoolVar(&opts.allTags, "all-tags", false, "Consider version tags not reachable from HEAD")

	return cmd
}

// runGenerate resolves the version for cfg and publishes it. The checkout is
// only opened when the environment leaves something unknown.
func runGenerate(cfg config.Config, opts generateOptions, stdout io.Writer) error {
	log := GetLogger()
	src := &checkout{path: cfg.Build.RepoPath}

	sha := cfg.Build.CommitSHA
	if sha == "" {
		repo, err := src.open()
		if err != nil {
			return err
		}
		if sha, err = repo.HeadSHA(); err != nil {
			return err
		}
		log.Debug().Str("sha", sha).Msg("using HEAD of local checkout")
	}

	branchName := cfg.Build.BranchName()
	if branchName == "" {
		repo, err := src.open()
		if err != nil {
			return err
		}
		if branchName, err = repo.CurrentBranch(); err != nil {
			return err
		}
		log.Debug().Str("branch", branchName).Msg("using branch of local checkout")
	}

	bc, err := resolver.NewBranchContext(branchName, cfg.Build.DefaultBranch, sha, cfg.Build.RunNumber)
	if err != nil {
		return err
	}

	// tags only matter on the release line
	var latestTag string
	if bc.IsDefaultBranch {
		if opts.latestTagSet {
			latestTag = opts.latestTag
		} else {
			repo, err := src.open()
			if err != nil {
				return err
			}
			if latestTag, err = readLatestTag(repo, opts.allTags, log); err != nil {
				return err
			}
		}
		log.Info().Str("tag", latestTag).Msg("latest version tag")
	}

	res, err := resolver.Resolve(resolver.Input{
		LatestTag: latestTag,
		Branch:    bc,
		RCMode:    cfg.Build.RCMode.Enabled(),
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("version", res.Version.String()).
		Str("branch", bc.BranchName).
		Bool("default_branch", bc.IsDefaultBranch).
		Bool("tag_found", res.TagFound).
		Msg("resolved version")

	return output.New(stdout, cfg.Output).Publish(res.Version.String(), res.CommitSHA)
}

// readLatestTag returns the newest version tag of repo, or "" when there is
// none. A shallow or tagless checkout is reported since it makes every
// default-branch build come out as 0.0.1.
func readLatestTag(repo *gitmeta.Repository, allTags bool, log *logging.Logger) (string, error) {
	shallow, err := repo.IsShallow()
	if err != nil {
		return "", err
	}
	if shallow {
		log.Warn().Msg("shallow checkout: tags and history may be missing, check out with fetch-depth: 0")
	}

	name, found, err := repo.LatestTag(gitmeta.TagOptions{AllTags: allTags})
	if err != nil {
		return "", err
	}
	if !found {
		log.Warn().Bool("all_tags", allTags).Msg("no version tag found, starting from 0.0.1")
		return "", nil
	}
	return name, nil
}

// checkout opens the local repository on first use.
type checkout struct {
	path string
	repo *gitmeta.Repository
}

func (c *checkout) open() (*gitmeta.Repository, error) {
	if c.repo != nil {
		return c.repo, nil
	}
	repo, err := gitmeta.Open(c.path)
	if err != nil {
		return nil, err
	}
	c.repo = repo
	return repo, nil
}

// Package config assembles the explicit configuration handed to the resolver
// and the locator.
//
// A Config is built once at process start from, lowest precedence first:
// built-in defaults, an optional INI file, an optional .env file, the process
// environment and finally CLI flags. After that it is passed by value; nothing
// downstream reads the environment.
//
// INI format:
//
//	[github]
//	api_url = https://api.github.com
//	repository = owner/repo
//	request_timeout = 30s
//	max_retries = 5
//	max_pages = 10
//	page_size = 100
//
//	[proxy]
//	mode = system
//
//	[build]
//	default_branch = main
//	rc_mode = enabled
//
//	[lookup]
//	workflow_name = generate-version
//	artifact_name = version
//
//	[output]
//	payload_file = version
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rescale/commit-semver/internal/constants"
)

// Config is the full configuration of one invocation.
type Config struct {
	GitHub GitHubConfig `ini:"github"`
	Proxy  ProxyConfig  `ini:"proxy"`
	Build  BuildConfig  `ini:"build"`
	Lookup LookupConfig `ini:"lookup"`
	Output OutputConfig `ini:"output"`
}

// GitHubConfig describes how to reach the GitHub REST API.
type GitHubConfig struct {
	APIURL     string `ini:"api_url"`
	Repository string `ini:"repository"` // owner/repo
	Token      string `ini:"-"`          // never read from disk

	RequestTimeout time.Duration `ini:"request_timeout"`
	MaxRetries     int           `ini:"max_retries"`
	// MaxPages bounds how many pages of workflow runs are inspected.
	MaxPages     int  `ini:"max_pages"`
	PageSize     int  `ini:"page_size"`
	DisableHTTP2 bool `ini:"disable_http2"`
}

// ProxyConfig selects the outbound proxy.
type ProxyConfig struct {
	Mode     string `ini:"mode"` // "no-proxy", "system", "basic", "ntlm"
	Host     string `ini:"host"`
	Port     int    `ini:"port"`
	User     string `ini:"user"`
	Password string `ini:"-"`
	NoProxy  string `ini:"no_proxy"` // comma-separated hosts/CIDRs to bypass
}

// BuildConfig carries the inputs of version generation.
type BuildConfig struct {
	// RepoPath is the local checkout used for tags and as a fallback for SHA
	// and branch.
	RepoPath      string `ini:"repo_path"`
	CommitSHA     string `ini:"-"`
	Ref           string `ini:"-"`
	RefName       string `ini:"-"`
	HeadRef       string `ini:"-"`
	DefaultBranch string `ini:"default_branch"`
	RunNumber     string `ini:"-"`
	RCMode        Flag   `ini:"rc_mode"`
}

// LookupConfig carries the inputs of version retrieval.
type LookupConfig struct {
	CommitSHA         string `ini:"-"`
	WorkflowName      string `ini:"workflow_name"`
	ArtifactName      string `ini:"artifact_name"`
	IncludeInProgress bool   `ini:"include_in_progress"`
}

// OutputConfig selects where a result is written besides stdout.
type OutputConfig struct {
	// GitHubOutput is the step output file ($GITHUB_OUTPUT).
	GitHubOutput string `ini:"-"`
	// PayloadFile receives the bare version, ready for upload as the
	// version artifact.
	PayloadFile string `ini:"payload_file"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		GitHub: GitHubConfig{
			APIURL:         constants.DefaultGitHubAPIURL,
			RequestTimeout: constants.HTTPRequestTimeout,
			MaxRetries:     constants.MaxRetries,
			MaxPages:       constants.DefaultMaxPages,
			PageSize:       constants.DefaultPageSize,
		},
		Proxy: ProxyConfig{
			Mode: "system",
		},
		Build: BuildConfig{
			RepoPath:      ".",
			DefaultBranch: constants.DefaultBranch,
			RCMode:        FlagDisabled,
		},
		Lookup: LookupConfig{
			ArtifactName: constants.DefaultArtifactName,
		},
	}
}

// Validation errors
var (
	ErrMissingRepository = errors.New("repository is required (GITHUB_REPOSITORY or --repository)")
	ErrInvalidRepository = errors.New("repository must be in owner/repo form")
	ErrMissingToken      = errors.New("token is required (GITHUB_TOKEN)")
	ErrMissingCommitSHA  = errors.New("commit SHA is required (GITHUB_SHA or --commit-sha1)")
	ErrMissingArtifact   = errors.New("artifact name is required")
	ErrInvalidPaging     = errors.New("max_pages and page_size must be between 1 and 100")
)

// BranchName returns the branch being built: the pull request head ref when
// set, otherwise the ref name. It is "" when neither is known.
func (b BuildConfig) BranchName() string {
	if b.HeadRef != "" {
		return b.HeadRef
	}
	if b.RefName != "" {
		return b.RefName
	}
	if name, ok := strings.CutPrefix(b.Ref, "refs/heads/"); ok {
		return name
	}
	return ""
}

// WorkflowOrDefault returns the workflow to search, falling back to
// constants.DefaultWorkflowName.
func (l LookupConfig) WorkflowOrDefault() string {
	if l.WorkflowName != "" {
		return l.WorkflowName
	}
	return constants.DefaultWorkflowName
}

// OwnerRepo splits Repository into its owner and name.
func (g GitHubConfig) OwnerRepo() (owner, repo string, err error) {
	if g.Repository == "" {
		return "", "", ErrMissingRepository
	}
	owner, repo, ok := strings.Cut(g.Repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, g.Repository)
	}
	return owner, repo, nil
}

// ValidateLookup checks what commit-version needs.
func (c Config) ValidateLookup() error {
	if _, _, err := c.GitHub.OwnerRepo(); err != nil {
		return err
	}
	if strings.TrimSpace(c.GitHub.Token) == "" {
		return ErrMissingToken
	}
	if strings.TrimSpace(c.Lookup.CommitSHA) == "" {
		return ErrMissingCommitSHA
	}
	if strings.TrimSpace(c.Lookup.ArtifactName) == "" {
		return ErrMissingArtifact
	}
	if c.GitHub.MaxPages < 1 || c.GitHub.MaxPages > 100 || c.GitHub.PageSize < 1 || c.GitHub.PageSize > 100 {
		return ErrInvalidPaging
	}
	return nil
}

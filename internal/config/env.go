package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIURL            = "GITHUB_API_URL"
	EnvRepository        = "GITHUB_REPOSITORY"
	EnvToken             = "GITHUB_TOKEN"
	EnvSHA               = "GITHUB_SHA"
	EnvRef               = "GITHUB_REF"
	EnvRefName           = "GITHUB_REF_NAME"
	EnvHeadRef           = "GITHUB_HEAD_REF"
	EnvRunNumber         = "GITHUB_RUN_NUMBER"
	EnvWorkflow          = "GITHUB_WORKFLOW"
	EnvDefaultBranch     = "REPO_DEFAULT_BRANCH"
	EnvRCMode            = "BUILD_RC_SEMVER"
	EnvListRunning       = "LIST_RUNNING_WORKFLOWS"
	EnvArtifactName      = "VERSION_ARTIFACT_NAME"
	EnvDisableHTTP2      = "DISABLE_HTTP2"
	EnvGitHubOutput      = "GITHUB_OUTPUT"
	EnvProxyMode         = "COMMIT_SEMVER_PROXY_MODE"
	EnvProxyPassword     = "COMMIT_SEMVER_PROXY_PASSWORD"
	EnvLookupMaxPages    = "COMMIT_SEMVER_MAX_PAGES"
	EnvRequestMaxRetries = "COMMIT_SEMVER_MAX_RETRIES"
)

// Env looks up a variable, like os.LookupEnv.
type Env func(key string) (string, bool)

// OSEnv is the process environment.
func OSEnv() Env {
	return os.LookupEnv
}

// MapEnv serves variables from m.
func MapEnv(m map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// WithDotEnv layers the variables of a .env file beneath e: variables already
// present in e win. An empty path returns e unchanged.
func (e Env) WithDotEnv(path string) (Env, error) {
	if path == "" {
		return e, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		if v, ok := e(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}, nil
}

// get returns the non-blank value of key.
func (e Env) get(key string) (string, bool) {
	v, ok := e(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// ApplyEnv overlays the variables present in env onto cfg.
func ApplyEnv(cfg *Config, env Env) error {
	if v, ok := env.get(EnvAPIURL); ok {
		cfg.GitHub.APIURL = v
	}
	if v, ok := env.get(EnvRepository); ok {
		cfg.GitHub.Repository = v
	}
	if v, ok := env.get(EnvToken); ok {
		cfg.GitHub.Token = v
	}
	if v, ok := env.get(EnvDisableHTTP2); ok {
		cfg.GitHub.DisableHTTP2 = Flag(v).Enabled()
	}
	if v, ok := env.get(EnvLookupMaxPages); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLookupMaxPages, err)
		}
		cfg.GitHub.MaxPages = n
	}
	if v, ok := env.get(EnvRequestMaxRetries); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestMaxRetries, err)
		}
		cfg.GitHub.MaxRetries = n
	}

	if v, ok := env.get(EnvProxyMode); ok {
		cfg.Proxy.Mode = v
	}
	if v, ok := env.get(EnvProxyPassword); ok {
		cfg.Proxy.Password = v
	}

	if v, ok := env.get(EnvSHA); ok {
		cfg.Build.CommitSHA = v
		cfg.Lookup.CommitSHA = v
	}
	if v, ok := env.get(EnvRef); ok {
		cfg.Build.Ref = v
	}
	if v, ok := env.get(EnvRefName); ok {
		cfg.Build.RefName = v
	}
	if v, ok := env.get(EnvHeadRef); ok {
		cfg.Build.HeadRef = v
	}
	if v, ok := env.get(EnvRunNumber); ok {
		cfg.Build.RunNumber = v
	}
	if v, ok := env.get(EnvDefaultBranch); ok {
		cfg.Build.DefaultBranch = v
	}
	if v, ok := env.get(EnvRCMode); ok {
		f, err := ParseFlag(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRCMode, err)
		}
		cfg.Build.RCMode = f
	}

	if v, ok := env.get(EnvWorkflow); ok && cfg.Lookup.WorkflowName == "" {
		cfg.Lookup.WorkflowName = v
	}
	if v, ok := env.get(EnvArtifactName); ok {
		cfg.Lookup.ArtifactName = v
	}
	if v, ok := env.get(EnvListRunning); ok {
		f, err := ParseFlag(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvListRunning, err)
		}
		cfg.Lookup.IncludeInProgress = f == FlagEnabled
	}

	if v, ok := env.get(EnvGitHubOutput); ok {
		cfg.Output.GitHubOutput = v
	}

	return nil
}

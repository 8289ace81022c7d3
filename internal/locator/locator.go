// Package locator recovers the version an earlier workflow run computed for a
// commit, by finding that run's version artifact through the GitHub API.
//
// The most recent successful run for the commit is authoritative. When it
// lacks the artifact the lookup fails; older runs are never consulted, since
// they may belong to a different invocation for the same commit.
package locator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rescale/commit-semver/internal/errs"
	"github.com/rescale/commit-semver/internal/github"
	"github.com/rescale/commit-semver/internal/semver"
)

// fullSHALength is the length of a hex SHA-1 commit id.
const fullSHALength = 40

// RunSource is the part of the GitHub client the locator needs.
type RunSource interface {
	ListWorkflowRuns(ctx context.Context, q github.RunsQuery) (github.RunsPage, error)
	ListRunArtifacts(ctx context.Context, runID int64) ([]github.Artifact, error)
	DownloadArtifact(ctx context.Context, artifactID int64) ([]byte, error)
}

// Query describes one lookup.
type Query struct {
	// CommitSHA is the commit whose version is wanted. A full SHA is matched
	// exactly; an abbreviated one by prefix.
	CommitSHA string
	// Workflow is a workflow file (build.yml) or display name. Empty matches
	// any workflow.
	Workflow     string
	ArtifactName string
	// IncludeInProgress searches runs that are still in progress instead of
	// completed successful ones.
	IncludeInProgress bool
	MaxPages          int
	PageSize          int
}

// Result is a recovered version with the run it came from.
type Result struct {
	Version  semver.Version
	Run      github.WorkflowRun
	Artifact github.Artifact
	// Entry is the file inside the artifact archive that held the version.
	Entry string
}

// Locator finds version artifacts.
type Locator struct {
	source RunSource
	log    zerolog.Logger
}

// New creates a Locator reading from source.
func New(source RunSource, log zerolog.Logger) *Locator {
	return &Locator{source: source, log: log}
}

// Locate returns the version stored by the most recent matching run.
//
// Failures wrap one of errs.ErrCommitVersionNotFound, errs.ErrArtifactNotFound
// or errs.ErrMalformedVersionArtifact. Transient API failures that outlived
// the retries are escalated to ErrCommitVersionNotFound.
func (l *Locator) Locate(ctx context.Context, q Query) (Result, error) {
	if err := q.validate(); err != nil {
		return Result{}, err
	}

	res, err := l.locate(ctx, q)
	if err != nil && errors.Is(err, errs.ErrTransientAPI) && !errors.Is(err, errs.ErrCommitVersionNotFound) {
		return Result{}, fmt.Errorf("%w: %w", errs.ErrCommitVersionNotFound, err)
	}
	return res, err
}

func (l *Locator) locate(ctx context.Context, q Query) (Result, error) {
	run, err := l.findRun(ctx, q)
	if err != nil {
		return Result{}, err
	}

	l.log.Info().
		Int64("run_id", run.ID).
		Str("workflow", run.Name).
		Int("run_number", run.RunNumber).
		Time("created_at", run.CreatedAt).
		Msg("matched workflow run")

	artifact, err := l.findArtifact(ctx, run, q.ArtifactName)
	if err != nil {
		return Result{}, err
	}

	archive, err := l.source.DownloadArtifact(ctx, artifact.ID)
	if err != nil {
		if github.IsNotFound(err) {
			return Result{}, fmt.Errorf("%w: artifact %q of run %d is no longer downloadable: %w",
				errs.ErrArtifactNotFound, artifact.Name, run.ID, err)
		}
		return Result{}, err
	}

	entry, payload, err := github.ReadArtifactFile(archive, q.ArtifactName)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", errs.ErrMalformedVersionArtifact, err)
	}

	v, err := ParsePayload(payload)
	if err != nil {
		return Result{}, fmt.Errorf("artifact %q of run %d (%s): %w", artifact.Name, run.ID, entry, err)
	}

	return Result{Version: v, Run: run, Artifact: artifact, Entry: entry}, nil
}

// findRun walks run pages until one holds a run for the commit. Within that
// page the newest matching run wins.
func (l *Locator) findRun(ctx context.Context, q Query) (github.WorkflowRun, error) {
	rq := github.RunsQuery{
		Workflow: q.Workflow,
		Status:   github.RunStatusSuccess,
		PerPage:  q.PageSize,
	}
	if q.IncludeInProgress {
		rq.Status = github.RunStatusInProgress
	}
	// head_sha only filters on full SHAs
	if len(q.CommitSHA) == fullSHALength {
		rq.HeadSHA = q.CommitSHA
	}

	pages := newRunPages(l.source, rq, q.MaxPages)
	for {
		runs, ok, err := pages.Next(ctx)
		if err != nil {
			return github.WorkflowRun{}, err
		}
		if !ok {
			break
		}

		candidates := FilterRuns(runs, q)
		l.log.Debug().
			Int("page", pages.Fetched()).
			Int("runs", len(runs)).
			Int("candidates", len(candidates)).
			Msg("scanned workflow runs")
		if len(candidates) > 0 {
			SortNewestFirst(candidates)
			return candidates[0], nil
		}
	}

	state := "successful"
	if q.IncludeInProgress {
		state = "in-progress"
	}
	scope := "any workflow"
	if q.Workflow != "" {
		scope = fmt.Sprintf("workflow %q", q.Workflow)
	}
	bound := ""
	if !pages.Exhausted() {
		bound = fmt.Sprintf(" within the last %d pages", pages.Fetched())
	}
	return github.WorkflowRun{}, fmt.Errorf("%w: no %s run of %s for commit %s%s",
		errs.ErrCommitVersionNotFound, state, scope, q.CommitSHA, bound)
}

// findArtifact picks the artifact named name on run. Expired copies only
// count when nothing else matches, and then fail.
func (l *Locator) findArtifact(ctx context.Context, run github.WorkflowRun, name string) (github.Artifact, error) {
	artifacts, err := l.source.ListRunArtifacts(ctx, run.ID)
	if err != nil {
		return github.Artifact{}, err
	}

	var live, expired []github.Artifact
	for _, a := range artifacts {
		if a.Name != name {
			continue
		}
		if a.Expired {
			expired = append(expired, a)
		} else {
			live = append(live, a)
		}
	}

	if len(live) == 0 {
		if len(expired) > 0 {
			return github.Artifact{}, fmt.Errorf("%w: artifact %q of run %d has expired (expired at %s)",
				errs.ErrArtifactNotFound, name, run.ID, expired[0].ExpiresAt.Format(time.RFC3339))
		}
		return github.Artifact{}, fmt.Errorf("%w: run %d (%s) has no artifact %q",
			errs.ErrArtifactNotFound, run.ID, run.Name, name)
	}

	sort.SliceStable(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.After(live[j].CreatedAt)
		}
		return live[i].ID > live[j].ID
	})
	return live[0], nil
}

// FilterRuns keeps the runs matching q: state, commit and workflow. The API
// already filters most of this; checking again keeps the result independent
// of server-side filter support.
func FilterRuns(runs []github.WorkflowRun, q Query) []github.WorkflowRun {
	var out []github.WorkflowRun
	for _, r := range runs {
		if !stateMatches(r, q.IncludeInProgress) {
			continue
		}
		if !shaMatches(r.HeadSHA, q.CommitSHA) {
			continue
		}
		if !workflowMatches(r, q.Workflow) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortNewestFirst orders runs by creation time, newest first, then by ID.
func SortNewestFirst(runs []github.WorkflowRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})
}

func stateMatches(r github.WorkflowRun, inProgress bool) bool {
	if inProgress {
		return r.Status == github.RunStatusInProgress
	}
	return r.Status == github.RunStatusCompleted && r.Conclusion == github.ConclusionSuccess
}

func shaMatches(runSHA, want string) bool {
	runSHA = strings.ToLower(runSHA)
	want = strings.ToLower(want)
	if len(want) == fullSHALength {
		return runSHA == want
	}
	return strings.HasPrefix(runSHA, want)
}

func workflowMatches(r github.WorkflowRun, workflow string) bool {
	if workflow == "" {
		return true
	}
	if github.IsWorkflowFile(workflow) {
		// The workflow endpoint already scoped the listing; Path may be
		// absent on older API versions.
		return r.Path == "" || path.Base(r.Path) == path.Base(workflow)
	}
	return r.Name == workflow
}

// ParsePayload reads an artifact payload: exactly one SemVer string, with
// trailing whitespace ignored.
func ParsePayload(payload []byte) (semver.Version, error) {
	text := strings.TrimRight(string(payload), " \t\r\n")
	if text == "" {
		return semver.Version{}, fmt.Errorf("%w: payload is empty", errs.ErrMalformedVersionArtifact)
	}
	if strings.ContainsAny(text, "\r\n") {
		return semver.Version{}, fmt.Errorf("%w: payload holds more than one line", errs.ErrMalformedVersionArtifact)
	}
	v, err := semver.Parse(text)
	if err != nil {
		return semver.Version{}, fmt.Errorf("%w: %w", errs.ErrMalformedVersionArtifact, err)
	}
	return v, nil
}

// validate rejects queries that cannot match anything.
func (q Query) validate() error {
	if strings.TrimSpace(q.CommitSHA) == "" {
		return errors.New("commit SHA is required")
	}
	if strings.TrimSpace(q.ArtifactName) == "" {
		return errors.New("artifact name is required")
	}
	if q.MaxPages < 1 || q.PageSize < 1 {
		return fmt.Errorf("invalid paging: max pages %d, page size %d", q.MaxPages, q.PageSize)
	}
	return nil
}

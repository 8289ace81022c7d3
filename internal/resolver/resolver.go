// Package resolver computes the version of the commit a pipeline runs on.
//
// Resolve is a pure function of its Input: it reads no environment, touches
// no repository and performs no I/O. Gathering the latest tag and the branch
// context is the caller's job (see internal/gitmeta and internal/config).
package resolver

import (
	"fmt"
	"math"

	"github.com/rescale/commit-semver/internal/errs"
	"github.com/rescale/commit-semver/internal/semver"
)

const (
	// rcIdentifier prefixes the prerelease of release candidates.
	rcIdentifier = "rc"
	// buildIdentifier prefixes the prerelease of feature-branch builds.
	buildIdentifier = "build"
)

// Input is everything Resolve depends on.
type Input struct {
	// LatestTag is the newest version-like tag reachable from the commit, or
	// "" when the repository has none.
	LatestTag string
	Branch    BranchContext
	// RCMode appends rc.<run>+<sha> to default-branch versions.
	RCMode bool
}

// Result is a resolved version and the commit it belongs to.
type Result struct {
	Version   semver.Version
	CommitSHA string
	// Baseline is the release line the version was derived from.
	Baseline semver.Version
	// TagFound is false when no usable tag existed and Floor was used.
	TagFound bool
}

// Resolve derives the version for in.Branch.
//
// Default branch: the latest tag with its patch bumped (Floor when there is no
// tag), optionally as rc.<run>+<sha>. Other branches: Floor with
// build.<run>+<branch>.<sha>, which sorts below every release and release
// candidate.
func Resolve(in Input) (Result, error) {
	baseline, tagFound, err := Baseline(in.LatestTag)
	if err != nil {
		return Result{}, err
	}
	if err := in.Branch.Validate(); err != nil {
		return Result{}, err
	}

	var v semver.Version
	switch {
	case in.Branch.IsDefaultBranch && in.RCMode:
		v = baseline.
			WithPrerelease(rcIdentifier, in.Branch.RunID).
			WithBuild(in.Branch.ShortSHA)
	case in.Branch.IsDefaultBranch:
		v = baseline
	default:
		v = semver.Floor.
			WithPrerelease(buildIdentifier, in.Branch.RunID).
			WithBuild(in.Branch.BranchName, in.Branch.ShortSHA)
	}

	if err := v.Validate(); err != nil {
		return Result{}, fmt.Errorf("resolved version is invalid: %w", err)
	}

	return Result{
		Version:   v,
		CommitSHA: in.Branch.CommitSHA,
		Baseline:  baseline,
		TagFound:  tagFound,
	}, nil
}

// Baseline returns the release line following latestTag: patch+1 with
// prerelease and build cleared. An empty tag or the no-tag sentinel yields
// Floor with tagFound false. Any other unparseable tag, or one whose patch is
// already at its maximum, is ErrInvalidTagFormat.
func Baseline(latestTag string) (baseline semver.Version, tagFound bool, err error) {
	if latestTag == "" {
		return semver.Floor, false, nil
	}
	tag, err := semver.Parse(latestTag)
	if err != nil {
		return semver.Version{}, false, fmt.Errorf("%w: tag %q: %w", errs.ErrInvalidTagFormat, latestTag, err)
	}
	if tag.IsNoTagSentinel() {
		return semver.Floor, false, nil
	}
	if tag.Patch == math.MaxUint64 {
		return semver.Version{}, false, fmt.Errorf("%w: tag %q: patch cannot be incremented", errs.ErrInvalidTagFormat, latestTag)
	}
	return tag.BumpPatch(), true, nil
}

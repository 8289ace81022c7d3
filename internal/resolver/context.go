package resolver

import (
	"fmt"
	"strings"

	"github.com/rescale/commit-semver/internal/errs"
	"github.com/rescale/commit-semver/internal/semver"
)

// ShortSHALength is the number of hex characters kept in a short SHA.
const ShortSHALength = 7

// BranchContext describes the commit being versioned. It is derived once per
// invocation and never changes afterwards.
type BranchContext struct {
	IsDefaultBranch bool
	BranchName      string
	CommitSHA       string
	ShortSHA        string
	RunID           string
}

// NewBranchContext classifies branch against defaultBranch and derives the
// short SHA. Both branch names are required; without them the commit cannot
// be classified and ErrUnsupportedBranchState is returned.
func NewBranchContext(branch, defaultBranch, commitSHA, runID string) (BranchContext, error) {
	branch = strings.TrimSpace(branch)
	defaultBranch = strings.TrimSpace(defaultBranch)
	if branch == "" {
		return BranchContext{}, fmt.Errorf("%w: current branch is unknown (detached HEAD without a head ref?)", errs.ErrUnsupportedBranchState)
	}
	if defaultBranch == "" {
		return BranchContext{}, fmt.Errorf("%w: default branch is unknown", errs.ErrUnsupportedBranchState)
	}

	bc := BranchContext{
		IsDefaultBranch: branch == defaultBranch,
		BranchName:      branch,
		CommitSHA:       strings.TrimSpace(commitSHA),
		ShortSHA:        ShortSHA(commitSHA),
		RunID:           strings.TrimSpace(runID),
	}
	return bc, bc.Validate()
}

// Validate checks the fields every version shape needs.
func (bc BranchContext) Validate() error {
	if bc.ShortSHA == "" {
		return fmt.Errorf("%w: commit SHA is empty", errs.ErrUnsupportedBranchState)
	}
	if bc.RunID == "" {
		return fmt.Errorf("%w: run id is empty", errs.ErrUnsupportedBranchState)
	}
	if semver.SanitizePrereleaseIdentifier(bc.RunID) == "" {
		return fmt.Errorf("%w: run id %q has no usable characters", errs.ErrUnsupportedBranchState, bc.RunID)
	}
	if !bc.IsDefaultBranch && bc.BranchName == "" {
		return fmt.Errorf("%w: non-default branch without a name", errs.ErrUnsupportedBranchState)
	}
	return nil
}

// ShortSHA abbreviates a full commit SHA.
func ShortSHA(sha string) string {
	sha = strings.TrimSpace(sha)
	if len(sha) > ShortSHALength {
		return sha[:ShortSHALength]
	}
	return sha
}

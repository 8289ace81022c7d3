// Package gitmeta reads the repository facts version generation needs from a
// local checkout using go-git: the HEAD commit, the current branch and the
// newest version-like tag.
package gitmeta

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// versionTagPattern selects tags that look like versions: digits then a dot.
var versionTagPattern = regexp.MustCompile(`^[0-9]+\.`)

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
}

// Open opens the repository containing path, searching parent directories.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	return &Repository{repo: repo}, nil
}

// Wrap uses an already opened repository.
func Wrap(repo *git.Repository) *Repository {
	return &Repository{repo: repo}
}

// HeadSHA returns the full hash of the HEAD commit.
func (r *Repository) HeadSHA() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// CurrentBranch returns the short name of the checked out branch, or "" when
// HEAD is detached (the usual state of a CI checkout).
func (r *Repository) CurrentBranch() (string, error) {
	ref, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	if ref.Type() == plumbing.SymbolicReference && ref.Target().IsBranch() {
		return ref.Target().Short(), nil
	}
	return "", nil
}

// IsShallow reports whether the checkout has truncated history, as the
// default actions/checkout (fetch-depth 1) leaves it. Tags and older commits
// are then usually missing.
func (r *Repository) IsShallow() (bool, error) {
	commits, err := r.repo.Storer.Shallow()
	if err != nil {
		return false, fmt.Errorf("reading shallow commits: %w", err)
	}
	return len(commits) > 0, nil
}

// TagOptions controls LatestTag.
type TagOptions struct {
	// AllTags considers every version-like tag, not only those reachable
	// from HEAD.
	AllTags bool
}

// LatestTag returns the name of the newest version-like tag, ordered like
// `git tag --sort=-v:refname`. The name is returned as is; parsing it is the
// caller's business. found is false when no tag qualifies.
func (r *Repository) LatestTag(opts TagOptions) (name string, found bool, err error) {
	var reachable map[plumbing.Hash]struct{}
	if !opts.AllTags {
		reachable, err = r.ancestorsOfHead()
		if err != nil {
			return "", false, err
		}
	}

	iter, err := r.repo.Tags()
	if err != nil {
		return "", false, fmt.Errorf("listing tags: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tag := ref.Name().Short()
		if !versionTagPattern.MatchString(tag) {
			return nil
		}
		if reachable != nil {
			commit, err := r.tagCommit(ref)
			if err != nil {
				return err
			}
			if _, ok := reachable[commit]; !ok {
				return nil
			}
		}
		if !found || CompareVersionNames(tag, name) > 0 {
			name, found = tag, true
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return name, found, nil
}

// tagCommit resolves a tag reference to the commit it points at, peeling
// annotated tags.
func (r *Repository) tagCommit(ref *plumbing.Reference) (plumbing.Hash, error) {
	tagObj, err := r.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		commit, err := tagObj.Commit()
		if err != nil {
			// annotated tag of a tree or blob
			return plumbing.ZeroHash, nil
		}
		return commit.Hash, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		// lightweight tag
		return ref.Hash(), nil
	default:
		return plumbing.ZeroHash, fmt.Errorf("reading tag %s: %w", ref.Name().Short(), err)
	}
}

// ancestorsOfHead returns HEAD and every commit reachable from it. A shallow
// history ends the walk early without error.
func (r *Repository) ancestorsOfHead() (map[plumbing.Hash]struct{}, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderBSF})
	if err != nil {
		return nil, fmt.Errorf("walking history: %w", err)
	}
	defer iter.Close()

	seen := map[plumbing.Hash]struct{}{head.Hash(): {}}
	err = iter.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = struct{}{}
		return nil
	})
	if err != nil && !errors.Is(err, plumbing.ErrObjectNotFound) && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("walking history: %w", err)
	}
	return seen, nil
}

// CompareVersionNames orders tag names the way git's v:refname sort does:
// runs of digits compare numerically, everything else byte by byte. It
// returns -1, 0 or 1.
func CompareVersionNames(a, b string) int {
	for a != "" && b != "" {
		ca, restA := nextChunk(a)
		cb, restB := nextChunk(b)

		if isDigit(ca[0]) && isDigit(cb[0]) {
			if c := compareNumeric(ca, cb); c != 0 {
				return c
			}
		} else if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		a, b = restA, restB
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

// nextChunk splits off the leading run of digits or of non-digits.
func nextChunk(s string) (chunk, rest string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func compareNumeric(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	}
	// too long for uint64: longer digit string is larger once zeros are gone
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Package errs defines the failure kinds shared by version generation and
// version retrieval.
//
// Every failure returned by the resolver, the locator or the GitHub client
// wraps exactly one of the sentinels below, so callers can branch with
// errors.Is and the CLI can name the kind in its diagnostic.
package errs

import "errors"

var (
	// ErrInvalidTagFormat indicates an existing tag that is not a valid SemVer.
	ErrInvalidTagFormat = errors.New("invalid tag format")

	// ErrUnsupportedBranchState indicates the branch context could not be
	// classified as default or non-default.
	ErrUnsupportedBranchState = errors.New("unsupported branch state")

	// ErrArtifactNotFound indicates the matched run carries no usable artifact
	// with the requested name.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrMalformedVersionArtifact indicates artifact content that is not a
	// single SemVer string.
	ErrMalformedVersionArtifact = errors.New("malformed version artifact")

	// ErrCommitVersionNotFound indicates no successful run for the commit was
	// found within the lookback window.
	ErrCommitVersionNotFound = errors.New("commit version not found")

	// ErrTransientAPI indicates a network or rate-limit failure that survived
	// every retry attempt.
	ErrTransientAPI = errors.New("transient API error")
)

// Kind names, as printed in failure diagnostics.
const (
	KindInvalidTagFormat         = "InvalidTagFormat"
	KindUnsupportedBranchState   = "UnsupportedBranchState"
	KindArtifactNotFound         = "ArtifactNotFound"
	KindMalformedVersionArtifact = "MalformedVersionArtifact"
	KindCommitVersionNotFound    = "CommitVersionNotFound"
	KindTransientAPIError        = "TransientAPIError"
	KindInternal                 = "Internal"
)

// kinds is ordered: CommitVersionNotFound wraps TransientAPI on escalation
// and must win.
var kinds = []struct {
	err  error
	name string
}{
	{ErrCommitVersionNotFound, KindCommitVersionNotFound},
	{ErrInvalidTagFormat, KindInvalidTagFormat},
	{ErrUnsupportedBranchState, KindUnsupportedBranchState},
	{ErrArtifactNotFound, KindArtifactNotFound},
	{ErrMalformedVersionArtifact, KindMalformedVersionArtifact},
	{ErrTransientAPI, KindTransientAPIError},
}

// Kind returns the taxonomy name of err, or KindInternal when err wraps none
// of the known sentinels. Kind(nil) returns "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return KindInternal
}

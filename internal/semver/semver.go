// Package semver models the Semantic Versioning 2.0 identifiers produced and
// consumed by commit-semver.
//
// Parsing, validation and precedence are delegated to github.com/blang/semver;
// this package adds the structured value used across the tool, the reserved
// versions, and the sanitizer applied wherever external strings become
// prerelease or build identifiers.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	blang "github.com/blang/semver"
)

// MaxLength bounds the serialized form so that it remains a valid tag name.
const MaxLength = 255

// NoTagSentinel is the reserved version meaning "no tag found".
const NoTagSentinel = "0.0.1-0-0"

// Floor is the lowest release line. It is the baseline when no tag exists and
// the core of every build version.
var Floor = Version{Major: 0, Minor: 0, Patch: 1}

// Version is a parsed semantic version.
//
// Values are treated as immutable: the With* and Bump* helpers return copies.
type Version struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease []string
	Build      []string
}

// Parse parses s strictly as MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD].
// Prefixes such as "v" and missing components are rejected.
func Parse(s string) (Version, error) {
	if len(s) > MaxLength {
		return Version{}, fmt.Errorf("version is %d characters long, limit is %d", len(s), MaxLength)
	}
	bv, err := blang.Parse(s)
	if err != nil {
		return Version{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return fromBlang(bv), nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String serializes v as MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD].
func (v Version) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(v.Major, 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(v.Minor, 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(v.Patch, 10))
	if len(v.Prerelease) > 0 {
		b.WriteByte('-')
		b.WriteString(strings.Join(v.Prerelease, "."))
	}
	if len(v.Build) > 0 {
		b.WriteByte('+')
		b.WriteString(strings.Join(v.Build, "."))
	}
	return b.String()
}

// Validate reports whether v serializes to a valid version within MaxLength.
func (v Version) Validate() error {
	s := v.String()
	if len(s) > MaxLength {
		return fmt.Errorf("version %q exceeds %d characters", s, MaxLength)
	}
	if _, err := blang.Parse(s); err != nil {
		return fmt.Errorf("version %q: %w", s, err)
	}
	return nil
}

// Compare returns -1, 0 or 1 following SemVer precedence. Build metadata is
// ignored.
func (v Version) Compare(o Version) int {
	return v.toBlang().Compare(o.toBlang())
}

// LessThan reports whether v has lower precedence than o.
func (v Version) LessThan(o Version) bool {
	return v.Compare(o) < 0
}

// Equal reports structural equality, build metadata included.
func (v Version) Equal(o Version) bool {
	return v.Major == o.Major && v.Minor == o.Minor && v.Patch == o.Patch &&
		equalIdentifiers(v.Prerelease, o.Prerelease) &&
		equalIdentifiers(v.Build, o.Build)
}

// IsNoTagSentinel reports whether v is the reserved "no tag found" marker.
func (v Version) IsNoTagSentinel() bool {
	return v.String() == NoTagSentinel
}

// BumpPatch returns the next patch release: patch+1 with prerelease and build
// cleared.
func (v Version) BumpPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// WithPrerelease returns a copy of v whose prerelease is replaced by the
// sanitized ids. Ids that sanitize to nothing are dropped.
func (v Version) WithPrerelease(ids ...string) Version {
	out := v.clone()
	out.Prerelease = nil
	for _, id := range ids {
		if s := SanitizePrereleaseIdentifier(id); s != "" {
			out.Prerelease = append(out.Prerelease, s)
		}
	}
	return out
}

// WithBuild returns a copy of v whose build metadata is replaced by the
// sanitized ids. Ids that sanitize to nothing are dropped.
func (v Version) WithBuild(ids ...string) Version {
	out := v.clone()
	out.Build = nil
	for _, id := range ids {
		if s := SanitizeIdentifier(id); s != "" {
			out.Build = append(out.Build, s)
		}
	}
	return out
}

func (v Version) clone() Version {
	out := v
	out.Prerelease = append([]string(nil), v.Prerelease...)
	out.Build = append([]string(nil), v.Build...)
	return out
}

func (v Version) toBlang() blang.Version {
	bv := blang.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
	for _, id := range v.Prerelease {
		pr, err := blang.NewPRVersion(id)
		if err != nil {
			// Compare stays total for hand-built values: treat as alphanumeric.
			pr = blang.PRVersion{VersionStr: id}
		}
		bv.Pre = append(bv.Pre, pr)
	}
	bv.Build = append(bv.Build, v.Build...)
	return bv
}

func fromBlang(bv blang.Version) Version {
	v := Version{Major: bv.Major, Minor: bv.Minor, Patch: bv.Patch}
	for _, pr := range bv.Pre {
		v.Prerelease = append(v.Prerelease, pr.String())
	}
	v.Build = append(v.Build, bv.Build...)
	return v
}

func equalIdentifiers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

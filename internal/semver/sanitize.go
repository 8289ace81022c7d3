package semver

import "strings"

// MaxIdentifierLength caps a single sanitized identifier. Three capped
// identifiers plus the largest core still fit inside MaxLength.
const MaxIdentifierLength = 64

// SanitizeIdentifier maps an arbitrary string onto the SemVer identifier
// charset [0-9A-Za-z-]. Other characters are removed and the result is capped
// at MaxIdentifierLength. The result may be empty.
func SanitizeIdentifier(s string) string {
	var b strings.Builder
	b.Grow(min(len(s), MaxIdentifierLength))
	for i := 0; i < len(s) && b.Len() < MaxIdentifierLength; i++ {
		c := s[i]
		if isIdentifierChar(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// SanitizePrereleaseIdentifier is SanitizeIdentifier plus the prerelease rule
// that numeric identifiers carry no leading zeros.
func SanitizePrereleaseIdentifier(s string) string {
	id := SanitizeIdentifier(s)
	if id == "" || !isNumeric(id) {
		return id
	}
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func isIdentifierChar(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '-'
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

package config

import (
	"fmt"
	"strings"
)

// Flag is an enabled/disabled toggle as written in env vars and INI files.
type Flag string

const (
	FlagEnabled  Flag = "enabled"
	FlagDisabled Flag = "disabled"
)

// ParseFlag normalizes the accepted spellings of a toggle.
// The empty string is disabled.
func ParseFlag(s string) (Flag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enabled", "enable", "true", "1", "yes", "on":
		return FlagEnabled, nil
	case "disabled", "disable", "false", "0", "no", "off", "":
		return FlagDisabled, nil
	default:
		return FlagDisabled, fmt.Errorf("unrecognized toggle value %q (want enabled or disabled)", s)
	}
}

// Enabled reports whether f is on. Unrecognized values are off.
func (f Flag) Enabled() bool {
	v, err := ParseFlag(string(f))
	return err == nil && v == FlagEnabled
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/rescale/commit-semver/internal/config"
	ihttp "github.com/rescale/commit-semver/internal/http"
)

// errNoTerminal is returned when a secret is needed but stdin is not a terminal.
var errNoTerminal = errors.New("stdin is not a terminal")

// passwordReader reads a secret without echo. Tests replace it.
var passwordReader = func(prompt io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoTerminal
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ensureProxyPassword asks for the proxy password when the proxy mode needs
// one and neither the config nor the environment supplied it.
func ensureProxyPassword(cfg *config.Config, prompt io.Writer) error {
	if !ihttp.NeedsProxyPassword(cfg.Proxy) {
		return nil
	}

	fmt.Fprintf(prompt, "Password for proxy user %s@%s: ", cfg.Proxy.User, cfg.Proxy.Host)
	pw, err := passwordReader(prompt)
	if err != nil {
		if errors.Is(err, errNoTerminal) {
			fmt.Fprintln(prompt)
			return fmt.Errorf("proxy password required: set %s", config.EnvProxyPassword)
		}
		return fmt.Errorf("failed to read proxy password: %w", err)
	}

	pw = strings.TrimRight(pw, "\r\n")
	if pw == "" {
		return fmt.Errorf("proxy password required: set %s", config.EnvProxyPassword)
	}
	cfg.Proxy.Password = pw
	return nil
}

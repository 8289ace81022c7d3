// Package http builds the outbound HTTP client and holds the retry policy
// used for GitHub API traffic.
package http

import (
	"crypto/tls"
	nethttp "net/http"

	"golang.org/x/net/http2"

	"github.com/rescale/commit-semver/internal/config"
)

// NewClient creates the HTTP client used for GitHub API calls and artifact
// downloads.
//
// Key features:
//   - Proxy support (uses ConfigureHTTPClient as base)
//   - HTTP/2 with a runtime toggle (GitHubConfig.DisableHTTP2 / DISABLE_HTTP2)
//   - HTTP/1.1 whenever a proxy is active, since proxies often mishandle HTTP/2 streams
//
// lookup reads proxy variables for "system" mode; pass os.LookupEnv in production.
func NewClient(gh config.GitHubConfig, proxy config.ProxyConfig, lookup func(string) (string, bool)) (*nethttp.Client, error) {
	client, err := ConfigureHTTPClient(proxy, gh.RequestTimeout)
	if err != nil {
		return nil, err
	}

	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport; it stays on HTTP/1.1 which NTLM requires anyway
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if gh.DisableHTTP2 || ProxyActive(proxy, lookup) {
		disableHTTP2(tr)
	}

	return client, nil
}

func disableHTTP2(tr *nethttp.Transport) {
	tr.ForceAttemptHTTP2 = false
	tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
}

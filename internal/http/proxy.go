package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"

	"github.com/rescale/commit-semver/internal/config"
	"github.com/rescale/commit-semver/internal/constants"
)

// Proxy modes accepted in ProxyConfig.Mode.
const (
	ProxyModeNone   = "no-proxy"
	ProxyModeSystem = "system"
	ProxyModeBasic  = "basic"
	ProxyModeNTLM   = "ntlm"
)

// newTransport returns the base transport shared by every proxy mode.
func newTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

// ConfigureHTTPClient configures an HTTP client with proxy settings.
// The returned client's Transport is either *nethttp.Transport or, in NTLM
// mode, an ntlmssp.Negotiator wrapping one.
func ConfigureHTTPClient(cfg config.ProxyConfig, timeout time.Duration) (*nethttp.Client, error) {
	transport := newTransport()
	client := &nethttp.Client{
		Transport: transport,
		Timeout:   timeout,
	}

	// Configure proxy based on mode
	switch strings.ToLower(cfg.Mode) {
	case ProxyModeNone, "":
		transport.Proxy = nil

	case ProxyModeSystem:
		// Use system proxy settings from environment
		transport.Proxy = nethttp.ProxyFromEnvironment

	case ProxyModeNTLM:
		if cfg.Host == "" {
			return nil, fmt.Errorf("proxy mode %s requires a proxy host", cfg.Mode)
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)
		client.Transport = ntlmssp.Negotiator{
			RoundTripper: transport,
		}

	case ProxyModeBasic:
		if cfg.Host == "" {
			return nil, fmt.Errorf("proxy mode %s requires a proxy host", cfg.Mode)
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)
		if cfg.User != "" && cfg.Password == "" {
			log.Warn().Msg("proxy user configured but password missing, proxy auth disabled")
		}

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.Mode)
	}

	return client, nil
}

// ProxyActive reports whether requests built from cfg may go through a proxy.
func ProxyActive(cfg config.ProxyConfig, lookup func(string) (string, bool)) bool {
	switch strings.ToLower(cfg.Mode) {
	case ProxyModeNone, "":
		return false
	case ProxyModeSystem:
		for _, k := range []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy"} {
			if v, ok := lookup(k); ok && v != "" {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg config.ProxyConfig) *url.URL {
	port := cfg.Port
	if port == 0 {
		port = 8080 // Default proxy port
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cfg.Host, fmt.Sprint(port)),
	}

	// Only embed credentials if both user AND password are provided
	// Empty password in URL can cause auth failures with some proxies
	if cfg.User != "" && cfg.Password != "" {
		proxyURL.User = url.UserPassword(cfg.User, cfg.Password)
	}

	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
// When noProxy is set, uses golang.org/x/net/http/httpproxy to match hosts/CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			log.Debug().Str("host", req.URL.Host).Msg("proxy bypass (direct connection)")
		} else {
			log.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("proxied")
		}
		return result, err
	}
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided.
func NeedsProxyPassword(cfg config.ProxyConfig) bool {
	mode := strings.ToLower(cfg.Mode)
	// Only basic and ntlm modes require credentials
	if mode != ProxyModeBasic && mode != ProxyModeNTLM {
		return false
	}
	return cfg.User != "" && cfg.Password == ""
}

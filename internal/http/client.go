package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/blackdropbox/blackdropbox/internal/config"
)

// NewClient creates the HTTP client shared by storage backends, the version
// API and signed URL downloads.
//
//   - Proxy support (uses ConfigureHTTPClient as base)
//   - HTTP/2 when talking directly to storage endpoints
//   - HTTP/1.1 through proxies, which often break HTTP/2 streams
//   - Disabled compression (objects are streamed as-is)
//
// If cfg is nil, proxy settings are read from the environment.
func NewClient(cfg *config.Config) (*nethttp.Client, error) {
	if cfg == nil {
		cfg = &config.Config{ProxyMode: "system"}
	}

	client, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport in a negotiator; leave it untouched
		return client, nil
	}

	tr.DisableCompression = true

	if proxyActive(cfg) || os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	} else {
		tr.ForceAttemptHTTP2 = true
		_ = http2.ConfigureTransport(tr)
	}

	return client, nil
}

func proxyActive(cfg *config.Config) bool {
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}

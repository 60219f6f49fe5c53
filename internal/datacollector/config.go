package datacollector

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultTimeout = 30 * time.Second

// Proxies maps a URL scheme ("http", "https") to the proxy URL used for it.
type Proxies map[string]string

func (p Proxies) clone() Proxies {
	if len(p) == 0 {
		return nil
	}
	out := make(Proxies, len(p))
	for scheme, proxy := range p {
		out[scheme] = proxy
	}
	return out
}

// Config is an immutable client configuration. The With* methods return a
// modified copy and never touch the receiver.
type Config struct {
	proxies  Proxies
	timeout  time.Duration
	domain   string
	endpoint string
}

func DefaultConfig() Config {
	return Config{
		timeout: DefaultTimeout,
		domain:  DefaultDomain,
	}
}

func (c Config) WithProxies(proxies Proxies) Config {
	c.proxies = proxies.clone()
	return c
}

// WithTimeout sets the per-request timeout. Zero disables it.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.timeout = timeout
	return c
}

// WithDomain sets the ingestion domain, e.g. ods.opinsights.azure.us for
// Azure Government.
func (c Config) WithDomain(domain string) Config {
	c.domain = strings.Trim(strings.TrimSpace(domain), ".")
	return c
}

// WithEndpoint replaces the workspace host entirely with a scheme://host base.
func (c Config) WithEndpoint(endpoint string) Config {
	c.endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	return c
}

func (c Config) Proxies() Proxies {
	return c.proxies.clone()
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) Domain() string {
	if c.domain == "" {
		return DefaultDomain
	}
	return c.domain
}

func (c Config) Endpoint() string {
	return c.endpoint
}

func (c Config) requestURL(workspaceID string) string {
	base := c.endpoint
	if base == "" {
		base = "https://" + workspaceID + "." + c.Domain()
	}
	return base + Resource + "?api-version=" + APIVersion
}

func (c Config) parseProxies() (map[string]*url.URL, error) {
	if len(c.proxies) == 0 {
		return nil, nil
	}

	parsed := make(map[string]*url.URL, len(c.proxies))
	for scheme, raw := range c.proxies {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy for scheme %q: %w", scheme, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy for scheme %q: %q must be an absolute URL", scheme, raw)
		}
		parsed[strings.ToLower(scheme)] = u
	}
	return parsed, nil
}

func proxyFunc(proxies map[string]*url.URL) func(*http.Request) (*url.URL, error) {
	if len(proxies) == 0 {
		return nil
	}
	return func(req *http.Request) (*url.URL, error) {
		return proxies[strings.ToLower(req.URL.Scheme)], nil
	}
}

func newHTTPClient(c Config) (*http.Client, error) {
	proxies, err := c.parseProxies()
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyFunc(proxies)

	return &http.Client{
		Timeout:   c.timeout,
		Transport: transport,
	}, nil
}

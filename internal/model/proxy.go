package model

import "strings"

// ProxyScheme is the transport a Proxy speaks.
type ProxyScheme string

const (
	ProxySOCKS5 ProxyScheme = "socks5"
	ProxyHTTP   ProxyScheme = "http"
)

// Proxy is a named upstream proxy endpoint referenced by account and hook
// `use_proxy` fields.
type Proxy struct {
	ID  uint64 `json:"id"`
	URL string `json:"url"`
}

// Scheme extracts the ProxyScheme from URL, e.g. "socks5://host:port".
func (p *Proxy) Scheme() ProxyScheme {
	if strings.HasPrefix(p.URL, string(ProxySOCKS5)+"://") {
		return ProxySOCKS5
	}
	return ProxyHTTP
}

// HostPort strips the scheme, returning "host:port".
func (p *Proxy) HostPort() string {
	if i := strings.Index(p.URL, "://"); i >= 0 {
		return p.URL[i+3:]
	}
	return p.URL
}

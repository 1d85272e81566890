package engine

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// ProxyConfig is the read-only, process-wide proxy setting.
type ProxyConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
}

// Usable reports whether proxied mode can be attempted at all.
func (p ProxyConfig) Usable() bool {
	return p.Enabled && p.Host != ""
}

// URL returns the proxy URL, or nil when the proxy is unusable.
func (p ProxyConfig) URL() *url.URL {
	if !p.Usable() {
		return nil
	}
	host := p.Host
	if p.Port > 0 {
		host = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	}
	u := &url.URL{Scheme: "http", Host: host}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// NewHTTPClient returns the base client used for direct requests.
// Per-attempt deadlines come from the transport policy, so the client timeout
// is only a backstop.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			Proxy:               nil,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// ClientPool hands out one *http.Client per transport mode and proxy URL so
// connections are reused across operations. Clients are never mutated after
// creation.
type ClientPool struct {
	direct *http.Client

	mu      sync.Mutex
	proxied map[string]*http.Client
}

// NewClientPool wraps direct; nil means NewHTTPClient().
func NewClientPool(direct *http.Client) *ClientPool {
	if direct == nil {
		direct = NewHTTPClient()
	}
	return &ClientPool{direct: direct, proxied: make(map[string]*http.Client)}
}

// For returns the client for mode. Proxied mode with an unusable proxy falls
// back to the direct client.
func (cp *ClientPool) For(mode Mode, proxy ProxyConfig) *http.Client {
	if mode != ModeProxied {
		return cp.direct
	}
	u := proxy.URL()
	if u == nil {
		return cp.direct
	}
	key := u.String()

	cp.mu.Lock()
	defer cp.mu.Unlock()
	if c, ok := cp.proxied[key]; ok {
		return c
	}

	var tr *http.Transport
	if base, ok := cp.direct.Transport.(*http.Transport); ok && base != nil {
		tr = base.Clone()
	} else {
		tr = http.DefaultTransport.(*http.Transport).Clone()
	}
	tr.Proxy = http.ProxyURL(u)

	c := &http.Client{
		Timeout:       cp.direct.Timeout,
		Transport:     tr,
		CheckRedirect: cp.direct.CheckRedirect,
		Jar:           cp.direct.Jar,
	}
	cp.proxied[key] = c
	return c
}

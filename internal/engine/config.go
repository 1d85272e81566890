package engine

import (
	"context"
	"net/http"
	"time"
)

// CompleteFunc is the AI completion gateway: one prompt in, one text out.
type CompleteFunc func(ctx context.Context, prompt string) (string, error)

// Config holds all engine configuration, injected from main.
type Config struct {
	Proxy                ProxyConfig
	ProxyByDefault       bool // initial transport mode when Proxy is usable
	FetchTimeout         time.Duration
	MaxAttempts          int
	BaseDelay            time.Duration
	UpstreamRPS          float64 // 0 = no outbound throttling
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	RedisURL             string
	HTTPClient           *http.Client // base client for direct mode; proxied clients clone its transport
	LLMComplete          CompleteFunc // nil = translation disabled
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages.
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}

// DefaultPolicy builds the transport policy every operation starts from.
// The returned value is a copy; callers may override fields per call.
func (c Config) DefaultPolicy() TransportPolicy {
	p := TransportPolicy{
		Proxy:       c.Proxy,
		UseProxy:    c.ProxyByDefault,
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
		Timeout:     c.FetchTimeout,
	}
	if c.UpstreamRPS > 0 {
		p.Limiter = upstreamLimiter(c.UpstreamRPS)
	}
	return p
}

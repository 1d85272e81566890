// go_caption: video caption MCP server.
//
// Exposes three MCP tools: caption_tracks, caption_fetch, caption_translate,
// plus a REST API for the same pipeline and a page-view counter.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_caption/internal/captionserver"
	"github.com/anatolykoptev/go_caption/internal/engine"
	"github.com/anatolykoptev/go_caption/internal/engine/sources"
	"github.com/anatolykoptev/go_caption/internal/engine/views"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version  = "dev"
	mcpPort  = env.Str("MCP_PORT", "8893")
	httpAddr = env.Str("HTTP_ADDR", ":8894")
)

func main() {
	c := initEngine()

	var svcOpts []sources.ServiceOption
	if c.LLMComplete != nil {
		svcOpts = append(svcOpts, sources.WithCompleter(engine.CallLLM))
	}

	var store *views.Store
	if path := env.Str("VIEWS_DB", ""); path != "" {
		s, err := views.Open(path)
		if err != nil {
			slog.Warn("views store init failed", slog.Any("error", err))
		} else {
			store = s
			defer store.Close()
			svcOpts = append(svcOpts, sources.WithViews(store))
			slog.Info("views store initialized", slog.String("path", path))
		}
	}

	svc := sources.NewServiceFromConfig(c, svcOpts...)

	slog.Info("starting go_caption",
		slog.String("mcp_port", mcpPort),
		slog.String("http_addr", httpAddr),
		slog.Bool("proxy", c.Proxy.Usable()),
	)

	if httpAddr != "" {
		go serveREST(svc, store)
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_caption",
		Version: version,
	}, nil)

	captionserver.RegisterTools(server, svc)
	slog.Info("tools registered", slog.Int("count", 3))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_caption",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 300 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func serveREST(svc *sources.Service, store *views.Store) {
	cfg := captionserver.RouterConfig{
		Service:    svc,
		RateLimit:  env.Int("HTTP_RATE_LIMIT", 60),
		RateWindow: env.Duration("HTTP_RATE_WINDOW", time.Minute),
	}
	if store != nil {
		cfg.Views = store
	}
	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           captionserver.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
	}
	slog.Info("rest api listening", slog.String("addr", httpAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("rest api failed", slog.Any("error", err))
	}
}

func initEngine() engine.Config {
	c := engine.Config{
		Proxy: engine.ProxyConfig{
			Enabled:  envBool("PROXY_ENABLED", false),
			Host:     env.Str("PROXY_HOST", ""),
			Port:     env.Int("PROXY_PORT", 0),
			Username: env.Str("PROXY_USERNAME", ""),
			Password: env.Str("PROXY_PASSWORD", ""),
		},
		ProxyByDefault:       envBool("PROXY_BY_DEFAULT", true),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", engine.DefaultTimeout),
		MaxAttempts:          env.Int("FETCH_MAX_ATTEMPTS", engine.DefaultMaxAttempts),
		BaseDelay:            env.Duration("FETCH_BASE_DELAY", engine.DefaultBaseDelay),
		UpstreamRPS:          env.Float("UPSTREAM_RPS", 0),
		CacheTTL:             env.Duration("CACHE_TTL", 30*time.Minute),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 500),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		RedisURL:             env.Str("REDIS_URL", ""),
		HTTPClient:           engine.NewHTTPClient(),
	}
	if c.Proxy.Enabled && c.Proxy.Host == "" {
		slog.Warn("PROXY_ENABLED set without PROXY_HOST, running direct only")
	}

	if apiKey := env.Str("LLM_API_KEY", ""); apiKey != "" {
		client := llm.NewClient(
			env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
			apiKey,
			env.Str("LLM_MODEL", "gemini-2.5-flash"),
			llm.WithFallbackKeys(env.List("LLM_API_KEY_FALLBACKS", "")),
			llm.WithMaxTokens(env.Int("LLM_MAX_TOKENS", 16384)),
			llm.WithTemperature(env.Float("LLM_TEMPERATURE", 0.1)),
			llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
		)
		c.LLMComplete = func(ctx context.Context, prompt string) (string, error) {
			return client.Complete(ctx, "", prompt)
		}
		slog.Info("llm gateway configured")
	}

	engine.Init(c)
	engine.InitCache(c.RedisURL, c.CacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
	return c
}

func envBool(key string, def bool) bool {
	v := env.Str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean env", slog.String("key", key), slog.String("value", v))
		return def
	}
	return b
}

package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go_caption/internal/engine"
	"github.com/anatolykoptev/go_caption/internal/engine/sources"
	"github.com/spf13/cobra"
)

// commandContext carries the persistent flags shared by every subcommand.
type commandContext struct {
	proxy     engine.ProxyConfig
	timeout   time.Duration
	attempts  int
	baseDelay time.Duration
	watchBase string
}

func (c *commandContext) config() engine.Config {
	return engine.Config{
		Proxy:          c.proxy,
		ProxyByDefault: c.proxy.Enabled,
		FetchTimeout:   c.timeout,
		MaxAttempts:    c.attempts,
		BaseDelay:      c.baseDelay,
		HTTPClient:     engine.NewHTTPClient(),
	}
}

func (c *commandContext) service() *sources.Service {
	cfg := c.config()
	pool := engine.NewClientPool(cfg.HTTPClient)
	var opts []sources.CatalogOption
	if c.watchBase != "" {
		opts = append(opts, sources.WithWatchBase(c.watchBase))
	}
	return sources.NewService(sources.NewTrackCatalog(pool, opts...), sources.NewFetcher(pool), cfg.DefaultPolicy())
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "captions",
		Short:         "Video caption tracks and SRT downloads",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&ctx.proxy.Enabled, "proxy", envBool("PROXY_ENABLED", false), "Route requests through the HTTP proxy first")
	flags.StringVar(&ctx.proxy.Host, "proxy-host", env.Str("PROXY_HOST", ""), "HTTP proxy host")
	flags.IntVar(&ctx.proxy.Port, "proxy-port", env.Int("PROXY_PORT", 0), "HTTP proxy port")
	flags.StringVar(&ctx.proxy.Username, "proxy-user", env.Str("PROXY_USERNAME", ""), "HTTP proxy username")
	flags.StringVar(&ctx.proxy.Password, "proxy-pass", env.Str("PROXY_PASSWORD", ""), "HTTP proxy password")
	flags.DurationVar(&ctx.timeout, "timeout", env.Duration("FETCH_TIMEOUT", engine.DefaultTimeout), "Per-attempt request timeout")
	flags.IntVar(&ctx.attempts, "attempts", env.Int("FETCH_MAX_ATTEMPTS", engine.DefaultMaxAttempts), "Attempts per upstream request")
	flags.DurationVar(&ctx.baseDelay, "retry-delay", env.Duration("FETCH_BASE_DELAY", engine.DefaultBaseDelay), "Base delay between attempts")
	flags.StringVar(&ctx.watchBase, "watch-base", "", "Watch page URL prefix")
	_ = flags.MarkHidden("watch-base")

	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newTracksCommand(ctx))
	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
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

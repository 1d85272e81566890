package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	TrackRequests     atomic.Int64
	SubtitleRequests  atomic.Int64
	TranslateRequests atomic.Int64
	UpstreamAttempts  atomic.Int64
	UpstreamFailures  atomic.Int64
	ProxyDowngrades   atomic.Int64
	FallbackCatalogs  atomic.Int64
	PageScans         atomic.Int64
	LLMCalls          atomic.Int64
	LLMErrors         atomic.Int64
	ViewIncrements    atomic.Int64
}

// MetricNames lists counters in export order.
var MetricNames = []string{
	"track_requests", "subtitle_requests", "translate_requests",
	"upstream_attempts", "upstream_failures", "proxy_downgrades",
	"fallback_catalogs", "page_scans",
	"llm_calls", "llm_errors",
	"view_increments",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"track_requests":     metrics.TrackRequests.Load(),
		"subtitle_requests":  metrics.SubtitleRequests.Load(),
		"translate_requests": metrics.TranslateRequests.Load(),
		"upstream_attempts":  metrics.UpstreamAttempts.Load(),
		"upstream_failures":  metrics.UpstreamFailures.Load(),
		"proxy_downgrades":   metrics.ProxyDowngrades.Load(),
		"fallback_catalogs":  metrics.FallbackCatalogs.Load(),
		"page_scans":         metrics.PageScans.Load(),
		"llm_calls":          metrics.LLMCalls.Load(),
		"llm_errors":         metrics.LLMErrors.Load(),
		"view_increments":    metrics.ViewIncrements.Load(),
		"cache_hits":         hits,
		"cache_misses":       misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range MetricNames {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sub-packages.
func IncrTrackRequests()     { metrics.TrackRequests.Add(1) }
func IncrSubtitleRequests()  { metrics.SubtitleRequests.Add(1) }
func IncrTranslateRequests() { metrics.TranslateRequests.Add(1) }
func IncrFallbackCatalogs()  { metrics.FallbackCatalogs.Add(1) }
func IncrPageScans()         { metrics.PageScans.Add(1) }
func IncrViewIncrements()    { metrics.ViewIncrements.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}

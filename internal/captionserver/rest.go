package captionserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_caption/internal/engine"
	"github.com/anatolykoptev/go_caption/internal/engine/sources"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// ViewStore is the page-view counter behind /api/views.
type ViewStore interface {
	Incr(ctx context.Context, page string) (int64, error)
	Get(ctx context.Context, page string) (int64, error)
}

// RouterConfig configures the REST router.
type RouterConfig struct {
	Service    *sources.Service
	Views      ViewStore     // nil disables /api/views
	RateLimit  int           // requests per RateWindow per client IP; 0 = unlimited
	RateWindow time.Duration // defaults to one minute
	Metrics    http.Handler  // nil = MetricsHandler()
}

type errorBody struct {
	Error string `json:"error"`
}

type viewsBody struct {
	Page  string `json:"page"`
	Views int64  `json:"views"`
}

// NewRouter builds the REST API:
//
//	GET  /api/tracks?url=...
//	GET  /api/subtitles/{id}/{lang}[?format=srt][&translate=xx][&direct=1]
//	GET  /api/views/{page}
//	POST /api/views/{page}
//	GET  /healthz
//	GET  /metrics
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = MetricsHandler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	h := &restHandler{svc: cfg.Service, views: cfg.Views}
	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(rateLimit(cfg.RateLimit, cfg.RateWindow))
		}
		r.Get("/tracks", h.tracks)
		r.Get("/subtitles/{id}/{lang}", h.subtitles)
		if h.views != nil {
			r.Get("/views/{page}", h.getViews)
			r.Post("/views/{page}", h.incrViews)
		}
	})
	return r
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		}),
	)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)))
	})
}

type restHandler struct {
	svc   *sources.Service
	views ViewStore
}

func (h *restHandler) tracks(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Tracks(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *restHandler) subtitles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := engine.CaptionFetchInput{
		VideoID:  chi.URLParam(r, "id"),
		Language: chi.URLParam(r, "lang"),
		Direct:   parseBool(q.Get("direct")),
	}

	var (
		out engine.SubtitlesOutput
		err error
	)
	if target := strings.TrimSpace(q.Get("translate")); target != "" {
		out, err = translateSubtitles(r.Context(), h.svc, engine.CaptionTranslateInput{CaptionFetchInput: in, Target: target})
	} else {
		out, err = fetchSubtitles(r.Context(), h.svc, in)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if strings.EqualFold(q.Get("format"), "srt") {
		lang := out.Language
		if out.Target != "" {
			lang = out.Target
		}
		w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s.srt"`, out.VideoID, sanitizeFilePart(lang)))
		_, _ = w.Write([]byte(out.Content))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *restHandler) getViews(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	n, err := h.views.Get(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsBody{Page: page, Views: n})
}

func (h *restHandler) incrViews(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	n, err := h.views.Incr(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsBody{Page: page, Views: n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("http: encode response", slog.Any("error", err))
	}
}

// writeError maps a pipeline error to its status. Server-side failures are
// logged with the full chain; the body carries the message only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := engine.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Warn("http: request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func sanitizeFilePart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

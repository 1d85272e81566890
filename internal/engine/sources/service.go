package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_caption/internal/engine"
)

// ViewCounter records a page view and returns the new total.
type ViewCounter interface {
	Incr(ctx context.Context, page string) (int64, error)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCompleter sets the completion gateway used for translation.
func WithCompleter(f engine.CompleteFunc) ServiceOption {
	return func(s *Service) { s.complete = f }
}

// WithViews counts every served subtitle document.
func WithViews(v ViewCounter) ServiceOption {
	return func(s *Service) { s.views = v }
}

// Service composes resolution, track listing, fetching and rendering.
// It is safe for concurrent use; every call carries its own transport state.
type Service struct {
	catalog  *TrackCatalog
	fetcher  *Fetcher
	policy   engine.TransportPolicy
	complete engine.CompleteFunc
	views    ViewCounter
}

// NewService wires a service. policy is the default for calls that do not
// ask for direct transport.
func NewService(catalog *TrackCatalog, fetcher *Fetcher, policy engine.TransportPolicy, opts ...ServiceOption) *Service {
	s := &Service{catalog: catalog, fetcher: fetcher, policy: policy}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) policyFor(direct bool) engine.TransportPolicy {
	if direct {
		return s.policy.Direct()
	}
	return s.policy
}

// Tracks resolves rawURL and lists the video's caption tracks.
func (s *Service) Tracks(ctx context.Context, rawURL string) (engine.CaptionTracksOutput, error) {
	engine.IncrTrackRequests()
	if strings.TrimSpace(rawURL) == "" {
		return engine.CaptionTracksOutput{}, fmt.Errorf("%w: url is required", engine.ErrInvalidInput)
	}
	id, err := ResolveVideoID(rawURL)
	if err != nil {
		return engine.CaptionTracksOutput{}, err
	}
	cat, err := s.catalog.ListTracks(ctx, id, s.policy)
	if err != nil {
		return engine.CaptionTracksOutput{}, err
	}
	out := engine.CaptionTracksOutput{
		VideoID:       id,
		Authoritative: cat.Authoritative,
		Tracks:        make([]engine.TrackItem, 0, len(cat.Tracks)),
	}
	for _, t := range cat.Tracks {
		out.Tracks = append(out.Tracks, engine.TrackItem{Code: t.LanguageCode, Name: t.DisplayName, Auto: t.Kind == "asr"})
	}
	return out, nil
}

// ResolveInput returns the video id named by in: VideoID when set, otherwise
// the id resolved from URL.
func ResolveInput(in engine.CaptionFetchInput) (string, error) {
	if id := strings.TrimSpace(in.VideoID); id != "" {
		if !ValidVideoID(id) {
			return "", fmt.Errorf("%w: bad video id %q", engine.ErrInvalidInput, id)
		}
		return id, nil
	}
	if strings.TrimSpace(in.URL) == "" {
		return "", fmt.Errorf("%w: url or video_id is required", engine.ErrInvalidInput)
	}
	return ResolveVideoID(in.URL)
}

// Cues fetches the decoded cues of one language track.
func (s *Service) Cues(ctx context.Context, in engine.CaptionFetchInput) (string, FetchResult, error) {
	id, err := ResolveInput(in)
	if err != nil {
		return "", FetchResult{}, err
	}
	lang := engine.NormLang(in.Language)
	policy := s.policyFor(in.Direct)

	cat, err := s.catalog.ListTracks(ctx, id, policy)
	if err != nil {
		return id, FetchResult{}, err
	}
	track, ok := FirstTrack(cat.Tracks, lang)
	if !ok {
		if cat.Authoritative {
			return id, FetchResult{}, fmt.Errorf("%w: no captions for language %s", engine.ErrNoCaptions, lang)
		}
		// fallback catalogs are a guess; let the page scan decide
		track = CaptionTrack{LanguageCode: lang, DisplayName: lang}
	}

	res, err := s.fetcher.FetchTrack(ctx, s.fetcher.SourceFor(cat, track, s.catalog.WatchURL(id)), policy)
	if err != nil {
		return id, FetchResult{}, err
	}
	res.ProxyUsed = res.ProxyUsed || cat.ProxyUsed
	res.Attempts += cat.Attempts
	if res.Language == "" {
		res.Language = lang
	}
	return id, res, nil
}

// Subtitles fetches one language track and renders it as SRT.
func (s *Service) Subtitles(ctx context.Context, in engine.CaptionFetchInput) (engine.SubtitlesOutput, error) {
	engine.IncrSubtitleRequests()
	id, res, err := s.Cues(ctx, in)
	if err != nil {
		return engine.SubtitlesOutput{}, err
	}
	s.countView(ctx, id)
	return subtitlesOutput(id, res, res.Cues, ""), nil
}

// Translate fetches one language track, translates it into target and
// renders the result as SRT.
func (s *Service) Translate(ctx context.Context, in engine.CaptionTranslateInput) (engine.SubtitlesOutput, error) {
	engine.IncrTranslateRequests()
	target := strings.TrimSpace(in.Target)
	if target == "" {
		return engine.SubtitlesOutput{}, fmt.Errorf("%w: target is required", engine.ErrInvalidInput)
	}
	if s.complete == nil {
		return engine.SubtitlesOutput{}, engine.ErrLLMDisabled
	}
	id, res, err := s.Cues(ctx, in.CaptionFetchInput)
	if err != nil {
		return engine.SubtitlesOutput{}, err
	}
	var translated []Cue
	err = engine.TrackOperation(ctx, "translate "+id, func(ctx context.Context) error {
		var terr error
		translated, terr = Translate(ctx, s.complete, res.Cues, target)
		return terr
	})
	if err != nil {
		return engine.SubtitlesOutput{}, err
	}
	s.countView(ctx, id)
	return subtitlesOutput(id, res, translated, target), nil
}

func (s *Service) countView(ctx context.Context, id string) {
	if s.views == nil {
		return
	}
	if _, err := s.views.Incr(ctx, "subtitles:"+id); err != nil {
		slog.Warn("views: increment failed", slog.String("id", id), slog.Any("error", err))
	}
}

func subtitlesOutput(id string, res FetchResult, cues []Cue, target string) engine.SubtitlesOutput {
	return engine.SubtitlesOutput{
		VideoID:   id,
		Language:  res.Language,
		Content:   RenderSRT(cues),
		Cues:      len(cues),
		ProxyUsed: res.ProxyUsed,
		Attempts:  res.Attempts,
		Source:    res.Source,
		Target:    target,
	}
}

// NewServiceFromConfig wires a service against the live upstream using c's
// HTTP client and transport policy.
func NewServiceFromConfig(c engine.Config, opts ...ServiceOption) *Service {
	pool := engine.NewClientPool(c.HTTPClient)
	return NewService(NewTrackCatalog(pool), NewFetcher(pool), c.DefaultPolicy(), opts...)
}

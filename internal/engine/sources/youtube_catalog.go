package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_caption/internal/engine"
	"golang.org/x/net/html"
)

// FallbackLanguages is served when the watch page carries no readable track list.
var FallbackLanguages = []string{"en", "vi", "fr", "de", "ja", "ko", "es", "zh"}

// Extraction is the outcome of scanning a page for embedded tracks:
// either Found (Present == true) or NotPresent. It is never an error.
type Extraction struct {
	Tracks  []CaptionTrack
	Present bool
	Reason  string // why nothing was found, for logs
}

// Found wraps a located track list.
func Found(tracks []CaptionTrack) Extraction {
	return Extraction{Tracks: tracks, Present: true}
}

// NotPresent reports a page without a usable track list.
func NotPresent(reason string) Extraction {
	return Extraction{Reason: reason}
}

// TrackExtractor locates the caption track list embedded in a watch page.
type TrackExtractor interface {
	ExtractTracks(page []byte) Extraction
}

// EmbeddedExtractor finds the captionTracks marker in the page's scripts and
// decodes the balanced JSON array that follows it.
type EmbeddedExtractor struct{}

// ExtractTracks implements TrackExtractor.
func (EmbeddedExtractor) ExtractTracks(page []byte) Extraction {
	var fragment []byte
	for _, script := range scriptBodies(page) {
		if fragment = fragmentAfter(script, captionTracksMarker); fragment != nil {
			break
		}
	}
	if fragment == nil {
		// the tokenizer can miss scripts in truncated pages; scan the raw document
		fragment = fragmentAfter(page, captionTracksMarker)
	}
	if fragment == nil {
		return NotPresent(notPresentReason(page))
	}

	var raw []rawCaptionTrack
	if err := json.Unmarshal(fragment, &raw); err != nil {
		return NotPresent("decode captionTracks: " + err.Error())
	}

	tracks := make([]CaptionTrack, 0, len(raw))
	for _, r := range raw {
		if r.LanguageCode == "" {
			continue
		}
		name := strings.TrimSpace(r.Name.String())
		if name == "" {
			name = r.LanguageCode
		}
		tracks = append(tracks, CaptionTrack{
			LanguageCode: r.LanguageCode,
			DisplayName:  name,
			FetchURL:     r.BaseURL,
			Kind:         r.Kind,
		})
	}
	return Found(tracks)
}

func notPresentReason(page []byte) string {
	switch {
	case bytes.Contains(page, []byte(`action="https://consent.youtube.com/s"`)):
		return "consent page"
	case bytes.Contains(page, []byte(`class="g-recaptcha"`)):
		return "captcha page"
	case bytes.Contains(page, []byte(`"playabilityStatus":{"status":"ERROR"`)):
		return "video unavailable"
	default:
		return "captionTracks marker not found"
	}
}

// scriptBodies returns the text of every <script> element in page.
func scriptBodies(page []byte) [][]byte {
	var out [][]byte
	z := html.NewTokenizer(bytes.NewReader(page))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if inScript {
				out = append(out, bytes.Clone(z.Text()))
			}
		}
	}
}

// fragmentAfter returns the balanced JSON value that follows the first
// occurrence of marker, or nil.
func fragmentAfter(b []byte, marker string) []byte {
	idx := bytes.Index(b, []byte(marker))
	if idx < 0 {
		return nil
	}
	rest := bytes.TrimLeft(b[idx+len(marker):], " \t\r\n")
	return extractJSON(rest)
}

// extractJSON returns the smallest balanced object or array at the start of b.
// String contents (including escaped quotes) are skipped so brackets inside
// text never affect the depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || (b[0] != '{' && b[0] != '[') {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// CatalogOption configures a TrackCatalog.
type CatalogOption func(*TrackCatalog)

// WithWatchBase overrides the watch page URL prefix; the video id is appended.
func WithWatchBase(base string) CatalogOption {
	return func(c *TrackCatalog) { c.watchBase = base }
}

// WithExtractor swaps the track extraction strategy.
func WithExtractor(x TrackExtractor) CatalogOption {
	return func(c *TrackCatalog) { c.extractor = x }
}

// TrackCatalog lists the caption tracks of a video. One network call per
// lookup; nothing is cached.
type TrackCatalog struct {
	pool      *engine.ClientPool
	watchBase string
	extractor TrackExtractor
}

// NewTrackCatalog builds a catalog that fetches through pool.
func NewTrackCatalog(pool *engine.ClientPool, opts ...CatalogOption) *TrackCatalog {
	c := &TrackCatalog{pool: pool, watchBase: ytWatchBase, extractor: EmbeddedExtractor{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WatchURL is the watch page address for id.
func (c *TrackCatalog) WatchURL(id string) string {
	return c.watchBase + id
}

// ListTracks fetches the watch page and returns its caption tracks. A page
// without a readable track list yields the static fallback list with
// Authoritative=false; transport failures are returned as errors.
func (c *TrackCatalog) ListTracks(ctx context.Context, id string, policy engine.TransportPolicy) (Catalog, error) {
	if !ValidVideoID(id) {
		return Catalog{}, fmt.Errorf("%w: bad video id %q", engine.ErrInvalidInput, id)
	}

	resp, err := policy.Get(ctx, c.pool, c.WatchURL(id))
	if err != nil {
		return Catalog{}, fmt.Errorf("watch page %s: %w", id, err)
	}

	ex := c.extractor.ExtractTracks(resp.Body)
	if !ex.Present {
		engine.IncrFallbackCatalogs()
		slog.Warn("youtube: caption tracks not found, serving fallback list",
			slog.String("id", id), slog.String("reason", ex.Reason))
		return Catalog{
			VideoID:   id,
			Tracks:    fallbackTracks(),
			ProxyUsed: resp.ProxyUsed,
			Attempts:  resp.Attempts,
			page:      resp.Body,
		}, nil
	}
	if len(ex.Tracks) == 0 {
		return Catalog{}, fmt.Errorf("%w: video %s lists no caption tracks", engine.ErrNoCaptions, id)
	}
	return Catalog{
		VideoID:       id,
		Tracks:        ex.Tracks,
		Authoritative: true,
		ProxyUsed:     resp.ProxyUsed,
		Attempts:      resp.Attempts,
		page:          resp.Body,
	}, nil
}

// ListTracksStrict is ListTracks for callers that need live confirmation:
// the fallback list is reported as ErrNoCaptions.
func (c *TrackCatalog) ListTracksStrict(ctx context.Context, id string, policy engine.TransportPolicy) (Catalog, error) {
	cat, err := c.ListTracks(ctx, id, policy)
	if err != nil {
		return Catalog{}, err
	}
	if !cat.Authoritative {
		return Catalog{}, fmt.Errorf("%w: no caption track list for video %s", engine.ErrNoCaptions, id)
	}
	return cat, nil
}

func fallbackTracks() []CaptionTrack {
	tracks := make([]CaptionTrack, len(FallbackLanguages))
	for i, code := range FallbackLanguages {
		tracks[i] = CaptionTrack{LanguageCode: code, DisplayName: code}
	}
	return tracks
}

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_caption/internal/engine"
	"golang.org/x/net/html"
)

// DefaultCueDuration is used when upstream omits a cue's duration.
const DefaultCueDuration = 2.0

// Source names reported as provenance.
const (
	SourceTimedText = "timedtext"
	SourcePageScan  = "pagescan"
)

// FetchResult is a decoded caption track plus how it was obtained.
type FetchResult struct {
	Cues      []Cue
	Source    string
	Language  string // language actually served; page scanning may fall back to another
	ProxyUsed bool
	Attempts  int
}

// CaptionSource yields the raw timed-text payload for one track.
type CaptionSource interface {
	Name() string
	Payload(ctx context.Context, policy engine.TransportPolicy) (payload, error)
}

type payload struct {
	body      []byte
	language  string
	proxyUsed bool
	attempts  int
}

// timedTextSource fetches a track whose data URL is already known.
type timedTextSource struct {
	pool     *engine.ClientPool
	url      string
	language string
}

func (s timedTextSource) Name() string { return SourceTimedText }

func (s timedTextSource) Payload(ctx context.Context, policy engine.TransportPolicy) (payload, error) {
	resp, err := policy.Get(ctx, s.pool, s.url)
	if err != nil {
		return payload{}, fmt.Errorf("fetch timedtext: %w", err)
	}
	return payload{
		body:      resp.Body,
		language:  s.language,
		proxyUsed: resp.ProxyUsed,
		attempts:  resp.Attempts,
	}, nil
}

// pageScanSource locates a track URL by scanning the raw watch page when the
// catalog could not resolve one. The language-specific entry is preferred;
// otherwise the first timed-text URL on the page is used.
type pageScanSource struct {
	pool     *engine.ClientPool
	watchURL string
	language string
	page     []byte // already fetched page, may be nil
}

func (s pageScanSource) Name() string { return SourcePageScan }

func (s pageScanSource) Payload(ctx context.Context, policy engine.TransportPolicy) (payload, error) {
	engine.IncrPageScans()
	page := s.page
	proxyUsed := false
	attempts := 0
	if page == nil {
		resp, err := policy.Get(ctx, s.pool, s.watchURL)
		if err != nil {
			return payload{}, fmt.Errorf("watch page: %w", err)
		}
		page, proxyUsed, attempts = resp.Body, resp.ProxyUsed, resp.Attempts
	}

	trackURL, lang, ok := scanTrackURL(page, s.language)
	if !ok {
		return payload{}, fmt.Errorf("%w: no timedtext url on watch page", engine.ErrNoCaptions)
	}
	if lang != s.language {
		slog.Info("youtube: requested language not on page, using first track",
			slog.String("want", s.language), slog.String("got", lang))
	}
	p, err := timedTextSource{pool: s.pool, url: resolveRef(s.watchURL, trackURL), language: lang}.Payload(ctx, policy)
	if err != nil {
		return payload{}, err
	}
	p.proxyUsed = p.proxyUsed || proxyUsed
	p.attempts += attempts
	return p, nil
}

var (
	looseTrackRE = regexp.MustCompile(`"baseUrl"\s*:\s*"([^"]*timedtext[^"]*)"`)
	trackLangRE  = regexp.MustCompile(`(?:\?|&|\\u0026)lang=([A-Za-z0-9_-]+)`)
)

// langTrackRE matches a baseUrl entry carrying lang=<lang>.
func langTrackRE(lang string) *regexp.Regexp {
	return regexp.MustCompile(`"baseUrl"\s*:\s*"([^"]*(?:\?|&|\\u0026)lang=` +
		regexp.QuoteMeta(lang) + `(?:(?:\\u0026|&)[^"]*)?)"`)
}

// scanTrackURL finds a timed-text URL in the raw page, preferring lang.
// The URL is returned with JSON escapes such as \u0026 decoded.
func scanTrackURL(page []byte, lang string) (string, string, bool) {
	if lang != "" {
		if m := langTrackRE(lang).FindSubmatch(page); m != nil {
			return unescapeJSONURL(string(m[1])), lang, true
		}
	}
	m := looseTrackRE.FindSubmatch(page)
	if m == nil {
		return "", "", false
	}
	raw := string(m[1])
	got := ""
	if lm := trackLangRE.FindStringSubmatch(raw); lm != nil {
		got = lm[1]
	}
	return unescapeJSONURL(raw), got, true
}

// resolveRef makes a relative track URL absolute against the watch page.
func resolveRef(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

var urlEscapes = strings.NewReplacer(`\u0026`, "&", `\u003d`, "=", `\/`, "/")

func unescapeJSONURL(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err == nil {
		return out
	}
	return urlEscapes.Replace(s)
}

// Fetcher retrieves and decodes caption tracks.
type Fetcher struct {
	pool *engine.ClientPool
}

// NewFetcher builds a fetcher that sends requests through pool.
func NewFetcher(pool *engine.ClientPool) *Fetcher {
	return &Fetcher{pool: pool}
}

// SourceFor picks the caption source for a track: its own URL when the
// catalog resolved one, page scanning otherwise.
func (f *Fetcher) SourceFor(cat Catalog, track CaptionTrack, watchURL string) CaptionSource {
	if track.FetchURL != "" {
		return timedTextSource{pool: f.pool, url: resolveRef(watchURL, track.FetchURL), language: track.LanguageCode}
	}
	return pageScanSource{pool: f.pool, watchURL: watchURL, language: track.LanguageCode, page: cat.page}
}

// FetchTrack downloads and decodes one track. Zero decoded cues is
// ErrNoCaptions; an undecodable payload is ErrParse; transport failures
// are passed through. No placeholder captions are ever substituted.
func (f *Fetcher) FetchTrack(ctx context.Context, src CaptionSource, policy engine.TransportPolicy) (FetchResult, error) {
	p, err := src.Payload(ctx, policy)
	if err != nil {
		return FetchResult{}, err
	}
	cues, err := ParseTimedText(p.body)
	if err != nil {
		return FetchResult{}, err
	}
	if len(cues) == 0 {
		return FetchResult{}, fmt.Errorf("%w: track decoded to zero cues", engine.ErrNoCaptions)
	}
	return FetchResult{
		Cues:      cues,
		Source:    src.Name(),
		Language:  p.language,
		ProxyUsed: p.proxyUsed,
		Attempts:  p.attempts,
	}, nil
}

// ParseTimedText decodes a timed-text payload, XML or JSON3, into cues.
// An empty payload decodes to zero cues.
func ParseTimedText(data []byte) ([]Cue, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '{':
		return parseJSON3(trimmed)
	case '<':
		return parseTimedTextXML(trimmed)
	default:
		return nil, fmt.Errorf("%w: unrecognised timedtext payload %q", engine.ErrParse,
			engine.TruncateRunes(string(trimmed), 64, "…"))
	}
}

func parseTimedTextXML(data []byte) ([]Cue, error) {
	var tt ytTimedText
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(&tt); err != nil {
		return nil, fmt.Errorf("%w: timedtext XML: %v", engine.ErrParse, err)
	}
	switch tt.XMLName.Local {
	case "transcript":
		tt.Body.Paras = nil
	case "timedtext":
		tt.Lines = nil
	default:
		return nil, fmt.Errorf("%w: unexpected timedtext root <%s>", engine.ErrParse, tt.XMLName.Local)
	}

	cues := make([]Cue, 0, len(tt.Lines)+len(tt.Body.Paras))
	for _, l := range tt.Lines {
		cues = append(cues, Cue{
			Start:    parseSeconds(l.Start, 0),
			Duration: parseSeconds(l.Dur, DefaultCueDuration),
			Text:     html.UnescapeString(l.Text),
		})
	}
	for _, p := range tt.Body.Paras {
		text := p.Text
		if len(p.Segs) > 0 {
			var sb strings.Builder
			for _, s := range p.Segs {
				sb.WriteString(s.Text)
			}
			text = sb.String()
		}
		cues = append(cues, Cue{
			Start:    parseMillis(p.T, 0),
			Duration: parseMillis(p.D, DefaultCueDuration),
			Text:     html.UnescapeString(text),
		})
	}
	return cues, nil
}

func parseJSON3(data []byte) ([]Cue, error) {
	var doc ytJSON3
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: timedtext JSON3: %v", engine.ErrParse, err)
	}
	cues := make([]Cue, 0, len(doc.Events))
	for _, ev := range doc.Events {
		// window/style events carry no segs; append events only add line breaks
		if ev.Segs == nil || ev.AAppend == 1 {
			continue
		}
		var sb strings.Builder
		for _, s := range ev.Segs {
			sb.WriteString(s.UTF8)
		}
		start := 0.0
		if ev.TStartMs != nil {
			start = *ev.TStartMs / 1000
		}
		dur := DefaultCueDuration
		if ev.DDurationMs != nil {
			dur = *ev.DDurationMs / 1000
		}
		cues = append(cues, Cue{Start: start, Duration: dur, Text: html.UnescapeString(sb.String())})
	}
	return cues, nil
}

// parseSeconds reads a seconds attribute; absent or malformed yields def.
func parseSeconds(v *string, def float64) float64 {
	if v == nil {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*v), 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}

// parseMillis reads a millisecond attribute as seconds; absent or malformed yields def.
func parseMillis(v *string, def float64) float64 {
	if v == nil {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*v), 64)
	if err != nil || f < 0 {
		return def
	}
	return f / 1000
}

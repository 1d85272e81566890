package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/anatolykoptev/go_caption/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memViews struct {
	mu    sync.Mutex
	pages map[string]int64
}

func (m *memViews) Incr(_ context.Context, page string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pages == nil {
		m.pages = map[string]int64{}
	}
	m.pages[page]++
	return m.pages[page], nil
}

const liveWatchPage = `<html><script>var ytInitialPlayerResponse = {"captions":{"r":{"captionTracks":[` +
	`{"baseUrl":"%[1]s/api/timedtext?v=dQw4w9WgXcQ&lang=en","name":{"simpleText":"English"},"languageCode":"en"},` +
	`{"baseUrl":"%[1]s/api/timedtext?v=dQw4w9WgXcQ&lang=de&kind=asr","name":{"simpleText":"German (auto-generated)"},"languageCode":"de","kind":"asr"}` +
	`]}}};</script></html>`

const enTranscript = `<transcript><text start="0" dur="2">Hi</text><text start="2.5" dur="1.234"></text></transcript>`

// videoSite serves a watch page (live track list or scan-only) and timed text.
func videoSite(t *testing.T, live bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if live {
			fmt.Fprintf(w, liveWatchPage, "http://"+r.Host)
			return
		}
		fmt.Fprint(w, scanPage)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("lang") {
		case "en":
			fmt.Fprint(w, enTranscript)
		case "de":
			fmt.Fprint(w, scanTracks["de"])
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testService(srv *httptest.Server, opts ...ServiceOption) *Service {
	pool := engine.NewClientPool(nil)
	return NewService(testCatalog(srv), NewFetcher(pool), testPolicy(), opts...)
}

func TestServiceTracks(t *testing.T) {
	srv := videoSite(t, true)
	out, err := testService(srv).Tracks(context.Background(), "https://youtu.be/dQw4w9WgXcQ?t=3")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", out.VideoID)
	assert.True(t, out.Authoritative)
	assert.Equal(t, []engine.TrackItem{
		{Code: "en", Name: "English"},
		{Code: "de", Name: "German (auto-generated)", Auto: true},
	}, out.Tracks)
}

func TestServiceTracksErrors(t *testing.T) {
	srv := videoSite(t, true)
	s := testService(srv)

	_, err := s.Tracks(context.Background(), "")
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, engine.HTTPStatus(err))

	_, err = s.Tracks(context.Background(), "not a url")
	assert.ErrorIs(t, err, engine.ErrNotFound)
	assert.Equal(t, http.StatusBadRequest, engine.HTTPStatus(err))
}

func TestServiceSubtitles(t *testing.T) {
	srv := videoSite(t, true)
	views := &memViews{}
	out, err := testService(srv, WithViews(views)).Subtitles(context.Background(),
		engine.CaptionFetchInput{VideoID: "dQw4w9WgXcQ", Language: "en"})
	require.NoError(t, err)

	want := "1\n00:00:00,000 --> 00:00:02,000\nHi\n\n2\n00:00:02,500 --> 00:00:03,734\n\n\n"
	assert.Equal(t, want, out.Content)
	assert.Equal(t, 2, out.Cues)
	assert.Equal(t, "en", out.Language)
	assert.Equal(t, SourceTimedText, out.Source)
	assert.Equal(t, 2, out.Attempts)
	assert.False(t, out.ProxyUsed)
	assert.Equal(t, int64(1), views.pages["subtitles:dQw4w9WgXcQ"])
}

func TestServiceSubtitlesDefaultLanguage(t *testing.T) {
	srv := videoSite(t, true)
	out, err := testService(srv).Subtitles(context.Background(),
		engine.CaptionFetchInput{URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Equal(t, "en", out.Language)
}

func TestServiceSubtitlesLanguageMissing(t *testing.T) {
	srv := videoSite(t, true)
	views := &memViews{}
	_, err := testService(srv, WithViews(views)).Subtitles(context.Background(),
		engine.CaptionFetchInput{VideoID: "dQw4w9WgXcQ", Language: "fr"})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrNoCaptions)
	assert.Equal(t, http.StatusNotFound, engine.HTTPStatus(err))
	assert.Empty(t, views.pages)
}

func TestServiceSubtitlesFallbackCatalog(t *testing.T) {
	srv := videoSite(t, false)
	out, err := testService(srv).Subtitles(context.Background(),
		engine.CaptionFetchInput{VideoID: "dQw4w9WgXcQ", Language: "de"})
	require.NoError(t, err)
	assert.Equal(t, SourcePageScan, out.Source)
	assert.Equal(t, "de", out.Language)
	assert.Equal(t, 2, out.Cues)
	assert.True(t, strings.HasPrefix(out.Content, "1\n00:00:00,000 --> 00:00:01,000\nhallo\n\n"))
}

func TestServiceSubtitlesInvalidInput(t *testing.T) {
	srv := videoSite(t, true)
	s := testService(srv)
	for _, in := range []engine.CaptionFetchInput{
		{},
		{VideoID: "short"},
		{URL: "   "},
	} {
		_, err := s.Subtitles(context.Background(), in)
		assert.ErrorIs(t, err, engine.ErrInvalidInput, "input %+v", in)
	}
}

func TestServiceTranslate(t *testing.T) {
	srv := videoSite(t, true)
	u := &upperCompleter{}
	out, err := testService(srv, WithCompleter(u.complete)).Translate(context.Background(),
		engine.CaptionTranslateInput{
			CaptionFetchInput: engine.CaptionFetchInput{VideoID: "dQw4w9WgXcQ", Language: "de"},
			Target:            "fr",
		})
	require.NoError(t, err)
	assert.Equal(t, "fr", out.Target)
	assert.Equal(t, "de", out.Language)
	assert.Contains(t, out.Content, "HALLO")
	assert.Contains(t, out.Content, "WELT")
}

func TestServiceTranslateDisabled(t *testing.T) {
	srv := videoSite(t, true)
	_, err := testService(srv).Translate(context.Background(),
		engine.CaptionTranslateInput{CaptionFetchInput: engine.CaptionFetchInput{VideoID: "dQw4w9WgXcQ"}, Target: "fr"})
	assert.True(t, errors.Is(err, engine.ErrLLMDisabled))

	_, err = testService(srv, WithCompleter((&upperCompleter{}).complete)).Translate(context.Background(),
		engine.CaptionTranslateInput{CaptionFetchInput: engine.CaptionFetchInput{VideoID: "dQw4w9WgXcQ"}})
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
}

func TestResolveInput(t *testing.T) {
	id, err := ResolveInput(engine.CaptionFetchInput{URL: "https://youtu.be/AAAAAAAAAAA", VideoID: "dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id, "video_id wins over url")

	id, err = ResolveInput(engine.CaptionFetchInput{URL: "https://youtu.be/AAAAAAAAAAA"})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAAAAA", id)
}

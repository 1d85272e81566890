package captionserver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_caption/internal/engine"
	"github.com/anatolykoptev/go_caption/internal/engine/sources"
)

const testVideoID = "dQw4w9WgXcQ"

const watchPage = `<html><script>var ytInitialPlayerResponse = {"captions":{"r":{"captionTracks":[` +
	`{"baseUrl":"%[1]s/api/timedtext?v=dQw4w9WgXcQ&lang=en","name":{"simpleText":"English"},"languageCode":"en"},` +
	`{"baseUrl":"%[1]s/api/timedtext?v=dQw4w9WgXcQ&lang=de","name":{"simpleText":"Deutsch"},"languageCode":"de"}` +
	`]}}};</script></html>`

var transcripts = map[string]string{
	"en": `<transcript><text start="0" dur="2">Hi</text><text start="2.5" dur="1.234"></text></transcript>`,
	"de": `<transcript><text start="1" dur="1">Hallo</text></transcript>`,
}

// upstream fakes the video site. Requests for the video id "AAAAAAAAAAA"
// fail with 500.
type upstream struct {
	srv       *httptest.Server
	watchHits atomic.Int32
	textHits  atomic.Int32
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		u.watchHits.Add(1)
		if r.URL.Query().Get("v") == "AAAAAAAAAAA" {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, watchPage, "http://"+r.Host)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		u.textHits.Add(1)
		body, ok := transcripts[r.URL.Query().Get("lang")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	})
	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) service(opts ...sources.ServiceOption) *sources.Service {
	pool := engine.NewClientPool(nil)
	policy := engine.TransportPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Timeout: 2 * time.Second}
	catalog := sources.NewTrackCatalog(pool, sources.WithWatchBase(u.srv.URL+"/watch?v="))
	return sources.NewService(catalog, sources.NewFetcher(pool), policy, opts...)
}

// noCache disables the result cache for the duration of the test.
func noCache(t *testing.T) {
	t.Helper()
	engine.InitCache("", 0, 0, 0)
}

package engine

import (
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Re-export stealth helpers for engine consumers.
func ChromeHeaders() map[string]string { return stealth.ChromeHeaders() }
func RandomUserAgent() string          { return stealth.RandomUserAgent() }

// setBrowserHeaders fills in Chrome-like headers the request builder did not set.
// Accept-Encoding is left to net/http so responses are transparently decompressed.
func setBrowserHeaders(req *http.Request) {
	for k, v := range ChromeHeaders() {
		if http.CanonicalHeaderKey(k) == "Accept-Encoding" {
			continue
		}
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", RandomUserAgent())
	}
}

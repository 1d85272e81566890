package sources

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_caption/internal/engine"
)

// VideoIDLen is the length of a canonical video id.
const VideoIDLen = 11

var videoIDExactRE = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// videoIDPatterns are tried in order; the first match wins.
// Each requires a non-id character (or end of input) after the id so a longer
// token is never truncated into a false match.
var videoIDPatterns = []*regexp.Regexp{
	// short link: youtu.be/ID
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`),
	// watch page: youtube.com/watch?...v=ID
	regexp.MustCompile(`youtube(?:-nocookie)?\.com/watch\?(?:[^#]*?&)?v=([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`),
	// embed and friends: /embed/ID, /v/ID, /e/ID, /shorts/ID, /live/ID
	regexp.MustCompile(`youtube(?:-nocookie)?\.com/(?:embed|v|e|shorts|live)/([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`),
	// bare path: youtube.com/ID
	regexp.MustCompile(`youtube\.com/([A-Za-z0-9_-]{11})(?:[?#&/]|$)`),
}

var idTokenRE = regexp.MustCompile(`[A-Za-z0-9_-]+`)

// reservedPathWords are 11-character path segments that name a page, not a video.
var reservedPathWords = map[string]bool{
	"videoseries": true, // /embed/videoseries?list=...
	"live_stream": true, // /embed/live_stream?channel=...
}

// ResolveVideoID extracts the canonical video id from raw. The id is returned
// exactly as written; case is never normalised and trailing query parameters
// are dropped. When no known URL shape matches, a single 11-character
// URL-safe token anywhere in the input is accepted as a heuristic match.
func ResolveVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty video url", engine.ErrInvalidInput)
	}
	if videoIDExactRE.MatchString(raw) {
		return raw, nil
	}
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(raw); len(m) >= 2 && !reservedPathWords[m[1]] {
			return m[1], nil
		}
	}

	var candidate string
	count := 0
	for _, tok := range idTokenRE.FindAllString(raw, -1) {
		if len(tok) == VideoIDLen && !reservedPathWords[tok] {
			candidate = tok
			count++
		}
	}
	if count == 1 {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: no video id in %q", engine.ErrNotFound, engine.TruncateRunes(raw, 120, "…"))
}

// ValidVideoID reports whether id has the canonical shape.
func ValidVideoID(id string) bool {
	return videoIDExactRE.MatchString(id)
}

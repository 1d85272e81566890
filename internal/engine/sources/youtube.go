package sources

// YouTube caption pipeline is split across files by responsibility:
//   youtube_videoid.go   : video id resolution from arbitrary URL shapes
//   youtube_innertube.go : upstream constants and raw payload types
//   youtube_catalog.go   : caption track listing scraped from the watch page
//   youtube_transcript.go: caption sources, timed-text fetch and payload decoding
//   srt.go               : SubRip rendering
//   translate.go         : cue translation through the completion gateway
//   service.go           : resolve → list → fetch → render composition

// CaptionTrack is one language's subtitle stream for a video.
type CaptionTrack struct {
	LanguageCode string `json:"code"`
	DisplayName  string `json:"name"`
	FetchURL     string `json:"url,omitempty"`
	Kind         string `json:"kind,omitempty"` // "asr" = auto-generated
}

// Cue is one timed subtitle entry. Order of a cue slice is authoritative.
type Cue struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"dur"`
	Text     string  `json:"text"`
}

// Catalog is the result of one track listing.
type Catalog struct {
	VideoID       string
	Tracks        []CaptionTrack
	Authoritative bool // false when Tracks is the static fallback list
	ProxyUsed     bool
	Attempts      int

	page []byte // watch page the catalog was read from, reused by page scanning
}

// FirstTrack returns the first track with the given language code.
// Upstream may list a code more than once; the first entry wins.
func FirstTrack(tracks []CaptionTrack, lang string) (CaptionTrack, bool) {
	for _, t := range tracks {
		if t.LanguageCode == lang {
			return t, true
		}
	}
	return CaptionTrack{}, false
}

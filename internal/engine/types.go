package engine

// --- Tool inputs ---

type CaptionTracksInput struct {
	URL string `json:"url" jsonschema:"Video URL (watch page, short link, embed, shorts) or bare 11-character video id"`
}

type CaptionFetchInput struct {
	URL      string `json:"url,omitempty" jsonschema:"Video URL; ignored when video_id is set"`
	VideoID  string `json:"video_id,omitempty" jsonschema:"11-character video id"`
	Language string `json:"lang,omitempty" jsonschema:"Caption language code (default: en)"`
	Direct   bool   `json:"direct,omitempty" jsonschema:"Skip the proxy and fetch directly"`
}

type CaptionTranslateInput struct {
	CaptionFetchInput
	Target string `json:"target" jsonschema:"Target language for the translated subtitles, e.g. de or Vietnamese"`
}

// --- Output types (JSON responses) ---

type TrackItem struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Auto bool   `json:"auto,omitempty"` // auto-generated (asr) track
}

type CaptionTracksOutput struct {
	VideoID       string      `json:"video_id"`
	Authoritative bool        `json:"authoritative"` // false = static fallback list, not confirmed upstream
	Tracks        []TrackItem `json:"tracks"`
}

type SubtitlesOutput struct {
	VideoID   string `json:"video_id"`
	Language  string `json:"lang"`
	Content   string `json:"content"` // SRT text
	Cues      int    `json:"cues"`
	ProxyUsed bool   `json:"proxy_used"`
	Attempts  int    `json:"attempts"`
	Source    string `json:"source"` // timedtext | pagescan
	Target    string `json:"target,omitempty"`
	Cached    bool   `json:"cached,omitempty"` // served from the result cache; ProxyUsed and Attempts are zero
}

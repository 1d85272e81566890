package sources

import (
	"encoding/xml"
	"strings"
)

// YouTube upstream: constants and raw payload types.
// Higher-level logic lives in youtube_catalog.go and youtube_transcript.go.

const (
	ytWatchBase = "https://www.youtube.com/watch?v="

	// captionTracksMarker precedes the caption track array inside
	// ytInitialPlayerResponse on the watch page.
	captionTracksMarker = `"captionTracks":`
)

// --- watch page ytInitialPlayerResponse fragments ---

type rawCaptionTrack struct {
	BaseURL      string     `json:"baseUrl"`
	LanguageCode string     `json:"languageCode"`
	Kind         string     `json:"kind"` // "asr" = auto-generated
	Name         rawRunText `json:"name"`
}

type rawRunText struct {
	SimpleText string `json:"simpleText"`
	Runs       []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (r rawRunText) String() string {
	if r.SimpleText != "" {
		return r.SimpleText
	}
	var sb strings.Builder
	for _, run := range r.Runs {
		sb.WriteString(run.Text)
	}
	return sb.String()
}

// --- Timedtext XML types ---

// ytTimedText covers both the legacy <transcript><text start dur> layout
// (seconds) and format 3 <timedtext><body><p t d> (milliseconds).
type ytTimedText struct {
	XMLName xml.Name
	Lines   []ytLine `xml:"text"`
	Body    struct {
		Paras []ytPara `xml:"p"`
	} `xml:"body"`
}

type ytLine struct {
	Start *string `xml:"start,attr"`
	Dur   *string `xml:"dur,attr"`
	Text  string  `xml:",chardata"`
}

type ytPara struct {
	T    *string `xml:"t,attr"`
	D    *string `xml:"d,attr"`
	Text string  `xml:",chardata"`
	Segs []struct {
		Text string `xml:",chardata"`
	} `xml:"s"`
}

// --- Timedtext JSON3 types (fmt=json3) ---

type ytJSON3 struct {
	Events []ytJSON3Event `json:"events"`
}

type ytJSON3Event struct {
	TStartMs    *float64 `json:"tStartMs"`
	DDurationMs *float64 `json:"dDurationMs"`
	AAppend     int      `json:"aAppend"`
	Segs        []struct {
		UTF8 string `json:"utf8"`
	} `json:"segs"`
}

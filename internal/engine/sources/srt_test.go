package sources

import (
	"math"
	"testing"
)

func TestRenderSRT(t *testing.T) {
	cues := []Cue{
		{Start: 0, Duration: 2, Text: "Hi"},
		{Start: 2.5, Duration: 1.234, Text: ""},
	}
	want := "1\n00:00:00,000 --> 00:00:02,000\nHi\n\n" +
		"2\n00:00:02,500 --> 00:00:03,734\n\n\n"
	if got := RenderSRT(cues); got != want {
		t.Errorf("RenderSRT mismatch\ngot:  %q\nwant: %q", got, want)
	}
}

func TestRenderSRTEmpty(t *testing.T) {
	if got := RenderSRT(nil); got != "" {
		t.Errorf("RenderSRT(nil) = %q", got)
	}
	if got := RenderSRT([]Cue{}); got != "" {
		t.Errorf("RenderSRT([]) = %q", got)
	}
}

func TestRenderSRTIdempotent(t *testing.T) {
	cues := []Cue{
		{Start: 0.1, Duration: 0.2, Text: "a"},
		{Start: 3599.9995, Duration: 1, Text: "b\nsecond line"},
		{Start: 1, Duration: 1, Text: "out of order is kept"},
	}
	first := RenderSRT(cues)
	if second := RenderSRT(cues); first != second {
		t.Errorf("RenderSRT not idempotent:\n%q\n%q", first, second)
	}
}

func TestRenderSRTKeepsOrderAndNumbering(t *testing.T) {
	cues := []Cue{
		{Start: 10, Duration: 1, Text: "late"},
		{Start: 0, Duration: 1, Text: "early"},
		{Start: 5, Duration: 0, Text: "zero"},
	}
	want := "1\n00:00:10,000 --> 00:00:11,000\nlate\n\n" +
		"2\n00:00:00,000 --> 00:00:01,000\nearly\n\n" +
		"3\n00:00:05,000 --> 00:00:05,000\nzero\n\n"
	if got := RenderSRT(cues); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestRenderSRTMalformedNumbers(t *testing.T) {
	cues := []Cue{
		{Start: math.NaN(), Duration: 1, Text: "nan start"},
		{Start: 1, Duration: math.Inf(1), Text: "inf dur"},
		{Start: -4, Duration: -1, Text: "negative"},
	}
	want := "1\n00:00:00,000 --> 00:00:01,000\nnan start\n\n" +
		"2\n00:00:01,000 --> 00:00:01,000\ninf dur\n\n" +
		"3\n00:00:00,000 --> 00:00:00,000\nnegative\n\n"
	if got := RenderSRT(cues); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{2.5, "00:00:02,500"},
		{2.5 + 1.234, "00:00:03,734"},
		{0.0009, "00:00:00,000"},
		{1.9999, "00:00:01,999"},
		{59.999, "00:00:59,999"},
		{61.5, "00:01:01,500"},
		{3661.042, "01:01:01,042"},
		{36000, "10:00:00,000"},
		{360000.25, "100:00:00,250"},
		{-1, "00:00:00,000"},
		{math.NaN(), "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

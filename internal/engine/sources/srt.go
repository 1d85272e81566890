package sources

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxTimestampSeconds keeps microsecond arithmetic inside int64.
const maxTimestampSeconds = 1e12

// RenderSRT renders cues as SubRip text. Blocks are numbered from 1 in input
// order; every cue produces a block, including cues with empty text. The end
// time is start + duration. Malformed numbers (NaN, ±Inf, negative) count as 0.
func RenderSRT(cues []Cue) string {
	if len(cues) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, c := range cues {
		start := sanitizeSeconds(c.Start)
		end := start + sanitizeSeconds(c.Duration)
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteByte('\n')
		sb.WriteString(FormatTimestamp(start))
		sb.WriteString(" --> ")
		sb.WriteString(FormatTimestamp(end))
		sb.WriteByte('\n')
		sb.WriteString(c.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// FormatTimestamp formats seconds as HH:MM:SS,mmm. Milliseconds are floored;
// the value is first snapped to whole microseconds so binary float noise such
// as 3.7339999999999995 does not lose a millisecond.
func FormatTimestamp(seconds float64) string {
	seconds = sanitizeSeconds(seconds)
	micros := int64(math.Round(seconds * 1e6))
	ms := micros / 1000

	hours := ms / 3_600_000
	ms %= 3_600_000
	minutes := ms / 60_000
	ms %= 60_000
	secs := ms / 1_000
	millis := ms % 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

func sanitizeSeconds(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	if v > maxTimestampSeconds {
		return maxTimestampSeconds
	}
	return v
}

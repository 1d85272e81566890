package sources

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_caption/internal/engine"
)

// translateBatch bounds the number of cues sent in one prompt.
const translateBatch = 150

const lineBreakToken = " <br> "

const translatePrompt = `Translate each numbered subtitle line below into %s.
Reply with exactly one line per input line in the form "N: translation", keeping every number.
Do not merge, split, reorder or comment on lines. Keep "<br>" markers where they appear.

%s`

var numberedLineRE = regexp.MustCompile(`^\s*(\d+)\s*[:.)]\s?(.*)$`)

// Translate returns a copy of cues with text translated into target through
// complete. Timing and order are untouched; cues the reply omits keep their
// original text and empty cues are never sent.
func Translate(ctx context.Context, complete engine.CompleteFunc, cues []Cue, target string) ([]Cue, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("%w: translation target language is required", engine.ErrInvalidInput)
	}
	if complete == nil {
		return nil, engine.ErrLLMDisabled
	}

	out := make([]Cue, len(cues))
	copy(out, cues)

	var pending []int
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		var sb strings.Builder
		for n, idx := range pending {
			fmt.Fprintf(&sb, "%d: %s\n", n+1, strings.ReplaceAll(cues[idx].Text, "\n", lineBreakToken))
		}
		reply, err := complete(ctx, fmt.Sprintf(translatePrompt, target, sb.String()))
		if err != nil {
			return fmt.Errorf("translate: %w", err)
		}
		for n, text := range parseNumberedLines(reply) {
			if n < 1 || n > len(pending) || strings.TrimSpace(text) == "" {
				continue
			}
			out[pending[n-1]].Text = restoreLineBreaks(text)
		}
		pending = pending[:0]
		return nil
	}

	for i, c := range cues {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		pending = append(pending, i)
		if len(pending) == translateBatch {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseNumberedLines maps "N: text" lines of a reply to their numbers.
// The first occurrence of a number wins.
func parseNumberedLines(reply string) map[int]string {
	out := make(map[int]string)
	for _, line := range strings.Split(reply, "\n") {
		m := numberedLineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, seen := out[n]; !seen {
			out[n] = strings.TrimSpace(m[2])
		}
	}
	return out
}

var lineBreakRE = regexp.MustCompile(`(?i)\s*<br\s*/?>\s*`)

func restoreLineBreaks(s string) string {
	s = lineBreakRE.ReplaceAllString(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n")
}

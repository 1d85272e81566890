package engine

import (
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
)

// NormLang normalises a caption language code: trimmed, empty → "en".
// Case is kept because upstream codes such as "zh-Hans" are case-sensitive.
func NormLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en"
	}
	return lang
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

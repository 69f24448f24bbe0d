package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SafeTruncate shortens s to at most maxRunes runes, marking the cut with
// "...". Limits below 4 keep only the first rune.
func SafeTruncate(s string, maxRunes int) string {
	if maxRunes <= 0 || s == "" {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	if maxRunes < 4 {
		_, size := utf8.DecodeRuneInString(s)
		return s[:size]
	}
	n := 0
	for i := range s {
		if n == maxRunes-3 {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// StripANSI removes CSI escape sequences (colors, cursor movement) and drops
// other control characters except newline and tab.
func StripANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\x1b' {
			if i+1 < len(s) && s[i+1] == '[' {
				i += 2
				for i < len(s) && !isCSIFinal(s[i]) {
					i++
				}
			}
			continue
		}
		if c < 0x20 && c != '\n' && c != '\t' || c == 0x7f {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isCSIFinal(c byte) bool {
	return c >= 0x40 && c <= 0x7e
}

// CleanLine turns one line of subprocess output into a log-safe string:
// escapes and control characters are removed, tabs become spaces, trailing
// whitespace is trimmed and the result is limited to maxRunes.
func CleanLine(s string, maxRunes int) string {
	s = StripANSI(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r == '\n', r == utf8.RuneError:
			return -1
		}
		return r
	}, s)
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if maxRunes > 0 {
		s = SafeTruncate(s, maxRunes)
	}
	return s
}

// SplitLines cleans every line of s and drops empty ones.
func SplitLines(s string, maxRunes int) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if line = CleanLine(line, maxRunes); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Plural picks singular for n == 1 and plural otherwise.
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

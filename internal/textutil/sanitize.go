package textutil

import (
	"strings"
	"unicode"
)

// AlphaNumeric keeps only ASCII letters and digits from value.
func AlphaNumeric(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CollapseSpaces replaces every run of whitespace with a single space.
func CollapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// CollapseParagraphs collapses whitespace within lines and reduces runs of
// blank lines to a single empty line.
func CollapseParagraphs(value string) string {
	lines := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = CollapseSpaces(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimRightFunc(strings.Join(out, "\n"), unicode.IsSpace)
}

// TruncateRunes cuts value to at most limit runes. A non-positive limit
// returns value unchanged.
func TruncateRunes(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	count := 0
	for idx := range value {
		if count == limit {
			return value[:idx]
		}
		count++
	}
	return value
}

// Ternary is a generic conditional helper that returns a if cond is true, b otherwise.
func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

package textutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeToken converts a path segment into a filesystem-safe token. Letters
// and digits from any script are kept, as are '-' and '_'; everything else
// becomes '_'. The input is NFC-normalised first so decomposed names (as
// produced by macOS filesystems) keep their accented letters instead of
// turning each combining mark into '_'. Returns fallback for empty input.
func SanitizeToken(value, fallback string) string {
	value = strings.TrimSpace(norm.NFC.String(value))
	if value == "" {
		return fallback
	}
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if strings.Trim(out, "_") == "" {
		return fallback
	}
	return out
}

// RelativeTo returns path relative to root when path lies inside root, and
// path unchanged otherwise.
func RelativeTo(root, path string) string {
	if strings.TrimSpace(root) == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

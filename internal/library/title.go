package library

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mediavault/internal/mimetype"
)

// DeriveTitle produces a display title from a media file path. Separator runs
// collapse to single spaces and words are title-cased.
func DeriveTitle(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled"
	}
	return cases.Title(language.Und).String(title)
}

// ClassifyKind buckets a path by its extension.
func ClassifyKind(path string) Kind {
	switch {
	case mimetype.IsVideo(path):
		return KindVideo
	case mimetype.IsImage(path):
		return KindImage
	default:
		return KindOther
	}
}

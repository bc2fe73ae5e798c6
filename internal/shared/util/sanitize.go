package util

import (
	"errors"
	"strings"
	"unicode"
)

const maxFileNameRunes = 255

// ErrInvalidFileName is returned when nothing usable remains of a file name.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName reduces a client-supplied name to its base name without
// directory components or control characters.
func SanitizeFileName(name string) (string, error) {
	s := strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return "", ErrInvalidFileName
	}
	if r := []rune(s); len(r) > maxFileNameRunes {
		s = string(r[len(r)-maxFileNameRunes:])
	}
	return s, nil
}

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeName turns a demo title into a string safe to embed in the
// rendered output's file name. Control runes are dropped, anything
// outside the allowed set becomes an underscore, and the result is
// trimmed and capped at maxLen runes (0 means unlimited).
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
		case isAllowedNameRune(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := strings.TrimSpace(b.String())
	if maxLen > 0 {
		if runes := []rune(name); len(runes) > maxLen {
			name = string(runes[:maxLen])
		}
	}
	return name
}

// Letters, digits and the punctuation demo titles commonly carry. The
// set stays conservative so the name survives every filesystem an
// export might be copied to.
func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	}
	return false
}

// ValidateOutputDir vets a caller-supplied export destination before a
// render job writes into it. The directory must already exist; render
// jobs never create directories on the caller's behalf.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output_dir is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("output_dir cannot contain path traversal")
		}
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("output_dir must be clean path")
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("output_dir does not exist")
	case err != nil:
		return fmt.Errorf("invalid output_dir: %w", err)
	case !info.IsDir():
		return fmt.Errorf("output_dir is not a directory")
	}
	return nil
}

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeName keeps letters, digits and a small set of punctuation, replacing
// anything else with '_'. Control characters are dropped.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// FileName builds a safe file name with the extension for format. The
// extension is added unless name already carries it.
func FileName(name, format string) string {
	ext := "." + format
	base := SanitizeName(name, 120)
	base = strings.TrimSuffix(base, ext)
	base = strings.Trim(base, ". ")
	if base == "" {
		base = DefaultFileName
	}
	return base + ext
}

// ValidateOutputDir accepts only clean, existing directory paths.
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
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output_dir does not exist")
		}
		return fmt.Errorf("invalid output_dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output_dir is not a directory")
	}

	return nil
}

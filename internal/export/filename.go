package export

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultFilename replaces names that sanitize to nothing.
const DefaultFilename = "document"

var (
	unsafeChars = regexp.MustCompile(`[^\w().-]+`)
	hyphenRuns  = regexp.MustCompile(`-{2,}`)
)

// SanitizeFilename makes s safe to use as a file or archive entry name:
// diacritics are stripped, characters outside [A-Za-z0-9_().-] become
// hyphens, hyphen runs collapse and edge hyphens are trimmed.
func SanitizeFilename(s string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	cleaned, _, err := transform.String(stripper, s)
	if err != nil {
		cleaned = s
	}

	cleaned = unsafeChars.ReplaceAllString(cleaned, "-")
	cleaned = hyphenRuns.ReplaceAllString(cleaned, "-")
	cleaned = strings.Trim(cleaned, "-")

	// "." and ".." are not file names
	if strings.Trim(cleaned, ".") == "" {
		return DefaultFilename
	}
	return cleaned
}

package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Patterns for content that never needs translation: numbers, identifiers,
// addresses, placeholders. Anything matched here is copied through unchanged
// and never spends a backend call.
var skipPatterns = []*regexp.Regexp{
	// numbers in common shapes
	regexp.MustCompile(`^-?\d+$`),
	regexp.MustCompile(`^-?\d+\.\d+$`),
	regexp.MustCompile(`^\d{1,3}(,\d{3})*(\.\d+)?$`),
	regexp.MustCompile(`^-?\d+(\.\d+)?[eE][+-]?\d+$`),
	regexp.MustCompile(`^\d+(\.\d+)?\s*%$`),
	regexp.MustCompile(`^\d+(\.\d+){1,4}$`),
	regexp.MustCompile(`^\d+:\d+(\.\d+)?$`),
	regexp.MustCompile(`^\d+/\d+$`),
	// numeric ranges and time slots
	regexp.MustCompile(`^\d+\s*-\s*\d+$`),
	regexp.MustCompile(`^\d+:\d{2}-\d+:\d{2}$`),
	regexp.MustCompile(`^\d+\.\d+-\d+\.\d+$`),
	// hex, binary, octal, color codes
	regexp.MustCompile(`^0x[0-9A-Fa-f]+$`),
	regexp.MustCompile(`^#[0-9A-Fa-f]{3,8}$`),
	regexp.MustCompile(`^0b[01]+$`),
	regexp.MustCompile(`^0o[0-7]+$`),
	// currency
	regexp.MustCompile(`^[$¥€£₹₽¢]\s*\d+(\.\d{2})?$`),
	regexp.MustCompile(`^\d+(\.\d{2})?\s*[$¥€£₹₽¢]$`),
	// versions and builds
	regexp.MustCompile(`(?i)^v?\d+(\.\d+){1,3}(-\w+)?(\+\w+)?$`),
	regexp.MustCompile(`(?i)^(build|rev|revision)\s*\d+$`),
	// units of measure
	regexp.MustCompile(`(?i)^\d+(\.\d+)?\s*[a-zµ°²³/]+$`),
	// identifiers: UUIDs, MACs, IPs
	regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`),
	regexp.MustCompile(`^[0-9A-Fa-f]{2}([:-][0-9A-Fa-f]{2}){5}$`),
	regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(:\d+)?$`),
	// URLs, emails, paths, filenames
	regexp.MustCompile(`(?i)^(https?|ftp|ftps|file|sftp)://\S+$`),
	regexp.MustCompile(`(?i)^www\.\S+\.\S+`),
	regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`),
	regexp.MustCompile(`^[A-Za-z]:\\`),
	regexp.MustCompile(`^/[^/\s]`),
	regexp.MustCompile(`^[a-zA-Z0-9_\-.]+\.[a-zA-Z0-9]{1,5}$`),
	// placeholders and template variables
	regexp.MustCompile(`^[{\[<][^{}\[\]<>]*[}\]>]$`),
	regexp.MustCompile(`^\$\{[^}]*\}$`),
	regexp.MustCompile(`^%[A-Z_][A-Z0-9_]*%$`),
	regexp.MustCompile(`^\{\{[^}]*\}\}$`),
	// model numbers, SKUs, technical codes
	regexp.MustCompile(`^[A-Z]{1,4}\d{2,}[A-Z]?\d*$`),
	regexp.MustCompile(`^[A-Z]{2,}-\d{2,}(-[A-Z0-9]+)*$`),
	regexp.MustCompile(`^[A-Z]+_[A-Z]+(_[A-Z]+)*$`),
	regexp.MustCompile(`^[A-Z]{2,6}\d*$`),
	// math expressions
	regexp.MustCompile(`^[\d+\-*/().\s=<>≤≥≠±×÷√∞]+$`),
}

// ShouldTranslate reports whether a text span is worth sending to the
// translation backend. Empty, purely numeric or symbolic spans, and
// machine identifiers are skipped and passed through unchanged.
func ShouldTranslate(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	// CJK content is nearly always natural language
	if containsCJK(text) {
		return true
	}

	for _, re := range skipPatterns {
		if re.MatchString(text) {
			return false
		}
	}

	alpha, meaningful := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			alpha++
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			meaningful++
		}
	}

	// at least two letters before a span counts as language
	if alpha < 2 {
		return false
	}

	// very short spans need to be mostly alphabetic
	if len([]rune(text)) <= 3 && alpha*2 < len([]rune(text)) {
		return false
	}

	if meaningful > 0 && alpha*10 >= meaningful*6 {
		return true
	}
	return len([]rune(text)) > 8 && alpha >= 3
}

func containsCJK(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) ||
			unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) ||
			unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

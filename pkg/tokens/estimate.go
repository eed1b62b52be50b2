// Package tokens estimates LLM token counts for budget-based batching.
// The estimate is intentionally conservative: batches sized with it stay
// under real model limits across the providers we target, without shipping
// a full BPE vocabulary.
package tokens

import (
	"strings"
	"unicode"
)

// Estimate returns an approximate token count for text.
//
// CJK characters tokenize close to one token per rune; Latin-script text
// averages roughly four characters per token, which we approximate as
// 1.3 tokens per whitespace-separated word plus one token per punctuation
// run. Counts are rounded up.
func Estimate(text string) int {
	if text == "" {
		return 0
	}

	var cjk, punct int
	var latinChars int
	for _, r := range text {
		switch {
		case isCJK(r):
			cjk++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct++
		case !unicode.IsSpace(r):
			latinChars++
		}
	}

	words := 0
	for _, field := range strings.Fields(text) {
		if hasNonCJK(field) {
			words++
		}
	}

	// 13/10 ≈ 1.3 tokens per word, rounded up.
	latin := (words*13 + 9) / 10
	if latin == 0 && latinChars > 0 {
		latin = 1
	}
	return cjk + latin + (punct+3)/4
}

// EstimateAll sums Estimate over all texts.
func EstimateAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += Estimate(t)
	}
	return total
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

func hasNonCJK(s string) bool {
	for _, r := range s {
		if !isCJK(r) && (unicode.IsLetter(r) || unicode.IsNumber(r)) {
			return true
		}
	}
	return false
}

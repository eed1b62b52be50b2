// Package extract walks a parsed document tree and yields the ordered
// translatable units, each with a stable identifier and enough placement
// metadata for lossless reassembly.
package extract

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/transtools/doctrans/internal/document"
)

const (
	// DefaultMinLength is the minimum rune count for a span to be offered
	// for translation.
	DefaultMinLength = 2
	// contextWords is how many trailing words of the preceding unit are
	// attached as the surrounding-text hint.
	contextWords = 25
)

// Options tune the extraction pass.
type Options struct {
	// MinLength drops spans shorter than this many runes.
	MinLength int
	// WithContext attaches a sliding-window hint from the preceding unit.
	WithContext bool
}

// Extractor produces the ordered unit list for a document tree.
type Extractor struct {
	opts Options
}

func New(opts Options) *Extractor {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	return &Extractor{opts: opts}
}

// Extract walks the tree in document order and returns the translatable
// units. Deterministic: the same tree yields the same IDs and ordering.
// Duplicate addresses are a structural defect and rejected outright.
func (e *Extractor) Extract(tree *document.Tree) ([]Unit, error) {
	if tree == nil {
		return nil, fmt.Errorf("document tree is nil")
	}

	var units []Unit
	seen := make(map[string]struct{})
	prevText := ""

	err := tree.Walk(func(addr document.Address, node *document.Node) error {
		if node.Opaque {
			return nil
		}
		text := node.Text
		if len([]rune(strings.TrimSpace(text))) < e.opts.MinLength {
			return nil
		}
		if !ShouldTranslate(text) {
			return nil
		}

		id := UnitID(addr)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate unit address %s", addr)
		}
		seen[id] = struct{}{}

		unit := Unit{
			ID:         id,
			SourceText: text,
			Position:   append(document.Address(nil), addr...),
		}
		if e.opts.WithContext && prevText != "" {
			unit.Context = trailingWords(prevText, contextWords)
		}
		prevText = text

		units = append(units, unit)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract units: %w", err)
	}
	return units, nil
}

// trailingWords returns the last n whitespace-separated words of text.
func trailingWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[len(words)-n:], " ")
}

// DetectLanguage guesses the dominant source language of the unit list by
// majority vote across units.
func DetectLanguage(units []Unit) language.Tag {
	if len(units) == 0 {
		return language.Und
	}

	counts := make(map[string]int)
	for _, u := range units {
		iso := whatlanggo.DetectLang(u.SourceText).Iso6391()
		if iso == "" {
			continue
		}
		counts[iso]++
	}

	var topLang string
	var topCount int
	for lang, count := range counts {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}
	return language.Make(topLang)
}

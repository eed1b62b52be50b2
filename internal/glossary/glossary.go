// Package glossary loads a CSV term base and matches its entries against
// batch text so backends can be told which terminology to honor.
package glossary

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Term is a single glossary entry.
type Term struct {
	Source string
	Target string
}

// Glossary holds the loaded term base indexed for fast lookup. Matching is
// case-insensitive on the source side.
type Glossary struct {
	byKey    map[string]Term
	maxWords int
}

// Load reads a two-column CSV file (source,target). A header row whose first
// cell is "source" (any case) is skipped.
func Load(path string) (*Glossary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open glossary: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads glossary rows from r. Rows with fewer than two cells or an
// empty source are dropped.
func Parse(r io.Reader) (*Glossary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	g := &Glossary{byKey: make(map[string]Term)}
	for line := 0; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read glossary row %d: %w", line+1, err)
		}
		if len(row) < 2 {
			continue
		}
		source := strings.TrimSpace(row[0])
		target := strings.TrimSpace(row[1])
		if source == "" || target == "" {
			continue
		}
		if line == 0 && strings.EqualFold(source, "source") {
			continue
		}

		key := normalize(source)
		g.byKey[key] = Term{Source: source, Target: target}
		if n := len(strings.Fields(key)); n > g.maxWords {
			g.maxWords = n
		}
	}
	return g, nil
}

// Len returns the number of loaded terms.
func (g *Glossary) Len() int {
	if g == nil {
		return 0
	}
	return len(g.byKey)
}

// Match returns the glossary terms that occur in any of the given texts,
// sorted by source term. Lookup slides an n-gram window over the word
// sequence and probes the term table, so cost is independent of glossary
// size.
func (g *Glossary) Match(texts []string) []Term {
	if g.Len() == 0 {
		return nil
	}

	found := make(map[string]Term)
	for _, text := range texts {
		words := strings.Fields(normalize(text))
		for i := range words {
			for n := 1; n <= g.maxWords && i+n <= len(words); n++ {
				key := strings.Join(words[i:i+n], " ")
				if term, ok := g.byKey[key]; ok {
					found[key] = term
				}
			}
		}
	}

	terms := make([]Term, 0, len(found))
	for _, term := range found {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Source < terms[j].Source })
	return terms
}

// PromptSection renders matched terms as a block suitable for inclusion in
// an LLM prompt. Empty when no terms matched.
func PromptSection(terms []Term) string {
	if len(terms) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Use the following glossary, keeping these translations exactly:\n")
	for _, t := range terms {
		fmt.Fprintf(&sb, "%s => %s\n", t.Source, t.Target)
	}
	return sb.String()
}

// normalize lowercases and strips punctuation that would break word-level
// matching, keeping intra-word hyphens.
func normalize(s string) string {
	s = strings.ToLower(s)
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == ' ', r == '\t', r == '\n':
			sb.WriteRune(r)
		case r > 127:
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}
	return sb.String()
}

package backend

import (
	"fmt"
	"strings"

	"github.com/transtools/doctrans/internal/glossary"
)

// The LLM wire protocol: source lines are numbered "1. text" and the model
// must answer with the same numbering, one translation per line. Numbering
// lets us survive reordering and detect dropped or invented lines.

const systemPromptTemplate = `You are a professional translator. Translate each numbered line from %s to %s.
Rules:
- Reply with the same numbered lines, one translation per line, nothing else.
- Keep the exact line count and numbering of the input.
- Preserve placeholders, numbers, markup and formatting tokens unchanged.
- Do not merge, split, or reorder lines.`

// buildSystemPrompt renders the fixed instruction block, appending the
// glossary section when terms matched.
func buildSystemPrompt(req BatchRequest) string {
	source := req.SourceLang
	if source == "" || source == "auto" {
		source = "the source language"
	}
	prompt := fmt.Sprintf(systemPromptTemplate, source, req.TargetLang)

	if section := glossary.PromptSection(req.Glossary); section != "" {
		prompt += "\n\n" + section
	}
	if req.PrevContext != "" {
		prompt += "\n\nEarlier translated context, for continuity only (do not translate it again):\n" + req.PrevContext
	}
	return prompt
}

// buildUserPrompt renders the numbered source lines. Newlines inside a unit
// are flattened so the line protocol stays one line per unit.
func buildUserPrompt(req BatchRequest) string {
	var sb strings.Builder
	for i, u := range req.Batch.Units {
		text := strings.ReplaceAll(u.SourceText, "\n", " ")
		fmt.Fprintf(&sb, "%d. %s\n", i+1, text)
	}
	return sb.String()
}

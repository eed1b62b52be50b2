// Package reassemble writes translation results back into the document
// tree. The original tree is never mutated; the caller gets a clone with
// only the unit addresses rewritten, so all non-unit content survives
// byte-for-byte.
package reassemble

import (
	"errors"
	"fmt"

	"github.com/transtools/doctrans/internal/backend"
	"github.com/transtools/doctrans/internal/document"
	"github.com/transtools/doctrans/internal/extract"
)

// DriftError reports that the document no longer matches the extraction
// the results were computed from. Fatal for the job; the checkpoint stays
// intact so the job can be re-run against the right document.
type DriftError struct {
	Address document.Address
	Reason  string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("document drift at %s: %s", e.Address, e.Reason)
}

// Options tune reassembly.
type Options struct {
	// Bilingual keeps the source line above its translation instead of
	// replacing it.
	Bilingual bool
}

// Apply returns a copy of tree with every unit's translation written at
// its address. Skipped units keep their source text. A unit whose address
// no longer resolves, or whose text at the address differs from the
// recorded source, is drift and fails the whole pass. Applying the same
// result mapping twice yields the same output.
func Apply(tree *document.Tree, units []extract.Unit, results map[string]backend.Result, opts Options) (*document.Tree, error) {
	out := tree.Clone()

	for _, u := range units {
		res, ok := results[u.ID]
		if !ok {
			return nil, fmt.Errorf("no result for unit %s at %s", u.ID, u.Position)
		}

		current, err := out.GetText(u.Position)
		if err != nil {
			if errors.Is(err, document.ErrNotFound) {
				return nil, &DriftError{Address: u.Position, Reason: "address no longer resolves"}
			}
			return nil, err
		}
		if current != u.SourceText {
			return nil, &DriftError{Address: u.Position, Reason: "text at address no longer matches recorded source"}
		}

		var text string
		switch res.Status {
		case backend.StatusSuccess:
			text = res.TranslatedText
			if opts.Bilingual {
				text = u.SourceText + "\n" + res.TranslatedText
			}
		case backend.StatusSkipped:
			text = u.SourceText
		default:
			return nil, fmt.Errorf("unit %s at %s is in non-terminal state %s", u.ID, u.Position, res.Status)
		}

		if err := out.SetText(u.Position, text); err != nil {
			return nil, err
		}
	}
	return out, nil
}

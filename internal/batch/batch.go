// Package batch groups extracted units into ordered submission batches
// under a token budget.
package batch

import (
	"github.com/transtools/doctrans/internal/extract"
	"github.com/transtools/doctrans/pkg/tokens"
)

// DefaultBudget is the token budget used when none is configured.
const DefaultBudget = 768

// Batch is the atomic unit of backend submission. Never empty.
type Batch struct {
	Index int
	Units []extract.Unit
}

// Tokens returns the estimated token weight of the batch source text.
func (b Batch) Tokens() int {
	total := 0
	for _, u := range b.Units {
		total += tokens.Estimate(u.SourceText)
	}
	return total
}

// Batcher splits an ordered unit list into batches. Order is preserved:
// concatenating the batches reproduces the input. A unit that alone exceeds
// the budget gets a batch of its own rather than being dropped or split.
type Batcher struct {
	budget int
}

func New(budget int) *Batcher {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Batcher{budget: budget}
}

// Split partitions units into batches under the token budget. Units that
// share a structural parent are kept together when the budget allows: a
// parent boundary closes the current batch once it is at least three
// quarters full, so sections tend not to straddle batches.
func (b *Batcher) Split(units []extract.Unit) []Batch {
	if len(units) == 0 {
		return nil
	}

	var batches []Batch
	var current []extract.Unit
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		batches = append(batches, Batch{Index: len(batches), Units: current})
		current = nil
		currentTokens = 0
	}

	for i, u := range units {
		cost := tokens.Estimate(u.SourceText)

		if len(current) > 0 {
			if currentTokens+cost > b.budget {
				flush()
			} else if i > 0 && currentTokens*4 >= b.budget*3 && parentKey(u) != parentKey(units[i-1]) {
				flush()
			}
		}

		current = append(current, u)
		currentTokens += cost
	}
	flush()
	return batches
}

// parentKey identifies the structural parent of a unit, used as the soft
// batch boundary.
func parentKey(u extract.Unit) string {
	if len(u.Position) <= 1 {
		return ""
	}
	return u.Position[:len(u.Position)-1].String()
}

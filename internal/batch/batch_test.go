package batch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transtools/doctrans/internal/document"
	"github.com/transtools/doctrans/internal/extract"
	"github.com/transtools/doctrans/pkg/tokens"
)

func makeUnits(n int, text string) []extract.Unit {
	units := make([]extract.Unit, n)
	for i := range units {
		addr := document.ParseAddress(fmt.Sprintf("line:%d", i))
		units[i] = extract.Unit{
			ID:         extract.UnitID(addr),
			SourceText: text,
			Position:   addr,
		}
	}
	return units
}

func TestSplit_PreservesOrder(t *testing.T) {
	units := makeUnits(20, "a reasonably sized sentence for batching purposes")
	batches := New(60).Split(units)

	require.NotEmpty(t, batches)
	require.Greater(t, len(batches), 1)

	var flattened []extract.Unit
	for i, b := range batches {
		require.Equal(t, i, b.Index)
		require.NotEmpty(t, b.Units)
		flattened = append(flattened, b.Units...)
	}
	require.Equal(t, units, flattened)
}

func TestSplit_RespectsBudget(t *testing.T) {
	units := makeUnits(10, "five words in this sentence")
	budget := 30
	batches := New(budget).Split(units)

	for _, b := range batches {
		if len(b.Units) > 1 {
			require.LessOrEqual(t, b.Tokens(), budget)
		}
	}
}

func TestSplit_OversizedUnitGetsOwnBatch(t *testing.T) {
	huge := strings.Repeat("word ", 400)
	require.Greater(t, tokens.Estimate(huge), 50)

	units := makeUnits(1, "short sentence here")
	units = append(units, extract.Unit{
		ID:         "big",
		SourceText: huge,
		Position:   document.ParseAddress("line:1"),
	})
	units = append(units, extract.Unit{
		ID:         "after",
		SourceText: "another short sentence",
		Position:   document.ParseAddress("line:2"),
	})

	batches := New(50).Split(units)
	require.Len(t, batches, 3)
	require.Len(t, batches[1].Units, 1)
	require.Equal(t, "big", batches[1].Units[0].ID)
}

func TestSplit_Empty(t *testing.T) {
	require.Nil(t, New(100).Split(nil))
}

func TestSplit_SectionBoundaryClosesNearFullBatch(t *testing.T) {
	var units []extract.Unit
	for i := 0; i < 4; i++ {
		addr := document.ParseAddress(fmt.Sprintf("sec:0/line:%d", i))
		units = append(units, extract.Unit{ID: extract.UnitID(addr), SourceText: "some words to fill the first section up", Position: addr})
	}
	addr := document.ParseAddress("sec:1/line:0")
	units = append(units, extract.Unit{ID: extract.UnitID(addr), SourceText: "the next section begins", Position: addr})

	// budget large enough to hold everything, small enough that the batch
	// is over three quarters full when the section changes
	batches := New(50).Split(units)
	require.GreaterOrEqual(t, len(batches), 2)
	last := batches[len(batches)-1]
	require.Equal(t, "sec:1/line:0", last.Units[0].Position.String())
}

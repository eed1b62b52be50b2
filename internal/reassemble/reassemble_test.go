package reassemble

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transtools/doctrans/internal/backend"
	"github.com/transtools/doctrans/internal/document"
	"github.com/transtools/doctrans/internal/extract"
)

func buildFixture() (*document.Tree, []extract.Unit, map[string]backend.Result) {
	tree := document.NewTree("txt")
	tree.Root().AddChild("line:0").Text = "hello"
	tree.Root().AddChild("line:1").Text = "world"
	opaque := tree.Root().AddChild("line:2")
	opaque.Text = "1234"
	opaque.Opaque = true

	units := []extract.Unit{
		{ID: "u0", SourceText: "hello", Position: document.ParseAddress("line:0")},
		{ID: "u1", SourceText: "world", Position: document.ParseAddress("line:1")},
	}
	results := map[string]backend.Result{
		"u0": {UnitID: "u0", TranslatedText: "bonjour", Status: backend.StatusSuccess},
		"u1": {UnitID: "u1", Status: backend.StatusSkipped},
	}
	return tree, units, results
}

func TestApply(t *testing.T) {
	tree, units, results := buildFixture()

	out, err := Apply(tree, units, results, Options{})
	require.NoError(t, err)

	text, err := out.GetText(document.ParseAddress("line:0"))
	require.NoError(t, err)
	require.Equal(t, "bonjour", text)

	// skipped unit passes its source through
	text, err = out.GetText(document.ParseAddress("line:1"))
	require.NoError(t, err)
	require.Equal(t, "world", text)

	// non-unit content untouched
	text, err = out.GetText(document.ParseAddress("line:2"))
	require.NoError(t, err)
	require.Equal(t, "1234", text)

	// original tree not mutated
	text, err = tree.GetText(document.ParseAddress("line:0"))
	require.NoError(t, err)
	require.Equal(t, "hello", text)
}

func TestApply_Idempotent(t *testing.T) {
	tree, units, results := buildFixture()

	first, err := Apply(tree, units, results, Options{})
	require.NoError(t, err)
	second, err := Apply(tree, units, results, Options{})
	require.NoError(t, err)

	a, _ := first.GetText(document.ParseAddress("line:0"))
	b, _ := second.GetText(document.ParseAddress("line:0"))
	require.Equal(t, a, b)
}

func TestApply_Bilingual(t *testing.T) {
	tree, units, results := buildFixture()

	out, err := Apply(tree, units, results, Options{Bilingual: true})
	require.NoError(t, err)

	text, err := out.GetText(document.ParseAddress("line:0"))
	require.NoError(t, err)
	require.Equal(t, "hello\nbonjour", text)

	// skipped units are not doubled
	text, err = out.GetText(document.ParseAddress("line:1"))
	require.NoError(t, err)
	require.Equal(t, "world", text)
}

func TestApply_MissingAddressIsDrift(t *testing.T) {
	tree, units, results := buildFixture()
	units[0].Position = document.ParseAddress("line:99")

	_, err := Apply(tree, units, results, Options{})
	var drift *DriftError
	require.ErrorAs(t, err, &drift)
	require.Equal(t, "line:99", drift.Address.String())
}

func TestApply_SourceMismatchIsDrift(t *testing.T) {
	tree, units, results := buildFixture()
	units[1].SourceText = "something else entirely"

	_, err := Apply(tree, units, results, Options{})
	var drift *DriftError
	require.ErrorAs(t, err, &drift)
}

func TestApply_MissingResult(t *testing.T) {
	tree, units, results := buildFixture()
	delete(results, "u1")

	_, err := Apply(tree, units, results, Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no result for unit")
}

func TestApply_FailedResultRejected(t *testing.T) {
	tree, units, results := buildFixture()
	results["u1"] = backend.Result{UnitID: "u1", Status: backend.StatusFailed}

	_, err := Apply(tree, units, results, Options{})
	require.Error(t, err)
}

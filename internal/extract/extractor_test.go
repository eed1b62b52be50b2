package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/transtools/doctrans/internal/document"
)

func buildTestTree() *document.Tree {
	tree := document.NewTree("txt")
	root := tree.Root()
	root.AddChild("line:0").Text = "First translatable sentence here."
	root.AddChild("line:1").Text = "42"
	time := root.AddChild("line:2")
	time.Text = "00:01:02,000 --> 00:01:04,000"
	time.Opaque = true
	root.AddChild("line:3").Text = "Second sentence, equally translatable."
	root.AddChild("line:4").Text = ""
	return tree
}

func TestExtractor_SkipsOpaqueAndNoise(t *testing.T) {
	e := New(Options{})
	units, err := e.Extract(buildTestTree())
	require.NoError(t, err)

	require.Len(t, units, 2)
	require.Equal(t, "First translatable sentence here.", units[0].SourceText)
	require.Equal(t, "line:0", units[0].Position.String())
	require.Equal(t, "Second sentence, equally translatable.", units[1].SourceText)
	require.Equal(t, "line:3", units[1].Position.String())
}

func TestExtractor_Deterministic(t *testing.T) {
	e := New(Options{})

	first, err := e.Extract(buildTestTree())
	require.NoError(t, err)
	second, err := e.Extract(buildTestTree())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].ID, second[i].ID)
		require.Equal(t, first[i].Position, second[i].Position)
	}
}

func TestExtractor_MinLength(t *testing.T) {
	tree := document.NewTree("txt")
	tree.Root().AddChild("line:0").Text = "hello there"
	tree.Root().AddChild("line:1").Text = "hi"

	e := New(Options{MinLength: 5})
	units, err := e.Extract(tree)
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Equal(t, "hello there", units[0].SourceText)
}

func TestExtractor_ContextHint(t *testing.T) {
	tree := document.NewTree("txt")
	tree.Root().AddChild("line:0").Text = "The meeting starts at nine."
	tree.Root().AddChild("line:1").Text = "Please arrive a bit earlier."

	e := New(Options{WithContext: true})
	units, err := e.Extract(tree)
	require.NoError(t, err)
	require.Len(t, units, 2)
	require.Empty(t, units[0].Context)
	require.Equal(t, "The meeting starts at nine.", units[1].Context)
}

func TestUnitID_StableAndDistinct(t *testing.T) {
	a := document.ParseAddress("cue:1/text")
	b := document.ParseAddress("cue:2/text")

	require.Equal(t, UnitID(a), UnitID(a))
	require.NotEqual(t, UnitID(a), UnitID(b))
	require.Len(t, UnitID(a), 16)
}

func TestDetectLanguage(t *testing.T) {
	units := []Unit{
		{SourceText: "Ceci est une phrase en français, écrite pour le test."},
		{SourceText: "Une autre phrase française qui confirme la détection."},
		{SourceText: "Encore une troisième phrase pour renforcer le vote majoritaire."},
	}
	require.Equal(t, language.Make("fr"), DetectLanguage(units))
	require.Equal(t, language.Und, DetectLanguage(nil))
}

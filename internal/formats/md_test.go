package formats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transtools/doctrans/internal/document"
)

const sampleMD = `---
title: Example
---

Intro paragraph.

# First Section

Body of the first section.

` + "```go\nfmt.Println(\"hi\")\n```" + `

# Second Section

More text here.
`

func TestMdFormat_Parse(t *testing.T) {
	f := NewMdFormat()
	tree, err := f.Parse(strings.NewReader(sampleMD))
	require.NoError(t, err)

	var sections, code, opaque []string
	err = tree.Walk(func(addr document.Address, node *document.Node) error {
		name := addr.String()
		switch {
		case strings.HasPrefix(name, "sec:"):
			sections = append(sections, node.Text)
		case strings.HasPrefix(name, "code:"):
			code = append(code, node.Text)
		}
		if node.Opaque {
			opaque = append(opaque, name)
		}
		return nil
	})
	require.NoError(t, err)

	require.Len(t, sections, 3)
	require.Contains(t, sections[0], "Intro paragraph.")
	require.Contains(t, sections[1], "# First Section")
	require.Contains(t, sections[2], "# Second Section")

	require.Len(t, code, 1)
	require.Contains(t, code[0], "fmt.Println")

	// frontmatter and the code fence are pass-through
	require.Contains(t, opaque, "frontmatter")
	require.Contains(t, opaque, "code:0")
}

func TestMdFormat_CommitPreservesOpaque(t *testing.T) {
	f := NewMdFormat()
	tree, err := f.Parse(strings.NewReader(sampleMD))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Commit(tree, &buf))
	out := buf.String()

	require.Contains(t, out, "title: Example")
	require.Contains(t, out, "```go\nfmt.Println(\"hi\")\n```")
	require.Contains(t, out, "# Second Section")
}

func TestMdFormat_NoHeadings(t *testing.T) {
	f := NewMdFormat()
	tree, err := f.Parse(strings.NewReader("just a single paragraph\n"))
	require.NoError(t, err)

	text, err := tree.GetText(document.ParseAddress("sec:0"))
	require.NoError(t, err)
	require.Equal(t, "just a single paragraph", text)
}

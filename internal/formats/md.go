package formats

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/transtools/doctrans/internal/document"
)

var (
	// mdCodeFence matches fenced code blocks (``` or ~~~).
	mdCodeFence = regexp.MustCompile("(?s)```.*?```|~~~.*?~~~")
	// mdSectionSplit matches headings and horizontal rules that delimit
	// sections, applied outside fenced code blocks only.
	mdSectionSplit = regexp.MustCompile(`(?m)^(#{1,6} .+|[-*_]{3,}\s*)$`)
	// mdFrontmatter matches a YAML front matter block at the start of the file.
	mdFrontmatter = regexp.MustCompile(`(?s)^---\r?\n.*?\r?\n---\r?\n?`)
)

// MdFormat parses Markdown into translatable sections. The body is split on
// headings and horizontal rules; fenced code blocks and YAML front matter
// become opaque leaves and round-trip untouched.
type MdFormat struct{}

func NewMdFormat() *MdFormat {
	return &MdFormat{}
}

func (f *MdFormat) Name() string {
	return "md"
}

func (f *MdFormat) Extensions() []string {
	return []string{".md", ".markdown"}
}

func (f *MdFormat) Parse(r io.Reader) (*document.Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown file: %w", err)
	}
	text := string(data)

	tree := document.NewTree(f.Name())

	if m := mdFrontmatter.FindStringIndex(text); m != nil {
		fm := tree.Root().AddChild("frontmatter")
		fm.Text = strings.TrimRight(text[m[0]:m[1]], "\n")
		fm.Opaque = true
		text = text[m[1]:]
	}

	secIdx, codeIdx := 0, 0
	addSections := func(chunk string) {
		for _, block := range splitSections(chunk) {
			leaf := tree.Root().AddChild(fmt.Sprintf("sec:%d", secIdx))
			leaf.Text = block
			secIdx++
		}
	}

	// Walk the body interleaving prose segments with code fences so that
	// fence content is never offered for translation.
	prev := 0
	for _, loc := range mdCodeFence.FindAllStringIndex(text, -1) {
		addSections(text[prev:loc[0]])
		code := tree.Root().AddChild(fmt.Sprintf("code:%d", codeIdx))
		code.Text = text[loc[0]:loc[1]]
		code.Opaque = true
		codeIdx++
		prev = loc[1]
	}
	addSections(text[prev:])

	return tree, nil
}

// splitSections cuts prose at heading and horizontal-rule lines, keeping
// the delimiter line attached to the section it opens.
func splitSections(chunk string) []string {
	delims := mdSectionSplit.FindAllStringIndex(chunk, -1)

	var spans []string
	appendSpan := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			spans = append(spans, s)
		}
	}

	if len(delims) == 0 {
		appendSpan(chunk)
		return spans
	}

	appendSpan(chunk[:delims[0][0]])
	for i, loc := range delims {
		end := len(chunk)
		if i+1 < len(delims) {
			end = delims[i+1][0]
		}
		appendSpan(chunk[loc[0]:end])
	}
	return spans
}

func (f *MdFormat) Commit(tree *document.Tree, w io.Writer) error {
	bw := bufio.NewWriter(w)
	first := true
	err := tree.Walk(func(addr document.Address, node *document.Node) error {
		if node.Text == "" {
			return nil
		}
		if !first {
			if _, err := bw.WriteString("\n\n"); err != nil {
				return err
			}
		}
		first = false
		_, werr := bw.WriteString(strings.TrimRight(node.Text, "\n"))
		return werr
	})
	if err != nil {
		return fmt.Errorf("failed to write markdown file: %w", err)
	}
	if !first {
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

var _ document.Format = (*MdFormat)(nil)

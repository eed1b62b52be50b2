// Package formats holds the in-core document formats (txt, srt, md).
// Office and PDF formats plug in through the same document.Format contract
// but live outside this module.
package formats

import (
	"bufio"
	"fmt"
	"io"

	"github.com/transtools/doctrans/internal/document"
)

// TxtFormat parses plain text line by line. Every line becomes one leaf so
// that blank lines and spacing survive the round trip byte for byte.
type TxtFormat struct{}

func NewTxtFormat() *TxtFormat {
	return &TxtFormat{}
}

func (f *TxtFormat) Name() string {
	return "txt"
}

func (f *TxtFormat) Extensions() []string {
	return []string{".txt"}
}

func (f *TxtFormat) Parse(r io.Reader) (*document.Tree, error) {
	tree := document.NewTree(f.Name())

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	idx := 0
	for scanner.Scan() {
		leaf := tree.Root().AddChild(fmt.Sprintf("line:%d", idx))
		leaf.Text = scanner.Text()
		idx++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return tree, nil
}

func (f *TxtFormat) Commit(tree *document.Tree, w io.Writer) error {
	bw := bufio.NewWriter(w)
	first := true
	err := tree.Walk(func(addr document.Address, node *document.Node) error {
		if !first {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
		first = false
		_, err := bw.WriteString(node.Text)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write text file: %w", err)
	}
	return bw.Flush()
}

// ensure interface compliance
var _ document.Format = (*TxtFormat)(nil)

// Package document models parsed documents as trees of addressable nodes.
// Format-specific parsers build a Tree; the extraction and reassembly layers
// only ever talk to the Tree, never to format internals.
package document

import (
	"errors"
	"fmt"
	"io"
)

// ErrNotFound reports an address that does not resolve in the tree.
var ErrNotFound = errors.New("document: address not found")

// Node is a single structural element. Leaf nodes carry text; interior
// nodes carry ordered children. Child names are unique among siblings.
// Opaque leaves (timecodes, code fences, raw markup) are copied through
// unchanged and never offered for translation.
type Node struct {
	Name     string
	Text     string
	Opaque   bool
	Children []*Node
}

// IsLeaf reports whether the node carries text rather than children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

func (n *Node) child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AddChild appends a child node and returns it.
func (n *Node) AddChild(name string) *Node {
	c := &Node{Name: name}
	n.Children = append(n.Children, c)
	return c
}

// Tree is an addressable document structure produced by a format parser.
type Tree struct {
	Format string
	Source string

	root *Node
}

func NewTree(format string) *Tree {
	return &Tree{
		Format: format,
		root:   &Node{Name: ""},
	}
}

func (t *Tree) Root() *Node {
	return t.root
}

func (t *Tree) resolve(addr Address) (*Node, error) {
	node := t.root
	for _, segment := range addr {
		node = node.child(segment)
		if node == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
		}
	}
	return node, nil
}

// GetText returns the text at addr. Resolving a non-leaf node is an error.
func (t *Tree) GetText(addr Address) (string, error) {
	node, err := t.resolve(addr)
	if err != nil {
		return "", err
	}
	if !node.IsLeaf() {
		return "", fmt.Errorf("document: address %s is not a leaf", addr)
	}
	return node.Text, nil
}

// SetText replaces the text at addr.
func (t *Tree) SetText(addr Address, text string) error {
	node, err := t.resolve(addr)
	if err != nil {
		return err
	}
	if !node.IsLeaf() {
		return fmt.Errorf("document: address %s is not a leaf", addr)
	}
	node.Text = text
	return nil
}

// Walk visits every leaf in document order. Traversal order is
// deterministic: children are visited in insertion order.
func (t *Tree) Walk(fn func(addr Address, node *Node) error) error {
	return walk(nil, t.root, fn)
}

func walk(addr Address, node *Node, fn func(Address, *Node) error) error {
	if node.IsLeaf() && len(addr) > 0 {
		return fn(addr, node)
	}
	for _, c := range node.Children {
		if err := walk(addr.Child(c.Name), c, fn); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy, so reassembly can produce a new artifact
// without mutating the original tree.
func (t *Tree) Clone() *Tree {
	clone := &Tree{
		Format: t.Format,
		Source: t.Source,
		root:   cloneNode(t.root),
	}
	return clone
}

func cloneNode(n *Node) *Node {
	c := &Node{Name: n.Name, Text: n.Text, Opaque: n.Opaque}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, 0, len(n.Children))
		for _, child := range n.Children {
			c.Children = append(c.Children, cloneNode(child))
		}
	}
	return c
}

// Parser builds a Tree from raw file bytes. One implementation per format.
type Parser interface {
	// Extensions lists the file extensions this parser accepts, lowercase
	// with leading dot.
	Extensions() []string
	Parse(r io.Reader) (*Tree, error)
}

// Writer serializes a Tree back into file bytes.
type Writer interface {
	Commit(t *Tree, w io.Writer) error
}

// Format bundles both directions for a document format.
type Format interface {
	Parser
	Writer
	Name() string
}

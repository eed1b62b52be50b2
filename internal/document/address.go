package document

import "strings"

// Address locates a node inside a parsed document tree. Each segment names
// one child level, e.g. "sheet:Budget/cell:B2" or "block:12/line:3".
// Addresses are stable for an unmodified document: the same file parsed
// twice yields the same address for the same text span.
type Address []string

const addressSeparator = "/"

func (a Address) String() string {
	return strings.Join(a, addressSeparator)
}

// ParseAddress splits a serialized address back into segments.
func ParseAddress(s string) Address {
	if s == "" {
		return nil
	}
	return Address(strings.Split(s, addressSeparator))
}

func (a Address) Equal(other Address) bool {
	if len(a) != len(other) {
		return false
	}
	for i := range a {
		if a[i] != other[i] {
			return false
		}
	}
	return true
}

// Child returns a copied address extended by one segment.
func (a Address) Child(segment string) Address {
	next := make(Address, len(a)+1)
	copy(next, a)
	next[len(a)] = segment
	return next
}

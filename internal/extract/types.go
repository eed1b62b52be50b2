package extract

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/transtools/doctrans/internal/document"
)

// Unit is a single translatable text span with a stable structural address.
// IDs are derived from the address, so re-extracting the same unmodified
// document always yields the same IDs in the same order.
type Unit struct {
	ID         string
	SourceText string
	Position   document.Address
	// Context is an optional surrounding-text hint passed to LLM backends.
	Context string
}

// UnitID derives the stable identifier for a structural address.
func UnitID(addr document.Address) string {
	sum := sha256.Sum256([]byte(addr.String()))
	return hex.EncodeToString(sum[:8])
}

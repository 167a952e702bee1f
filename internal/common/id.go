package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewDocumentID generates a unique document ID with the "doc_" prefix
// Format: doc_<uuid>
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewGenerationID generates a unique generation-run ID with the "gen_" prefix
func NewGenerationID() string {
	return "gen_" + uuid.New().String()
}

// ShortID returns the first segment of a fresh UUID, used in artifact filenames
func ShortID() string {
	return strings.SplitN(uuid.New().String(), "-", 2)[0]
}

package validation

import (
	"github.com/certen/sourceverify/internal/metadata"
)

// PathBlob is an input unit: an opaque byte buffer plus an originating
// path string, used for diagnostics and unused-file reporting.
type PathBlob struct {
	Path string
	Data []byte
}

// PathContent is a text view of a PathBlob once it has round-tripped
// through UTF-8 decoding.
type PathContent struct {
	Path    string
	Content string
}

// MissingSource records a manifest source that no candidate blob in the
// input bag hashed to.
type MissingSource struct {
	Digest string
	URLs   []string
}

// InvalidSource records a manifest source whose declared and computed
// digests disagree.
type InvalidSource struct {
	ExpectedHash   string
	CalculatedHash string
	Message        string
}

// CheckedContract binds a metadata manifest to its reconciled source
// partitions. It is valid iff Missing and Invalid are both empty.
type CheckedContract struct {
	Manifest *metadata.Manifest

	Found   map[string]string
	Missing map[string]MissingSource
	Invalid map[string]InvalidSource

	// ProvidedPath records, for each Found key, which input path supplied
	// the matching content. Diagnostic only (spec §9: path is not
	// semantic).
	ProvidedPath map[string]string
}

// Valid reports whether every declared source was reconciled successfully.
func (c *CheckedContract) Valid() bool {
	return len(c.Missing) == 0 && len(c.Invalid) == 0
}

// Diagnostics renders a human-readable summary of every missing/invalid
// source, used for the aggregated log message in spec §4.4 step 5.
func (c *CheckedContract) Diagnostics() []string {
	var out []string
	for path, m := range c.Missing {
		out = append(out, "missing source "+path+": no blob hashes to "+m.Digest)
	}
	for path, inv := range c.Invalid {
		out = append(out, "invalid source "+path+": "+inv.Message)
	}
	return out
}

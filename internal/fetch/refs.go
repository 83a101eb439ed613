package fetch

import "github.com/certen/sourceverify/internal/metadata"

// sourceRef is one manifest source that fetchReferencedSources resolves
// by URL: its logical path and the URLs the manifest declares for it.
type sourceRef = struct {
	path string
	urls []string
}

// extractSourceRefs recognizes the manifest and lists every source entry
// that has no inline content but does carry fetch URLs.
func extractSourceRefs(manifestBytes []byte) ([]sourceRef, bool) {
	m, ok := metadata.Recognize(manifestBytes)
	if !ok {
		return nil, false
	}

	var refs []sourceRef
	for path, entry := range m.Sources {
		if entry.Content != "" || len(entry.URLs) == 0 {
			continue
		}
		refs = append(refs, sourceRef{path: path, urls: entry.URLs})
	}
	return refs, true
}

// Package validation implements the Validation Engine: given an unordered
// bag of input blobs, discover metadata manifests and reconstruct a
// hash-verified source bundle for each (spec §4.4).
package validation

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/certen/sourceverify/internal/applog"
	"github.com/certen/sourceverify/internal/archive"
	"github.com/certen/sourceverify/internal/hashkernel"
	"github.com/certen/sourceverify/internal/metadata"
	"github.com/certen/sourceverify/internal/metrics"
)

// hashEntry is one slot of the content-addressed hash index built from
// candidate sources.
type hashEntry struct {
	path    string
	content string
}

// candidateManifest pairs a recognized-but-not-yet-validated manifest with
// the path of the blob it was recognized from, for single-target
// diagnostics.
type candidateManifest struct {
	manifest *metadata.Manifest
	path     string
}

// CheckPaths resolves each path: files are loaded, directories are walked
// recursively loading every regular file. A path that does not exist is
// pushed to unreadable if non-nil, otherwise silently dropped (spec §9,
// Open Question: preserved as silent-drop).
func CheckPaths(paths []string, unreadable *[]string, reg *metrics.Registry, logger *applog.Logger) ([]*CheckedContract, error) {
	var blobs []PathBlob

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if unreadable != nil {
				*unreadable = append(*unreadable, p)
			}
			continue
		}

		if !info.IsDir() {
			data, err := os.ReadFile(p)
			if err != nil {
				if unreadable != nil {
					*unreadable = append(*unreadable, p)
				}
				continue
			}
			blobs = append(blobs, PathBlob{Path: p, Data: data})
			continue
		}

		_ = filepath.WalkDir(p, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			blobs = append(blobs, PathBlob{Path: path, Data: data})
			return nil
		})
	}

	return CheckFiles(blobs, nil, reg, logger)
}

// CheckFiles is the core reconciliation operation (spec §4.4). It fails
// with ErrNoManifestsFound if zero manifests are recognized, and with
// ErrMalformedManifests if every recognized manifest is discarded by the
// single-compilation-target check. reg, if non-nil, records each checked
// contract's outcome on ValidationTotal.
func CheckFiles(blobs []PathBlob, unused *[]string, reg *metrics.Registry, logger *applog.Logger) ([]*CheckedContract, error) {
	expanded, err := expandArchives(blobs)
	if err != nil {
		return nil, err
	}

	var manifests []candidateManifest
	var candidates []PathContent

	for _, b := range expanded {
		if metadata.IsBuildInfoBundle(b.Data) {
			sources, harvested, err := metadata.HarvestBuildInfo(b.Data)
			if err != nil {
				// Malformed build-info bundle: treat as an unrecognized
				// candidate source rather than failing the whole call.
				candidates = append(candidates, PathContent{Path: b.Path, Content: string(b.Data)})
				continue
			}
			for path, content := range sources {
				candidates = append(candidates, PathContent{Path: path, Content: content})
			}
			for _, m := range harvested {
				manifests = append(manifests, candidateManifest{manifest: m, path: b.Path})
			}
			continue
		}

		if m, ok := metadata.Recognize(b.Data); ok {
			manifests = append(manifests, candidateManifest{manifest: m, path: b.Path})
			continue
		}

		candidates = append(candidates, PathContent{Path: b.Path, Content: string(b.Data)})
	}

	if len(manifests) == 0 {
		return nil, ErrNoManifestsFound
	}

	index := buildHashIndex(candidates)

	var contracts []*CheckedContract
	consumed := make(map[string]bool)

	for _, cm := range manifests {
		if !metadata.EnforceSingleTarget(cm.manifest) {
			if logger != nil {
				logger.Warn("discarding malformed manifest", applog.Field{Key: "path", Value: cm.path},
					applog.Field{Key: "reason", Value: "multiple compilation targets"})
			}
			continue
		}

		contract := reconcile(cm.manifest, index, consumed)
		contracts = append(contracts, contract)

		if reg != nil {
			outcome := "valid"
			if !contract.Valid() {
				outcome = "invalid"
			}
			reg.ValidationTotal.WithLabelValues(outcome).Inc()
		}

		if !contract.Valid() && logger != nil {
			logger.Warn("checked contract is not valid",
				applog.Field{Key: "target", Value: cm.manifest.CompilationTargetPath()},
				applog.Field{Key: "diagnostics", Value: contract.Diagnostics()})
		}
	}

	if len(contracts) == 0 {
		return nil, ErrMalformedManifests
	}

	if unused != nil {
		for _, c := range candidates {
			if !consumed[c.Path] {
				*unused = append(*unused, c.Path)
			}
		}
	}

	return contracts, nil
}

// UseAllSources returns a new checked contract whose source map is the
// union of every supplied blob and the original contract's hash-verified
// sources. On key collision the originally verified content wins (spec
// §4.4).
func UseAllSources(contract *CheckedContract, blobs []PathBlob) *CheckedContract {
	merged := &CheckedContract{
		Manifest:     contract.Manifest,
		Found:        make(map[string]string, len(contract.Found)+len(blobs)),
		Missing:      contract.Missing,
		Invalid:      contract.Invalid,
		ProvidedPath: contract.ProvidedPath,
	}

	for _, b := range blobs {
		merged.Found[b.Path] = string(b.Data)
	}
	for path, content := range contract.Found {
		merged.Found[path] = content
	}

	return merged
}

func expandArchives(blobs []PathBlob) ([]PathBlob, error) {
	asArchiveBlobs := make([]archive.Blob, len(blobs))
	for i, b := range blobs {
		asArchiveBlobs[i] = archive.Blob{Path: b.Path, Data: b.Data}
	}

	expanded, err := archive.Expand(asArchiveBlobs)
	if err != nil {
		return nil, err
	}

	out := make([]PathBlob, len(expanded))
	for i, b := range expanded {
		out[i] = PathBlob{Path: b.Path, Data: b.Data}
	}
	return out, nil
}

func buildHashIndex(candidates []PathContent) map[hashkernel.Digest]hashEntry {
	index := make(map[hashkernel.Digest]hashEntry)
	for _, c := range candidates {
		for _, variant := range hashkernel.Variations(c.Content) {
			digest := hashkernel.Keccak256(variant)
			index[digest] = hashEntry{path: c.Path, content: variant}
		}
	}
	return index
}

func reconcile(m *metadata.Manifest, index map[hashkernel.Digest]hashEntry, consumed map[string]bool) *CheckedContract {
	contract := &CheckedContract{
		Manifest:     m,
		Found:        make(map[string]string),
		Missing:      make(map[string]MissingSource),
		Invalid:      make(map[string]InvalidSource),
		ProvidedPath: make(map[string]string),
	}

	for logicalPath, entry := range m.Sources {
		if entry.Content != "" {
			computed := hashkernel.Keccak256(entry.Content)
			if entry.Keccak == "" {
				contract.Found[logicalPath] = entry.Content
				continue
			}
			declared, ok := hashkernel.ParseDigest(entry.Keccak)
			if !ok || declared != computed {
				contract.Invalid[logicalPath] = InvalidSource{
					ExpectedHash:   entry.Keccak,
					CalculatedHash: computed.Hex(),
					Message:        "inline source content does not match declared keccak256",
				}
				continue
			}
			contract.Found[logicalPath] = entry.Content
			continue
		}

		digest, ok := hashkernel.ParseDigest(entry.Keccak)
		if !ok {
			contract.Missing[logicalPath] = MissingSource{Digest: entry.Keccak, URLs: entry.URLs}
			continue
		}

		hit, found := index[digest]
		if !found {
			contract.Missing[logicalPath] = MissingSource{Digest: entry.Keccak, URLs: entry.URLs}
			continue
		}

		contract.Found[logicalPath] = hit.content
		contract.ProvidedPath[logicalPath] = hit.path
		consumed[hit.path] = true
	}

	return contract
}

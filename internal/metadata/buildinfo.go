package metadata

import (
	"bytes"
	"encoding/json"
)

// buildInfoMarker is the substring that identifies a Hardhat compiler
// build-info bundle (spec §4.2, §6).
const buildInfoMarker = "hh-sol-build-info-1"

// IsBuildInfoBundle reports whether blob carries the build-info marker.
func IsBuildInfoBundle(blob []byte) bool {
	return bytes.Contains(blob, []byte(buildInfoMarker))
}

type buildInfoDoc struct {
	Input struct {
		Sources map[string]struct {
			Content string `json:"content"`
		} `json:"sources"`
	} `json:"input"`
	Output struct {
		Contracts map[string]map[string]struct {
			Metadata string `json:"metadata"`
		} `json:"contracts"`
	} `json:"output"`
}

// HarvestBuildInfo parses a Hardhat compiler build-info bundle, returning
// every input source as a PathContent-shaped pair and every per-contract
// metadata string run back through Recognize. Both harvested sets bypass
// general recognition for this blob (spec §4.2).
func HarvestBuildInfo(blob []byte) (sources map[string]string, manifests []*Manifest, err error) {
	var doc buildInfoDoc
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, nil, err
	}

	sources = make(map[string]string, len(doc.Input.Sources))
	for path, src := range doc.Input.Sources {
		sources[path] = src.Content
	}

	for _, byContract := range doc.Output.Contracts {
		for _, entry := range byContract {
			if entry.Metadata == "" {
				continue
			}
			if m, ok := Recognize([]byte(entry.Metadata)); ok {
				manifests = append(manifests, m)
			}
		}
	}

	return sources, manifests, nil
}

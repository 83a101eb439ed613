// Package metadata recognizes Solidity compiler metadata manifests within
// an arbitrary bag of blobs, including singly- and doubly-encoded JSON and
// manifests nested inside Hardhat compiler build-info bundles.
package metadata

import "encoding/json"

// SourceEntry is one entry of a manifest's "sources" map: either an inline
// source (Content set) or a reference resolved by digest and URLs.
type SourceEntry struct {
	Content  string   `json:"content,omitempty"`
	Keccak   string   `json:"keccak256,omitempty"`
	URLs     []string `json:"urls,omitempty"`
	License  string   `json:"license,omitempty"`
}

// Settings carries the compilation settings relevant to recognition; the
// rest of the settings object round-trips through Raw.
type Settings struct {
	CompilationTarget map[string]string `json:"compilationTarget"`
}

// Output carries the ABI/NatSpec fields required for recognition; the rest
// of the output object round-trips through Raw.
type Output struct {
	ABI     json.RawMessage `json:"abi"`
	UserDoc json.RawMessage `json:"userdoc"`
	DevDoc  json.RawMessage `json:"devdoc"`
}

// Manifest is the canonical Solidity compiler metadata structure (the
// "MetadataManifest" of the data model). Raw preserves the exact decoded
// document so re-serialization (used when returning a manifest to a
// CheckedContract) is lossless.
type Manifest struct {
	Language string                 `json:"language"`
	Version  string                 `json:"version"`
	Settings Settings               `json:"settings"`
	Output   Output                 `json:"output"`
	Sources  map[string]SourceEntry `json:"sources"`

	Raw json.RawMessage `json:"-"`
}

// CompilationTargetPath returns the manifest's single compilation target
// path. Callers must have already enforced
// len(Settings.CompilationTarget)==1 via EnforceSingleTarget.
func (m *Manifest) CompilationTargetPath() string {
	for path := range m.Settings.CompilationTarget {
		return path
	}
	return ""
}

func isPopulated(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	switch string(raw) {
	case "null", "{}", "[]", `""`:
		return false
	default:
		return true
	}
}

// recognizes reports whether a decoded document satisfies the recognition
// predicate from spec §3: language, single-entry compilation target (size
// checked separately by EnforceSingleTarget), non-empty version, non-empty
// abi/userdoc/devdoc, non-empty sources.
func recognizes(m *Manifest) bool {
	if m.Language != "Solidity" {
		return false
	}
	if len(m.Settings.CompilationTarget) == 0 {
		return false
	}
	if m.Version == "" {
		return false
	}
	if !isPopulated(m.Output.ABI) || !isPopulated(m.Output.UserDoc) || !isPopulated(m.Output.DevDoc) {
		return false
	}
	if len(m.Sources) == 0 {
		return false
	}
	return true
}

// EnforceSingleTarget enforces the single-entry compilationTarget
// invariant. A manifest with multiple targets is rejected at recognition
// time (spec §3, §4.2).
func EnforceSingleTarget(m *Manifest) bool {
	return len(m.Settings.CompilationTarget) == 1
}

func decode(blob []byte) (*Manifest, bool) {
	var m Manifest
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, false
	}
	m.Raw = json.RawMessage(blob)
	return &m, true
}

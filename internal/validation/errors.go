package validation

import "errors"

// Errors fatal to a single check_files/check_paths invocation (spec §4.4,
// §7). Per-source problems (HashMismatch, MissingSource) are not errors —
// they become structured partitions of the CheckedContract instead.
var (
	// ErrNoManifestsFound is returned when the input bag contains zero
	// recognizable metadata manifests.
	ErrNoManifestsFound = errors.New("validation: metadata.json missing: no manifests found in input")

	// ErrMalformedManifests is returned when every recognized manifest was
	// discarded by the single-compilation-target check.
	ErrMalformedManifests = errors.New("validation: all recognized manifests were malformed (multiple compilation targets)")
)

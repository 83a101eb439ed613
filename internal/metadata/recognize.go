package metadata

import (
	"encoding/json"
	"errors"
	"regexp"
)

// ErrMultipleCompilationTargets is recorded (not returned) when a
// recognized manifest fails the single-target invariant; callers route it
// to the malformed-metadata diagnostic list per spec §4.2.
var ErrMultipleCompilationTargets = errors.New("metadata: manifest declares more than one compilation target")

// nestedPattern matches a quoted JSON object whose prefix looks like a
// Solidity metadata document embedded as a string inside another JSON
// value, e.g. compiler build artifacts that stash raw metadata text.
var nestedPattern = regexp.MustCompile(`"(\{\\"compiler\\":\{\\"version\\"[^"]*\})"`)

// Recognize implements the recognition algorithm of spec §4.2:
//  1. parse as JSON; on failure, not a manifest.
//  2. if it passes the recognition predicate, return it.
//  3. otherwise try re-parsing the decoded value as JSON (handles a
//     manifest stored as a JSON-encoded string inside another JSON value).
//  4. otherwise look for a nested-metadata pattern in the raw text and
//     retry steps 1-3 on the extracted substring.
//  5. otherwise, not a manifest.
func Recognize(blob []byte) (*Manifest, bool) {
	if m, ok := tryDecodeAndPredicate(blob); ok {
		return m, true
	}

	if match := nestedPattern.FindSubmatch(blob); match != nil {
		unescaped, err := unescapeJSONString(match[1])
		if err == nil {
			if m, ok := tryDecodeAndPredicate(unescaped); ok {
				return m, true
			}
		}
	}

	return nil, false
}

// tryDecodeAndPredicate performs steps 1-3 of the recognition algorithm
// against a single blob of bytes.
func tryDecodeAndPredicate(blob []byte) (*Manifest, bool) {
	if m, ok := decode(blob); ok && recognizes(m) {
		return m, true
	}

	// Double-encoded JSON: the first decode produced a JSON string (or a
	// document whose Raw field is itself a quoted JSON document). Re-parse
	// the decoded text, not the original bytes.
	var inner string
	if err := json.Unmarshal(blob, &inner); err == nil {
		if m2, ok := decode([]byte(inner)); ok && recognizes(m2) {
			return m2, true
		}
	}

	return nil, false
}

// unescapeJSONString turns a matched `"{...}"` quoted-JSON fragment back
// into the object it encodes.
func unescapeJSONString(quoted []byte) ([]byte, error) {
	var s string
	if err := json.Unmarshal(append(append([]byte{'"'}, quoted...), '"'), &s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

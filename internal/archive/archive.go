// Package archive expands ZIP-format blobs found in an input bag in
// place, replacing each archive with its path-preserved members.
// Expansion is single-level: expanded members are not re-scanned for
// nested archives (spec §4.3, Open Question preserved).
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrUnreadable wraps a failure to read an archive's central directory.
var ErrUnreadable = errors.New("archive: unreadable")

// Blob mirrors validation.PathBlob without importing the validation
// package, keeping archive expansion usable standalone.
type Blob struct {
	Path string
	Data []byte
}

// isZip reports whether data starts with a 4-byte prefix recognized as a
// ZIP local/central file header (spec §4.3):
// 0x50 0x4B (0x03|0x05|0x07) (0x04|0x06|0x08).
func isZip(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] != 0x50 || data[1] != 0x4B {
		return false
	}
	switch data[2] {
	case 0x03, 0x05, 0x07:
	default:
		return false
	}
	switch data[3] {
	case 0x04, 0x06, 0x08:
	default:
		return false
	}
	return true
}

// Expand replaces every ZIP-signatured blob in blobs with its enumerated
// members, preserving each member's path. Non-archive blobs pass through
// unchanged.
func Expand(blobs []Blob) ([]Blob, error) {
	out := make([]Blob, 0, len(blobs))
	for _, b := range blobs {
		if !isZip(b.Data) {
			out = append(out, b)
			continue
		}

		members, err := expandOne(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, b.Path, err)
		}
		out = append(out, members...)
	}
	return out, nil
}

func expandOne(b Blob) ([]Blob, error) {
	r, err := zip.NewReader(bytes.NewReader(b.Data), int64(len(b.Data)))
	if err != nil {
		return nil, err
	}

	members := make([]Blob, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		members = append(members, Blob{Path: f.Name, Data: data})
	}
	return members, nil
}

package image

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gotrace/ptimage/internal/asid"
	"github.com/gotrace/ptimage/internal/section"
	"github.com/stretchr/testify/require"
)

// newTestSection creates a section over a temp file filled with a
// recognizable byte pattern: byte i of the file is i mod 256, offset by
// a per-file seed so different test files are distinguishable.
func newTestSection(t *testing.T, name string, size uint64, seed byte) *section.Section {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	data := make([]byte, size)
	for i := range data {
		data[i] = seed + byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))

	sec, err := section.New(path, 0, size)
	require.NoError(t, err)
	return sec
}

// sameNameSection creates a second section with the same filename and
// contents as an existing one, for identical-range-shortcut tests.
func sameNameSection(t *testing.T, existing *section.Section) *section.Section {
	t.Helper()
	sec, err := section.New(existing.Filename(), existing.Offset(), existing.Size())
	require.NoError(t, err)
	return sec
}

func wildcard() asid.ASID { return asid.Wildcard }

// writeFile creates a file of size bytes filled with an incrementing
// pattern, for tests that drive the image package through the
// package-level AddFile entry point instead of a pre-built Section.
func writeFile(path string, size uint64) error {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	return os.WriteFile(path, data, 0o600)
}

func countEntries(img *Image) int {
	n := 0
	for e := img.seq.head; e != nil; e = e.next {
		n++
	}
	return n
}

// Package section implements the Section Handle of spec.md §4.1: a
// reference-counted view of a byte range within a file, independent of
// any image.
//
// Each method takes the Section's own mutex, so a single call is safe
// from multiple goroutines. A sequence of calls (Map, ReadMapped,
// Unmap) is not made atomic by that lock; the image package, this
// package's only intended caller, runs such sequences under its own
// single-threaded contract.
package section

import (
	"fmt"
	"os"
	"sync"

	"github.com/gotrace/ptimage/internal/pterrors"
)

// Section is a reference-counted, file-backed byte range. The zero
// value is not valid; use New or Clone.
type Section struct {
	mu sync.Mutex

	filename string
	offset   uint64
	size     uint64

	refcount uint64
	mapcount uint64

	file *os.File

	onMap, onUnmap func()
}

// New creates a Section over [offset, offset+size) of filename, with a
// reference count of one.
//
// Returns pterrors.Invalid if filename is empty or size is zero.
func New(filename string, offset, size uint64) (*Section, error) {
	const op = "section.New"

	if filename == "" || size == 0 {
		return nil, pterrors.New(pterrors.Invalid, op, "empty filename or zero size")
	}

	return &Section{
		filename: filename,
		offset:   offset,
		size:     size,
		refcount: 1,
	}, nil
}

// Clone returns a new Section viewing [start, start+size) of the same
// file as s, with a reference count of one.
//
// start must lie in [s.offset, s.offset+s.size) and start+size must lie
// in (s.offset, s.offset+s.size]; violations return pterrors.Internal,
// matching pt_image_clone's precondition checks.
func (s *Section) Clone(start, size uint64) (*Section, error) {
	const op = "section.Clone"

	s.mu.Lock()
	defer s.mu.Unlock()

	if size == 0 {
		return nil, pterrors.New(pterrors.Internal, op, "zero-size clone")
	}
	if start < s.offset || start >= s.offset+s.size {
		return nil, pterrors.New(pterrors.Internal, op, "start out of range")
	}
	if end := start + size; end <= s.offset || end > s.offset+s.size {
		return nil, pterrors.New(pterrors.Internal, op, "end out of range")
	}

	return &Section{
		filename: s.filename,
		offset:   start,
		size:     size,
		refcount: 1,
	}, nil
}

// Acquire increments the reference count.
func (s *Section) Acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refcount++
}

// Release decrements the reference count, closing the backing file and
// freeing resources once it reaches zero. Release must be balanced with
// exactly one prior New, Clone, or Acquire call per caller.
func (s *Section) Release() error {
	const op = "section.Release"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refcount == 0 {
		return pterrors.New(pterrors.Internal, op, "release of already-dead section")
	}

	s.refcount--
	if s.refcount != 0 {
		return nil
	}

	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		if err != nil {
			return pterrors.Wrap(pterrors.Internal, op, err)
		}
	}
	return nil
}

// Map brackets the period during which ReadMapped may be called. Map
// calls nest: only the first of a run of nested Map calls does I/O, and
// only the matching final Unmap releases the open file.
func (s *Section) Map() error {
	const op = "section.Map"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mapcount == 0 {
		f, err := os.Open(s.filename)
		if err != nil {
			return pterrors.Wrap(pterrors.Internal, op, err)
		}
		s.file = f
	}
	s.mapcount++
	if s.onMap != nil {
		s.onMap()
	}
	return nil
}

// Unmap balances a prior Map call; the matching outermost Unmap closes
// the backing file.
func (s *Section) Unmap() error {
	const op = "section.Unmap"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mapcount == 0 {
		return pterrors.New(pterrors.Internal, op, "unmap without matching map")
	}

	s.mapcount--
	if s.onUnmap != nil {
		s.onUnmap()
	}
	if s.mapcount != 0 {
		return nil
	}

	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		if err != nil {
			return pterrors.Wrap(pterrors.Internal, op, err)
		}
	}
	return nil
}

// ReadMapped copies at most len(buf) bytes starting at offset (relative
// to the section's range) into buf. The section must currently be
// mapped.
//
// Returns pterrors.NoMap if offset is at or past the section's size. A
// short read at the region's end is not an error: the returned count is
// the number of bytes actually copied, which is always at least 1 on
// success.
func (s *Section) ReadMapped(buf []byte, offset uint64) (int, error) {
	const op = "section.ReadMapped"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mapcount == 0 {
		return 0, pterrors.New(pterrors.Internal, op, "read of unmapped section")
	}
	if offset >= s.size {
		return 0, pterrors.New(pterrors.NoMap, op, "offset past end of section")
	}

	want := s.size - offset
	if uint64(len(buf)) < want {
		want = uint64(len(buf))
	}
	if want == 0 {
		return 0, pterrors.New(pterrors.NoMap, op, "zero-length read")
	}

	n, err := s.file.ReadAt(buf[:want], int64(s.offset+offset))
	if n > 0 {
		// A short read that still produced bytes is not a failure: the
		// caller gets a prefix of the request, per spec.md §4.1.
		return n, nil
	}
	if err != nil {
		return 0, pterrors.Wrap(pterrors.Internal, op, err)
	}
	return 0, pterrors.New(pterrors.NoMap, op, "zero bytes read")
}

// Filename returns the backing file name.
func (s *Section) Filename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filename
}

// Offset returns the section's byte offset into its backing file.
func (s *Section) Offset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Size returns the section's size in bytes.
func (s *Section) Size() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// RefCount returns the current reference count, for tests.
func (s *Section) RefCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refcount
}

// MapCount returns the current outstanding map count, for tests.
func (s *Section) MapCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapcount
}

// SetMapHooks installs callbacks invoked after every successful Map and
// Unmap call, so tests can detect map/unmap activity directly instead of
// polling MapCount. Either argument may be nil; production code never
// calls this.
func (s *Section) SetMapHooks(onMap, onUnmap func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMap = onMap
	s.onUnmap = onUnmap
}

func (s *Section) String() string {
	return fmt.Sprintf("section{%s+%#x,%#x}", s.filename, s.offset, s.size)
}

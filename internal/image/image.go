// Package image implements the Image Store and Read Path & Cache of
// spec.md §4.3–§4.6: the ordered collection of mapped sections for one
// traced image, insertion with overlap resolution, removal, copy, and
// the cached read path.
//
// An *Image is single-threaded per spec.md §5: every public method
// assumes exclusive access. Callers that need concurrency should wrap
// an *Image in Guarded (guarded.go).
package image

import (
	"github.com/google/uuid"
	"github.com/gotrace/ptimage/internal/asid"
	"github.com/gotrace/ptimage/internal/pterrors"
	"github.com/gotrace/ptimage/internal/section"
)

// DefaultCacheSize is the default number of entries kept mapped, per
// spec.md §3.
const DefaultCacheSize = 10

// ReadMemoryCallback is consulted when no mapped section in the image
// can satisfy a read. It mirrors spec.md §6's read_memory_callback_t:
// a single-method interface realized as a function, with an explicit
// opaque context word for symmetry with the C ABI this module's
// lineage comes from.
type ReadMemoryCallback func(buf []byte, query asid.ASID, addr uint64, context any) (int, error)

// Image is a traced image: a sparse collection of file-backed memory
// regions, each stamped with an ASID, plus an optional fallback
// read-memory callback.
type Image struct {
	name string

	seq sequence

	cache   uint32 // C in spec.md §3
	mapped  uint32 // M in spec.md §3

	readMemFn  ReadMemoryCallback
	readMemCtx any

	metrics MetricsRecorder

	// cloneSection performs the actual section clone a split needs.
	// It is a field rather than a direct (*section.Section).Clone call
	// so tests can inject a failure partway through a multi-clone Add
	// and exercise the rollback path below — production code never
	// overrides it.
	cloneSection func(sec *section.Section, start, size uint64) (*section.Section, error)
}

// Alloc creates a new Image. If name is empty, a name of the form
// "image-<uuid>" is generated so log lines and metric labels always
// have a stable, human-inspectable identifier (SPEC_FULL.md §11.6).
func Alloc(name string) *Image {
	img := &Image{}
	Init(img, name)
	return img
}

// Init initializes img in place with an optional name, for callers that
// embed an Image rather than heap-allocate one via Alloc.
func Init(img *Image, name string) {
	if name == "" {
		name = "image-" + uuid.NewString()
	}
	*img = Image{name: name, cache: DefaultCacheSize, cloneSection: (*section.Section).Clone}
}

// Fini releases every entry, in order, and clears img. After Fini, img
// must not be used again except via another Init call.
func (img *Image) Fini() error {
	var first error
	for e := img.seq.head; e != nil; {
		next := e.next
		if err := e.release(); err != nil && first == nil {
			first = err
		}
		e = next
	}
	*img = Image{}
	return first
}

// Name returns the image's name.
func (img *Image) Name() string { return img.name }

// SetCacheSize changes the cache bound C. It is meant to be called
// before heavy use; shrinking it below the current mapped count takes
// effect lazily, on the next read that triggers prune.
func (img *Image) SetCacheSize(c uint32) { img.cache = c }

// CacheSize returns the current cache bound C.
func (img *Image) CacheSize() uint32 { return img.cache }

// MappedCount returns M, the number of currently mapped entries.
func (img *Image) MappedCount() uint32 { return img.mapped }

// SetCallback installs (or clears, with a nil fn) the read-memory
// fallback callback.
func (img *Image) SetCallback(fn ReadMemoryCallback, context any) {
	img.readMemFn = fn
	img.readMemCtx = context
}

// Add inserts sec at vaddr in asid, splitting or shrinking any existing
// entries in the same ASID that overlap it, per spec.md §4.3.
//
// Add is atomic in the sense of §4.3's rationale: either the whole
// overlap set is rewritten, or the image is left exactly as it was
// (modulo previously-mapped entries that became unmapped along the way,
// which is harmless since the read path remaps lazily).
func (img *Image) Add(sec *section.Section, a asid.ASID, vaddr uint64) error {
	const op = "Image.Add"

	if sec == nil {
		return pterrors.New(pterrors.Internal, op, "nil section")
	}

	begin := vaddr
	end := begin + sec.Size()

	seed := newEntry(sec, a, vaddr)
	fresh := []*entry{seed}
	var removed []*entry

	rollback := func(err error) error {
		for _, e := range fresh {
			_ = e.release()
		}
		img.seq.appendAll(removed)
		return err
	}

	e := img.seq.head
	for e != nil {
		next := e.next

		matches, merr := e.msec.matchesASID(a)
		if merr != nil {
			return rollback(pterrors.Wrap(pterrors.Internal, op, merr))
		}
		if matches != 1 {
			e = next
			continue
		}

		lbegin, lend := e.msec.begin(), e.msec.end()
		if end <= lbegin || lend <= begin {
			e = next
			continue
		}

		// e overlaps [begin, end).
		if begin == lbegin && end == lend {
			fname := sec.Filename()
			lfname := e.msec.sec.Filename()
			if fname == "" || lfname == "" {
				return rollback(pterrors.New(pterrors.Internal, op, "nil filename in identical-range overlap"))
			}
			if fname == lfname {
				// Duplicate of an existing, identical section: a no-op
				// add. The safety check below matches pt_image_add's
				// own assertion that nothing else should have happened
				// yet.
				if len(removed) != 0 || len(fresh) != 1 {
					return rollback(pterrors.New(pterrors.Internal, op, "identical-range shortcut taken after other changes"))
				}
				_ = seed.release()
				return nil
			}
		}

		// e overlaps but is not an identical duplicate: splice it out
		// and clone whatever of it survives outside [begin, end) into
		// fresh, unmapped.
		img.seq.remove(e)
		removed = append(removed, e)

		if e.mapped {
			if err := e.msec.sec.Unmap(); err != nil {
				return rollback(pterrors.Wrap(pterrors.Internal, op, err))
			}
			e.mapped = false
			img.mapped--
		}

		if lbegin < begin {
			left, err := img.cloneTail(e.msec, lbegin, begin)
			if err != nil {
				return rollback(err)
			}
			fresh = append([]*entry{left}, fresh...)
		}
		if end < lend {
			right, err := img.cloneTail(e.msec, end, lend)
			if err != nil {
				return rollback(err)
			}
			fresh = append([]*entry{right}, fresh...)
		}

		e = next
	}

	for _, e := range removed {
		_ = e.release()
	}
	img.seq.appendAll(fresh)
	return nil
}

// cloneTail clones msec.sec over [begin, end) and wraps it in a fresh,
// unmapped entry, the Go analogue of pt_image_clone.
func (img *Image) cloneTail(msec mappedSection, begin, end uint64) (*entry, error) {
	const op = "Image.cloneTail"

	if end <= begin || begin < msec.begin() {
		return nil, pterrors.New(pterrors.Internal, op, "malformed clone range")
	}

	offset := begin - msec.begin()
	size := end - begin

	cloned, err := img.cloneSection(msec.sec, msec.sec.Offset()+offset, size)
	if err != nil {
		return nil, err
	}

	e := newEntry(cloned, msec.asid, begin)
	// newEntry acquired its own reference via Section.Acquire on the
	// clone; Clone already returned a section with refcount 1, so drop
	// our extra local reference now that the entry holds one.
	if err := cloned.Release(); err != nil {
		return nil, pterrors.Wrap(pterrors.Internal, op, err)
	}

	return e, nil
}

// AddFile synthesizes a section handle over [offset, offset+size) of
// filename and adds it to img at vaddr in asid, releasing the local
// reference on both the success and failure path (so the caller never
// has to), matching pt_image_add_file.
func AddFile(img *Image, filename string, offset, size uint64, a asid.ASID, vaddr uint64) error {
	const op = "image.AddFile"

	if img == nil || filename == "" {
		return pterrors.New(pterrors.Invalid, op, "nil image or empty filename")
	}

	sec, err := section.New(filename, offset, size)
	if err != nil {
		return err
	}

	addErr := img.Add(sec, a, vaddr)
	if releaseErr := sec.Release(); releaseErr != nil && addErr == nil {
		addErr = releaseErr
	}
	return addErr
}

// Remove deletes the first entry whose section identity, vaddr, and
// ASID match.
func (img *Image) Remove(sec *section.Section, a asid.ASID, vaddr uint64) error {
	const op = "Image.Remove"

	if sec == nil {
		return pterrors.New(pterrors.Internal, op, "nil section")
	}

	for e := img.seq.head; e != nil; e = e.next {
		matches, err := e.msec.matchesASID(a)
		if err != nil {
			return pterrors.Wrap(pterrors.Internal, op, err)
		}
		if matches != 1 {
			continue
		}
		if e.msec.sec == sec && e.msec.vaddr == vaddr {
			img.unlink(e)
			return e.release()
		}
	}

	return pterrors.New(pterrors.BadImage, op, "no matching entry")
}

// RemoveByFilename deletes every entry whose ASID matches and whose
// section's filename equals filename, returning the number removed.
func (img *Image) RemoveByFilename(filename string, a asid.ASID) (int, error) {
	const op = "Image.RemoveByFilename"

	removed := 0
	for e := img.seq.head; e != nil; {
		next := e.next

		matches, err := e.msec.matchesASID(a)
		if err != nil {
			return removed, pterrors.Wrap(pterrors.Internal, op, err)
		}
		if matches == 1 && e.msec.sec.Filename() == filename {
			img.unlink(e)
			_ = e.release()
			removed++
		}

		e = next
	}
	return removed, nil
}

// RemoveByASID deletes every entry whose ASID matches a, returning the
// number removed.
func (img *Image) RemoveByASID(a asid.ASID) (int, error) {
	const op = "Image.RemoveByASID"

	removed := 0
	for e := img.seq.head; e != nil; {
		next := e.next

		matches, err := e.msec.matchesASID(a)
		if err != nil {
			return removed, pterrors.Wrap(pterrors.Internal, op, err)
		}
		if matches == 1 {
			img.unlink(e)
			_ = e.release()
			removed++
		}

		e = next
	}
	return removed, nil
}

// unlink splices e out of the sequence and updates the mapped count if
// needed, without releasing e's resources (the caller does that).
func (img *Image) unlink(e *entry) {
	img.seq.remove(e)
	if e.mapped {
		img.mapped--
	}
}

// CheckInvariants panics if any of spec.md §3's invariants are
// violated: the mapped/unmapped ordering, and M's relationship to C.
// External synchronization is required, matching the rest of this type.
func (img *Image) CheckInvariants() {
	img.checkInvariantsLocked()
}

// Copy adds every entry of src to dst, in order, tolerating per-entry
// failures. It returns the number of entries dst declined to accept, so
// the caller can decide whether to treat the copy as best-effort; src
// is never modified.
func Copy(dst, src *Image) (int, error) {
	const op = "image.Copy"

	if dst == nil || src == nil {
		return 0, pterrors.New(pterrors.Invalid, op, "nil image")
	}

	rejected := 0
	for e := src.seq.head; e != nil; e = e.next {
		if err := dst.Add(e.msec.sec, e.msec.asid, e.msec.vaddr); err != nil {
			rejected++
		}
	}
	return rejected, nil
}

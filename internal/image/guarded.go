package image

import (
	"github.com/gotrace/ptimage/internal/asid"
	"github.com/gotrace/ptimage/internal/section"
	"github.com/jacobsa/syncutil"
)

// Guarded wraps an *Image with an invariant-checked mutex, for callers
// that need concurrent access to one image from multiple goroutines.
// The bare Image type is intentionally not safe for concurrent use
// (spec.md §5: "every public operation assumes exclusive access");
// Guarded is the opt-in exception, built the same way
// fs/inode/file.go's File wraps its inode state in a
// syncutil.InvariantMutex constructed over its own checkInvariants
// method.
//
// Guarded does not itself add any new behavior beyond locking: every
// method here just takes Mu and forwards to the wrapped Image.
type Guarded struct {
	Mu syncutil.InvariantMutex

	img *Image
}

// NewGuarded wraps img, whose ownership transfers to the Guarded: the
// caller should not use img directly afterward.
func NewGuarded(img *Image) *Guarded {
	g := &Guarded{img: img}
	g.Mu = syncutil.NewInvariantMutex(g.checkInvariants)
	return g
}

// checkInvariants panics if the Guarded no longer holds an image. It
// does not scan the image's entries: a full invariant scan would make
// every locked operation O(n); CheckInvariants below does that scan for
// tests.
func (g *Guarded) checkInvariants() {
	if g.img == nil {
		panic("Guarded used after its Image was taken")
	}
}

// CheckInvariants walks the full entry sequence and panics if a mapped
// entry follows an unmapped one, if the number of mapped entries differs
// from M, or if M breaks its bound against C. Reference counts and
// range overlap are not checked. It is meant for tests and debug
// builds, not the hot path.
func (g *Guarded) CheckInvariants() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.img.checkInvariantsLocked()
}

func (img *Image) checkInvariantsLocked() {
	seenMapped := uint32(0)
	sawUnmapped := false
	for e := img.seq.head; e != nil; e = e.next {
		if e.mapped {
			if sawUnmapped {
				panic("mapped entry follows an unmapped entry")
			}
			seenMapped++
		} else {
			sawUnmapped = true
		}
	}
	if seenMapped != img.mapped {
		panic("mapped count drifted from M")
	}
	if img.cache > 0 && img.mapped > img.cache {
		panic("M exceeds C")
	}
	if img.cache == 0 && img.mapped != 0 {
		panic("C is zero but M is nonzero")
	}
}

// Add is the guarded form of Image.Add.
func (g *Guarded) Add(sec *section.Section, a asid.ASID, vaddr uint64) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.img.Add(sec, a, vaddr)
}

// Remove is the guarded form of Image.Remove.
func (g *Guarded) Remove(sec *section.Section, a asid.ASID, vaddr uint64) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.img.Remove(sec, a, vaddr)
}

// Read is the guarded form of Image.Read.
func (g *Guarded) Read(buf []byte, a asid.ASID, addr uint64) (int, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.img.Read(buf, a, addr)
}

// Fini is the guarded form of Image.Fini.
func (g *Guarded) Fini() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.img.Fini()
}

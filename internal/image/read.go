package image

import (
	"time"

	"github.com/gotrace/ptimage/internal/asid"
	"github.com/gotrace/ptimage/internal/logger"
	"github.com/gotrace/ptimage/internal/pterrors"
)

// Read serves a byte read at addr in asid, per spec.md §4.6. It walks
// the mapped prefix first (the hot path, no I/O), then falls back to
// mapping additional entries on demand (the cold path), then to the
// user callback if every entry misses.
func (img *Image) Read(buf []byte, a asid.ASID, addr uint64) (int, error) {
	const op = "Image.Read"
	start := time.Now()

	e := img.seq.head
	for e != nil && e.mapped {
		n, err := e.msec.readMapped(buf, a, addr)
		if err != nil {
			if kind, ok := pterrors.KindOf(err); ok && kind == pterrors.NoMap {
				e = e.next
				continue
			}
			img.recordRead(false, 0, start)
			return 0, err
		}

		img.seq.moveToFront(e)
		img.recordRead(true, n, start)
		return n, nil
	}

	n, err := img.readCold(e, buf, a, addr, op)
	img.recordRead(err == nil, n, start)
	return n, err
}

// readCold starts at the first unmapped entry (or nil, if every entry
// is mapped and none hit in Read's hot walk, in which case it goes
// straight to the callback) and maps entries on demand until one hits
// or the sequence is exhausted, in which case the user callback is
// consulted.
func (img *Image) readCold(start *entry, buf []byte, a asid.ASID, addr uint64, op string) (int, error) {
	for e := start; e != nil; {
		next := e.next

		wasMapped := e.mapped
		if !wasMapped {
			if err := e.msec.sec.Map(); err != nil {
				return 0, pterrors.Wrap(pterrors.Internal, op, err)
			}
		}

		n, err := e.msec.readMapped(buf, a, addr)
		if err != nil {
			kind, ok := pterrors.KindOf(err)
			if !ok || kind != pterrors.NoMap {
				return 0, err
			}
			if !wasMapped {
				if unmapErr := e.msec.sec.Unmap(); unmapErr != nil {
					return 0, pterrors.Wrap(pterrors.Internal, op, unmapErr)
				}
			}
			e = next
			continue
		}

		img.seq.moveToFront(e)

		if !wasMapped {
			if img.cache == 0 {
				if unmapErr := e.msec.sec.Unmap(); unmapErr != nil {
					return 0, pterrors.Wrap(pterrors.Internal, op, unmapErr)
				}
			} else {
				e.mapped = true
				img.mapped++
				if img.mapped > img.cache {
					if pruneErr := img.prune(); pruneErr != nil {
						return 0, pruneErr
					}
				}
			}
		}

		return n, nil
	}

	if img.readMemFn == nil {
		return 0, pterrors.New(pterrors.NoMap, op, "no section and no callback")
	}
	return img.readMemFn(buf, a, addr, img.readMemCtx)
}

// prune walks the entire sequence once, unmapping every mapped entry
// past the C-th, and updates M to the number of entries whose flags
// remain set afterward. It scans the whole sequence rather than just
// the mapped prefix so it can retry previously-failed unmaps on a later
// call, matching pt_image_prune_cache (spec.md §9, Open Question 1).
func (img *Image) prune() error {
	var firstErr error

	mappedSeen := uint32(0)
	stillMapped := uint32(0)
	evicted := uint32(0)
	for e := img.seq.head; e != nil; e = e.next {
		if !e.mapped {
			continue
		}

		mappedSeen++
		if mappedSeen <= img.cache {
			stillMapped++
			continue
		}

		if err := e.msec.sec.Unmap(); err != nil {
			if firstErr == nil {
				firstErr = err
			} else {
				logger.Errorf("image %s: prune: unmap failed, leaving entry mapped: %v", img.name, err)
			}
			stillMapped++
			continue
		}
		e.mapped = false
		evicted++
	}

	img.mapped = stillMapped
	if evicted > 0 {
		logger.Debugf("image %s: prune: evicted %d entries, %d remain mapped", img.name, evicted, stillMapped)
	}
	img.recordPrune(evicted)
	return firstErr
}

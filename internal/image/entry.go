package image

import (
	"github.com/gotrace/ptimage/internal/asid"
	"github.com/gotrace/ptimage/internal/section"
)

// entry is a Section List Entry (spec.md §3): a mapped section plus a
// flag saying whether a map call on the underlying handle is currently
// outstanding from this entry. entry.prev/next link it into at most one
// list at a time (the live sequence owned by an *Image); entries
// produced or removed during Add are tracked separately, in plain
// slices, while they are not part of that sequence.
type entry struct {
	msec   mappedSection
	mapped bool

	prev, next *entry
}

func newEntry(sec *section.Section, a asid.ASID, vaddr uint64) *entry {
	sec.Acquire()
	return &entry{msec: newMappedSection(sec, a, vaddr)}
}

// release drops this entry's reference on its section, unmapping first
// if the entry was mapped. It is the Go analogue of
// pt_section_list_free: every entry holds exactly one reference and, if
// mapped, exactly one outstanding map (spec.md §3 invariants 2 and 3).
func (e *entry) release() error {
	var err error
	if e.mapped {
		if unmapErr := e.msec.sec.Unmap(); unmapErr != nil {
			err = unmapErr
		}
		e.mapped = false
	}
	if putErr := e.msec.sec.Release(); putErr != nil && err == nil {
		err = putErr
	}
	return err
}

// sequence is a doubly-linked chain of entries. Within it, the ordering
// invariant of spec.md §3 holds by construction: every mapped entry
// precedes every unmapped entry, and among mapped entries, order is
// most-recently-used first. sequence itself does not enforce that
// invariant — the algorithms in image.go and read.go do, by only ever
// calling moveToFront on entries they have just confirmed are mapped,
// and only ever appending newly unmapped entries at the tail.
type sequence struct {
	head, tail *entry
	length     int
}

func (s *sequence) pushFront(e *entry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
	s.length++
}

func (s *sequence) pushBack(e *entry) {
	e.next = nil
	e.prev = s.tail
	if s.tail != nil {
		s.tail.next = e
	}
	s.tail = e
	if s.head == nil {
		s.head = e
	}
	s.length++
}

// remove splices e out of the sequence. e must currently be a member.
func (s *sequence) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
	s.length--
}

// moveToFront relinks e to the head of the sequence. It is a no-op if e
// is already the head.
func (s *sequence) moveToFront(e *entry) {
	if s.head == e {
		return
	}
	s.remove(e)
	s.pushFront(e)
}

// appendAll pushes every entry of others onto the tail of s, in order.
// The others slice itself is left unchanged.
func (s *sequence) appendAll(others []*entry) {
	for _, e := range others {
		s.pushBack(e)
	}
}

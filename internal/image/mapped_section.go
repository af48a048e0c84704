package image

import (
	"github.com/gotrace/ptimage/internal/asid"
	"github.com/gotrace/ptimage/internal/pterrors"
	"github.com/gotrace/ptimage/internal/section"
)

// mappedSection is a (section, ASID, virtual address) triple: spec.md
// §3's Mapped Section. It never owns the section beyond holding one
// reference on it.
type mappedSection struct {
	sec   *section.Section
	asid  asid.ASID
	vaddr uint64
}

func newMappedSection(sec *section.Section, a asid.ASID, vaddr uint64) mappedSection {
	return mappedSection{sec: sec, asid: a, vaddr: vaddr}
}

// begin returns the mapped section's first virtual address.
func (m mappedSection) begin() uint64 { return m.vaddr }

// end returns the mapped section's address just past its last byte.
func (m mappedSection) end() uint64 { return m.vaddr + m.sec.Size() }

// matchesASID reports 1 if query matches m's ASID per asid.Matches, 0
// otherwise.
func (m mappedSection) matchesASID(query asid.ASID) (int, error) {
	return asid.Matches(m.asid, query)
}

// readMapped requires that m.sec is currently mapped. It succeeds only
// if the ASID matches and addr falls in [begin, end); otherwise it
// returns pterrors.NoMap.
func (m mappedSection) readMapped(buf []byte, query asid.ASID, addr uint64) (int, error) {
	const op = "mappedSection.readMapped"

	ok, err := m.matchesASID(query)
	if err != nil {
		return 0, pterrors.Wrap(pterrors.Internal, op, err)
	}
	if ok != 1 {
		return 0, pterrors.New(pterrors.NoMap, op, "asid mismatch")
	}
	if addr < m.begin() || addr >= m.end() {
		return 0, pterrors.New(pterrors.NoMap, op, "address out of range")
	}

	return m.sec.ReadMapped(buf, addr-m.begin())
}
